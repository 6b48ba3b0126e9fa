package crypto

import (
	"errors"
	"strings"
	"testing"
)

func TestNewEncryptor(t *testing.T) {
	tests := []struct {
		name       string
		passphrase string
		wantNil    bool
	}{
		{
			name:       "valid passphrase",
			passphrase: "strong-passphrase-123",
			wantNil:    false,
		},
		{
			name:       "empty passphrase returns nil",
			passphrase: "",
			wantNil:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := NewEncryptor(tt.passphrase)
			if tt.wantNil && enc != nil {
				t.Errorf("NewEncryptor() = %v, want nil", enc)
			}
			if !tt.wantNil && enc == nil {
				t.Error("NewEncryptor() = nil, want non-nil")
			}
		})
	}
}

func TestSealOpen(t *testing.T) {
	enc := NewEncryptor("test-passphrase")

	tests := []struct {
		name      string
		plaintext string
	}{
		{"bot token", "123456789:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw"},
		{"special characters", "!@#$%^&*()_+-=[]{}|;:',.<>?"},
		{"unicode", "سلام دنیا"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sealed, err := enc.Seal(tt.plaintext)
			if err != nil {
				t.Fatalf("Seal() error = %v", err)
			}
			if !strings.HasPrefix(sealed, Prefix) {
				t.Errorf("Seal() = %q, missing prefix", sealed)
			}
			if strings.Contains(sealed, tt.plaintext) {
				t.Error("sealed value contains plaintext")
			}

			opened, err := enc.Open(sealed)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			if opened != tt.plaintext {
				t.Errorf("Open() = %q, want %q", opened, tt.plaintext)
			}
		})
	}
}

func TestSeal_RandomSalt(t *testing.T) {
	enc := NewEncryptor("test-passphrase")

	a, _ := enc.Seal("same")
	b, _ := enc.Seal("same")
	if a == b {
		t.Error("two seals of the same value should differ")
	}
}

func TestSeal_EmptyAndSealed(t *testing.T) {
	enc := NewEncryptor("test-passphrase")

	if got, _ := enc.Seal(""); got != "" {
		t.Errorf("Seal(\"\") = %q", got)
	}

	sealed, _ := enc.Seal("token")
	again, _ := enc.Seal(sealed)
	if again != sealed {
		t.Error("sealing a sealed value should be a no-op")
	}
}

func TestOpen_Plaintext(t *testing.T) {
	enc := NewEncryptor("test-passphrase")

	got, err := enc.Open("not-encrypted")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if got != "not-encrypted" {
		t.Errorf("Open() = %q", got)
	}
}

func TestOpen_WrongPassphrase(t *testing.T) {
	sealed, _ := NewEncryptor("right").Seal("token")

	_, err := NewEncryptor("wrong").Open(sealed)
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("expected ErrMalformed, got %v", err)
	}
}

func TestOpen_Corrupt(t *testing.T) {
	enc := NewEncryptor("test-passphrase")

	for _, v := range []string{Prefix + "!!!", Prefix + "c2hvcnQ="} {
		if _, err := enc.Open(v); !errors.Is(err, ErrMalformed) {
			t.Errorf("Open(%q) expected ErrMalformed, got %v", v, err)
		}
	}
}

func TestNilEncryptor(t *testing.T) {
	var enc *Encryptor

	sealed, err := enc.Seal("token")
	if err != nil || sealed != "token" {
		t.Errorf("nil Seal() = %q, %v", sealed, err)
	}

	opened, err := enc.Open("token")
	if err != nil || opened != "token" {
		t.Errorf("nil Open() = %q, %v", opened, err)
	}

	sealedByOther, _ := NewEncryptor("p").Seal("token")
	if _, err := enc.Open(sealedByOther); err == nil {
		t.Error("nil Open() of a sealed value should fail")
	}
}
