package storage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/pfrederiksen/telefication/internal/config"
	"github.com/pfrederiksen/telefication/internal/crypto"
)

func newTestStorage(t *testing.T, enc *crypto.Encryptor) *Storage {
	t.Helper()
	s, err := New(t.TempDir(), enc)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOptions(t *testing.T) {
	s := newTestStorage(t, nil)
	ctx := context.Background()

	if _, err := s.GetOption(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetOption(missing) error = %v, want ErrNotFound", err)
	}

	if err := s.SetOption(ctx, "greeting", "hello"); err != nil {
		t.Fatalf("SetOption() error = %v", err)
	}
	if err := s.SetOption(ctx, "greeting", "salam"); err != nil {
		t.Fatalf("SetOption() overwrite error = %v", err)
	}

	got, err := s.GetOption(ctx, "greeting")
	if err != nil {
		t.Fatalf("GetOption() error = %v", err)
	}
	if got != "salam" {
		t.Errorf("GetOption() = %q, want %q", got, "salam")
	}

	if err := s.DeleteOption(ctx, "greeting"); err != nil {
		t.Fatalf("DeleteOption() error = %v", err)
	}
	if _, err := s.GetOption(ctx, "greeting"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetOption() after delete error = %v", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	s := newTestStorage(t, nil)

	cfg, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RelayURL != config.DefaultRelayURL {
		t.Errorf("RelayURL = %q", cfg.RelayURL)
	}
}

func TestSaveLoad(t *testing.T) {
	s := newTestStorage(t, nil)
	ctx := context.Background()

	cfg := config.Default()
	cfg.ChatID = " 123 "
	cfg.BotToken = "42:abc"
	cfg.NewCommentNotification = true
	cfg.MatchEmails = []string{"a@example.com,bogus"}

	if err := s.Save(ctx, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if cfg.ChatID != " 123 " {
		t.Error("Save() modified its argument")
	}

	got, err := s.LoadContext(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.ChatID != "123" || got.BotToken != "42:abc" || !got.NewCommentNotification {
		t.Errorf("Load() = %+v", got)
	}
	if len(got.MatchEmails) != 1 || got.MatchEmails[0] != "a@example.com" {
		t.Errorf("MatchEmails = %v", got.MatchEmails)
	}
}

func TestSave_Invalid(t *testing.T) {
	s := newTestStorage(t, nil)

	cfg := config.Default()
	cfg.BotBypass = "ftp://nope"
	if err := s.Save(context.Background(), cfg); err == nil {
		t.Error("Save() accepted an invalid bypass URL")
	}
}

func TestSave_EncryptsToken(t *testing.T) {
	enc := crypto.NewEncryptor("passphrase")
	s := newTestStorage(t, enc)
	ctx := context.Background()

	cfg := config.Default()
	cfg.BotToken = "123456789:secret-token"
	cfg.APIKey = "admin-api-key"
	if err := s.Save(ctx, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	raw, err := s.GetOption(ctx, SettingsOption)
	if err != nil {
		t.Fatalf("GetOption() error = %v", err)
	}
	if strings.Contains(raw, "secret-token") {
		t.Error("bot token stored in plaintext")
	}
	if strings.Contains(raw, "admin-api-key") {
		t.Error("api key stored in plaintext")
	}
	if !strings.Contains(raw, crypto.Prefix) {
		t.Error("stored token is not sealed")
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.BotToken != "123456789:secret-token" {
		t.Errorf("BotToken = %q", got.BotToken)
	}
	if got.APIKey != "admin-api-key" {
		t.Errorf("APIKey = %q", got.APIKey)
	}
}

func TestReset(t *testing.T) {
	s := newTestStorage(t, nil)
	ctx := context.Background()

	cfg := config.Default()
	cfg.ChatID = "42"
	if err := s.Save(ctx, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.ChatID != "" {
		t.Errorf("ChatID after Reset = %q, want empty", got.ChatID)
	}
	if err := s.Reset(ctx); err != nil {
		t.Errorf("Reset() on empty store error = %v", err)
	}
}

func TestLoad_SealedWithoutPassphrase(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := New(dir, crypto.NewEncryptor("passphrase"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	cfg := config.Default()
	cfg.BotToken = "1:a"
	if err := s.Save(ctx, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	s.Close()

	plain, err := New(dir, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer plain.Close()

	if _, err := plain.Load(); err == nil {
		t.Error("Load() without passphrase should fail on a sealed token")
	}
}

func TestExpandPath(t *testing.T) {
	got, err := ExpandPath("~/data")
	if err != nil {
		t.Fatalf("ExpandPath() error = %v", err)
	}
	if strings.HasPrefix(got, "~") || !strings.HasSuffix(got, "data") {
		t.Errorf("ExpandPath() = %q", got)
	}

	if got, _ := ExpandPath("/tmp/x"); got != "/tmp/x" {
		t.Errorf("ExpandPath(/tmp/x) = %q", got)
	}
}
