package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pfrederiksen/telefication/internal/render"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, DefaultRelayURL, cfg.RelayURL)
	assert.Equal(t, render.DefaultTemplate, cfg.ChannelNotificationTemplate)
	assert.Equal(t, render.DefaultTemplate, cfg.ChannelWoocommerceTemplate)
	assert.Equal(t, []string{"post"}, cfg.ChannelPostTypes)
	assert.Len(t, cfg.OrderStatuses, len(OrderStatuses))
	assert.False(t, cfg.NotifiesOrderStatus(OrderProcessing))
	assert.NoError(t, cfg.Validate())
}

func TestParse_YAML(t *testing.T) {
	path := writeFile(t, "telefication.yaml", `
chat_id: " 123 "
bot_token: "42:abc"
email_notification: true
match_emails:
  - "admin@example.com, not-an-email"
  - ops@example.com
woocommerce_enable: true
order_statuses:
  wc-processing: true
  canceled: true
channel_post_types: [Post, product]
site_name: Example
`)

	cfg, err := Parse(path)
	require.NoError(t, err)

	assert.Equal(t, "123", cfg.ChatID)
	assert.Equal(t, "42:abc", cfg.BotToken)
	assert.True(t, cfg.EmailNotification)
	assert.Equal(t, []string{"admin@example.com", "ops@example.com"}, cfg.MatchEmails)
	assert.True(t, cfg.NotifiesOrderStatus("processing"))
	assert.True(t, cfg.NotifiesOrderStatus("cancelled"))
	assert.False(t, cfg.NotifiesOrderStatus("completed"))
	assert.Equal(t, []string{"post", "product"}, cfg.ChannelPostTypes)
	assert.Equal(t, "Example", cfg.SiteName)

	// untouched options keep defaults
	assert.Equal(t, DefaultRelayURL, cfg.RelayURL)
	assert.Equal(t, render.DefaultTemplate, cfg.ChannelNotificationTemplate)
}

func TestParse_JSON(t *testing.T) {
	path := writeFile(t, "telefication.json", `{"chat_id":"7","new_user_notification":true}`)

	cfg, err := Parse(path)
	require.NoError(t, err)
	assert.Equal(t, "7", cfg.ChatID)
	assert.True(t, cfg.NewUserNotification)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"unknown key", "c.yaml", "chat_idd: 1\n"},
		{"bad yaml", "c.yaml", "chat_id: [\n"},
		{"trailing json", "c.json", `{"chat_id":"1"}{"chat_id":"2"}`},
		{"bad bypass url", "c.yaml", "bot_bypass: not a url\n"},
		{"unknown order status", "c.yaml", "order_statuses:\n  shipped: true\n"},
		{"bad log level", "c.yaml", "log_level: loud\n"},
		{"negative rate", "c.yaml", "rate_limit: -1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(writeFile(t, tt.file, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestParse_Missing(t *testing.T) {
	_, err := Parse(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseBytes_Empty(t *testing.T) {
	cfg, err := ParseBytes("empty.yaml", nil)
	require.NoError(t, err)
	assert.Equal(t, Default().RelayURL, cfg.RelayURL)
}

func TestClone(t *testing.T) {
	cfg := Default()
	cfg.MatchEmails = []string{"a@example.com"}

	cp := cfg.Clone()
	cp.MatchEmails[0] = "b@example.com"
	cp.OrderStatuses[OrderFailed] = true
	cp.ChannelPostTypes[0] = "page"

	assert.Equal(t, "a@example.com", cfg.MatchEmails[0])
	assert.False(t, cfg.OrderStatuses[OrderFailed])
	assert.Equal(t, "post", cfg.ChannelPostTypes[0])
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"TELEFICATION_BOT_TOKEN":  "99:xyz",
		"TELEFICATION_CHAT_ID":    "555",
		"TELEFICATION_RATE_BURST": "10",
		"TELEFICATION_API_KEY":    "s3cret-key",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	require.NoError(t, cfg.applyEnv(lookup))
	assert.Equal(t, "99:xyz", cfg.BotToken)
	assert.Equal(t, "555", cfg.ChatID)
	assert.Equal(t, 10, cfg.RateBurst)
	assert.Equal(t, "s3cret-key", cfg.APIKey)

	env["TELEFICATION_RATE_LIMIT"] = "fast"
	assert.Error(t, cfg.applyEnv(lookup))
}

func TestParseBytes_NoDataDirOption(t *testing.T) {
	_, err := ParseBytes("settings.json", []byte(`{"data_dir":"/tmp/x"}`))
	assert.Error(t, err, "the data directory is chosen by flag or environment only")
}

func TestEnvSource(t *testing.T) {
	t.Setenv("TELEFICATION_CHAT_ID", " 808 ")

	cfg, err := EnvSource{Source: StaticSource{Config: Default()}}.Load()
	require.NoError(t, err)
	assert.Equal(t, "808", cfg.ChatID)
}

func TestMatchesEmail(t *testing.T) {
	cfg := Default()
	assert.True(t, cfg.MatchesEmail("anyone@example.com"))

	cfg.MatchEmails = []string{"admin@example.com"}
	assert.True(t, cfg.MatchesEmail("admin@example.com"))
	assert.False(t, cfg.MatchesEmail("other@example.com"))
}

func TestChannelReady(t *testing.T) {
	cfg := Default()
	assert.False(t, cfg.ChannelReady())

	cfg.SendToChannelEnable = true
	cfg.ChannelUsername = "@news"
	assert.False(t, cfg.ChannelReady(), "needs a bot token")

	cfg.BotToken = "1:a"
	assert.True(t, cfg.ChannelReady())
	assert.True(t, cfg.ChannelAllows("POST"))
	assert.False(t, cfg.ChannelAllows("page"))
}

func TestRedacted(t *testing.T) {
	cfg := Default()
	cfg.BotToken = "123456789:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw"
	cfg.APIKey = "admin-key-0042"

	red := cfg.Redacted()
	assert.Equal(t, "****Dsaw", red.BotToken)
	assert.Equal(t, "****0042", red.APIKey)
	assert.Equal(t, "admin-key-0042", cfg.APIKey)
	assert.Equal(t, "123456789:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw", cfg.BotToken)
	assert.Equal(t, "****", MaskSecret("short"))
	assert.Equal(t, "", MaskSecret(""))
}

func TestWatcher_Reload(t *testing.T) {
	path := writeFile(t, "telefication.yaml", "chat_id: \"1\"\n")

	w, err := NewWatcher(path)
	require.NoError(t, err)
	assert.Equal(t, "1", w.Get().ChatID)

	reloaded := make(chan *Config, 4)
	w.OnReload = func(c *Config) { reloaded <- c }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// give the watcher time to register the directory
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("chat_id: \"2\"\n"), 0o600))

	select {
	case c := <-reloaded:
		assert.Equal(t, "2", c.ChatID)
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}
	assert.Equal(t, "2", w.Get().ChatID)

	// an invalid write keeps the previous snapshot
	require.NoError(t, os.WriteFile(path, []byte("chat_idd: \"3\"\n"), 0o600))
	time.Sleep(2 * reloadDebounce)
	assert.Equal(t, "2", w.Get().ChatID)

	cancel()
	assert.NoError(t, <-done)
}

func TestWatcher_LoadReturnsCopy(t *testing.T) {
	path := writeFile(t, "telefication.yaml", "chat_id: \"1\"\n")
	w, err := NewWatcher(path)
	require.NoError(t, err)

	cfg, err := w.Load()
	require.NoError(t, err)
	cfg.ChatID = "changed"
	assert.Equal(t, "1", w.Get().ChatID)
}
