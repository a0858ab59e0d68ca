package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDeskConfigDefaults(t *testing.T) {
	cfg, err := decodeDeskConfig(viper.New())
	require.NoError(t, err)
	assert.Equal(t, DefaultDeskConfig(), cfg)
}

func TestDecodeDeskConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	body := []byte(`desk:
  documents:
    max_size_bytes: 1048576
  claim:
    lookup_attempts: 5
    lookup_delay: 50ms
  submission:
    charge_duplicates: true
  dispatch:
    workers: 4
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "desk.yml"), body, 0o600))

	v := viper.New()
	v.SetConfigFile(filepath.Join(dir, "desk.yml"))
	require.NoError(t, v.ReadInConfig())

	cfg, err := decodeDeskConfig(v)
	require.NoError(t, err)
	assert.Equal(t, int64(1048576), cfg.Documents.MaxSizeBytes)
	assert.Equal(t, []string{"application/pdf"}, cfg.Documents.AcceptedTypes)
	assert.Equal(t, 5, cfg.Claim.LookupAttempts)
	assert.Equal(t, 50*time.Millisecond, cfg.Claim.LookupDelay)
	assert.True(t, cfg.Submission.ChargeDuplicates)
	assert.Equal(t, 10, cfg.Submission.RateLimitPerMinute)
	assert.Equal(t, 4, cfg.Dispatch.Workers)
}

func TestValidateDeskConfigRejectsNegativeDelay(t *testing.T) {
	cfg := DefaultDeskConfig()
	cfg.Claim.LookupDelay = -time.Second
	assert.Error(t, validateDeskConfig(cfg))
}

func TestParseIDs(t *testing.T) {
	assert.Equal(t, []int64{1, 42}, parseIDs(" 1, ,42,abc"))
	assert.Empty(t, parseIDs(""))
}

func TestLoadReadsTicketBackend(t *testing.T) {
	t.Setenv("TICKET_BACKEND", "Supabase")
	t.Setenv("TICKET_REMOTE_URL", "https://example.test/rest/v1/")
	t.Setenv("OPERATOR_IDS", "7,8")

	cfg := Load()
	assert.Equal(t, TicketBackendRemote, cfg.Tickets.Backend)
	assert.Equal(t, "https://example.test/rest/v1", cfg.Tickets.RemoteURL)
	assert.Equal(t, []int64{7, 8}, cfg.OperatorIDs)
}
