package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "acme.events", cfg.Exchange)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 10, cfg.Prefetch)
	assert.InDelta(t, 0.9, cfg.PaymentSuccessRate, 1e-9)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("ORDERFLOW_OUTBOX_BATCH_SIZE", "25")
	t.Setenv("ORDERFLOW_OUTBOX_POLL_INTERVAL", "250ms")
	t.Setenv("ORDERFLOW_PAYMENT_SUCCESS_RATE", "0.5")
	t.Setenv("ORDERFLOW_HTTP_ADDR", ":9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.BatchSize)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.InDelta(t, 0.5, cfg.PaymentSuccessRate, 1e-9)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"zero batch size", "ORDERFLOW_OUTBOX_BATCH_SIZE", "0"},
		{"negative poll interval", "ORDERFLOW_OUTBOX_POLL_INTERVAL", "-1s"},
		{"success rate above one", "ORDERFLOW_PAYMENT_SUCCESS_RATE", "1.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
