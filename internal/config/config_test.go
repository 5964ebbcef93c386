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

	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	assert.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 3*time.Minute, cfg.CatalogCacheTTL)
	assert.Equal(t, 25*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 5*time.Second, cfg.InventoryPollInterval)
	assert.Equal(t, 12, cfg.OrderWindow.OpenHour)
	assert.Equal(t, 18, cfg.OrderWindow.CloseHour)
	assert.True(t, cfg.OrderWindow.Enforced)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("STORE_DRIVER", "Memory")
	t.Setenv("ORDER_WINDOW_OPEN", "9")
	t.Setenv("ORDER_WINDOW_CLOSE", "21")
	t.Setenv("INVENTORY_POLL_INTERVAL", "2s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	assert.Equal(t, 9, cfg.OrderWindow.OpenHour)
	assert.Equal(t, 21, cfg.OrderWindow.CloseHour)
	assert.Equal(t, 2*time.Second, cfg.InventoryPollInterval)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown_driver", env: map[string]string{"STORE_DRIVER": "mongo"}},
		{name: "inverted_window", env: map[string]string{"ORDER_WINDOW_OPEN": "18", "ORDER_WINDOW_CLOSE": "12"}},
		{name: "zero_buffer", env: map[string]string{"HUB_CLIENT_BUFFER": "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestOrderWindowLocation(t *testing.T) {
	loc, err := OrderWindowConfig{Timezone: "UTC"}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	_, err = OrderWindowConfig{Timezone: "Nowhere/Invalid"}.Location()
	require.Error(t, err)
}
