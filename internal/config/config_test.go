package config

import (
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.HTTPAddr())
	assert.Equal(t, "0.0.0.0:50051", cfg.GRPCAddr())
	assert.Equal(t, 15*time.Minute, cfg.SlotGranularity)
	assert.Equal(t, time.UTC, cfg.Location)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 200*time.Millisecond, cfg.DBSlowQuery)
	assert.True(t, cfg.MetricsEnabled)
	assert.Empty(t, cfg.RedisAddr)
	assert.Empty(t, cfg.TrustedProxies)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("SALONBOOK_SLOTS_GRANULARITY", "30m")
	t.Setenv("SALONBOOK_SCHEDULE_TIME_ZONE", "Europe/Lisbon")
	t.Setenv("SALONBOOK_GRPC_ADDR", "127.0.0.1:6000")
	t.Setenv("REDIS_ADDR", "cache:6379")
	t.Setenv("PORT", "9000")
	t.Setenv("SALONBOOK_BOOKING_TRUSTED_PROXIES", "10.0.0.0/8,192.0.2.1")

	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, 30*time.Minute, cfg.SlotGranularity)
	assert.Equal(t, "Europe/Lisbon", cfg.Location.String())
	assert.Equal(t, "127.0.0.1:6000", cfg.GRPCAddr())
	assert.Equal(t, "cache:6379", cfg.RedisAddr)
	assert.Equal(t, 9000, cfg.HTTPPort)
	assert.Equal(t, []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("192.0.2.1/32"),
	}, cfg.TrustedProxies)
}

func TestLoad_ReadsTOML(t *testing.T) {
	v := viper.New()
	v.SetConfigType("toml")
	require.NoError(t, v.ReadConfig(strings.NewReader(`
[schedule]
time_zone = "America/New_York"

[booking]
rate_limit = 12
trusted_proxies = ["172.16.0.0/12", "::1"]
`)))

	cfg, err := load(v)
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", cfg.Location.String())
	assert.Equal(t, 12, cfg.BookingRateLimit)
	assert.Equal(t, []netip.Prefix{
		netip.MustParsePrefix("172.16.0.0/12"),
		netip.MustParsePrefix("::1/128"),
	}, cfg.TrustedProxies)
}

func TestLoad_RejectsBadValues(t *testing.T) {
	tests := []struct {
		env, value string
	}{
		{"SALONBOOK_SLOTS_GRANULARITY", "90s"},
		{"SALONBOOK_SLOTS_GRANULARITY", "-15m"},
		{"SALONBOOK_SCHEDULE_TIME_ZONE", "Mars/Olympus"},
		{"SALONBOOK_HTTP_REQUEST_TIMEOUT", "10"},
		{"SALONBOOK_SHUTDOWN_TIMEOUT", "soon"},
		{"SALONBOOK_BOOKING_TRUSTED_PROXIES", "10.0.0.0/33"},
		{"SALONBOOK_BOOKING_TRUSTED_PROXIES", "proxy.internal"},
	}
	for _, tc := range tests {
		t.Run(tc.env+"="+tc.value, func(t *testing.T) {
			t.Setenv(tc.env, tc.value)
			_, err := load(viper.New())
			assert.Error(t, err)
		})
	}
}
