// Package config loads the process configuration from the environment and
// an optional config file. All keys carry the ICSFEED_ prefix; the remote
// credentials additionally honor the legacy REMOTEUSER/REMOTEPASS names the
// original exporter used.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the effective process configuration.
type Config struct {
	Listen string

	// BaseURL is the root of the monthly schedule pages; pages live at
	// {BaseURL}/{year}/{year}{month}.html.
	BaseURL  string
	Username string
	Password string

	// ICSSources are optional upstream iCalendar exports re-served
	// through the same pipeline.
	ICSSources []string

	Timezone string

	// LookbackMonths/LookaheadMonths bound the generation window around
	// "now"; the recurrence engine never expands past it.
	LookbackMonths  int
	LookaheadMonths int

	CalendarName string
	ProdID       string

	// RefreshCron re-fetches sources and rebuilds the feed snapshot.
	RefreshCron string
	// RefreshHint is advertised to calendar clients in the feed itself.
	RefreshHint time.Duration

	LogLevel string
}

// Load reads configuration from the environment and, when path is
// non-empty, the given config file. Environment values win over the file.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ICSFEED")
	v.AutomaticEnv()

	_ = v.BindEnv("listen", "ICSFEED_LISTEN")
	_ = v.BindEnv("base_url", "ICSFEED_BASE_URL")
	_ = v.BindEnv("username", "ICSFEED_USERNAME", "REMOTEUSER")
	_ = v.BindEnv("password", "ICSFEED_PASSWORD", "REMOTEPASS")
	_ = v.BindEnv("ics_sources", "ICSFEED_ICS_SOURCES")
	_ = v.BindEnv("timezone", "ICSFEED_TIMEZONE")
	_ = v.BindEnv("lookback_months", "ICSFEED_LOOKBACK_MONTHS")
	_ = v.BindEnv("lookahead_months", "ICSFEED_LOOKAHEAD_MONTHS")
	_ = v.BindEnv("calendar_name", "ICSFEED_CALENDAR_NAME")
	_ = v.BindEnv("prodid", "ICSFEED_PRODID")
	_ = v.BindEnv("refresh_cron", "ICSFEED_REFRESH_CRON")
	_ = v.BindEnv("refresh_hint_minutes", "ICSFEED_REFRESH_HINT_MINUTES")
	_ = v.BindEnv("log_level", "ICSFEED_LOG_LEVEL")

	v.SetDefault("listen", ":8080")
	v.SetDefault("timezone", "Asia/Tokyo")
	v.SetDefault("lookback_months", 2)
	v.SetDefault("lookahead_months", 12)
	v.SetDefault("calendar_name", "Shinbukan")
	v.SetDefault("prodid", "-//Shinbukan//icsfeed//EN")
	v.SetDefault("refresh_cron", "@every 1h")
	v.SetDefault("refresh_hint_minutes", 60)
	v.SetDefault("log_level", "info")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg := Config{
		Listen:          v.GetString("listen"),
		BaseURL:         v.GetString("base_url"),
		Username:        v.GetString("username"),
		Password:        v.GetString("password"),
		ICSSources:      v.GetStringSlice("ics_sources"),
		Timezone:        v.GetString("timezone"),
		LookbackMonths:  v.GetInt("lookback_months"),
		LookaheadMonths: v.GetInt("lookahead_months"),
		CalendarName:    v.GetString("calendar_name"),
		ProdID:          v.GetString("prodid"),
		RefreshCron:     v.GetString("refresh_cron"),
		RefreshHint:     time.Duration(v.GetInt("refresh_hint_minutes")) * time.Minute,
		LogLevel:        v.GetString("log_level"),
	}

	if cfg.BaseURL == "" && len(cfg.ICSSources) == 0 {
		return Config{}, fmt.Errorf("no sources configured: set ICSFEED_BASE_URL or ICSFEED_ICS_SOURCES")
	}
	if cfg.LookbackMonths < 0 || cfg.LookaheadMonths < 1 {
		return Config{}, fmt.Errorf("invalid window: lookback %d months, lookahead %d months",
			cfg.LookbackMonths, cfg.LookaheadMonths)
	}
	return cfg, nil
}
