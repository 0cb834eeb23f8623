package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/janus-sso/janus/internal/flagx"
	"github.com/janus-sso/janus/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON
// unmarshalling. It uses timex.Duration for lifetime fields, which allows
// parsing both string values such as "5m" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON configuration
// files; after unmarshalling, its fields are copied into the runtime Config.
type JsonConfig struct {
	EndpointAddrHTTP   string         `json:"endpoint_addr_http"`
	EndpointAddrAuthz  string         `json:"endpoint_addr_authz"`
	DatabaseDSN        string         `json:"database_dsn"`
	RPID               string         `json:"rp_id"`
	RPDisplayName      string         `json:"rp_display_name"`
	RPOrigins          []string       `json:"rp_origins"`
	PublicBaseURL      string         `json:"public_base_url"`
	SessionTTL         timex.Duration `json:"session_ttl"`
	ChallengeTTL       timex.Duration `json:"challenge_ttl"`
	EnrollmentTokenTTL timex.Duration `json:"enrollment_token_ttl"`
	BearerSecret       string         `json:"bearer_secret"`
	BearerTTL          timex.Duration `json:"bearer_ttl"`
	CookieName         string         `json:"cookie_name"`
	CookieDomain       string         `json:"cookie_domain"`
	AdminToken         string         `json:"admin_token"`
	RunMigrations      *bool          `json:"run_migrations"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path comes from the -c or -config command-line
// flags; if neither is set, no JSON file is loaded. An unreadable or invalid
// file panics: a half-applied config is worse than no server.
//
// Only fields present in the file override the config; absent fields keep
// their current values.
func parseJson(config *Config) {

	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	if c.EndpointAddrHTTP != "" {
		config.EndpointAddrHTTP = c.EndpointAddrHTTP
	}
	if c.EndpointAddrAuthz != "" {
		config.EndpointAddrAuthz = c.EndpointAddrAuthz
	}
	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.RPID != "" {
		config.RPID = c.RPID
	}
	if c.RPDisplayName != "" {
		config.RPDisplayName = c.RPDisplayName
	}
	if len(c.RPOrigins) > 0 {
		config.RPOrigins = c.RPOrigins
	}
	if c.PublicBaseURL != "" {
		config.PublicBaseURL = c.PublicBaseURL
	}
	if c.SessionTTL.Duration != 0 {
		config.SessionTTL = time.Duration(c.SessionTTL.Duration)
	}
	if c.ChallengeTTL.Duration != 0 {
		config.ChallengeTTL = time.Duration(c.ChallengeTTL.Duration)
	}
	if c.EnrollmentTokenTTL.Duration != 0 {
		config.EnrollmentTokenTTL = time.Duration(c.EnrollmentTokenTTL.Duration)
	}
	if c.BearerSecret != "" {
		config.BearerSecret = c.BearerSecret
	}
	if c.BearerTTL.Duration != 0 {
		config.BearerTTL = time.Duration(c.BearerTTL.Duration)
	}
	if c.CookieName != "" {
		config.CookieName = c.CookieName
	}
	if c.CookieDomain != "" {
		config.CookieDomain = c.CookieDomain
	}
	if c.AdminToken != "" {
		config.AdminToken = c.AdminToken
	}
	if c.RunMigrations != nil {
		config.RunMigrations = *c.RunMigrations
	}
}
