// Package config handles workflow configuration from the environment, .env files, and YAML profiles.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"pii-tagger/internal/ddl"
	"pii-tagger/internal/domain"
)

// Config holds everything a run needs. It is read once at start and not
// mutated after Finalize.
type Config struct {
	// Identity
	User     string
	Password string
	Account  string
	Role     string // role the workflow switches to before any DDL (default ACCOUNTADMIN)

	Target domain.Target

	// Governance object names
	TagName      string
	PolicyName   string
	UnmaskedRole string
	MaskedRole   string

	// GrantMaskedRole creates the masked role and grants it the same usage and
	// SELECT privileges as the unmasked role. Off by default: the masked role
	// is then expected to hold its read grants from outside this workflow.
	GrantMaskedRole bool

	// Run options
	Tables     []string // explicit table list; empty means enumerate the catalog
	Excludes   []string // tables skipped by classification
	NoClassify bool
	Debug      bool // diagnostic detail only, no behavioral effect
	DryRun     bool

	LedgerPath string // SQLite run ledger; empty disables it
	LogLevel   string // debug, info, warn, error (default "info")
	LogFormat  string // text, json, auto (default "auto")
}

// SlogLevel maps the LogLevel string to an slog.Level. Debug forces LevelDebug.
func (c *Config) SlogLevel() slog.Level {
	if c.Debug {
		return slog.LevelDebug
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// defaults returns a Config carrying every default value.
func defaults() *Config {
	return &Config{
		Account: "[id].[region]",
		Role:    "ACCOUNTADMIN",
		Target: domain.Target{
			Database:  "TESTDB",
			Schema:    "PUBLIC",
			Warehouse: "TESTWH",
		},
		TagName:      domain.DefaultTagName,
		PolicyName:   domain.DefaultPolicyName,
		UnmaskedRole: domain.DefaultUnmaskedRole,
		MaskedRole:   domain.DefaultMaskedRole,
		LogLevel:     "info",
		LogFormat:    "auto",
	}
}

// LoadFromEnv loads configuration from environment variables over the defaults.
func LoadFromEnv() (*Config, error) {
	return Load(nil)
}

// Load builds a Config with precedence env > profile > default. The profile
// may be nil. Credentials are only ever read from the environment.
func Load(p *Profile) (*Config, error) {
	cfg := defaults()
	if p != nil {
		p.applyTo(cfg)
	}

	setString(&cfg.User, "SNOWSQL_USER")
	setString(&cfg.Password, "SNOWSQL_PASS")
	setString(&cfg.Account, "SNOWSQL_ACCOUNT")
	setString(&cfg.Role, "SNOWSQL_ROLE")
	setString(&cfg.Target.Warehouse, "SNOWSQL_WH")
	setString(&cfg.Target.Database, "SNOWSQL_DB")
	setString(&cfg.Target.Schema, "SNOWSQL_SCHEMA")
	setString(&cfg.TagName, "PII_TAG_NAME")
	setString(&cfg.PolicyName, "PII_POLICY_NAME")
	setString(&cfg.UnmaskedRole, "PII_UNMASKED_ROLE")
	setString(&cfg.MaskedRole, "PII_MASKED_ROLE")
	setString(&cfg.LedgerPath, "PII_LEDGER_PATH")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.LogFormat, "LOG_FORMAT")
	cfg.GrantMaskedRole = parseBoolEnvDefault("PII_GRANT_MASKED_ROLE", cfg.GrantMaskedRole)

	if cfg.User == "" {
		return nil, domain.ErrConfiguration("you must provide the environment variable 'SNOWSQL_USER' with a valid snowflake username")
	}
	if cfg.Password == "" {
		return nil, domain.ErrConfiguration("you must provide the environment variable 'SNOWSQL_PASS' with a valid snowflake password")
	}
	return cfg, nil
}

// Finalize normalizes every identifier with Snowflake's resolution rule and
// validates the remaining options. Call it after flag overrides are applied.
func (c *Config) Finalize() error {
	fields := []struct {
		label string
		value *string
	}{
		{"role", &c.Role},
		{"database", &c.Target.Database},
		{"schema", &c.Target.Schema},
		{"warehouse", &c.Target.Warehouse},
		{"tag name", &c.TagName},
		{"policy name", &c.PolicyName},
		{"unmasked role", &c.UnmaskedRole},
		{"masked role", &c.MaskedRole},
	}
	for _, f := range fields {
		v, err := ddl.NormalizeIdentifier(*f.value)
		if err != nil {
			return domain.ErrConfiguration("invalid %s: %v", f.label, err)
		}
		*f.value = v
	}

	var err error
	if c.Tables, err = normalizeList("table", c.Tables); err != nil {
		return err
	}
	if c.Excludes, err = normalizeList("excluded table", c.Excludes); err != nil {
		return err
	}

	if c.UnmaskedRole == c.MaskedRole {
		return domain.ErrConfiguration("unmasked and masked roles must differ (both %q)", c.UnmaskedRole)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json", "auto":
	default:
		return domain.ErrConfiguration("invalid log format %q: must be text, json or auto", c.LogFormat)
	}
	return nil
}

func normalizeList(label string, names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		v, err := ddl.NormalizeIdentifier(n)
		if err != nil {
			return nil, domain.ErrConfiguration("invalid %s: %v", label, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// SplitList splits a comma separated list, trimming space and dropping empty items.
func SplitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return compactNonEmpty(parts)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func parseBoolEnvDefault(key string, defaultVal bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if v == "" {
		return defaultVal
	}
	if v == "0" || v == "false" || v == "no" || v == "off" {
		return false
	}
	if v == "1" || v == "true" || v == "yes" || v == "on" {
		return true
	}
	return defaultVal
}

func compactNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(strings.TrimPrefix(key, "export "))
		value = stripQuotes(strings.TrimSpace(value))
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
