package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ProfileFile is the YAML file passed with --config.
//
//	current-profile: sandbox
//	profiles:
//	  sandbox:
//	    database: SANDBOX
//	    schema: PUBLIC
//	    excludes: [AUDIT_LOG]
type ProfileFile struct {
	CurrentProfile string             `yaml:"current-profile"`
	Profiles       map[string]Profile `yaml:"profiles"`
}

// Profile carries per-target overrides. Empty fields leave the default in place.
type Profile struct {
	Account         string   `yaml:"account,omitempty"`
	User            string   `yaml:"user,omitempty"`
	Role            string   `yaml:"role,omitempty"`
	Warehouse       string   `yaml:"warehouse,omitempty"`
	Database        string   `yaml:"database,omitempty"`
	Schema          string   `yaml:"schema,omitempty"`
	TagName         string   `yaml:"tag,omitempty"`
	PolicyName      string   `yaml:"policy,omitempty"`
	UnmaskedRole    string   `yaml:"unmasked-role,omitempty"`
	MaskedRole      string   `yaml:"masked-role,omitempty"`
	GrantMaskedRole *bool    `yaml:"grant-masked-role,omitempty"`
	Excludes        []string `yaml:"excludes,omitempty"`
	LedgerPath      string   `yaml:"ledger,omitempty"`
}

// LoadProfileFile reads and parses a profile file.
func LoadProfileFile(path string) (*ProfileFile, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var pf ProfileFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &pf, nil
}

// ActiveProfile returns the profile named by override, or current-profile
// when override is empty.
func (f *ProfileFile) ActiveProfile(override string) (*Profile, error) {
	name := f.CurrentProfile
	if override != "" {
		name = override
	}
	if name == "" {
		return &Profile{}, nil
	}
	p, ok := f.Profiles[name]
	if !ok {
		return nil, fmt.Errorf("profile %q not found", name)
	}
	return &p, nil
}

func (p *Profile) applyTo(cfg *Config) {
	apply := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	apply(&cfg.Account, p.Account)
	apply(&cfg.User, p.User)
	apply(&cfg.Role, p.Role)
	apply(&cfg.Target.Warehouse, p.Warehouse)
	apply(&cfg.Target.Database, p.Database)
	apply(&cfg.Target.Schema, p.Schema)
	apply(&cfg.TagName, p.TagName)
	apply(&cfg.PolicyName, p.PolicyName)
	apply(&cfg.UnmaskedRole, p.UnmaskedRole)
	apply(&cfg.MaskedRole, p.MaskedRole)
	apply(&cfg.LedgerPath, p.LedgerPath)
	if p.GrantMaskedRole != nil {
		cfg.GrantMaskedRole = *p.GrantMaskedRole
	}
	if len(p.Excludes) > 0 {
		cfg.Excludes = append([]string(nil), p.Excludes...)
	}
}
