package cli

import (
	"errors"
	"os"
	"path/filepath"

	"pii-tagger/internal/config"
	"pii-tagger/internal/domain"
)

// ConfigDir returns the path to ~/.pii-tagger/.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".pii-tagger")
	}
	return filepath.Join(home, ".pii-tagger")
}

// DefaultConfigPath returns the profile file read when --config is not set.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// loadProfile returns the selected profile. An explicit --config path must
// exist; the default path is optional.
func loadProfile(path, name string) (*config.Profile, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}
	pf, err := config.LoadProfileFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			if name != "" {
				return nil, domain.ErrConfiguration("profile %q requested but no config file found at %s", name, path)
			}
			return nil, nil
		}
		return nil, err
	}
	return pf.ActiveProfile(name)
}
