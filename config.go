package ecma

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// realmConfigFile is the on-disk shape of a realm config, matching
// RealmOptions field-for-field via yaml tags (spec.md §3 Realm state:
// "configuration flags (enable_annex_b, max_call_depth)").
type realmConfigFile struct {
	EnableAnnexB bool `yaml:"enable_annex_b"`
	MaxCallDepth int  `yaml:"max_call_depth"`
}

// LoadRealmConfig reads a YAML file at path and returns the RealmOptions
// it describes, starting from DefaultRealmOptions for any field the file
// omits. A MaxCallDepth of zero or less in the file is treated as "not
// set" rather than "unlimited", matching the teacher's own
// config-defaulting convention of never letting a zero-value silently
// disable a safety limit.
func LoadRealmConfig(path string) (RealmOptions, error) {
	opts := DefaultRealmOptions()
	data, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("ecma: reading realm config %q: %w", path, err)
	}
	var cfg realmConfigFile
	cfg.EnableAnnexB = opts.EnableAnnexB
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return opts, fmt.Errorf("ecma: parsing realm config %q: %w", path, err)
	}
	opts.EnableAnnexB = cfg.EnableAnnexB
	if cfg.MaxCallDepth > 0 {
		opts.MaxCallDepth = cfg.MaxCallDepth
	}
	return opts, nil
}

// MarshalRealmConfig renders opts back to YAML, the inverse of
// LoadRealmConfig — used by embedders that want to persist a realm's
// effective configuration (e.g. after an operator override) alongside the
// program being evaluated.
func MarshalRealmConfig(opts RealmOptions) ([]byte, error) {
	cfg := realmConfigFile{EnableAnnexB: opts.EnableAnnexB, MaxCallDepth: opts.MaxCallDepth}
	return yaml.Marshal(cfg)
}
