package credstore

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/your-org/credguard/internal/domain"
)

// Seed provisions one identity, either from a plaintext secret or from a
// precomputed hex salt and digest.
type Seed struct {
	Identity domain.Identity `yaml:"identity" mapstructure:"identity" json:"identity"`
	Secret   string          `yaml:"secret,omitempty" mapstructure:"secret" json:"secret,omitempty"`
	Salt     string          `yaml:"salt,omitempty" mapstructure:"salt" json:"salt,omitempty"`
	Digest   string          `yaml:"digest,omitempty" mapstructure:"digest" json:"digest,omitempty"`
}

// Precomputed reports whether the seed carries a stored digest.
func (s Seed) Precomputed() bool {
	return s.Salt != "" || s.Digest != ""
}

// DefaultSeeds returns the two demonstration identities.
func DefaultSeeds() []Seed {
	return []Seed{
		{Identity: 1001, Secret: "12345678"},
		{Identity: 1002, Secret: "87654321"},
	}
}

type seedsFile struct {
	Credentials []Seed `yaml:"credentials"`
}

// LoadSeedsFile reads seeds from a YAML file of the form
//
//	credentials:
//	  - identity: 1001
//	    secret: "12345678"
//	  - identity: 1002
//	    salt: "..."
//	    digest: "..."
func LoadSeedsFile(path string) ([]Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seeds file: %w", err)
	}

	var f seedsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse seeds file %s: %w", path, err)
	}
	if len(f.Credentials) == 0 {
		return nil, fmt.Errorf("seeds file %s has no credentials", path)
	}
	return f.Credentials, nil
}
