package catalog

import (
	"errors"
	"fmt"
	"os"

	"dialout-picker/internal/targets"

	"gopkg.in/yaml.v3"
)

// fallbackFile is the on-disk shape of a fallback list:
//
//	targets:
//	  - label: Boardroom (SIP)
//	    destination: sip:boardroom@company.com
//	    protocol: auto
//	    role: guest
type fallbackFile struct {
	Targets []fallbackEntry `yaml:"targets"`
}

type fallbackEntry struct {
	Label       string `yaml:"label"`
	Destination string `yaml:"destination"`
	Protocol    string `yaml:"protocol"`
	Role        string `yaml:"role"`
}

// LoadFallbackFile reads a YAML fallback list. Entries go through the same
// normalization as the tabular resource, and an empty result is an error so a
// broken file can never leave the service without targets.
func LoadFallbackFile(path string) ([]targets.CallTarget, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fallback file: %w", err)
	}
	return ParseFallback(b)
}

func ParseFallback(b []byte) ([]targets.CallTarget, error) {
	var f fallbackFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse fallback file: %w", err)
	}

	rows := make([][]string, 0, len(f.Targets)+1)
	rows = append(rows, []string{targets.ColumnLabel, targets.ColumnDestination, targets.ColumnProtocol, targets.ColumnRole})
	for _, e := range f.Targets {
		rows = append(rows, []string{e.Label, e.Destination, e.Protocol, e.Role})
	}

	list := targets.Normalize(rows)
	if len(list) == 0 {
		return nil, errors.New("fallback file has no valid targets")
	}
	return list, nil
}
