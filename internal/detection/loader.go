package detection

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// signatureFile is the on-disk layout. A YAML sequence keeps the table order
// stable, which a mapping would not.
type signatureFile struct {
	Signatures []Signature `yaml:"signatures"`
}

// LoadSignatures reads an ordered signature table from a YAML file.
func LoadSignatures(path string) ([]Signature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading signatures file: %w", err)
	}
	return LoadSignaturesFromBytes(data)
}

// LoadSignaturesFromBytes parses YAML bytes into an ordered signature table.
func LoadSignaturesFromBytes(data []byte) ([]Signature, error) {
	var f signatureFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing signatures YAML: %w", err)
	}
	for i, s := range f.Signatures {
		if s.Name == "" {
			return nil, fmt.Errorf("signature %d: missing name", i)
		}
		if len(s.Tokens) == 0 {
			return nil, fmt.Errorf("signature %q: no tokens", s.Name)
		}
	}
	return f.Signatures, nil
}
