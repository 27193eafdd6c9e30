package bit

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// manifestDoc mirrors the bits.yaml shape from §4.9a: a top-level
// "bits" list, each entry mapping 1:1 onto Bit's exported fields.
type manifestDoc struct {
	Bits []manifestEntry `yaml:"bits"`
}

type manifestEntry struct {
	ID        string      `yaml:"id"`
	Send      []string    `yaml:"send"`
	Condition interface{} `yaml:"condition"`
	Intent    interface{} `yaml:"intent"`
	Listen    interface{} `yaml:"listen"`
	Next      []string    `yaml:"next"`
	Scope     string      `yaml:"scope"`
	Cron      string      `yaml:"cron"`
}

// LoadManifest parses a YAML document at path into Bits. Callers
// register each one individually via Registry.Register; this is a
// convenience loader only, it does not change Bit's in-process
// contract. A bit missing id is a registration-time error.
func LoadManifest(path string) ([]*Bit, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("bit: load manifest %s: %w", path, err)
	}

	var doc manifestDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("bit: parse manifest %s: %w", path, err)
	}

	out := make([]*Bit, 0, len(doc.Bits))
	for _, entry := range doc.Bits {
		if entry.ID == "" {
			return nil, fmt.Errorf("bit: manifest %s: entry missing id", path)
		}
		out = append(out, &Bit{
			ID:        entry.ID,
			Send:      entry.Send,
			Condition: entry.Condition,
			Intent:    entry.Intent,
			Listen:    entry.Listen,
			Next:      entry.Next,
			Scope:     entry.Scope,
			Cron:      entry.Cron,
		})
	}
	return out, nil
}
