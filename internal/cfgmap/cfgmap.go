// Package cfgmap decodes the free-form option maps handed to backend and
// command factories into typed structs.
package cfgmap

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Decode copies cfg into out, a pointer to a struct with yaml tags.
// Unknown keys are rejected. Durations accept strings such as "5m".
// A nil or empty cfg leaves out untouched.
func Decode(cfg map[string]any, out any) error {
	if len(cfg) == 0 {
		return nil
	}
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode options: %w", err)
	}
	return nil
}
