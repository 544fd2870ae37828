package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Tristate is a ground-truth flag that may be unrecorded.
type Tristate int

const (
	Unknown Tristate = iota
	Yes
	No
)

// TristateOf converts a plain boolean.
func TristateOf(b bool) Tristate {
	if b {
		return Yes
	}
	return No
}

// IsYes reports whether the flag was recorded as true.
func (t Tristate) IsYes() bool { return t == Yes }

func (t Tristate) String() string {
	switch t {
	case Yes:
		return "yes"
	case No:
		return "no"
	default:
		return "unknown"
	}
}

// ParseTristate accepts the spellings found in answer sets:
// Y/N, yes/no, true/false, and an empty string for unknown.
func ParseTristate(s string) (Tristate, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes", "true", "1":
		return Yes, nil
	case "n", "no", "false", "0":
		return No, nil
	case "", "unknown", "null", "-":
		return Unknown, nil
	}
	return Unknown, fmt.Errorf("invalid tristate value %q", s)
}

// MarshalJSON encodes Unknown as null.
func (t Tristate) MarshalJSON() ([]byte, error) {
	switch t {
	case Yes:
		return []byte("true"), nil
	case No:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

func (t *Tristate) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case nil:
		*t = Unknown
	case bool:
		*t = TristateOf(x)
	case string:
		parsed, err := ParseTristate(x)
		if err != nil {
			return err
		}
		*t = parsed
	default:
		return fmt.Errorf("invalid tristate value %s", string(data))
	}
	return nil
}

func (t Tristate) MarshalYAML() (interface{}, error) {
	switch t {
	case Yes:
		return true, nil
	case No:
		return false, nil
	default:
		return nil, nil
	}
}

func (t *Tristate) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: tristate must be a scalar", value.Line)
	}
	if value.Tag == "!!null" {
		*t = Unknown
		return nil
	}
	parsed, err := ParseTristate(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*t = parsed
	return nil
}
