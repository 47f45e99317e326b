package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Duration is a time.Duration that marshals as a string ("30s", "5m") so
// flow definitions stay readable in storage and over the API.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}

		*d = Duration(parsed)

		return nil
	case float64:
		// Bare numbers are seconds, matching how flow editors emit timeouts.
		*d = Duration(time.Duration(v) * time.Second)

		return nil
	default:
		return fmt.Errorf("invalid duration value %v (%T)", raw, raw)
	}
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}
