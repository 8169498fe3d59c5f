package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// Severity is an ordered alert level: none < yellow < red.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityYellow
	SeverityRed
)

func (s Severity) String() string {
	switch s {
	case SeverityYellow:
		return "yellow"
	case SeverityRed:
		return "red"
	default:
		return "none"
	}
}

// ParseSeverity accepts "yellow", "red", and treats "", "none", and "green"
// as SeverityNone.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "green":
		return SeverityNone, nil
	case "yellow":
		return SeverityYellow, nil
	case "red":
		return SeverityRed, nil
	default:
		return SeverityNone, fmt.Errorf("unknown severity %q", s)
	}
}

// Max returns the higher of two severities.
func (s Severity) Max(o Severity) Severity {
	if o > s {
		return o
	}
	return s
}

// Value stores none as NULL.
func (s Severity) Value() (driver.Value, error) {
	if s == SeverityNone {
		return nil, nil
	}
	return s.String(), nil
}

// Scan reads NULL or a level string.
func (s *Severity) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*s = SeverityNone
		return nil
	case string:
		p, err := ParseSeverity(v)
		*s = p
		return err
	case []byte:
		p, err := ParseSeverity(string(v))
		*s = p
		return err
	default:
		return fmt.Errorf("cannot scan %T into Severity", src)
	}
}

func (s Severity) MarshalJSON() ([]byte, error) {
	if s == SeverityNone {
		return []byte("null"), nil
	}
	return json.Marshal(s.String())
}

func (s *Severity) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = SeverityNone
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	p, err := ParseSeverity(str)
	*s = p
	return err
}
