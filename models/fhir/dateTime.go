package fhir

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type Precision string

const (
	PrecisionYear  Precision = "YYYY"
	PrecisionMonth Precision = "YYYY-MM"
	PrecisionDay   Precision = "YYYY-MM-DD"
	PrecisionFull  Precision = "FULL"
)

// DateTime represents a FHIR dateTime, which may be a partial date
type DateTime struct {
	time.Time
	Precision Precision
}

var fullFormats = []string{
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999Z07:00",
	"2006-01-02 15:04:05.999999Z07",
	"2006-01-02 15:04:05",
}

// ParseDateTime parses the FHIR dateTime forms plus the timestamp layouts
// a Postgres driver commonly hands back
func ParseDateTime(s string) (DateTime, error) {
	s = strings.TrimSpace(s)

	switch len(s) {
	case 4:
		if t, err := time.Parse("2006", s); err == nil {
			return DateTime{Time: t, Precision: PrecisionYear}, nil
		}
	case 7:
		if t, err := time.Parse("2006-01", s); err == nil {
			return DateTime{Time: t, Precision: PrecisionMonth}, nil
		}
	case 10:
		if t, err := time.Parse("2006-01-02", s); err == nil {
			return DateTime{Time: t, Precision: PrecisionDay}, nil
		}
	}

	var lastErr error
	for _, format := range fullFormats {
		t, err := time.Parse(format, s)
		if err == nil {
			return DateTime{Time: t, Precision: PrecisionFull}, nil
		}
		lastErr = err
	}
	return DateTime{}, &ParseError{Value: s, Err: lastErr}
}

// ParseError is returned for text that is not a FHIR dateTime
type ParseError struct {
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid datetime format: %s (last error: %v)", e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Display formats the datetime for people, keeping its precision
func (d DateTime) Display() string {
	if d.Time.IsZero() {
		return ""
	}

	switch d.Precision {
	case PrecisionYear:
		return d.Time.Format("2006")
	case PrecisionMonth:
		return d.Time.Format("Jan 2006")
	case PrecisionDay:
		return d.Time.Format("2 Jan 2006")
	default:
		return d.Time.Format("2 Jan 2006, 15:04")
	}
}

func (d *DateTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("datetime must be a string: %w", err)
	}
	if strings.TrimSpace(s) == "" {
		*d = DateTime{}
		return nil
	}

	parsed, err := ParseDateTime(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Period is a FHIR period; both ends are optional
type Period struct {
	Start *DateTime `json:"start,omitempty"`
	End   *DateTime `json:"end,omitempty"`
}
