package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// Booking is one visit inside a Schedule payload. Optional fields stay nil
// when the specialist omitted them.
type Booking struct {
	ID            string  `json:"id"`
	Date          string  `json:"date"`
	Address       string  `json:"address"`
	Weather       *string `json:"weather,omitempty"`
	ArrivalTime   *string `json:"arrival_time,omitempty"`
	DepartureTime *string `json:"departure_time,omitempty"`
}

// Schedule is the structured payload produced by the scheduling specialist:
// an ordered booking list plus optional route metrics.
type Schedule struct {
	TotalDistance *float64  `json:"total_distance,omitempty"`
	TotalDuration *float64  `json:"total_duration,omitempty"`
	Bookings      []Booking `json:"bookings"`
}

// scheduleSchema is the JSON Schema a chunk must satisfy before it is emitted
// as a structured element instead of free text.
const scheduleSchema = `{
	"type": "object",
	"required": ["bookings"],
	"properties": {
		"total_distance": {"type": ["number", "null"]},
		"total_duration": {"type": ["number", "null"]},
		"bookings": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id", "date", "address"],
				"properties": {
					"id": {"type": "string"},
					"date": {"type": "string"},
					"address": {"type": "string"},
					"weather": {"type": ["string", "null"]},
					"arrival_time": {"type": ["string", "null"]},
					"departure_time": {"type": ["string", "null"]}
				}
			}
		}
	}
}`

var (
	scheduleSchemaOnce sync.Once
	scheduleValidator  *gojsonschema.Schema
	scheduleSchemaErr  error
)

func compiledScheduleSchema() (*gojsonschema.Schema, error) {
	scheduleSchemaOnce.Do(func() {
		scheduleValidator, scheduleSchemaErr = gojsonschema.NewSchema(
			gojsonschema.NewStringLoader(scheduleSchema),
		)
	})
	return scheduleValidator, scheduleSchemaErr
}

// ParseSchedule validates text against the schedule schema and decodes it.
// Non-JSON input, partial JSON and JSON of the wrong shape all return an
// error; callers treat that as "this is free text".
func ParseSchedule(text string) (*Schedule, error) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, fmt.Errorf("not a JSON object")
	}

	schema, err := compiledScheduleSchema()
	if err != nil {
		return nil, fmt.Errorf("compile schedule schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewStringLoader(trimmed))
	if err != nil {
		return nil, fmt.Errorf("validate schedule: %w", err)
	}
	if !result.Valid() {
		return nil, fmt.Errorf("schedule schema violation: %v", result.Errors())
	}

	var s Schedule
	if err := json.Unmarshal([]byte(trimmed), &s); err != nil {
		return nil, fmt.Errorf("decode schedule: %w", err)
	}
	return &s, nil
}

// JSON serializes the schedule back to its canonical JSON form.
func (s *Schedule) JSON() (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
