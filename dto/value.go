package dto

import (
	"encoding/json"
	"strconv"
	"time"
)

type ValueKind int

const (
	ValueText ValueKind = iota
	ValueFloat
	ValueInt
)

// Value is a sensor reading: raw text, or a number once a parse transform
// has produced one.
type Value struct {
	Kind  ValueKind
	Text  string
	Float float64
	Int   int64
}

func TextValue(s string) Value {
	return Value{Kind: ValueText, Text: s}
}

func FloatValue(f float64) Value {
	return Value{Kind: ValueFloat, Float: f}
}

func IntValue(i int64) Value {
	return Value{Kind: ValueInt, Int: i}
}

// String renders the value the way it goes onto the wire as an MQTT payload.
func (v Value) String() string {
	switch v.Kind {
	case ValueFloat:
		return strconv.FormatFloat(v.Float, 'f', -1, 64)
	case ValueInt:
		return strconv.FormatInt(v.Int, 10)
	default:
		return v.Text
	}
}

// MarshalJSON keeps numbers as JSON numbers in dry-run output.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case ValueFloat:
		return json.Marshal(v.Float)
	case ValueInt:
		return json.Marshal(v.Int)
	default:
		return json.Marshal(v.Text)
	}
}

// UnavailablePayload is the Home Assistant availability convention for a
// sensor that produced no reading this cycle.
const UnavailablePayload = "unavailable"

// Reading is one sensor's result within a cycle. Unavailable readings carry
// the failure detail for logs and the status API only.
type Reading struct {
	Sensor      *Sensor `json:"sensor"`
	Value       Value   `json:"value"`
	Unavailable bool    `json:"unavailable,omitempty"`
	Failure     string  `json:"failure,omitempty"`
}

// StatePayload is what goes on the sensor's state topic for this reading.
func (r Reading) StatePayload() string {
	if r.Unavailable {
		return UnavailablePayload
	}
	return r.Value.String()
}

// Snapshot is the complete result of one collection cycle, readings in
// registry order.
type Snapshot struct {
	TakenAt  time.Time `json:"taken_at"`
	Readings []Reading `json:"readings"`
}

func (s *Snapshot) Get(id string) (Reading, bool) {
	for _, r := range s.Readings {
		if r.Sensor != nil && r.Sensor.ID == id {
			return r, true
		}
	}
	return Reading{}, false
}
