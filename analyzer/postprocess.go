package analyzer

import (
	"fmt"
	"strconv"
	"strings"

	"UnraidTools/unraid-mqtt-stats/dto"
)

// Transform names as they appear in a sensor's post_process list.
const (
	TrimWhitespace = "TrimWhitespace"
	ParseFloat     = "ParseFloat"
	ParseInteger   = "ParseInteger"
	ExtractNumber  = "ExtractNumber"
	ToUpperCase    = "ToUpperCase"
	ToLowerCase    = "ToLowerCase"
)

// PostProcessor applies an ordered transform chain to raw command output.
// A chain is validated once at construction; Apply failures are per-reading.
type PostProcessor struct {
	steps []string
}

// NewChain validates transform names and ordering. The parse transforms
// produce a number, so nothing may follow them in the chain.
func NewChain(steps []string) (*PostProcessor, error) {
	numericAt := ""
	for _, step := range steps {
		if numericAt != "" {
			return nil, fmt.Errorf("transform %s cannot follow %s: %s produces a number, not text", step, numericAt, numericAt)
		}
		switch step {
		case TrimWhitespace, ToUpperCase, ToLowerCase:
		case ParseFloat, ParseInteger, ExtractNumber:
			numericAt = step
		default:
			return nil, fmt.Errorf("unknown transform %q", step)
		}
	}
	return &PostProcessor{steps: steps}, nil
}

// Apply runs the chain left to right. The first step that cannot convert
// its input fails the whole reading.
func (p *PostProcessor) Apply(raw string) (dto.Value, error) {
	value := dto.TextValue(raw)
	for _, step := range p.steps {
		next, err := applyStep(step, value.Text)
		if err != nil {
			return dto.Value{}, fmt.Errorf("%s: %w", step, err)
		}
		value = next
	}
	return value, nil
}

func applyStep(step, text string) (dto.Value, error) {
	switch step {
	case TrimWhitespace:
		return dto.TextValue(strings.TrimSpace(text)), nil
	case ToUpperCase:
		return dto.TextValue(strings.ToUpper(text)), nil
	case ToLowerCase:
		return dto.TextValue(strings.ToLower(text)), nil
	case ParseFloat:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return dto.Value{}, fmt.Errorf("not a float: %q", text)
		}
		return dto.FloatValue(f), nil
	case ParseInteger:
		i, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return dto.Value{}, fmt.Errorf("not an integer: %q", text)
		}
		return dto.IntValue(i), nil
	case ExtractNumber:
		f, ok := extractNumber(text)
		if !ok {
			return dto.Value{}, fmt.Errorf("no number in %q", text)
		}
		return dto.FloatValue(f), nil
	}
	return dto.Value{}, fmt.Errorf("unknown transform %q", step)
}

// extractNumber deletes every rune that is not a digit, a decimal point or
// a minus sign, then parses what remains. Leftover punctuation that still
// does not parse, like the "10-20" of a range, fails the reading rather
// than producing a made-up number.
func extractNumber(text string) (float64, bool) {
	var b strings.Builder
	for _, r := range text {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	f, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
