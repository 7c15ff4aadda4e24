// Package stream reads step-indexed override batches from an override
// document. The document can be arbitrarily large, so batches are pulled from
// the XML token stream through a small fixed-size cache instead of being
// materialized in memory all at once.
package stream

import (
	"errors"
	"fmt"
	"strings"
)

// ErrBadStream reports an override document the reader cannot consume.
var ErrBadStream = errors.New("invalid override document")

// Mode names the way an override combines with an entity's current value.
type Mode string

const (
	// ModeSet replaces the current value.
	ModeSet Mode = "valueset"
	// ModeAdd adds to the current value.
	ModeAdd Mode = "valueadd"
	// ModeScale multiplies the current value.
	ModeScale Mode = "valuescale"
)

// ParseMode converts a document type attribute to a Mode. Not case sensitive.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case ModeSet:
		return ModeSet, nil
	case ModeAdd:
		return ModeAdd, nil
	case ModeScale:
		return ModeScale, nil
	default:
		return "", fmt.Errorf("%w: %q is not a valid override type", ErrBadStream, s)
	}
}

// Apply combines the override value with an entity's current value.
func (m Mode) Apply(value, current float64) float64 {
	switch m {
	case ModeAdd:
		return value + current
	case ModeScale:
		return value * current
	default: // ModeSet
		return value
	}
}

// Override is a single value injection aimed at one named entity.
type Override struct {
	ID    string
	Name  string
	Mode  Mode
	Value float64
}

// Batch carries every override to apply at one step index.
type Batch struct {
	Step      int
	Overrides []Override
}

func (b *Batch) String() string {
	return fmt.Sprintf("step=%d overrides=%d", b.Step, len(b.Overrides))
}
