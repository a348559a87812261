package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures by how the run must react to them.
type ErrorKind string

const (
	// KindConfiguration covers missing or unparseable reference tables.
	// The run aborts before any building is processed.
	KindConfiguration ErrorKind = "configuration"
	// KindMapping covers a building whose attributes fall outside the
	// reference methodology's coverage. The whole pass aborts.
	KindMapping ErrorKind = "mapping"
	// KindCheckpoint covers a corrupt or incompatible checkpoint.
	KindCheckpoint ErrorKind = "checkpoint"
	// KindDataQuality covers out-of-range inputs that are clamped and logged.
	KindDataQuality ErrorKind = "data_quality"
)

var (
	ErrSchemeNotFound          = errors.New("no mapping scheme for county and no default scheme")
	ErrUnmappedOccupancy       = errors.New("occupancy has no subtype distribution in scheme")
	ErrUnmappedCharacteristics = errors.New("characteristics match no wind building type")
	ErrMissingDamageCurve      = errors.New("no damage curve for building type and terrain")
	ErrCheckpointCorrupt       = errors.New("checkpoint is corrupt")
	ErrCheckpointIncompatible  = errors.New("checkpoint does not match building inventory")
	ErrEmptyDistribution       = errors.New("distribution has no positive weight")
)

// Error carries the kind of a failure plus the operation that raised it.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ConfigurationError wraps err as a KindConfiguration error.
func ConfigurationError(op string, err error) error {
	return &Error{Kind: KindConfiguration, Op: op, Err: err}
}

// MappingError wraps err as a KindMapping error.
func MappingError(op string, err error) error {
	return &Error{Kind: KindMapping, Op: op, Err: err}
}

// CheckpointError wraps err as a KindCheckpoint error.
func CheckpointError(op string, err error) error {
	return &Error{Kind: KindCheckpoint, Op: op, Err: err}
}

// DataQualityError wraps err as a KindDataQuality error.
func DataQualityError(op string, err error) error {
	return &Error{Kind: KindDataQuality, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
