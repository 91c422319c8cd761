package pwm

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrUnknownLED is returned for an LED id that has no channel triplet.
	ErrUnknownLED = errors.New("unknown led")
	// ErrUnknownChannel is returned for a channel outside 0-15.
	ErrUnknownChannel = errors.New("unknown channel")
	// ErrUnknownColor is returned for a colour that is neither named nor hex.
	ErrUnknownColor = errors.New("unknown color")
	// ErrBadCalibration is returned when servo offsets are not monotonic.
	ErrBadCalibration = errors.New("bad calibration")
)

// ConfigError reports an invalid calibration or addressing request. No hardware
// write is performed when one is returned.
type ConfigError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("pwm: %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func configErrorf(sentinel error, field, format string, args ...interface{}) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...), Err: sentinel}
}
