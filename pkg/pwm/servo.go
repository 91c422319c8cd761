package pwm

import (
	"math"
	"time"

	"periph.io/x/conn/v3/physic"
)

// Default pulse widths for a 180 degree hobby servo.
const (
	DefaultMinPulse = 500 * time.Microsecond
	DefaultMidPulse = 1500 * time.Microsecond
	DefaultMaxPulse = 2500 * time.Microsecond

	MaxAngle = 180.0
	MaxSpeed = 100.0
)

// PositionKind tells what the last command to a servo was.
type PositionKind int

const (
	Unset PositionKind = iota
	Angle
	Speed
)

// Position is the last command sent to a servo, kept for diagnostics and relative moves.
type Position struct {
	Kind  PositionKind
	Value float64
}

// Servo is the calibration of one channel. Pulse widths are stored as durations; they are
// converted to ticks against the owning chip's frequency at command time.
type Servo struct {
	Channel int
	Min     time.Duration
	Mid     time.Duration
	Max     time.Duration
	// MinAngle and MaxAngle bound angle commands that honour limits.
	MinAngle float64
	MaxAngle float64

	position Position
}

// NewServo returns a servo on channel ch with the default calibration.
func NewServo(ch int) *Servo {
	return &Servo{
		Channel:  ch,
		Min:      DefaultMinPulse,
		Mid:      DefaultMidPulse,
		Max:      DefaultMaxPulse,
		MinAngle: 0,
		MaxAngle: MaxAngle,
	}
}

// SetLimits replaces the pulse calibration. A mid of zero or less selects the midpoint
// of min and max. The servo is left untouched if the offsets are not monotonic.
func (s *Servo) SetLimits(min, max, mid time.Duration) error {
	if min < 0 {
		min = 0
	}
	if min >= max {
		return configErrorf(ErrBadCalibration, "limits", "min %v must be below max %v", min, max)
	}
	if mid <= 0 {
		mid = min + (max-min)/2
	}
	if mid < min || mid > max {
		return configErrorf(ErrBadCalibration, "limits", "mid %v outside %v-%v", mid, min, max)
	}
	s.Min, s.Mid, s.Max = min, mid, max
	return nil
}

// SetAngleLimits bounds limited angle commands. lo is clamped to 0-90 and hi to 90-180.
func (s *Servo) SetAngleLimits(lo, hi float64) {
	s.MinAngle = clampFloat(lo, 0, MaxAngle/2)
	s.MaxAngle = clampFloat(hi, MaxAngle/2, MaxAngle)
}

// LimitAngle clamps degrees into the servo's angle limits.
func (s *Servo) LimitAngle(degrees float64) float64 {
	return clampFloat(degrees, s.MinAngle, s.MaxAngle)
}

// Position returns the last command sent to the servo.
func (s *Servo) Position() Position {
	return s.position
}

// AngleToTicks maps 0-180 degrees linearly onto Min-Max at frequency f. 0 and 180 land
// exactly on the endpoint tick counts.
func (s *Servo) AngleToTicks(f physic.Frequency, degrees float64) int {
	degrees = clampFloat(degrees, 0, MaxAngle)
	lo := OffsetTicks(f, s.Min)
	hi := OffsetTicks(f, s.Max)
	return lo + int(math.Round(float64(hi-lo)*degrees/MaxAngle))
}

// SpeedToTicks maps a continuous rotation speed (-100 to 100 percent) onto the pulse
// range. Forward uses the Mid-Max spread, reverse the Min-Mid spread; the two need not be
// equal.
func (s *Servo) SpeedToTicks(f physic.Frequency, speed float64) int {
	speed = clampFloat(speed, -MaxSpeed, MaxSpeed)
	lo := OffsetTicks(f, s.Min)
	mid := OffsetTicks(f, s.Mid)
	hi := OffsetTicks(f, s.Max)
	switch {
	case speed > 0:
		return mid + int(math.Round(float64(hi-mid)*speed/MaxSpeed))
	case speed < 0:
		return mid - int(math.Round(float64(mid-lo)*-speed/MaxSpeed))
	}
	return mid
}

func (s *Servo) record(kind PositionKind, v float64) {
	s.position = Position{Kind: kind, Value: v}
}
