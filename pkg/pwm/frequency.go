package pwm

import (
	"math"
	"time"

	"periph.io/x/conn/v3/physic"
)

const (
	// OscillatorHz is the PCA9685 internal oscillator.
	OscillatorHz = 25000000
	// Resolution is the number of ticks in one PWM period.
	Resolution = 4096

	// MinFrequency and MaxFrequency bound every requested update rate.
	MinFrequency = 40 * physic.Hertz
	MaxFrequency = 1000 * physic.Hertz
	// DefaultFrequency suits hobby servos.
	DefaultFrequency = 50 * physic.Hertz
)

// ClampFrequency limits f to 40-1000Hz.
func ClampFrequency(f physic.Frequency) physic.Frequency {
	if f < MinFrequency {
		return MinFrequency
	}
	if f > MaxFrequency {
		return MaxFrequency
	}
	return f
}

// Prescaler returns the PRE_SCALE value for f: round(osc / (4096 * f)) - 1.
func Prescaler(f physic.Frequency) byte {
	hz := hertz(ClampFrequency(f))
	return byte(math.Round(OscillatorHz/(Resolution*hz)) - 1)
}

// OffsetTicks converts a pulse width into ticks of a period at frequency f. The pulse is
// taken as a fraction of the period, so the same width costs more ticks at higher rates.
func OffsetTicks(f physic.Frequency, pulse time.Duration) int {
	fraction := pulse.Seconds() * hertz(ClampFrequency(f))
	return FractionTicks(fraction)
}

// FractionTicks converts a fraction of the period (0-1) into ticks, clamped to 0-4095.
func FractionTicks(fraction float64) int {
	return clampInt(int(math.Round(fraction*Resolution)), 0, MaxTicks)
}

func hertz(f physic.Frequency) float64 {
	return float64(f) / float64(physic.Hertz)
}
