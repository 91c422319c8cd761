// Package adc reads and calibrates the board's 8 channel analog front end: two
// joysticks, a slider, a knob, an expansion input and the board version divider.
package adc

import (
	"math"
	"strings"
)

// DefaultAddress is the 7-bit address of the converter.
const DefaultAddress uint16 = 0x48

// Channel is a logical analog input.
type Channel int

const (
	LeftJoyX Channel = iota
	LeftJoyY
	Slider
	Expansion
	RightJoyX
	RightJoyY
	Knob
	Version
)

// Unknown is returned by Decode for an unmapped channel or an unrecognised version.
const Unknown = -1

// Read commands: single ended, internal reference on, converter on.
var commands = map[Channel]byte{
	LeftJoyX:  0xCC,
	LeftJoyY:  0x8C,
	Slider:    0x9C,
	Expansion: 0xDC,
	RightJoyX: 0xEC,
	RightJoyY: 0xAC,
	Knob:      0xBC,
	Version:   0xFC,
}

var names = map[string]Channel{
	"leftx":     LeftJoyX,
	"lefty":     LeftJoyY,
	"slider":    Slider,
	"expansion": Expansion,
	"rightx":    RightJoyX,
	"righty":    RightJoyY,
	"knob":      Knob,
	"version":   Version,
}

// ParseChannel looks a channel up by name (leftx, lefty, slider, expansion, rightx,
// righty, knob, version).
func ParseChannel(s string) (Channel, bool) {
	c, ok := names[strings.ToLower(s)]
	return c, ok
}

func (c Channel) String() string {
	for n, ch := range names {
		if ch == c {
			return n
		}
	}
	return "unknown"
}

// Command returns the read command byte of c.
func Command(c Channel) (byte, bool) {
	b, ok := commands[c]
	return b, ok
}

// Joystick calibration. The positive and negative divisors differ because the stick's
// travel around its electrical centre is not symmetric.
const (
	joyCenter   = 2200
	joyDeadZone = 100
	joyPosDiv   = 18
	joyNegDiv   = 21
	sliderDiv   = 40

	versionLow  = 900
	versionHigh = 1100
)

// Decode turns a raw 12 bit sample of c into its logical value: -100..100 for
// joysticks, 0..100 for slider and knob, the raw sample for the expansion input, and a
// board version (or -1) for the version divider. Unknown channels decode to -1.
func Decode(c Channel, raw int) int {
	switch c {
	case LeftJoyX, LeftJoyY, RightJoyX, RightJoyY:
		return decodeJoystick(raw)
	case Slider, Knob:
		return clamp(round(float64(raw)/sliderDiv), 0, 100)
	case Expansion:
		return raw
	case Version:
		// 5k to ground, 15k to supply: ~1000 +-10%
		if raw > versionLow && raw < versionHigh {
			return 1
		}
		return Unknown
	}
	return Unknown
}

func decodeJoystick(raw int) int {
	d := raw - joyCenter
	if d >= 0 {
		if d < joyDeadZone {
			return 0
		}
		return clamp(round(float64(d-joyDeadZone)/joyPosDiv), 0, 100)
	}
	d = -d
	if d < joyDeadZone {
		return 0
	}
	return clamp(-round(float64(d-joyDeadZone)/joyNegDiv), -100, 0)
}

// JoystickStep buckets a raw joystick sample into a step of -3..3, larger the further
// the stick is pushed. Pushing towards a high reading gives a negative step.
func JoystickStep(raw int) int {
	switch {
	case raw > 3500:
		return -3
	case raw > 3000:
		return -2
	case raw > 2300:
		return -1
	case raw < 550:
		return 3
	case raw < 1100:
		return 2
	case raw < 2100:
		return 1
	}
	return 0
}

// round rounds halves up, towards positive infinity.
func round(f float64) int {
	return int(math.Floor(f + 0.5))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
