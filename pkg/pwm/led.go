package pwm

import (
	"math"
	"strconv"
	"strings"
)

// LevelKind classifies one colour component.
type LevelKind int

const (
	// Unchanged leaves the channel's current duty cycle alone.
	Unchanged LevelKind = iota
	Off
	On
	Scaled
)

// Level is one colour component: Unchanged, Off, On, or Scaled(1-254).
type Level struct {
	Kind  LevelKind
	Value uint8
}

// Keep, Dark and Full are the three sentinel levels.
var (
	Keep = Level{Kind: Unchanged}
	Dark = Level{Kind: Off}
	Full = Level{Kind: On, Value: 255}
)

// Classify maps the block-style integer encoding onto a Level: -1 keeps the channel,
// 0 or less is off, 255 or more is on, anything between is scaled.
func Classify(v int) Level {
	switch {
	case v == -1:
		return Keep
	case v <= 0:
		return Dark
	case v >= 255:
		return Full
	}
	return Level{Kind: Scaled, Value: uint8(v)}
}

// brightness returns the 0-255 value of a non-Unchanged level.
func (l Level) brightness() int {
	switch l.Kind {
	case Off:
		return 0
	case On:
		return 255
	}
	return int(l.Value)
}

// Color is an RGB request for one LED.
type Color struct {
	Red, Green, Blue Level
}

// RGB builds a Color from block-style integers.
func RGB(r, g, b int) Color {
	return Color{Red: Classify(r), Green: Classify(g), Blue: Classify(b)}
}

// ColorFromRGB splits a 0xRRGGBB value.
func ColorFromRGB(rgb uint32) Color {
	return RGB(int(rgb>>16&0xFF), int(rgb>>8&0xFF), int(rgb&0xFF))
}

// Named colours.
const (
	ColorRed    uint32 = 0xFF0000
	ColorGreen  uint32 = 0x00FF00
	ColorBlue   uint32 = 0x0000FF
	ColorYellow uint32 = 0xFFFF00
	ColorOrange uint32 = 0xFFA500
	ColorPurple uint32 = 0xA020F0
	ColorWhite  uint32 = 0xFFFFFF
	ColorBlack  uint32 = 0x000000
	ColorBrown  uint32 = 0x964B00
	ColorPink   uint32 = 0xFFC0CB
	ColorCyan   uint32 = 0x00FFFF
	ColorBeige  uint32 = 0xF5F5DC
)

// NamedColors maps lower case names to their RGB value.
var NamedColors = map[string]uint32{
	"red":    ColorRed,
	"green":  ColorGreen,
	"blue":   ColorBlue,
	"yellow": ColorYellow,
	"orange": ColorOrange,
	"purple": ColorPurple,
	"white":  ColorWhite,
	"black":  ColorBlack,
	"off":    ColorBlack,
	"brown":  ColorBrown,
	"pink":   ColorPink,
	"cyan":   ColorCyan,
	"beige":  ColorBeige,
}

// ParseColor accepts a colour name from NamedColors or a hex value such as "#ff8000" or
// "0xff8000".
func ParseColor(s string) (Color, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if v, ok := NamedColors[s]; ok {
		return ColorFromRGB(v), nil
	}
	hex := strings.TrimPrefix(strings.TrimPrefix(s, "#"), "0x")
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil || len(hex) != 6 {
		return Color{}, configErrorf(ErrUnknownColor, "color", "%q is not a colour name or RRGGBB value", s)
	}
	return ColorFromRGB(uint32(v)), nil
}

// RGBChannels are the PWM channels wired to one LED.
type RGBChannels struct {
	Red, Green, Blue int
}

// DefaultLayout is the board wiring of LED1, LED2 and LED3.
var DefaultLayout = [3]RGBChannels{
	{Red: 2, Green: 9, Blue: 8},
	{Red: 10, Green: 11, Blue: 12},
	{Red: 14, Green: 13, Blue: 15},
}

// LedMapper turns LED colour requests into channel writes.
type LedMapper struct {
	Layout [3]RGBChannels
	// Invert flips every value for LEDs wired to sink current into the chip.
	Invert bool
	// Brightness scales every value, 0-1.
	Brightness float64
}

// NewLedMapper returns a mapper for the default wiring at full brightness.
func NewLedMapper() LedMapper {
	return LedMapper{Layout: DefaultLayout, Brightness: 1}
}

// Channels returns the channel triplet of LED id (1-3).
func (m LedMapper) Channels(led int) (RGBChannels, error) {
	if led < 1 || led > len(m.Layout) {
		return RGBChannels{}, configErrorf(ErrUnknownLED, "led", "led %d not in 1-%d", led, len(m.Layout))
	}
	return m.Layout[led-1], nil
}

// Writes renders c for LED id (1-3). Components left Unchanged produce no writes.
func (m LedMapper) Writes(led int, c Color) ([]RegisterWrite, error) {
	chs, err := m.Channels(led)
	if err != nil {
		return nil, err
	}
	var out []RegisterWrite
	for _, p := range []struct {
		ch    int
		level Level
	}{
		{chs.Red, c.Red},
		{chs.Green, c.Green},
		{chs.Blue, c.Blue},
	} {
		if p.level.Kind == Unchanged {
			continue
		}
		w := m.encode(p.ch, p.level)
		out = append(out, w[:]...)
	}
	return out, nil
}

func (m LedMapper) encode(ch int, l Level) [4]RegisterWrite {
	v := int(math.Round(float64(l.brightness()) * clampFloat(m.Brightness, 0, 1)))
	if m.Invert {
		v = 255 - v
	}
	switch v {
	case 0:
		return EncodeFullOff(ch)
	case 255:
		return EncodeFullOn(ch)
	}
	return Encode(ch, 0, int(math.Round(float64(v)*MaxTicks/255)))
}
