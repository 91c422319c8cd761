package adc

import (
	"testing"

	"go.viam.com/test"
)

func TestDecodeJoystick(t *testing.T) {
	for _, tc := range []struct {
		raw, want int
	}{
		{2200, 0},
		{2299, 0},
		{2300, 0},
		{2101, 0},
		{2100, 0},
		{2318, 1},
		{4095, 100},
		{4096, 100},
		{2200 + 100 + 18*50, 50},
		{2079, -1},
		{0, -100},
		{2200 - 100 - 21*50, -50},
	} {
		for _, ch := range []Channel{LeftJoyX, LeftJoyY, RightJoyX, RightJoyY} {
			test.That(t, Decode(ch, tc.raw), test.ShouldEqual, tc.want)
		}
	}
}

func TestDecodeSliderKnob(t *testing.T) {
	for _, ch := range []Channel{Slider, Knob} {
		test.That(t, Decode(ch, 0), test.ShouldEqual, 0)
		test.That(t, Decode(ch, 20), test.ShouldEqual, 1)
		test.That(t, Decode(ch, 2000), test.ShouldEqual, 50)
		test.That(t, Decode(ch, 4000), test.ShouldEqual, 100)
		test.That(t, Decode(ch, 4095), test.ShouldEqual, 100)
	}
}

func TestDecodeOther(t *testing.T) {
	test.That(t, Decode(Expansion, 1234), test.ShouldEqual, 1234)

	test.That(t, Decode(Version, 1000), test.ShouldEqual, 1)
	test.That(t, Decode(Version, 901), test.ShouldEqual, 1)
	test.That(t, Decode(Version, 900), test.ShouldEqual, Unknown)
	test.That(t, Decode(Version, 1100), test.ShouldEqual, Unknown)
	test.That(t, Decode(Version, 3000), test.ShouldEqual, Unknown)

	test.That(t, Decode(Channel(8), 1000), test.ShouldEqual, Unknown)
	test.That(t, Decode(Channel(-2), 1000), test.ShouldEqual, Unknown)
}

func TestJoystickStep(t *testing.T) {
	for _, tc := range []struct {
		raw, want int
	}{
		{4000, -3},
		{3200, -2},
		{2500, -1},
		{2200, 0},
		{2100, 0},
		{2000, 1},
		{800, 2},
		{100, 3},
	} {
		test.That(t, JoystickStep(tc.raw), test.ShouldEqual, tc.want)
	}
}

func TestChannelNames(t *testing.T) {
	c, ok := ParseChannel("Knob")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, c, test.ShouldEqual, Knob)
	test.That(t, c.String(), test.ShouldEqual, "knob")

	_, ok = ParseChannel("wheel")
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, Channel(42).String(), test.ShouldEqual, "unknown")

	cmd, ok := Command(RightJoyY)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, cmd, test.ShouldEqual, byte(0xAC))
	_, ok = Command(Unknown)
	test.That(t, ok, test.ShouldBeFalse)
}
