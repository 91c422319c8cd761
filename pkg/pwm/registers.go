// Package pwm turns servo angles, servo speeds, LED colours and update rates into the
// ON/OFF tick registers of a PCA9685-class 16 channel PWM controller, and keeps the
// per-chip, per-servo configuration needed to do that across several chips.
package pwm

// Register is a PCA9685 register address.
type Register = byte

// PCA9685 register map.
const (
	RegMode1     Register = 0x00
	RegMode2     Register = 0x01
	RegLED0OnL   Register = 0x06 // channel 0 ON low byte, channels follow at a stride of 4
	RegAllOnL    Register = 0xFA
	RegAllOnH    Register = 0xFB
	RegAllOffL   Register = 0xFC
	RegAllOffH   Register = 0xFD
	RegPrescale  Register = 0xFE // only writable while MODE1 SLEEP is set
	regsPerLED            = 4
	ChannelCount          = 16
)

// MODE1 bits.
const (
	Mode1AllCall byte = 0x01
	Mode1Sleep   byte = 0x10
	Mode1AutoInc byte = 0x20
	Mode1Restart byte = 0x80

	mode1Default = Mode1AllCall
	mode1Sleep   = mode1Default | Mode1Sleep
	mode1Wake    = mode1Default &^ Mode1Sleep
	mode1Restart = mode1Wake | Mode1Restart
)

const (
	// MaxTicks is the largest ON/OFF counter value.
	MaxTicks = 4095
	// fullBit is bit 4 of ON_H (always on) or OFF_H (always off).
	fullBit byte = 0x10
)

// RegisterWrite is one register/value pair destined for a chip.
type RegisterWrite struct {
	Reg Register
	Val byte
}

// ChannelBase returns the ON_L register of channel ch. ch is clamped to 0-15.
func ChannelBase(ch int) Register {
	return RegLED0OnL + Register(regsPerLED*clampInt(ch, 0, ChannelCount-1))
}

// Encode renders on/off tick counts for a channel as on-low, on-high, off-low, off-high.
// Ticks outside 0-4095 are clamped, never rejected.
func Encode(ch, onTicks, offTicks int) [4]RegisterWrite {
	on := clampInt(onTicks, 0, MaxTicks)
	off := clampInt(offTicks, 0, MaxTicks)
	return render(ch, byte(on), byte(on>>8)&0x0F, byte(off), byte(off>>8)&0x0F)
}

// EncodeFullOn holds the channel permanently high.
func EncodeFullOn(ch int) [4]RegisterWrite {
	return render(ch, 0, fullBit, 0, 0)
}

// EncodeFullOff holds the channel permanently low.
func EncodeFullOff(ch int) [4]RegisterWrite {
	return render(ch, 0, 0, 0, fullBit)
}

func render(ch int, onL, onH, offL, offH byte) [4]RegisterWrite {
	base := ChannelBase(ch)
	return [4]RegisterWrite{
		{Reg: base, Val: onL},
		{Reg: base + 1, Val: onH},
		{Reg: base + 2, Val: offL},
		{Reg: base + 3, Val: offH},
	}
}

// resetSequence is the MODE1/prescale/all-off sequence up to, not including, the
// oscillator settle delay.
func resetSequence(prescale byte) []RegisterWrite {
	return []RegisterWrite{
		{Reg: RegMode1, Val: mode1Sleep},
		{Reg: RegPrescale, Val: prescale},
		{Reg: RegAllOnL, Val: 0},
		{Reg: RegAllOnH, Val: 0},
		{Reg: RegAllOffL, Val: 0},
		{Reg: RegAllOffH, Val: 0},
		{Reg: RegMode1, Val: mode1Wake},
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
