package pwm

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/physic"
)

// oscillatorSettle is the wait between waking the chip and restarting it. The datasheet
// minimum is 500us.
const oscillatorSettle = time.Millisecond

// RegisterWriter is the slice of the I2C transport the chip needs.
type RegisterWriter interface {
	WriteRegister(ctx context.Context, addr uint16, reg, val byte) error
}

// Chip is one addressed PWM controller and the calibration of its 16 servo slots.
type Chip struct {
	Address uint16

	mu     sync.Mutex
	freq   physic.Frequency
	servos [ChannelCount]*Servo
	leds   LedMapper
	w      RegisterWriter
	sleep  func(time.Duration)
	logger *zap.SugaredLogger
}

func newChip(addr uint16, o *options) *Chip {
	c := &Chip{
		Address: addr,
		freq:    o.freq,
		leds:    o.leds,
		w:       o.writer,
		sleep:   o.sleep,
		logger:  o.logger.With("chip", addr),
	}
	for i := range c.servos {
		c.servos[i] = NewServo(i)
	}
	return c
}

// Frequency returns the current update rate.
func (c *Chip) Frequency() physic.Frequency {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.freq
}

// Prescale returns the PRE_SCALE value last derived from the frequency.
func (c *Chip) Prescale() byte {
	return Prescaler(c.Frequency())
}

// Servo returns a copy of the calibration in slot.
func (c *Chip) Servo(slot int) (Servo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, err := c.slot(slot)
	if err != nil {
		return Servo{}, err
	}
	return *s, nil
}

// Reset puts the chip to sleep, programs the prescaler, zeroes every channel, wakes it
// and restarts it after the oscillator settles.
func (c *Chip) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reset(ctx)
}

// SetFrequency clamps f to 40-1000Hz and reprograms the chip. Every channel is zeroed
// as a side effect.
func (c *Chip) SetFrequency(ctx context.Context, f physic.Frequency) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.freq = ClampFrequency(f)
	return c.reset(ctx)
}

// SetServoChannel moves slot onto another output channel.
func (c *Chip) SetServoChannel(slot, ch int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, err := c.slot(slot)
	if err != nil {
		return err
	}
	if ch < 0 || ch >= ChannelCount {
		return configErrorf(ErrUnknownChannel, "channel", "channel %d not in 0-%d", ch, ChannelCount-1)
	}
	s.Channel = ch
	return nil
}

// SetServoLimits recalibrates the pulse widths of slot. See Servo.SetLimits.
func (c *Chip) SetServoLimits(slot int, min, max, mid time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, err := c.slot(slot)
	if err != nil {
		return err
	}
	if err := s.SetLimits(min, max, mid); err != nil {
		return err
	}
	c.logger.Debugw("servo limits", "slot", slot, "min", s.Min, "mid", s.Mid, "max", s.Max)
	return nil
}

// SetAngleLimits bounds limited angle commands on slot.
func (c *Chip) SetAngleLimits(slot int, lo, hi float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, err := c.slot(slot)
	if err != nil {
		return err
	}
	s.SetAngleLimits(lo, hi)
	return nil
}

// SetServoPosition moves slot to degrees. With limited set the angle is first clamped
// into the servo's angle limits, otherwise only into 0-180.
func (c *Chip) SetServoPosition(ctx context.Context, slot int, degrees float64, limited bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, err := c.slot(slot)
	if err != nil {
		return err
	}
	if limited {
		degrees = s.LimitAngle(degrees)
	}
	degrees = clampFloat(degrees, 0, MaxAngle)
	ticks := s.AngleToTicks(c.freq, degrees)
	s.record(Angle, degrees)
	c.logger.Debugw("servo position", "slot", slot, "channel", s.Channel, "degrees", degrees, "ticks", ticks)
	return c.writeChannel(ctx, Encode(s.Channel, 0, ticks))
}

// MoveServoBy nudges slot by delta degrees (clamped to +-20) from its last angle, 90 if
// it has none, honouring the angle limits.
func (c *Chip) MoveServoBy(ctx context.Context, slot int, delta float64) error {
	c.mu.Lock()
	s, err := c.slot(slot)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	from := MaxAngle / 2
	if p := s.position; p.Kind == Angle {
		from = p.Value
	}
	c.mu.Unlock()
	return c.SetServoPosition(ctx, slot, from+clampFloat(delta, -20, 20), true)
}

// SetServoSpeed drives a continuous rotation servo in slot at speed percent.
func (c *Chip) SetServoSpeed(ctx context.Context, slot int, speed float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, err := c.slot(slot)
	if err != nil {
		return err
	}
	speed = clampFloat(speed, -MaxSpeed, MaxSpeed)
	ticks := s.SpeedToTicks(c.freq, speed)
	s.record(Speed, speed)
	c.logger.Debugw("servo speed", "slot", slot, "channel", s.Channel, "speed", speed, "ticks", ticks)
	return c.writeChannel(ctx, Encode(s.Channel, 0, ticks))
}

// SetPulseRange writes raw on/off ticks to channel ch.
func (c *Chip) SetPulseRange(ctx context.Context, ch, on, off int) error {
	if ch < 0 || ch >= ChannelCount {
		return configErrorf(ErrUnknownChannel, "channel", "channel %d not in 0-%d", ch, ChannelCount-1)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeChannel(ctx, Encode(ch, on, off))
}

// SetDutyCycle holds channel ch high for percent (0-100) of each period.
func (c *Chip) SetDutyCycle(ctx context.Context, ch int, percent float64) error {
	percent = clampFloat(percent, 0, 100)
	return c.SetPulseRange(ctx, ch, 0, FractionTicks(percent/100))
}

// SetLedMapper replaces the LED wiring and scaling.
func (c *Chip) SetLedMapper(m LedMapper) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.leds = m
}

// LedMapper returns the LED wiring and scaling in use.
func (c *Chip) LedMapper() LedMapper {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.leds
}

// SetColor sets LED id (1-3). An unknown LED is reported and nothing is written.
func (c *Chip) SetColor(ctx context.Context, led int, col Color) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	ws, err := c.leds.Writes(led, col)
	if err != nil {
		return err
	}
	c.logger.Debugw("led colour", "led", led, "writes", len(ws))
	return c.writeAll(ctx, ws...)
}

func (c *Chip) slot(slot int) (*Servo, error) {
	if slot < 0 || slot >= ChannelCount {
		return nil, configErrorf(ErrUnknownChannel, "slot", "slot %d not in 0-%d", slot, ChannelCount-1)
	}
	return c.servos[slot], nil
}

func (c *Chip) reset(ctx context.Context) error {
	prescale := Prescaler(c.freq)
	c.logger.Debugw("reset", "freq", c.freq, "prescale", prescale)
	if err := c.writeAll(ctx, resetSequence(prescale)...); err != nil {
		return errors.Wrap(err, "reset")
	}
	c.sleep(oscillatorSettle)
	if err := c.write(ctx, RegisterWrite{Reg: RegMode1, Val: mode1Restart}); err != nil {
		return errors.Wrap(err, "restart")
	}
	return nil
}

func (c *Chip) writeChannel(ctx context.Context, ws [4]RegisterWrite) error {
	return c.writeAll(ctx, ws[:]...)
}

func (c *Chip) writeAll(ctx context.Context, ws ...RegisterWrite) error {
	for _, w := range ws {
		if err := c.write(ctx, w); err != nil {
			return err
		}
	}
	return nil
}

func (c *Chip) write(ctx context.Context, w RegisterWrite) error {
	c.logger.Debugw("write", "reg", w.Reg, "val", w.Val)
	if err := c.w.WriteRegister(ctx, c.Address, w.Reg, w.Val); err != nil {
		return errors.Wrapf(err, "chip 0x%02x reg 0x%02x", c.Address, w.Reg)
	}
	return nil
}
