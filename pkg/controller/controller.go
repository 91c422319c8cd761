package controller

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/physic"

	"github.com/Seann-Moser/dojobot/pkg/adc"
	"github.com/Seann-Moser/dojobot/pkg/io"
	"github.com/Seann-Moser/dojobot/pkg/pwm"
)

// ServoName is a servo of the arm.
type ServoName string

const (
	Left   ServoName = "left"
	Right  ServoName = "right"
	Rotate ServoName = "rotate"
	Jaw1   ServoName = "jaw1"
	Jaw2   ServoName = "jaw2"
	// All addresses every servo at once, ignoring angle limits.
	All ServoName = "all"
)

// ServoNames lists the arm's servos.
var ServoNames = []ServoName{Left, Right, Rotate, Jaw1, Jaw2}

var servoSlots = map[ServoName]int{
	Left:   6,
	Right:  0,
	Rotate: 1,
	Jaw1:   5,
	Jaw2:   4,
}

// PositionID names a stored pose.
type PositionID string

const (
	PositionA PositionID = "A"
	PositionB PositionID = "B"
	PositionC PositionID = "C"
)

// PositionIDs lists the stored poses.
var PositionIDs = []PositionID{PositionA, PositionB, PositionC}

var (
	ErrUnknownServo    = errors.New("unknown servo")
	ErrUnknownPosition = errors.New("unknown position")
	ErrNoGPIO          = errors.New("gpio not available")
)

// GPIO is the button, relay and status LED side of the board.
type GPIO interface {
	SetRelay(on bool) error
	SetStatus(on bool) error
	Pressed(id io.ButtonID) (bool, error)
	Close() error
}

// Controller exposes the robot in terms of named servos, LEDs and inputs.
type Controller struct {
	chip   *pwm.Chip
	adc    *adc.Reader
	gpio   GPIO
	logger *zap.SugaredLogger

	mu            sync.Mutex
	Configuration Configuration
	configPath    string
}

// New applies cfg to chip and returns a controller. gpio may be nil when the buttons and
// relay are not wired up. configPath may be empty to disable persistence.
func New(ctx context.Context, chip *pwm.Chip, reader *adc.Reader, gpio GPIO, cfg Configuration, configPath string, logger *zap.SugaredLogger) (*Controller, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	c := &Controller{
		chip:          chip,
		adc:           reader,
		gpio:          gpio,
		logger:        logger,
		Configuration: cfg,
		configPath:    configPath,
	}
	if err := c.apply(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Controller) apply(ctx context.Context) error {
	cfg := c.Configuration
	if cfg.FrequencyHz != 0 && physic.Frequency(cfg.FrequencyHz)*physic.Hertz != c.chip.Frequency() {
		if err := c.chip.SetFrequency(ctx, physic.Frequency(cfg.FrequencyHz)*physic.Hertz); err != nil {
			return err
		}
	}
	for name, s := range cfg.Servos {
		slot, ok := servoSlots[name]
		if !ok {
			return errors.Wrap(ErrUnknownServo, string(name))
		}
		min, max, mid := s.pulses()
		if err := c.chip.SetServoLimits(slot, min, max, mid); err != nil {
			return errors.Wrapf(err, "servo %s", name)
		}
		if err := c.chip.SetAngleLimits(slot, s.MinAngle, s.MaxAngle); err != nil {
			return err
		}
		if s.Channel != nil {
			if err := c.chip.SetServoChannel(slot, *s.Channel); err != nil {
				return errors.Wrapf(err, "servo %s", name)
			}
		}
	}
	m := c.chip.LedMapper()
	m.Invert = cfg.Leds.Invert
	m.Brightness = cfg.Leds.Brightness
	c.chip.SetLedMapper(m)
	return nil
}

// ParseServo looks a servo up by name, case insensitively.
func ParseServo(s string) (ServoName, error) {
	n := ServoName(strings.ToLower(s))
	if n == All {
		return n, nil
	}
	if _, ok := servoSlots[n]; !ok {
		return "", errors.Wrap(ErrUnknownServo, s)
	}
	return n, nil
}

// ParsePosition looks a stored pose up by id.
func ParsePosition(s string) (PositionID, error) {
	id := PositionID(strings.ToUpper(s))
	for _, p := range PositionIDs {
		if p == id {
			return id, nil
		}
	}
	return "", errors.Wrap(ErrUnknownPosition, s)
}

// MoveServo moves one servo within its angle limits, or every servo ignoring them.
func (c *Controller) MoveServo(ctx context.Context, name ServoName, degrees float64) error {
	if name == All {
		for _, n := range ServoNames {
			if err := c.chip.SetServoPosition(ctx, servoSlots[n], degrees, false); err != nil {
				return err
			}
		}
		return nil
	}
	slot, ok := servoSlots[name]
	if !ok {
		return errors.Wrap(ErrUnknownServo, string(name))
	}
	return c.chip.SetServoPosition(ctx, slot, degrees, true)
}

// MoveServoBy nudges one servo, or each servo, by up to 20 degrees.
func (c *Controller) MoveServoBy(ctx context.Context, name ServoName, delta float64) error {
	names := []ServoName{name}
	if name == All {
		names = ServoNames
	}
	for _, n := range names {
		slot, ok := servoSlots[n]
		if !ok {
			return errors.Wrap(ErrUnknownServo, string(n))
		}
		if err := c.chip.MoveServoBy(ctx, slot, delta); err != nil {
			return err
		}
	}
	return nil
}

// SetSpeed drives a continuous rotation servo.
func (c *Controller) SetSpeed(ctx context.Context, name ServoName, speed float64) error {
	slot, ok := servoSlots[name]
	if !ok {
		return errors.Wrap(ErrUnknownServo, string(name))
	}
	return c.chip.SetServoSpeed(ctx, slot, speed)
}

// ServoPosition returns the last angle commanded to a servo; ok is false if it has not
// been moved yet.
func (c *Controller) ServoPosition(name ServoName) (float64, bool, error) {
	slot, ok := servoSlots[name]
	if !ok {
		return 0, false, errors.Wrap(ErrUnknownServo, string(name))
	}
	s, err := c.chip.Servo(slot)
	if err != nil {
		return 0, false, err
	}
	p := s.Position()
	return p.Value, p.Kind == pwm.Angle, nil
}

// SetAngleLimits bounds a servo's travel and persists it.
func (c *Controller) SetAngleLimits(name ServoName, lo, hi float64) error {
	slot, ok := servoSlots[name]
	if !ok {
		return errors.Wrap(ErrUnknownServo, string(name))
	}
	if err := c.chip.SetAngleLimits(slot, lo, hi); err != nil {
		return err
	}
	s, err := c.chip.Servo(slot)
	if err != nil {
		return err
	}
	c.mu.Lock()
	if c.Configuration.Servos == nil {
		c.Configuration.Servos = make(map[ServoName]ServoSetting)
	}
	setting := c.Configuration.Servos[name]
	setting.MinAngle, setting.MaxAngle = s.MinAngle, s.MaxAngle
	c.Configuration.Servos[name] = setting
	c.mu.Unlock()
	return c.Save()
}

// SetPulseLimits recalibrates a servo's pulse widths in microseconds and persists them.
// A mid of zero selects the midpoint.
func (c *Controller) SetPulseLimits(name ServoName, minUs, maxUs, midUs int) error {
	slot, ok := servoSlots[name]
	if !ok {
		return errors.Wrap(ErrUnknownServo, string(name))
	}
	c.mu.Lock()
	if c.Configuration.Servos == nil {
		c.Configuration.Servos = make(map[ServoName]ServoSetting)
	}
	setting := c.Configuration.Servos[name]
	setting.MinPulseUs, setting.MaxPulseUs, setting.MidPulseUs = minUs, maxUs, midUs
	min, max, mid := setting.pulses()
	if err := c.chip.SetServoLimits(slot, min, max, mid); err != nil {
		c.mu.Unlock()
		return err
	}
	c.Configuration.Servos[name] = setting
	c.mu.Unlock()
	return c.Save()
}

// StorePosition records the current angle of every servo under id.
func (c *Controller) StorePosition(id PositionID) error {
	pose := make(Pose)
	for _, n := range ServoNames {
		deg, ok, err := c.ServoPosition(n)
		if err != nil {
			return err
		}
		if !ok {
			deg = 90
		}
		pose[n] = deg
	}
	c.mu.Lock()
	if c.Configuration.Positions == nil {
		c.Configuration.Positions = make(map[PositionID]Pose)
	}
	c.Configuration.Positions[id] = pose
	c.mu.Unlock()
	c.logger.Debugw("stored position", "id", id, "pose", pose)
	return c.Save()
}

// GoPosition moves the arm (left, right, rotate; not the jaws) to a stored pose.
func (c *Controller) GoPosition(ctx context.Context, id PositionID) error {
	c.mu.Lock()
	pose, ok := c.Configuration.Positions[id]
	c.mu.Unlock()
	if !ok {
		return errors.Wrap(ErrUnknownPosition, string(id))
	}
	for _, n := range []ServoName{Left, Right, Rotate} {
		deg, ok := pose[n]
		if !ok {
			continue
		}
		if err := c.MoveServo(ctx, n, deg); err != nil {
			return err
		}
	}
	return nil
}

// SetLED sets one of the three RGB LEDs.
func (c *Controller) SetLED(ctx context.Context, led int, col pwm.Color) error {
	return c.chip.SetColor(ctx, led, col)
}

// SetRelay switches the electromagnet relay.
func (c *Controller) SetRelay(on bool) error {
	if c.gpio == nil {
		return ErrNoGPIO
	}
	return c.gpio.SetRelay(on)
}

// SetStatus switches the status LED.
func (c *Controller) SetStatus(on bool) error {
	if c.gpio == nil {
		return ErrNoGPIO
	}
	return c.gpio.SetStatus(on)
}

// Button reports whether a button is held down.
func (c *Controller) Button(id io.ButtonID) (bool, error) {
	if c.gpio == nil {
		return false, ErrNoGPIO
	}
	return c.gpio.Pressed(id)
}

// Input reads a decoded analog input.
func (c *Controller) Input(ctx context.Context, ch adc.Channel) (int, error) {
	return c.adc.Read(ctx, ch)
}

// Version reads the board version, -1 if unrecognised.
func (c *Controller) Version(ctx context.Context) (int, error) {
	return c.adc.BoardVersion(ctx)
}

// State is a snapshot of the robot for the API.
type State struct {
	FrequencyHz float64                `json:"frequencyHz"`
	Servos      map[ServoName]*float64 `json:"servos"`
	Positions   map[PositionID]Pose    `json:"positions"`
}

// State returns the last commanded angles and the stored poses.
func (c *Controller) State() State {
	st := State{
		FrequencyHz: float64(c.chip.Frequency()) / float64(physic.Hertz),
		Servos:      make(map[ServoName]*float64),
		Positions:   make(map[PositionID]Pose),
	}
	for _, n := range ServoNames {
		if deg, ok, _ := c.ServoPosition(n); ok {
			d := deg
			st.Servos[n] = &d
		} else {
			st.Servos[n] = nil
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, p := range c.Configuration.Positions {
		cp := make(Pose, len(p))
		for k, v := range p {
			cp[k] = v
		}
		st.Positions[id] = cp
	}
	return st
}

// Save persists the configuration if a path was given.
func (c *Controller) Save() error {
	if c.configPath == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return SaveConfiguration(c.configPath, c.Configuration)
}

// Center moves every servo to 90 degrees.
func (c *Controller) Center(ctx context.Context) error {
	return c.MoveServo(ctx, All, 90)
}

// Close centres the arm, releases the relay, switches the status LED off and closes the
// GPIO lines.
func (c *Controller) Close(ctx context.Context) error {
	err := c.Center(ctx)
	if c.gpio != nil {
		err = multierr.Append(err, c.gpio.SetRelay(false))
		err = multierr.Append(err, c.gpio.SetStatus(false))
		err = multierr.Append(err, c.gpio.Close())
	}
	return err
}
