package controller

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap/zaptest"
	"go.viam.com/test"
	"periph.io/x/conn/v3/physic"

	"github.com/Seann-Moser/dojobot/pkg/adc"
	"github.com/Seann-Moser/dojobot/pkg/bus"
	"github.com/Seann-Moser/dojobot/pkg/io"
	"github.com/Seann-Moser/dojobot/pkg/pwm"
)

type fakeGPIO struct {
	relay   []bool
	status  []bool
	pressed map[io.ButtonID]bool
	closed  bool
}

func (f *fakeGPIO) SetRelay(on bool) error {
	f.relay = append(f.relay, on)
	return nil
}

func (f *fakeGPIO) SetStatus(on bool) error {
	f.status = append(f.status, on)
	return nil
}

func (f *fakeGPIO) Pressed(id io.ButtonID) (bool, error) {
	return f.pressed[id], nil
}

func (f *fakeGPIO) Close() error {
	f.closed = true
	return nil
}

type fixture struct {
	ctrl *Controller
	mock *bus.Mock
	chip *pwm.Chip
	gpio *fakeGPIO
	path string
}

func newFixture(t *testing.T, cfg Configuration) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := zaptest.NewLogger(t).Sugar()
	m := bus.NewMock()
	reg := pwm.NewRegistry(m, pwm.WithSleep(func(time.Duration) {}), pwm.WithLogger(logger))
	chip, err := reg.GetOrCreate(ctx, pwm.DefaultAddress)
	test.That(t, err, test.ShouldBeNil)
	g := &fakeGPIO{pressed: map[io.ButtonID]bool{io.ButtonB: true}}
	path := filepath.Join(t.TempDir(), DefaultConfigFile)
	c, err := New(ctx, chip, adc.NewReader(m, logger), g, cfg, path, logger)
	test.That(t, err, test.ShouldBeNil)
	m.Reset()
	return &fixture{ctrl: c, mock: m, chip: chip, gpio: g, path: path}
}

func offTicks(m *bus.Mock, ch int) int {
	base := pwm.ChannelBase(ch)
	return int(m.Register(pwm.DefaultAddress, base+2)) | int(m.Register(pwm.DefaultAddress, base+3))<<8
}

func TestNewAppliesConfiguration(t *testing.T) {
	cfg := DefaultConfiguration()
	cfg.FrequencyHz = 100
	cfg.Servos[Left] = ServoSetting{MinPulseUs: 1000, MaxPulseUs: 2000, MinAngle: 20, MaxAngle: 160}
	f := newFixture(t, cfg)

	test.That(t, f.chip.Frequency(), test.ShouldEqual, 100*physic.Hertz)
	s, err := f.chip.Servo(servoSlots[Left])
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.Min, test.ShouldEqual, time.Millisecond)
	test.That(t, s.Mid, test.ShouldEqual, 1500*time.Microsecond)
	test.That(t, s.MinAngle, test.ShouldEqual, 20.0)

	m := f.chip.LedMapper()
	test.That(t, m.Invert, test.ShouldBeTrue)
	test.That(t, m.Brightness, test.ShouldEqual, 0.5)
}

func TestNewRejectsBadCalibration(t *testing.T) {
	cfg := DefaultConfiguration()
	cfg.Servos[Jaw1] = ServoSetting{MinPulseUs: 2000, MaxPulseUs: 1000, MaxAngle: 180}
	m := bus.NewMock()
	reg := pwm.NewRegistry(m, pwm.WithSleep(func(time.Duration) {}))
	chip, err := reg.GetOrCreate(context.Background(), pwm.DefaultAddress)
	test.That(t, err, test.ShouldBeNil)
	_, err = New(context.Background(), chip, adc.NewReader(m, nil), nil, cfg, "", nil)
	test.That(t, errors.Is(err, pwm.ErrBadCalibration), test.ShouldBeTrue)
}

func TestMoveServo(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfiguration()
	cfg.Servos[Rotate] = ServoSetting{MinPulseUs: 500, MaxPulseUs: 2500, MinAngle: 45, MaxAngle: 135}
	f := newFixture(t, cfg)

	test.That(t, f.ctrl.MoveServo(ctx, Rotate, 10), test.ShouldBeNil)
	deg, ok, err := f.ctrl.ServoPosition(Rotate)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, deg, test.ShouldEqual, 45.0)

	// all ignores the angle limits
	test.That(t, f.ctrl.MoveServo(ctx, All, 10), test.ShouldBeNil)
	for _, n := range ServoNames {
		deg, _, _ := f.ctrl.ServoPosition(n)
		test.That(t, deg, test.ShouldEqual, 10.0)
	}
	test.That(t, offTicks(f.mock, servoSlots[Rotate]), test.ShouldEqual, 125)

	err = f.ctrl.MoveServo(ctx, ServoName("elbow"), 90)
	test.That(t, errors.Is(err, ErrUnknownServo), test.ShouldBeTrue)
}

func TestMoveServoBy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, DefaultConfiguration())

	test.That(t, f.ctrl.MoveServoBy(ctx, Jaw2, -50), test.ShouldBeNil)
	deg, _, _ := f.ctrl.ServoPosition(Jaw2)
	test.That(t, deg, test.ShouldEqual, 70.0)

	test.That(t, f.ctrl.MoveServoBy(ctx, All, 5), test.ShouldBeNil)
	deg, _, _ = f.ctrl.ServoPosition(Jaw2)
	test.That(t, deg, test.ShouldEqual, 75.0)
	deg, _, _ = f.ctrl.ServoPosition(Left)
	test.That(t, deg, test.ShouldEqual, 95.0)
}

func TestSetSpeed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, DefaultConfiguration())
	test.That(t, f.ctrl.SetSpeed(ctx, Right, 0), test.ShouldBeNil)
	s, _ := f.chip.Servo(servoSlots[Right])
	test.That(t, offTicks(f.mock, servoSlots[Right]), test.ShouldEqual, s.SpeedToTicks(pwm.DefaultFrequency, 0))
	_, ok, _ := f.ctrl.ServoPosition(Right)
	test.That(t, ok, test.ShouldBeFalse)
}

func TestPositions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, DefaultConfiguration())

	test.That(t, f.ctrl.MoveServo(ctx, Left, 30), test.ShouldBeNil)
	test.That(t, f.ctrl.MoveServo(ctx, Right, 150), test.ShouldBeNil)
	test.That(t, f.ctrl.MoveServo(ctx, Jaw1, 20), test.ShouldBeNil)
	test.That(t, f.ctrl.StorePosition(PositionB), test.ShouldBeNil)

	pose := f.ctrl.State().Positions[PositionB]
	test.That(t, pose[Left], test.ShouldEqual, 30.0)
	test.That(t, pose[Rotate], test.ShouldEqual, 90.0)
	test.That(t, pose[Jaw1], test.ShouldEqual, 20.0)

	test.That(t, f.ctrl.MoveServo(ctx, All, 90), test.ShouldBeNil)
	test.That(t, f.ctrl.GoPosition(ctx, PositionB), test.ShouldBeNil)
	deg, _, _ := f.ctrl.ServoPosition(Left)
	test.That(t, deg, test.ShouldEqual, 30.0)
	deg, _, _ = f.ctrl.ServoPosition(Right)
	test.That(t, deg, test.ShouldEqual, 150.0)
	// the jaws stay where they are
	deg, _, _ = f.ctrl.ServoPosition(Jaw1)
	test.That(t, deg, test.ShouldEqual, 90.0)

	err := f.ctrl.GoPosition(ctx, PositionID("D"))
	test.That(t, errors.Is(err, ErrUnknownPosition), test.ShouldBeTrue)

	// stored positions survive a restart
	loaded, err := LoadConfiguration(f.path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, loaded.Positions[PositionB], test.ShouldResemble, pose)
}

func TestLimitsArePersisted(t *testing.T) {
	f := newFixture(t, DefaultConfiguration())
	test.That(t, f.ctrl.SetAngleLimits(Left, 10, 200), test.ShouldBeNil)
	test.That(t, f.ctrl.SetPulseLimits(Left, 600, 2400, 0), test.ShouldBeNil)

	loaded, err := LoadConfiguration(f.path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, loaded.Servos[Left], test.ShouldResemble, ServoSetting{
		MinPulseUs: 600, MaxPulseUs: 2400, MinAngle: 10, MaxAngle: 180,
	})

	err = f.ctrl.SetPulseLimits(Left, 2400, 600, 0)
	test.That(t, errors.Is(err, pwm.ErrBadCalibration), test.ShouldBeTrue)
	test.That(t, f.ctrl.Configuration.Servos[Left].MinPulseUs, test.ShouldEqual, 600)
}

func TestLedRelayAndButtons(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, DefaultConfiguration())

	test.That(t, f.ctrl.SetLED(ctx, 3, pwm.ColorFromRGB(pwm.ColorBlack)), test.ShouldBeNil)
	// sinking LEDs: black drives every channel fully on
	test.That(t, f.mock.Register(pwm.DefaultAddress, pwm.ChannelBase(14)+1), test.ShouldEqual, byte(0x10))
	test.That(t, f.ctrl.SetLED(ctx, 0, pwm.ColorFromRGB(pwm.ColorRed)), test.ShouldNotBeNil)

	test.That(t, f.ctrl.SetRelay(true), test.ShouldBeNil)
	test.That(t, f.gpio.relay, test.ShouldResemble, []bool{true})
	test.That(t, f.ctrl.SetStatus(true), test.ShouldBeNil)

	pressed, err := f.ctrl.Button(io.ButtonB)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pressed, test.ShouldBeTrue)

	test.That(t, f.ctrl.Close(ctx), test.ShouldBeNil)
	test.That(t, f.gpio.relay, test.ShouldResemble, []bool{true, false})
	test.That(t, f.gpio.status, test.ShouldResemble, []bool{true, false})
	test.That(t, f.gpio.closed, test.ShouldBeTrue)
	deg, _, _ := f.ctrl.ServoPosition(Jaw2)
	test.That(t, deg, test.ShouldEqual, 90.0)
}

func TestWithoutGPIO(t *testing.T) {
	m := bus.NewMock()
	reg := pwm.NewRegistry(m, pwm.WithSleep(func(time.Duration) {}))
	chip, err := reg.GetOrCreate(context.Background(), pwm.DefaultAddress)
	test.That(t, err, test.ShouldBeNil)
	c, err := New(context.Background(), chip, adc.NewReader(m, nil), nil, DefaultConfiguration(), "", nil)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, errors.Is(c.SetRelay(true), ErrNoGPIO), test.ShouldBeTrue)
	test.That(t, errors.Is(c.SetStatus(true), ErrNoGPIO), test.ShouldBeTrue)
	_, err = c.Button(io.ButtonA)
	test.That(t, errors.Is(err, ErrNoGPIO), test.ShouldBeTrue)
	test.That(t, c.StorePosition(PositionA), test.ShouldBeNil)
	test.That(t, c.Close(context.Background()), test.ShouldBeNil)
}

func TestInputs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, DefaultConfiguration())
	f.mock.SetWord(adc.DefaultAddress, 0x9C, 4000)
	f.mock.SetWord(adc.DefaultAddress, 0xFC, 1000)

	v, err := f.ctrl.Input(ctx, adc.Slider)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldEqual, 100)

	v, err = f.ctrl.Version(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldEqual, 1)
}

func TestParseNames(t *testing.T) {
	n, err := ParseServo("Rotate")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n, test.ShouldEqual, Rotate)
	n, err = ParseServo("ALL")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n, test.ShouldEqual, All)
	_, err = ParseServo("wrist")
	test.That(t, errors.Is(err, ErrUnknownServo), test.ShouldBeTrue)

	id, err := ParsePosition("c")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, id, test.ShouldEqual, PositionC)
	_, err = ParsePosition("z")
	test.That(t, errors.Is(err, ErrUnknownPosition), test.ShouldBeTrue)
}

func TestConfigurationFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "missing.json")
	c, err := LoadConfiguration(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, c, test.ShouldResemble, DefaultConfiguration())

	c.Leds.Brightness = 0.8
	c.Pins.Relay = 17
	test.That(t, SaveConfiguration(path, c), test.ShouldBeNil)
	loaded, err := LoadConfiguration(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, loaded, test.ShouldResemble, c)

	// a partial file keeps the defaults for everything it leaves out
	partial := filepath.Join(dir, "partial.json")
	test.That(t, os.WriteFile(partial, []byte(`{"frequencyHz": 60}`), 0o644), test.ShouldBeNil)
	loaded, err = LoadConfiguration(partial)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, loaded.FrequencyHz, test.ShouldEqual, 60)
	test.That(t, loaded.Servos, test.ShouldResemble, DefaultConfiguration().Servos)

	bad := filepath.Join(dir, "bad.json")
	test.That(t, os.WriteFile(bad, []byte(`{`), 0o644), test.ShouldBeNil)
	_, err = LoadConfiguration(bad)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestPartialServoEntryKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "robot.json")
	data := `{"servos": {"left": {"minPulseUs": 600, "maxPulseUs": 2400}, "jaw2": {"maxAngle": 120}}}`
	test.That(t, os.WriteFile(path, []byte(data), 0o644), test.ShouldBeNil)

	c, err := LoadConfiguration(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, c.Servos[Left], test.ShouldResemble, ServoSetting{
		MinPulseUs: 600, MaxPulseUs: 2400, MinAngle: 0, MaxAngle: 180,
	})
	test.That(t, c.Servos[Jaw2], test.ShouldResemble, ServoSetting{
		MinPulseUs: 650, MaxPulseUs: 2350, MinAngle: 0, MaxAngle: 120,
	})
	test.That(t, c.Servos[Right], test.ShouldResemble, DefaultConfiguration().Servos[Right])

	f := newFixture(t, c)
	s, err := f.chip.Servo(servoSlots[Left])
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.MaxAngle, test.ShouldEqual, 180.0)

	test.That(t, os.WriteFile(path, []byte(`{"servos": {"left": {"minPulseUs": "x"}}}`), 0o644), test.ShouldBeNil)
	_, err = LoadConfiguration(path)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestServoChannelFromConfiguration(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfiguration()
	ch := 7
	left := cfg.Servos[Left]
	left.Channel = &ch
	cfg.Servos[Left] = left
	f := newFixture(t, cfg)

	test.That(t, f.ctrl.MoveServo(ctx, Left, 180), test.ShouldBeNil)
	test.That(t, offTicks(f.mock, 7), test.ShouldBeGreaterThan, 0)
	test.That(t, f.mock.Writes(pwm.DefaultAddress), test.ShouldHaveLength, 4)
	test.That(t, f.mock.Writes(pwm.DefaultAddress)[0].Reg, test.ShouldEqual, pwm.ChannelBase(7))

	bad := 16
	left.Channel = &bad
	cfg.Servos[Left] = left
	m := bus.NewMock()
	reg := pwm.NewRegistry(m, pwm.WithSleep(func(time.Duration) {}))
	_, err := New(ctx, reg.Attach(pwm.DefaultAddress), adc.NewReader(m, nil), nil, cfg, "", nil)
	test.That(t, errors.Is(err, pwm.ErrUnknownChannel), test.ShouldBeTrue)
}
