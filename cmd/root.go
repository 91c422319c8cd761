package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/physic"

	"github.com/Seann-Moser/dojobot/pkg/adc"
	"github.com/Seann-Moser/dojobot/pkg/bus"
	"github.com/Seann-Moser/dojobot/pkg/controller"
	"github.com/Seann-Moser/dojobot/pkg/io"
	"github.com/Seann-Moser/dojobot/pkg/pwm"
)

var flags struct {
	bus        string
	backend    string
	address    uint16
	adcAddress uint16
	freq       int
	config     string
	gpioChip   string
	debug      bool
}

var logger = zap.NewNop().Sugar()

// openBus opens the I2C transport named by the flags.
var openBus = bus.Open

var rootCmd = &cobra.Command{
	Use:   "dojobot",
	Short: "Drive the dojo robot arm: servos, RGB LEDs, analog inputs and relay",
	Long: `dojobot talks to the arm's PCA9685 PWM controller and ADS7828 analog converter
over I2C. Servo calibration, angle limits and stored positions are kept in a JSON
configuration file between runs.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLogger(flags.debug)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		cancel()
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.bus, "bus", "", "I2C bus name for the periph backend (default: first bus)")
	pf.StringVar(&flags.backend, "backend", bus.BackendPeriph, "I2C backend: periph, gobot or mock")
	pf.Uint16Var(&flags.address, "address", pwm.DefaultAddress, "PWM controller address")
	pf.Uint16Var(&flags.adcAddress, "adc-address", adc.DefaultAddress, "analog converter address")
	pf.IntVar(&flags.freq, "freq", 0, "PWM frequency in Hz, 40-1000, programmed by init, run and serve (default from configuration)")
	pf.StringVar(&flags.config, "config", controller.DefaultConfigFile, "configuration file")
	pf.StringVar(&flags.gpioChip, "gpio-chip", "gpiochip0", "GPIO chip for buttons and relay, empty to disable")
	pf.BoolVar(&flags.debug, "debug", false, "log every register write")
}

func newLogger(debug bool) (*zap.SugaredLogger, error) {
	cfg := zap.NewDevelopmentConfig()
	if !debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	l, err := cfg.Build()
	if err != nil {
		return nil, errors.Wrap(err, "logger")
	}
	return l.Sugar(), nil
}

// session is one opened robot: the bus, the reset chip and the controller around them.
type session struct {
	transport bus.Transport
	closer    interface{ Close() error }
	registry  *pwm.Registry
	chip      *pwm.Chip
	adc       *adc.Reader
	gpio      *io.IO
	ctrl      *controller.Controller
}

// sessionMode selects what opening a session does to the hardware.
type sessionMode struct {
	// gpio requests the buttons and relay.
	gpio bool
	// reset runs the chip's reset sequence. Without it the chip is attached as it is, on
	// the assumption that init (or a running serve or run) has programmed it already.
	reset bool
}

func openSession(ctx context.Context, mode sessionMode) (*session, error) {
	t, closer, err := openBus(flags.backend, flags.bus)
	if err != nil {
		return nil, err
	}
	s := &session{transport: t, closer: closer}
	if err := s.init(ctx, mode); err != nil {
		return nil, multierr.Append(err, s.close())
	}
	return s, nil
}

func (s *session) init(ctx context.Context, mode sessionMode) error {
	cfg, err := controller.LoadConfiguration(flags.config)
	if err != nil {
		return err
	}
	if flags.freq != 0 {
		cfg.FrequencyHz = flags.freq
	}
	s.registry = pwm.NewRegistry(s.transport,
		pwm.WithLogger(logger),
		pwm.WithFrequency(physic.Frequency(cfg.FrequencyHz)*physic.Hertz),
	)
	if mode.reset {
		if s.chip, err = s.registry.GetOrCreate(ctx, flags.address); err != nil {
			return err
		}
	} else {
		s.chip = s.registry.Attach(flags.address)
	}
	s.adc = adc.NewReader(s.transport, logger)
	s.adc.Addr = flags.adcAddress

	var gpio controller.GPIO
	if mode.gpio && flags.gpioChip != "" {
		if s.gpio, err = io.New(flags.gpioChip, cfg.Pins, logger); err != nil {
			return err
		}
		gpio = s.gpio
	}
	s.ctrl, err = controller.New(ctx, s.chip, s.adc, gpio, cfg, flags.config, logger)
	return err
}

// close releases the bus and the GPIO lines, leaving the outputs as they are.
func (s *session) close() error {
	var err error
	if s.gpio != nil {
		err = multierr.Append(err, s.gpio.Close())
	}
	return multierr.Append(err, s.closer.Close())
}

// shutdown centres the arm and releases everything.
func (s *session) shutdown(ctx context.Context) error {
	err := s.ctrl.Close(ctx)
	s.gpio = nil
	return multierr.Append(err, s.close())
}

// withSession attaches to the chip without GPIO around fn. The outputs the chip is
// already driving are left as they are.
func withSession(cmd *cobra.Command, fn func(ctx context.Context, s *session) error) error {
	return withSessionMode(cmd, sessionMode{}, fn)
}

func withSessionMode(cmd *cobra.Command, mode sessionMode, fn func(ctx context.Context, s *session) error) error {
	ctx := cmd.Context()
	s, err := openSession(ctx, mode)
	if err != nil {
		return err
	}
	return multierr.Append(fn(ctx, s), s.close())
}

func printf(cmd *cobra.Command, format string, args ...interface{}) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
