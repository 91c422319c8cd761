package cmd

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"periph.io/x/conn/v3/physic"

	"github.com/Seann-Moser/dojobot/pkg/adc"
	"github.com/Seann-Moser/dojobot/pkg/bus"
	"github.com/Seann-Moser/dojobot/pkg/pwm"
)

var readFlags struct {
	raw   bool
	watch time.Duration
}

var allChannels = []adc.Channel{
	adc.LeftJoyX, adc.LeftJoyY, adc.Slider, adc.Expansion,
	adc.RightJoyX, adc.RightJoyY, adc.Knob, adc.Version,
}

var readCmd = &cobra.Command{
	Use:   "read CHANNEL|all",
	Short: "Read an analog input",
	Long: `Read a decoded analog input: leftx, lefty, rightx, righty (-100 to 100), slider and
knob (0 to 100), expansion (raw) or version (board version, -1 if unrecognised).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		channels := allChannels
		if args[0] != "all" {
			ch, ok := adc.ParseChannel(args[0])
			if !ok {
				return errors.Wrap(adc.ErrUnknownChannel, args[0])
			}
			channels = []adc.Channel{ch}
		}
		ctx := cmd.Context()
		t, closer, err := openBus(flags.backend, flags.bus)
		if err != nil {
			return err
		}
		r := adc.NewReader(t, logger)
		r.Addr = flags.adcAddress
		err = readChannels(ctx, cmd, r, channels)
		if readFlags.watch > 0 {
			ticker := time.NewTicker(readFlags.watch)
			defer ticker.Stop()
			for err == nil {
				select {
				case <-ctx.Done():
					return closer.Close()
				case <-ticker.C:
					err = readChannels(ctx, cmd, r, channels)
				}
			}
		}
		return multierr.Append(err, closer.Close())
	},
}

func readChannels(ctx context.Context, cmd *cobra.Command, r *adc.Reader, channels []adc.Channel) error {
	for _, ch := range channels {
		var (
			v   int
			err error
		)
		if readFlags.raw {
			v, err = r.Raw(ctx, ch)
		} else {
			v, err = r.Read(ctx, ch)
		}
		if err != nil {
			return err
		}
		printf(cmd, "%-9s %d\n", ch, v)
	}
	return nil
}

var rawCmd = &cobra.Command{
	Use:   "raw CHANNEL ON OFF",
	Short: "Write a channel through periph's own PCA9685 driver",
	Long: `Program one channel with raw on and off ticks through periph.io's PCA9685 driver,
bypassing the servo calibration. Useful to tell a wiring fault from a calibration one.
Only the periph backend is supported.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ch, err := strconv.Atoi(args[0])
		if err != nil {
			return errors.Wrap(err, "channel")
		}
		if ch < 0 || ch >= pwm.ChannelCount {
			return errors.Wrapf(pwm.ErrUnknownChannel, "channel %d", ch)
		}
		on, off, err := parseTicks(args[1], args[2])
		if err != nil {
			return err
		}
		if flags.backend != bus.BackendPeriph {
			return errors.Errorf("raw needs the %s backend", bus.BackendPeriph)
		}
		p, err := bus.OpenPeriph(flags.bus)
		if err != nil {
			return err
		}
		freq := pwm.DefaultFrequency
		if flags.freq != 0 {
			freq = pwm.ClampFrequency(physic.Frequency(flags.freq) * physic.Hertz)
		}
		logger.Debugw("raw pwm", "addr", flags.address, "freq", freq, "channel", ch, "on", on, "off", off)
		err = bus.SetRawPWM(p.Bus(), flags.address, freq, ch, on, off)
		return multierr.Append(err, p.Close())
	},
}

func init() {
	readCmd.Flags().BoolVar(&readFlags.raw, "raw", false, "print the raw 12 bit sample")
	readCmd.Flags().DurationVarP(&readFlags.watch, "watch", "w", 0, "repeat at this interval until interrupted")
	rootCmd.AddCommand(readCmd, rawCmd)
}
