package cmd

import (
	"context"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Seann-Moser/dojobot/pkg/pwm"
)

var ledCmd = &cobra.Command{
	Use:   "led ID COLOR | led ID RED GREEN BLUE",
	Short: "Set one of the three RGB LEDs",
	Long: `Set LED 1, 2 or 3 either to a colour name (red, green, blue, yellow, orange, purple,
white, black, brown, pink, cyan, beige), a hex value such as #ff8000, or three levels of
0-255 where -1 leaves that component unchanged.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 2 && len(args) != 4 {
			return errors.New("expected ID COLOR or ID RED GREEN BLUE")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return errors.Wrap(err, "led id")
		}
		col, err := parseColorArgs(args[1:])
		if err != nil {
			return err
		}
		return withSession(cmd, func(ctx context.Context, s *session) error {
			return s.ctrl.SetLED(ctx, id, col)
		})
	},
}

func parseColorArgs(args []string) (pwm.Color, error) {
	if len(args) == 1 {
		return pwm.ParseColor(args[0])
	}
	var v [3]int
	for i, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil {
			return pwm.Color{}, errors.Wrapf(err, "level %q", a)
		}
		v[i] = n
	}
	return pwm.RGB(v[0], v[1], v[2]), nil
}

var dutyFlags struct {
	ticks bool
}

var dutyCmd = &cobra.Command{
	Use:   "duty CHANNEL PERCENT | duty --ticks CHANNEL ON OFF",
	Short: "Drive a PWM channel at a duty cycle",
	Args: func(cmd *cobra.Command, args []string) error {
		if dutyFlags.ticks {
			return cobra.ExactArgs(3)(cmd, args)
		}
		return cobra.ExactArgs(2)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ch, err := strconv.Atoi(args[0])
		if err != nil {
			return errors.Wrap(err, "channel")
		}
		if dutyFlags.ticks {
			on, off, err := parseTicks(args[1], args[2])
			if err != nil {
				return err
			}
			return withSession(cmd, func(ctx context.Context, s *session) error {
				return s.chip.SetPulseRange(ctx, ch, on, off)
			})
		}
		pct, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return errors.Wrap(err, "percent")
		}
		return withSession(cmd, func(ctx context.Context, s *session) error {
			return s.chip.SetDutyCycle(ctx, ch, pct)
		})
	},
}

func parseTicks(onArg, offArg string) (int, int, error) {
	on, err := strconv.Atoi(onArg)
	if err != nil {
		return 0, 0, errors.Wrap(err, "on ticks")
	}
	off, err := strconv.Atoi(offArg)
	if err != nil {
		return 0, 0, errors.Wrap(err, "off ticks")
	}
	return on, off, nil
}

func init() {
	ledCmd.Flags().SetInterspersed(false)
	dutyCmd.Flags().BoolVar(&dutyFlags.ticks, "ticks", false, "take raw on and off tick counts (0-4095)")
	rootCmd.AddCommand(ledCmd, dutyCmd)
}
