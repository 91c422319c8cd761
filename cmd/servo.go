package cmd

import (
	"context"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Seann-Moser/dojobot/pkg/controller"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Reset the PWM controller at the configured frequency",
	Long: `Reset the PWM controller: every output is switched off and the prescaler is programmed
for the configured frequency. The other one-shot commands expect this to have been run
once after power-up, and leave the outputs they do not set as they are.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSessionMode(cmd, sessionMode{reset: true}, func(ctx context.Context, s *session) error {
			printf(cmd, "chip 0x%02x: %s prescale %d\n", s.chip.Address, s.chip.Frequency(), s.chip.Prescale())
			return nil
		})
	},
}

var servoFlags struct {
	relative bool
}

var servoCmd = &cobra.Command{
	Use:   "servo NAME|SLOT DEGREES",
	Short: "Move a servo to an angle",
	Long: `Move a named servo (left, right, rotate, jaw1, jaw2, all) or a raw slot (0-15) to an
angle between 0 and 180 degrees. Named servos honour their angle limits except "all".
With --relative the angle is a step of at most 20 degrees from the last position.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		deg, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return errors.Wrap(err, "degrees")
		}
		return withSession(cmd, func(ctx context.Context, s *session) error {
			if slot, err := strconv.Atoi(args[0]); err == nil {
				if servoFlags.relative {
					return s.chip.MoveServoBy(ctx, slot, deg)
				}
				return s.chip.SetServoPosition(ctx, slot, deg, true)
			}
			name, err := controller.ParseServo(args[0])
			if err != nil {
				return err
			}
			if servoFlags.relative {
				return s.ctrl.MoveServoBy(ctx, name, deg)
			}
			return s.ctrl.MoveServo(ctx, name, deg)
		})
	},
}

var speedCmd = &cobra.Command{
	Use:   "speed NAME|SLOT PERCENT",
	Short: "Run a continuous rotation servo at -100 to 100 percent",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		speed, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return errors.Wrap(err, "speed")
		}
		return withSession(cmd, func(ctx context.Context, s *session) error {
			if slot, err := strconv.Atoi(args[0]); err == nil {
				return s.chip.SetServoSpeed(ctx, slot, speed)
			}
			name, err := controller.ParseServo(args[0])
			if err != nil {
				return err
			}
			return s.ctrl.SetSpeed(ctx, name, speed)
		})
	},
}

var limitsFlags struct {
	minUs, midUs, maxUs int
	minAngle, maxAngle  float64
}

var limitsCmd = &cobra.Command{
	Use:   "limits NAME",
	Short: "Calibrate a servo's pulse widths and angle limits",
	Long: `Set the pulse widths (microseconds) and the angle limits of a named servo. Only the
flags given are changed; the result is saved to the configuration file.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, err := controller.ParseServo(args[0])
		if err != nil {
			return err
		}
		if name == controller.All {
			return errors.New("limits need a single servo")
		}
		return withSession(cmd, func(ctx context.Context, s *session) error {
			setting := s.ctrl.Configuration.Servos[name]
			f := cmd.Flags()
			if f.Changed("min-us") || f.Changed("max-us") || f.Changed("mid-us") {
				minUs, maxUs, midUs := setting.MinPulseUs, setting.MaxPulseUs, setting.MidPulseUs
				if f.Changed("min-us") {
					minUs = limitsFlags.minUs
				}
				if f.Changed("max-us") {
					maxUs = limitsFlags.maxUs
				}
				if f.Changed("mid-us") {
					midUs = limitsFlags.midUs
				}
				if err := s.ctrl.SetPulseLimits(name, minUs, maxUs, midUs); err != nil {
					return err
				}
			}
			if f.Changed("min-angle") || f.Changed("max-angle") {
				lo, hi := setting.MinAngle, setting.MaxAngle
				if f.Changed("min-angle") {
					lo = limitsFlags.minAngle
				}
				if f.Changed("max-angle") {
					hi = limitsFlags.maxAngle
				}
				if err := s.ctrl.SetAngleLimits(name, lo, hi); err != nil {
					return err
				}
			}
			setting = s.ctrl.Configuration.Servos[name]
			printf(cmd, "%s: %d-%dus mid %d, %.0f-%.0f degrees\n", name,
				setting.MinPulseUs, setting.MaxPulseUs, setting.MidPulseUs, setting.MinAngle, setting.MaxAngle)
			return nil
		})
	},
}

// switchCommand builds an on|off command for a GPIO output. "on" holds the output until
// interrupted, since closing the lines drives it low again.
func switchCommand(use, short string, set func(c *controller.Controller, on bool) error) *cobra.Command {
	return &cobra.Command{
		Use:       use + " on|off",
		Short:     short,
		Long:      short + `. "on" holds until interrupted.`,
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, sessionMode{gpio: true})
			if err != nil {
				return err
			}
			defer s.close()
			on := args[0] == "on"
			if err := set(s.ctrl, on); err != nil || !on {
				return err
			}
			printf(cmd, "%s on, interrupt to release\n", use)
			<-ctx.Done()
			return nil
		},
	}
}

var (
	relayCmd  = switchCommand("relay", "Switch the electromagnet relay", (*controller.Controller).SetRelay)
	statusCmd = switchCommand("status", "Switch the status LED", (*controller.Controller).SetStatus)
)

func init() {
	// negative degrees and speeds are arguments, not flags
	servoCmd.Flags().SetInterspersed(false)
	speedCmd.Flags().SetInterspersed(false)
	servoCmd.Flags().BoolVarP(&servoFlags.relative, "relative", "r", false, "move by DEGREES (clamped to +-20) instead of to it")

	lf := limitsCmd.Flags()
	lf.IntVar(&limitsFlags.minUs, "min-us", 0, "pulse width at 0 degrees")
	lf.IntVar(&limitsFlags.maxUs, "max-us", 0, "pulse width at 180 degrees")
	lf.IntVar(&limitsFlags.midUs, "mid-us", 0, "pulse width at rest for continuous servos, 0 for the midpoint")
	lf.Float64Var(&limitsFlags.minAngle, "min-angle", 0, "lowest angle allowed, 0-90")
	lf.Float64Var(&limitsFlags.maxAngle, "max-angle", 180, "highest angle allowed, 90-180")

	rootCmd.AddCommand(initCmd, servoCmd, speedCmd, limitsCmd, relayCmd, statusCmd)
}
