/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/Seann-Moser/dojobot/pkg/adc"
	"github.com/Seann-Moser/dojobot/pkg/controller"
	"github.com/Seann-Moser/dojobot/pkg/io"
	"github.com/Seann-Moser/dojobot/pkg/pwm"
)

// storeHold is how long a button is held to store a position instead of recalling it.
const storeHold = 2 * time.Second

var runFlags struct {
	interval time.Duration
}

// joystick axes and the servo each one drives
var joystickAxes = []struct {
	channel adc.Channel
	servo   controller.ServoName
}{
	{adc.LeftJoyX, controller.Rotate},
	{adc.LeftJoyY, controller.Left},
	{adc.RightJoyY, controller.Right},
	{adc.RightJoyX, controller.Jaw1},
}

var positionButtons = map[io.ButtonID]controller.PositionID{
	io.ButtonA: controller.PositionA,
	io.ButtonB: controller.PositionB,
	io.ButtonC: controller.PositionC,
}

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Drive the arm from the joysticks and buttons",
	Long: `Drive the arm by hand until interrupted. The joysticks step the rotate, left, right
and jaw servos; pressing button A, B or C moves to the stored position of the same name
and holding it for two seconds stores the current pose there instead. The knob sets the
brightness of LED 1.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if runFlags.interval <= 0 {
			return errors.Errorf("--interval must be positive, got %s", runFlags.interval)
		}
		ctx := cmd.Context()
		s, err := openSession(ctx, sessionMode{gpio: true, reset: true})
		if err != nil {
			return err
		}
		if s.gpio == nil {
			return multierr.Append(errors.New("run needs --gpio-chip"), s.close())
		}
		if err := s.ctrl.SetStatus(true); err != nil {
			return multierr.Append(err, s.shutdown(context.Background()))
		}
		err = runLoop(ctx, s)
		logger.Infow("dojobot command finished")
		return multierr.Append(err, s.shutdown(context.Background()))
	},
}

func runLoop(ctx context.Context, s *session) error {
	events := make(chan io.ButtonEvent, 8)
	for id := range positionButtons {
		b, err := s.gpio.WatchButton(id)
		if err != nil {
			return err
		}
		go func(b *io.Button) {
			for {
				select {
				case <-ctx.Done():
					return
				case e := <-b.Event:
					select {
					case events <- e:
					case <-ctx.Done():
						return
					}
				}
			}
		}(b)
	}

	if err := s.ctrl.Center(ctx); err != nil {
		return err
	}
	ticker := time.NewTicker(runFlags.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-events:
			if err := handleButton(ctx, s.ctrl, e); err != nil {
				logger.Warnw("button", "button", e.Button, "error", err)
			}
		case <-ticker.C:
			if err := stepJoysticks(ctx, s); err != nil {
				return err
			}
		}
	}
}

func handleButton(ctx context.Context, c *controller.Controller, e io.ButtonEvent) error {
	id := positionButtons[e.Button]
	if e.Duration >= storeHold {
		logger.Infow("storing position", "position", id)
		if err := c.StorePosition(id); err != nil {
			return err
		}
		return c.SetLED(ctx, 1, pwm.ColorFromRGB(pwm.ColorGreen))
	}
	logger.Infow("moving to position", "position", id)
	return c.GoPosition(ctx, id)
}

func stepJoysticks(ctx context.Context, s *session) error {
	for _, axis := range joystickAxes {
		raw, err := s.adc.Raw(ctx, axis.channel)
		if err != nil {
			return err
		}
		if step := adc.JoystickStep(raw); step != 0 {
			if err := s.ctrl.MoveServoBy(ctx, axis.servo, float64(step)); err != nil {
				return err
			}
		}
	}
	knob, err := s.ctrl.Input(ctx, adc.Knob)
	if err != nil {
		return err
	}
	level := knob * 255 / 100
	return s.ctrl.SetLED(ctx, 1, pwm.Color{Red: pwm.Keep, Green: pwm.Keep, Blue: pwm.Classify(level)})
}

func init() {
	runCmd.Flags().DurationVar(&runFlags.interval, "interval", 50*time.Millisecond, "joystick polling interval")
	rootCmd.AddCommand(runCmd)
}
