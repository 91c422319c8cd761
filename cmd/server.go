package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

var serveFlags struct {
	listen string
}

var serverCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: `Serve the robot over HTTP until interrupted:

  GET  /api/state               last servo angles and stored positions
  POST /api/servos/{name}       {"angle": 90} | {"delta": -10} | {"speed": 50}
  POST /api/leds/{id}           {"color": "red"} | {"red": 255, "green": -1, "blue": 0}
  GET  /api/inputs/{channel}    decoded analog input
  POST /api/positions/{id}      {"action": "store"} | {"action": "go"}
  POST /api/relay               {"on": true}
  POST /api/status              {"on": true}

The status LED is lit while serving and the arm is centred on shutdown.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx, sessionMode{gpio: true, reset: true})
		if err != nil {
			return err
		}
		if s.gpio != nil {
			if err := s.ctrl.SetStatus(true); err != nil {
				logger.Warnw("status led", "error", err)
			}
		}
		err = s.ctrl.StartServer(ctx, serveFlags.listen)
		logger.Infow("server stopped")
		return multierr.Append(err, s.shutdown(context.Background()))
	},
}

func init() {
	serverCmd.Flags().StringVar(&serveFlags.listen, "listen", "0.0.0.0:8080", "HTTP listen address")
	rootCmd.AddCommand(serverCmd)
}
