package main

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-egm/internal/log"
	"github.com/teslashibe/go-egm/pkg/sim"
	"github.com/teslashibe/go-egm/pkg/transport"
)

// newSimCmd creates the "egmctl sim" subcommand.
func newSimCmd(opts *rootOptions) *cobra.Command {
	var listen, sensor string
	cmd := &cobra.Command{
		Use:   "sim",
		Short: "Run a simulated EGM robot",
		Long:  "Binds a UDP port as the robot side of an EGM session, streams\nfeedback to the sensor address and follows the corrections it receives.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := opts.load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("listen") {
				f.Sim.Listen = listen
			}
			if cmd.Flags().Changed("sensor") {
				f.Sim.Sensor = sensor
			}

			var sensorAddr net.Addr
			if f.Sim.Sensor != "" {
				sensorAddr, err = net.ResolveUDPAddr("udp", f.Sim.Sensor)
				if err != nil {
					return fmt.Errorf("resolve sensor %q: %w", f.Sim.Sensor, err)
				}
			}

			tr, err := transport.ListenUDP(f.Sim.Listen, f.Engine.ReadBufferSize)
			if err != nil {
				return err
			}
			defer tr.Close()

			simRobot, err := sim.New(tr, sensorAddr, f.Simulator(), log.L())
			if err != nil {
				return err
			}
			log.Info("simulator running", "listen", tr.LocalAddr(), "sensor", f.Sim.Sensor, "rate", f.Sim.Rate)
			return runSim(cmd.Context(), simRobot)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "UDP address to bind (default: sim.listen)")
	cmd.Flags().StringVar(&sensor, "sensor", "", "sensor address for feedback, empty to learn it (default: sim.sensor)")
	return cmd
}

// runSim runs the simulator and logs its counters every few seconds.
func runSim(ctx context.Context, r *sim.Robot) error {
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case err := <-done:
			log.Info("simulator stopped", "stats", r.Stats())
			return err
		case <-ticker.C:
			st := r.Stats()
			log.Debug("simulator", "commands", st.Commands, "rejected", st.Rejected, "sent", st.Sent, "pose", r.Pose())
		}
	}
}
