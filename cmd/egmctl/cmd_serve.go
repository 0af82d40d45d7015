package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-egm/internal/log"
	"github.com/teslashibe/go-egm/pkg/robot"
	"github.com/teslashibe/go-egm/pkg/web"
)

// newServeCmd creates the "egmctl serve" subcommand.
func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		listen    string
		noConnect bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the EGM engine and the control API",
		Long:  "Opens the EGM UDP session and serves the HTTP control API and the\n/ws/state WebSocket until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := opts.load()
			if err != nil {
				return err
			}
			if listen != "" {
				f.Server.Listen = listen
			}
			logger := log.L()

			engine, err := robot.New(f.Robot(), logger)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), engine, web.NewServer(engine, logger), f.Server.Listen, !noConnect)
		},
	}
	cmd.Flags().StringVarP(&listen, "listen", "l", "", "control API listen address (default: server.listen)")
	cmd.Flags().BoolVar(&noConnect, "no-connect", false, "wait for POST /api/connect instead of connecting at startup")
	return cmd
}

// serve runs the server until ctx is done and closes the session on the way
// out.
func serve(ctx context.Context, engine *robot.Engine, srv *web.Server, listen string, connect bool) error {
	logger := log.With("component", "serve")
	if connect {
		if err := engine.Connect(ctx, "", 0); err != nil {
			return err
		}
		st := engine.Stats()
		logger.Info("egm session open", "session", st.SessionID, "local", st.LocalAddr, "peer", st.Peer)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx, listen) })
	g.Go(func() error {
		<-ctx.Done()
		if err := engine.Disconnect(); err != nil && !errors.Is(err, robot.ErrNotConnected) {
			return err
		}
		logger.Info("egm session closed", "stats", engine.Stats().TrackerStats)
		return nil
	})
	return g.Wait()
}
