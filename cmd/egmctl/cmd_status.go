package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newStatusCmd creates the "egmctl status" subcommand.
func newStatusCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show session counters and the latest robot state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			stats, err := c.Stats(ctx)
			if err != nil {
				return fmt.Errorf("stats from %s: %w", c.baseURL(), err)
			}
			state, err := c.State(ctx)
			if err != nil {
				return fmt.Errorf("state from %s: %w", c.baseURL(), err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, map[string]any{"stats": stats, "state": state})
			}
			printStats(out, stats)
			fmt.Fprintln(out)
			printState(out, state)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON")
	return cmd
}

// newConnectCmd creates the "egmctl connect" subcommand.
func newConnectCmd(opts *rootOptions) *cobra.Command {
	var address string
	var port int
	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Open the EGM session on a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			st, err := c.Connect(cmd.Context(), address, port)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "connected session=%s local=%s\n", st.SessionID, st.LocalAddr)
			return nil
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "robot address (default: server config)")
	cmd.Flags().IntVar(&port, "port", 0, "robot EGM port (default: server config)")
	return cmd
}

// newDisconnectCmd creates the "egmctl disconnect" subcommand.
func newDisconnectCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect",
		Short: "Close the EGM session on a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			if err := c.Disconnect(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "disconnected")
			return nil
		},
	}
}
