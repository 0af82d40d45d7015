package main

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

// newPadCmd creates the "egmctl pad" subcommand.
func newPadCmd(opts *rootOptions) *cobra.Command {
	var poll time.Duration
	cmd := &cobra.Command{
		Use:   "pad",
		Short: "Interactive terminal jog pad",
		Long:  "Jogs the robot from the keyboard through the control API and\nshows live feedback.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			p := tea.NewProgram(newPadModel(c, poll),
				tea.WithContext(cmd.Context()),
				tea.WithInput(cmd.InOrStdin()),
				tea.WithOutput(cmd.OutOrStdout()),
				tea.WithAltScreen(),
			)
			_, err = p.Run()
			return err
		},
	}
	cmd.Flags().DurationVar(&poll, "poll", defaultPollRate, "state refresh interval")
	return cmd
}
