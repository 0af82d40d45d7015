package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-egm/pkg/egm"
	"github.com/teslashibe/go-egm/pkg/protocol"
)

// newJogCmd creates the "egmctl jog" subcommand.
func newJogCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jog <axis> <delta>",
		Short: "Offset one Cartesian axis from the latest feedback",
		Long:  "Sends the latest feedback pose with delta added to one axis.\nAxes: x, y, z (mm), rx, ry, rz (degrees).",
		Example: "  egmctl jog z 10\n" +
			"  egmctl jog rx -- -5\n" +
			"  egmctl jog joint 3 2.5",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			axis, err := egm.ParseAxis(args[0])
			if err != nil {
				return err
			}
			delta, err := parseFloat("delta", args[1])
			if err != nil {
				return err
			}
			c, err := opts.client()
			if err != nil {
				return err
			}
			ack, err := c.Jog(cmd.Context(), axis, delta)
			return reportAck(cmd, ack, err)
		},
	}
	cmd.AddCommand(newJogJointCmd(opts))
	return cmd
}

func newJogJointCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "joint <index> <delta>",
		Short: "Offset one joint from the latest feedback (index 1-based)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 1 {
				return fmt.Errorf("joint index must be a positive integer, got %q", args[0])
			}
			delta, err := parseFloat("delta", args[1])
			if err != nil {
				return err
			}
			c, err := opts.client()
			if err != nil {
				return err
			}
			ack, err := c.JogJoint(cmd.Context(), n-1, delta)
			return reportAck(cmd, ack, err)
		},
	}
}

// newMoveCmd creates the "egmctl move" subcommand.
func newMoveCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "move",
		Short: "Send an absolute pose or joint target",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "pose <x> <y> <z> <rx> <ry> <rz>",
			Short: "Send a Cartesian target (mm, degrees)",
			Args:  cobra.ExactArgs(6),
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := parseFloats(args)
				if err != nil {
					return err
				}
				c, err := opts.client()
				if err != nil {
					return err
				}
				ack, err := c.Pose(cmd.Context(), egm.Pose{X: v[0], Y: v[1], Z: v[2], RX: v[3], RY: v[4], RZ: v[5]})
				return reportAck(cmd, ack, err)
			},
		},
		&cobra.Command{
			Use:   "joints <j1> [j2 ...]",
			Short: "Send a joint target (degrees)",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := parseFloats(args)
				if err != nil {
					return err
				}
				c, err := opts.client()
				if err != nil {
					return err
				}
				ack, err := c.Joints(cmd.Context(), egm.Joints(v))
				return reportAck(cmd, ack, err)
			},
		},
	)
	return cmd
}

func reportAck(cmd *cobra.Command, ack protocol.AckData, err error) error {
	if err != nil {
		return err
	}
	printAck(cmd.OutOrStdout(), ack)
	return nil
}

func parseFloat(name, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number, got %q", name, s)
	}
	return v, nil
}

func parseFloats(args []string) ([]float64, error) {
	out := make([]float64, len(args))
	for i, a := range args {
		v, err := parseFloat(fmt.Sprintf("value %d", i+1), a)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
