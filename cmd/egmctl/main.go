// Command egmctl drives an ABB robot over Externally Guided Motion: it serves
// the control API, simulates a robot, and talks to a running server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-egm/internal/config"
	"github.com/teslashibe/go-egm/internal/httpc"
	"github.com/teslashibe/go-egm/internal/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	apiURL     string
	logLevel   string
}

// load reads the config file and environment, then applies flag overrides.
func (o *rootOptions) load() (config.File, error) {
	f, err := config.Load(o.configPath)
	if err != nil {
		return config.File{}, err
	}
	if o.logLevel != "" {
		f.Log.Level = o.logLevel
	}
	log.Init(f.Log.Level)
	return f, nil
}

// client returns an API client for the control server. --api wins over the
// configured listen address.
func (o *rootOptions) client() (*apiClient, error) {
	base := o.apiURL
	if base == "" {
		f, err := o.load()
		if err != nil {
			return nil, err
		}
		base = f.Server.Listen
	}
	return &apiClient{api: httpc.NewAPI(config.APIURL(base))}, nil
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "egmctl",
		Short:         "Externally Guided Motion control for ABB robots",
		Long:          "egmctl streams EGM corrections to an ABB controller over UDP,\nexposes the session through an HTTP and WebSocket API, and\nprovides clients and a simulator for it.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", os.Getenv("EGM_CONFIG"), "config file (.yaml, .yml or .toml)")
	pf.StringVar(&opts.apiURL, "api", "", "control API address for client commands (default: server.listen)")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newServeCmd(opts),
		newSimCmd(opts),
		newStatusCmd(opts),
		newWatchCmd(opts),
		newConnectCmd(opts),
		newDisconnectCmd(opts),
		newJogCmd(opts),
		newMoveCmd(opts),
		newPadCmd(opts),
	)
	return root
}
