package main

import (
	"fmt"
	"os"

	"github.com/onbao165/webmonitor/internal/config"
	"github.com/onbao165/webmonitor/internal/daemonrunner"
	"github.com/spf13/cobra"
)

// Version is the current version of webmond.
const Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "webmond",
	Short: "webmond - web and database endpoint monitoring daemon",
	Long: `webmond runs scheduled HTTP and database health checks against the
monitors and spaces stored in its database, persists the results, and
dispatches email notifications on status transitions and extended outages.

It serves a control-protocol socket that the webmon CLI uses to manage
monitors and spaces while the daemon is running.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Initialize(); err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		for _, name := range []string{"data-dir", "socket", "log-file", "pid-file", "metrics-addr"} {
			if err := config.BindFlag(name, cmd.Flags().Lookup(name)); err != nil {
				return fmt.Errorf("binding --%s: %w", name, err)
			}
		}

		cfg := daemonrunner.Config{
			DataDir:     config.GetString("data-dir"),
			SocketPath:  config.GetString("socket"),
			LogFile:     config.GetString("log-file"),
			PIDFile:     config.GetString("pid-file"),
			MetricsAddr: config.GetString("metrics-addr"),
		}
		if cfg.DataDir == "" {
			return fmt.Errorf("data directory not set")
		}

		d := daemonrunner.New(cfg, Version)
		return d.Start()
	},
}

func init() {
	flags := rootCmd.Flags()
	flags.String("data-dir", "", "Data directory holding the database, config file, and control socket (default: $WEBMOND_DATA_DIR or ~/.webmond)")
	flags.String("socket", "", "Control protocol socket path (default: <data-dir>/webmond.sock)")
	flags.String("log-file", "", "Log file path (default: <data-dir>/webmond.log, rotated)")
	flags.String("pid-file", "", "PID file path (default: <data-dir>/webmond.pid)")
	flags.String("metrics-addr", "", "Address to serve Prometheus /metrics on, e.g. 127.0.0.1:9090 (default: disabled)")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
