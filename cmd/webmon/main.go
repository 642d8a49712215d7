package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/onbao165/webmonitor/internal/config"
	"github.com/onbao165/webmonitor/internal/rpc"
	"github.com/spf13/cobra"
)

// Version is the current version of webmon, sent to the daemon as
// ClientVersion so it can enforce major-version compatibility.
const Version = "0.1.0"

var (
	socketPath string
	jsonOutput bool

	client *rpc.Client
)

var rootCmd = &cobra.Command{
	Use:   "webmon",
	Short: "webmon - control client for the webmond monitoring daemon",
	Long: `webmon talks to a running webmond daemon over its control-protocol
socket to create and manage monitors and spaces, inspect recent results,
and run system maintenance jobs on demand.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		if err := config.Initialize(); err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		if socketPath == "" {
			dataDir := config.GetString("data-dir")
			socketPath = config.GetString("socket")
			if socketPath == "" {
				socketPath = rpc.DefaultSocketPath(dataDir)
			}
		}

		rpc.ClientVersion = Version
		client = rpc.TryConnect(socketPath)
		if client == nil {
			return fmt.Errorf("cannot connect to webmond daemon at %s (is it running?)", socketPath)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if client != nil {
			_ = client.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", "", "Control protocol socket path (default: <data-dir>/webmond.sock)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	rootCmd.AddCommand(versionCmd, monitorCmd, spaceCmd, resultCmd, jobCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// execute sends action+payload to the daemon and renders the response,
// exiting non-zero on either a transport error or an error envelope.
func execute(action string, payload map[string]interface{}) *rpc.Response {
	resp, err := client.Execute(action, payload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if !resp.IsSuccess() {
		red := color.New(color.FgRed).SprintFunc()
		if jsonOutput {
			outputJSON(resp)
		} else {
			fmt.Fprintf(os.Stderr, "%s %s\n", red("Error:"), resp.Message)
		}
		os.Exit(1)
	}
	return resp
}

func outputJSON(v interface{}) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}

func printSuccess(message string) {
	if jsonOutput {
		outputJSON(map[string]string{"message": message})
		return
	}
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("%s %s\n", green("✓"), message)
}

// nonEmpty sets m[key] only when value is non-empty, so payloads omit
// fields the daemon should leave untouched on update.
func nonEmpty(m map[string]interface{}, key, value string) {
	if value != "" {
		m[key] = value
	}
}
