package main

import (
	"fmt"

	"github.com/onbao165/webmonitor/internal/rpc"
	"github.com/spf13/cobra"
)

var resultCmd = &cobra.Command{
	Use:   "result",
	Short: "Inspect monitor results",
}

func printResults(resp *rpc.Response) {
	if jsonOutput {
		outputJSON(resp)
		return
	}
	var results []map[string]interface{}
	_ = resp.Decode("results", &results)
	for _, res := range results {
		fmt.Printf("%-25v %-10v failed=%v\n", res["timestamp"], res["status"], res["failed_checks"])
	}
}

var resultMonitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Show recent results for a monitor",
	Run: func(cmd *cobra.Command, args []string) {
		id, _ := cmd.Flags().GetString("id")
		name, _ := cmd.Flags().GetString("name")
		limit, _ := cmd.Flags().GetInt("limit")
		payload := map[string]interface{}{"limit": limit}
		nonEmpty(payload, "monitor_id", id)
		nonEmpty(payload, "monitor_name", name)
		printResults(execute(rpc.ActionGetMonitorResults, payload))
	},
}

var resultSpaceCmd = &cobra.Command{
	Use:   "space",
	Short: "Show recent results for every monitor in a space",
	Run: func(cmd *cobra.Command, args []string) {
		id, _ := cmd.Flags().GetString("id")
		name, _ := cmd.Flags().GetString("name")
		limit, _ := cmd.Flags().GetInt("limit")
		payload := map[string]interface{}{"limit": limit}
		nonEmpty(payload, "space_id", id)
		nonEmpty(payload, "space_name", name)
		printResults(execute(rpc.ActionGetSpaceResults, payload))
	},
}

func init() {
	for _, cmd := range []*cobra.Command{resultMonitorCmd, resultSpaceCmd} {
		cmd.Flags().String("id", "", "ID to look up")
		cmd.Flags().String("name", "", "Name to look up")
		cmd.Flags().Int("limit", 10, "Maximum results to return")
	}
	resultCmd.AddCommand(resultMonitorCmd, resultSpaceCmd)
}
