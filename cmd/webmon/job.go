package main

import (
	"fmt"

	"github.com/onbao165/webmonitor/internal/rpc"
	"github.com/spf13/cobra"
)

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Inspect and run system jobs",
}

var jobStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status and running monitors",
	Run: func(cmd *cobra.Command, args []string) {
		resp := execute(rpc.ActionStatus, nil)
		if jsonOutput {
			outputJSON(resp)
			return
		}
		total, _ := resp.Payload["total_monitors"].(float64)
		fmt.Printf("Running monitors: %v\n", int(total))
	},
}

var jobListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show health_alert and data_cleanup job status",
	Run: func(cmd *cobra.Command, args []string) {
		resp := execute(rpc.ActionGetJobStatus, nil)
		outputJSON(resp)
	},
}

var jobRunCmd = &cobra.Command{
	Use:   "run <job-name>",
	Short: "Run a system job immediately (health-alerts or data-cleanup)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		resp := execute(rpc.ActionRunJobManually, map[string]interface{}{"job_name": args[0]})
		printSuccess(resp.Message)
	},
}

var jobCleanupPreviewCmd = &cobra.Command{
	Use:   "cleanup-preview",
	Short: "Preview how many results data-cleanup would remove",
	Run: func(cmd *cobra.Command, args []string) {
		keepHealthy, _ := cmd.Flags().GetInt("keep-healthy-days")
		keepUnhealthy, _ := cmd.Flags().GetInt("keep-unhealthy-days")
		resp := execute(rpc.ActionGetCleanupPreview, map[string]interface{}{
			"keep_healthy_days":   keepHealthy,
			"keep_unhealthy_days": keepUnhealthy,
		})
		outputJSON(resp)
	},
}

var jobReloadConfigCmd = &cobra.Command{
	Use:   "reload-config",
	Short: "Reload config.json and rebuild the SMTP sender without restarting",
	Run: func(cmd *cobra.Command, args []string) {
		resp := execute(rpc.ActionReloadEmailConfig, nil)
		printSuccess(resp.Message)
	},
}

func init() {
	jobCleanupPreviewCmd.Flags().Int("keep-healthy-days", 0, "Override the configured healthy-result retention window")
	jobCleanupPreviewCmd.Flags().Int("keep-unhealthy-days", 0, "Override the configured unhealthy-result retention window")

	jobCmd.AddCommand(jobStatusCmd, jobListCmd, jobRunCmd, jobCleanupPreviewCmd, jobReloadConfigCmd)
}
