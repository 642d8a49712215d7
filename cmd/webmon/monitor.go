package main

import (
	"fmt"

	"github.com/onbao165/webmonitor/internal/rpc"
	"github.com/spf13/cobra"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Manage monitors",
}

// monitorLookupPayload builds the {monitor_id|monitor_name[, space_id|space_name]}
// shape every monitor action accepts (spec §6.1).
func monitorLookupPayload(id, name, spaceID, spaceName string) map[string]interface{} {
	payload := map[string]interface{}{}
	nonEmpty(payload, "monitor_id", id)
	nonEmpty(payload, "monitor_name", name)
	nonEmpty(payload, "space_id", spaceID)
	nonEmpty(payload, "space_name", spaceName)
	return payload
}

func addMonitorLookupFlags(cmd *cobra.Command) (id, name, spaceID, spaceName *string) {
	id = cmd.Flags().String("id", "", "Monitor ID")
	name = cmd.Flags().String("name", "", "Monitor name")
	spaceID = cmd.Flags().String("space-id", "", "Space ID (to scope a name lookup)")
	spaceName = cmd.Flags().String("space-name", "", "Space name (to scope a name lookup)")
	return
}

var monitorStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a monitor",
	Run: func(cmd *cobra.Command, args []string) {
		id, name, spaceID, spaceName := monitorLookupFlags(cmd)
		resp := execute(rpc.ActionStartMonitor, monitorLookupPayload(id, name, spaceID, spaceName))
		printSuccess(resp.Message)
	},
}

var monitorStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a monitor",
	Run: func(cmd *cobra.Command, args []string) {
		id, name, spaceID, spaceName := monitorLookupFlags(cmd)
		resp := execute(rpc.ActionStopMonitor, monitorLookupPayload(id, name, spaceID, spaceName))
		printSuccess(resp.Message)
	},
}

var monitorListCmd = &cobra.Command{
	Use:   "list",
	Short: "List monitors",
	Run: func(cmd *cobra.Command, args []string) {
		spaceID, _ := cmd.Flags().GetString("space-id")
		resp := execute(rpc.ActionListMonitors, map[string]interface{}{"space_id": spaceID})
		if jsonOutput {
			outputJSON(resp)
			return
		}
		var monitors []map[string]interface{}
		_ = resp.Decode("monitors", &monitors)
		for _, m := range monitors {
			fmt.Printf("%-36v %-20v %-10v %v\n", m["id"], m["name"], m["monitor_type"], m["status"])
		}
	},
}

var monitorGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show a single monitor",
	Run: func(cmd *cobra.Command, args []string) {
		id, name, spaceID, spaceName := monitorLookupFlags(cmd)
		resp := execute(rpc.ActionGetMonitor, monitorLookupPayload(id, name, spaceID, spaceName))
		outputJSON(resp)
	},
}

var monitorDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a monitor",
	Run: func(cmd *cobra.Command, args []string) {
		id, _ := cmd.Flags().GetString("id")
		resp := execute(rpc.ActionDeleteMonitor, map[string]interface{}{"monitor_id": id})
		printSuccess(resp.Message)
	},
}

var monitorCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a monitor",
	Run: func(cmd *cobra.Command, args []string) {
		resp := execute(rpc.ActionCreateMonitor, map[string]interface{}{"monitor": monitorInputFromFlags(cmd)})
		printSuccess(resp.Message)
		outputJSON(resp)
	},
}

var monitorUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update a monitor",
	Run: func(cmd *cobra.Command, args []string) {
		in := monitorInputFromFlags(cmd)
		id, _ := cmd.Flags().GetString("id")
		in["id"] = id
		resp := execute(rpc.ActionUpdateMonitor, map[string]interface{}{"monitor": in})
		printSuccess(resp.Message)
	},
}

// monitorLookupFlags reads the four lookup flags back out after they were
// registered by addMonitorLookupFlags on a specific command.
func monitorLookupFlags(cmd *cobra.Command) (id, name, spaceID, spaceName string) {
	id, _ = cmd.Flags().GetString("id")
	name, _ = cmd.Flags().GetString("name")
	spaceID, _ = cmd.Flags().GetString("space-id")
	spaceName, _ = cmd.Flags().GetString("space-name")
	return
}

// monitorInputFromFlags builds the "monitor" payload shared by create and
// update, matching control.monitorInput's wire shape.
func monitorInputFromFlags(cmd *cobra.Command) map[string]interface{} {
	f := cmd.Flags()
	in := map[string]interface{}{}

	name, _ := f.GetString("name")
	spaceID, _ := f.GetString("space-id")
	monitorType, _ := f.GetString("type")
	interval, _ := f.GetInt("interval")
	nonEmpty(in, "name", name)
	nonEmpty(in, "space_id", spaceID)
	nonEmpty(in, "monitor_type", monitorType)
	if interval > 0 {
		in["check_interval_seconds"] = interval
	}

	url, _ := f.GetString("url")
	expected, _ := f.GetInt("expected-status")
	timeout, _ := f.GetInt("timeout")
	content, _ := f.GetString("check-content")
	nonEmpty(in, "url", url)
	if expected > 0 {
		in["expected_status_code"] = expected
	}
	if timeout > 0 {
		in["timeout_seconds"] = timeout
	}
	nonEmpty(in, "check_content", content)
	if f.Changed("check-ssl") {
		v, _ := f.GetBool("check-ssl")
		in["check_ssl"] = v
	}
	if f.Changed("follow-redirects") {
		v, _ := f.GetBool("follow-redirects")
		in["follow_redirects"] = v
	}

	dbType, _ := f.GetString("db-type")
	host, _ := f.GetString("host")
	port, _ := f.GetInt("port")
	database, _ := f.GetString("database")
	username, _ := f.GetString("username")
	password, _ := f.GetString("password")
	testQuery, _ := f.GetString("test-query")
	nonEmpty(in, "db_type", dbType)
	nonEmpty(in, "host", host)
	if port > 0 {
		in["port"] = port
	}
	nonEmpty(in, "database", database)
	nonEmpty(in, "username", username)
	nonEmpty(in, "password", password)
	nonEmpty(in, "test_query", testQuery)

	return in
}

func init() {
	addMonitorLookupFlags(monitorStartCmd)
	addMonitorLookupFlags(monitorStopCmd)
	addMonitorLookupFlags(monitorGetCmd)
	monitorDeleteCmd.Flags().String("id", "", "Monitor ID")
	monitorListCmd.Flags().String("space-id", "", "Restrict to a single space")

	for _, cmd := range []*cobra.Command{monitorCreateCmd, monitorUpdateCmd} {
		f := cmd.Flags()
		f.String("id", "", "Monitor ID (required for update)")
		f.String("name", "", "Monitor name")
		f.String("space-id", "", "Owning space ID")
		f.String("type", "", "Monitor type: url or database")
		f.Int("interval", 0, "Check interval in seconds")

		f.String("url", "", "URL to probe (url monitors)")
		f.Int("expected-status", 0, "Expected HTTP status code")
		f.Int("timeout", 0, "Probe timeout in seconds")
		f.String("check-content", "", "Substring the response body must contain")
		f.Bool("check-ssl", true, "Verify TLS certificate validity")
		f.Bool("follow-redirects", true, "Follow HTTP redirects")

		f.String("db-type", "", "Database type: postgresql, mysql, or sqlserver (database monitors)")
		f.String("host", "", "Database host")
		f.Int("port", 0, "Database port")
		f.String("database", "", "Database name")
		f.String("username", "", "Database username")
		f.String("password", "", "Database password (encrypted before storage)")
		f.String("test-query", "", "Query run to verify the connection")
	}

	monitorCmd.AddCommand(
		monitorStartCmd, monitorStopCmd, monitorListCmd, monitorGetCmd,
		monitorCreateCmd, monitorUpdateCmd, monitorDeleteCmd,
	)
}
