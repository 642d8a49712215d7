package main

import (
	"fmt"

	"github.com/onbao165/webmonitor/internal/rpc"
	"github.com/spf13/cobra"
)

var spaceCmd = &cobra.Command{
	Use:   "space",
	Short: "Manage spaces",
}

func spaceLookupPayload(id, name string) map[string]interface{} {
	payload := map[string]interface{}{}
	nonEmpty(payload, "space_id", id)
	nonEmpty(payload, "space_name", name)
	return payload
}

func spaceLookupFlags(cmd *cobra.Command) (id, name string) {
	id, _ = cmd.Flags().GetString("id")
	name, _ = cmd.Flags().GetString("name")
	return
}

var spaceStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start every monitor in a space",
	Run: func(cmd *cobra.Command, args []string) {
		id, name := spaceLookupFlags(cmd)
		resp := execute(rpc.ActionStartSpace, spaceLookupPayload(id, name))
		printSuccess(resp.Message)
	},
}

var spaceStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop every monitor in a space",
	Run: func(cmd *cobra.Command, args []string) {
		id, name := spaceLookupFlags(cmd)
		resp := execute(rpc.ActionStopSpace, spaceLookupPayload(id, name))
		printSuccess(resp.Message)
	},
}

var spaceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List spaces",
	Run: func(cmd *cobra.Command, args []string) {
		resp := execute(rpc.ActionListSpaces, nil)
		if jsonOutput {
			outputJSON(resp)
			return
		}
		var spaces []map[string]interface{}
		_ = resp.Decode("spaces", &spaces)
		for _, sp := range spaces {
			fmt.Printf("%-36v %v\n", sp["id"], sp["name"])
		}
	},
}

var spaceGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show a single space",
	Run: func(cmd *cobra.Command, args []string) {
		id, name := spaceLookupFlags(cmd)
		resp := execute(rpc.ActionGetSpace, spaceLookupPayload(id, name))
		outputJSON(resp)
	},
}

var spaceDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a space and everything in it",
	Run: func(cmd *cobra.Command, args []string) {
		id, _ := cmd.Flags().GetString("id")
		resp := execute(rpc.ActionDeleteSpace, map[string]interface{}{"space_id": id})
		printSuccess(resp.Message)
	},
}

func spaceInputFromFlags(cmd *cobra.Command) map[string]interface{} {
	f := cmd.Flags()
	in := map[string]interface{}{}

	id, _ := f.GetString("id")
	name, _ := f.GetString("name")
	description, _ := f.GetString("description")
	emails, _ := f.GetStringSlice("emails")

	nonEmpty(in, "id", id)
	nonEmpty(in, "name", name)
	nonEmpty(in, "description", description)
	if len(emails) > 0 {
		in["notification_emails"] = emails
	}
	return in
}

var spaceCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a space",
	Run: func(cmd *cobra.Command, args []string) {
		resp := execute(rpc.ActionCreateSpace, map[string]interface{}{"space": spaceInputFromFlags(cmd)})
		printSuccess(resp.Message)
		outputJSON(resp)
	},
}

var spaceUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update a space",
	Run: func(cmd *cobra.Command, args []string) {
		resp := execute(rpc.ActionUpdateSpace, map[string]interface{}{"space": spaceInputFromFlags(cmd)})
		printSuccess(resp.Message)
	},
}

func init() {
	for _, cmd := range []*cobra.Command{spaceStartCmd, spaceStopCmd, spaceGetCmd} {
		cmd.Flags().String("id", "", "Space ID")
		cmd.Flags().String("name", "", "Space name")
	}
	spaceDeleteCmd.Flags().String("id", "", "Space ID")

	for _, cmd := range []*cobra.Command{spaceCreateCmd, spaceUpdateCmd} {
		f := cmd.Flags()
		f.String("id", "", "Space ID (required for update)")
		f.String("name", "", "Space name")
		f.String("description", "", "Space description")
		f.StringSlice("emails", nil, "Notification email addresses (comma-separated)")
	}

	spaceCmd.AddCommand(
		spaceStartCmd, spaceStopCmd, spaceListCmd, spaceGetCmd,
		spaceCreateCmd, spaceUpdateCmd, spaceDeleteCmd,
	)
}
