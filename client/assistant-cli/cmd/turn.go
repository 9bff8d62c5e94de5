package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel [turn-id]",
	Short: "Cancel a running turn",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if _, err := doRequest("POST", apiURL("/turns/"+args[0]+"/cancel")); err != nil {
			log.Fatalf("Failed to cancel turn: %v", err)
		}
		fmt.Printf("Turn %s is cancelling\n", args[0])
	},
}

var turnCmd = &cobra.Command{
	Use:   "turn [turn-id]",
	Short: "Show the record of a turn",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		printJSON(apiURL("/turns/" + args[0]))
	},
}

var handlersCmd = &cobra.Command{
	Use:   "handlers",
	Short: "List the handlers and sub-agents of the service",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		printJSON(apiURL("/handlers"))
	},
}

func init() {
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(turnCmd)
	rootCmd.AddCommand(handlersCmd)
}

func printJSON(url string) {
	body, err := doRequest("GET", url)
	if err != nil {
		log.Fatalf("Request failed: %v", err)
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		fmt.Println(string(body))
		return
	}
	fmt.Println(pretty.String())
}
