package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/theirongolddev/stockcast/internal/forecast"

	"github.com/spf13/cobra"
)

var schemaCmd = &cobra.Command{
	Use:   "schema [type]",
	Short: "Print the JSON Schema of the service payloads",
	Long:  "Without an argument, lists the payload types. With one, prints its JSON Schema.",
	Args:  cobra.MaximumNArgs(1),
	ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return forecast.SchemaNames(), cobra.ShellCompDirectiveNoFileComp
	},
	RunE: runSchema,
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}

func runSchema(_ *cobra.Command, args []string) error {
	if len(args) == 0 {
		for _, name := range forecast.SchemaNames() {
			fmt.Println(name)
		}
		return nil
	}

	schema, err := forecast.Schema(args[0])
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(schema)
}
