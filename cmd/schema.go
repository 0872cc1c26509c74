package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/eddielth/signal-monitor/schema"
	"github.com/eddielth/signal-monitor/telemetry"
)

var schemaCmd = &cobra.Command{
	Use:   "schema <type>",
	Short: "List the ordered fields of an equipment type",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := telemetry.ParseEquipmentType(args[0])
		if err != nil {
			return err
		}

		descriptors := schema.Descriptors(t)
		if len(descriptors) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "%s payloads are opaque and are not decoded\n", t)
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "IDX\tNAME\tLABEL\tUNIT\tRULE")
		for i, d := range descriptors {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i, d.Name, d.Label, d.Unit, d.Rule)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}
