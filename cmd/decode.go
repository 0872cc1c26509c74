package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/eddielth/signal-monitor/config"
	"github.com/eddielth/signal-monitor/schema"
	"github.com/eddielth/signal-monitor/telemetry"
)

func decodeCmd() *cobra.Command {
	var (
		equipmentType string
		file          string
		display       bool
	)

	cmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode a JSON array of raw telemetry records",
		Long: `Decode raw telemetry records as returned by the backend API. Records that
fail to decode are reported on stderr and left out of the output.`,
		Example: `  signal-monitor decode --type AGL --file records.json
  cat records.json | signal-monitor decode --type DGL --display`,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := telemetry.ParseEquipmentType(equipmentType)
			if err != nil {
				return err
			}

			records, err := readRecords(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}

			cfg, err := optionalConfig()
			if err != nil {
				return err
			}
			decCfg := config.DecoderConfig{Timezone: "Asia/Seoul"}
			if cfg != nil {
				decCfg = cfg.Decoder
			}
			dec, err := newDecoder(decCfg)
			if err != nil {
				return err
			}

			res, err := dec.DecodeBatchContext(cmd.Context(), t, records)
			if err != nil {
				return err
			}

			for _, f := range res.Failures {
				fmt.Fprintf(cmd.ErrOrStderr(), "record %d (#%d): %s\n", f.RecordID, f.Index, f.Message)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "decoded %d of %d records, %d skipped\n", len(res.Rows), len(records), res.Skipped())

			if display {
				return printRows(cmd.OutOrStdout(), t, res.Rows)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}

	cmd.Flags().StringVarP(&equipmentType, "type", "t", "", "equipment type (AGL, DGL, VGL, BGL, LGL)")
	cmd.Flags().StringVarP(&file, "file", "f", "-", "JSON file with the records, - for stdin")
	cmd.Flags().BoolVar(&display, "display", false, "print a formatted table instead of JSON")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func init() {
	rootCmd.AddCommand(decodeCmd())
}

func readRecords(stdin io.Reader, file string) ([]telemetry.RawTelemetryRecord, error) {
	r := stdin
	if file != "" && file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return nil, errors.Wrap(err, "open records")
		}
		defer f.Close()
		r = f
	}

	var records []telemetry.RawTelemetryRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, errors.Wrap(err, "read records")
	}
	return records, nil
}

// printRows renders the rows as a grid with the field labels as header.
func printRows(w io.Writer, t telemetry.EquipmentType, rows []telemetry.DecodedStatusRow) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	header := []string{"id", "receive_date", "state"}
	for _, d := range schema.Descriptors(t) {
		header = append(header, d.Label)
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	for _, row := range rows {
		cells := []string{
			fmt.Sprint(row.ID()),
			row.ReceivedAt().Format("2006-01-02 15:04:05"),
			string(row.State()),
		}
		for _, f := range row.Fields() {
			cells = append(cells, strings.ReplaceAll(schema.Format(f.Name, f.Value), "\n", " "))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}
