package cmd

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/eddielth/signal-monitor/decoder"
	"github.com/eddielth/signal-monitor/logger"
	"github.com/eddielth/signal-monitor/monitor"
)

var (
	healthAt    string
	healthUnits int
)

var healthCmd = &cobra.Command{
	Use:   "health <equipmentID>",
	Short: "Evaluate one equipment unit against the configured storage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return errors.Wrap(err, "load config")
		}
		defer logger.Close()

		storageManager, err := newStorage(cmd.Context(), cfg.Storage)
		if err != nil {
			return err
		}
		defer storageManager.Close()

		dec, err := newDecoder(cfg.Decoder)
		if err != nil {
			return err
		}
		svc, err := newMonitor(cfg, storageManager, dec)
		if err != nil {
			return err
		}

		f := monitor.Facility{EquipmentID: strings.ToUpper(args[0]), Units: healthUnits}
		if f.Units == 0 {
			for _, known := range facilities(cfg.Monitor) {
				if known.EquipmentID == f.EquipmentID {
					f.Units = known.Units
				}
			}
		}

		now := svc.Now()
		if healthAt != "" {
			t, ok := decoder.ParseTimestamp(healthAt, svc.Location())
			if !ok {
				return errors.Errorf("invalid --at timestamp %q", healthAt)
			}
			now = t
		}

		snap, err := svc.Evaluate(cmd.Context(), f, now)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	},
}

func init() {
	healthCmd.Flags().StringVar(&healthAt, "at", "", "evaluate as of this timestamp instead of now")
	healthCmd.Flags().IntVar(&healthUnits, "units", 0, "number of lamp units, defaults to the configured facility")
	rootCmd.AddCommand(healthCmd)
}
