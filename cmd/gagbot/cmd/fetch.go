package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"gagbot/internal/app"
	"gagbot/internal/config"
	logx "gagbot/pkg/logx"
)

var fetchItems []string

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch the stock once and print what would be posted",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.NewConfigManager(cfgFile).Parse()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		log := logx.NewConsole(cfg.Logging.Level)
		return app.Probe(cmd.Context(), cfg, fetchItems, cmd.OutOrStdout(), log)
	},
}

func init() {
	fetchCmd.Flags().StringSliceVar(&fetchItems, "item", nil, "tracked item name (repeatable); all items when omitted")
}
