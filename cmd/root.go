package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/girona-rent/internal/config"
	"github.com/sells-group/girona-rent/internal/lookup"
)

var cfg *config.Config

var workersFlag int

var rootCmd = &cobra.Command{
	Use:   "girona-rent",
	Short: "Girona rental listings enrichment pipeline",
	Long: "Assigns rental listings to census sections and neighbourhoods, attaches energy certificates " +
		"and sociodemographic indicators as of each listing's year, flags nearby services, and builds the map view.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		stage := stageOf(cmd)
		if !config.IsStage(stage) {
			return nil
		}

		// .env is optional; real environment variables take precedence.
		_ = godotenv.Load(".env")

		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
		if workersFlag > 0 {
			cfg.Workers = workersFlag
		}

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return cfg.Validate(stage)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// stageOf returns the top-level command name, which doubles as the stage
// name config validation expects.
func stageOf(cmd *cobra.Command) string {
	for cmd.HasParent() && cmd.Parent().HasParent() {
		cmd = cmd.Parent()
	}
	return cmd.Name()
}

func init() {
	rootCmd.PersistentFlags().IntVar(&workersFlag, "workers", 0, "row workers per stage (default from config)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if lookup.IsConfiguration(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
