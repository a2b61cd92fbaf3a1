// Command uteshopctl runs one-off operational tasks against the UTEShop
// backends configured in the environment.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/uteshop/uteshop-api/internal/app"
	"github.com/uteshop/uteshop-api/internal/platform/config"
	"github.com/uteshop/uteshop-api/internal/platform/logging"
)

var timeout time.Duration

var rootCmd = &cobra.Command{
	Use:          "uteshopctl",
	Short:        "Operational tasks for the UTEShop API",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "overall deadline for the command")
	rootCmd.AddCommand(ensureIndexesCmd, seedCmd, createAdminCmd, reindexCmd, recalcTiersCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// env is what every subcommand works with.
type env struct {
	cfg   *config.Config
	log   *slog.Logger
	infra *app.Infra
	svc   app.Services
}

// withEnv opens the configured backends around fn.
func withEnv(fn func(ctx context.Context, e env, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		log := logging.New(cfg.Env)

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		infra, err := app.Open(ctx, cfg, log)
		if err != nil {
			return fmt.Errorf("open backends: %w", err)
		}
		defer infra.Close(context.Background())

		// Nobody drains the in-process bus in a one-shot command.
		if infra.MemoryBus != nil {
			infra.Adapters.Events = nil
		}
		svc := app.NewServices(infra.Repos, infra.Adapters, app.Settings{
			ShippingFee:        cfg.ShippingFee,
			ReviewRewardPoints: cfg.ReviewRewardPoints,
			CacheTTL:           cfg.CacheTTL,
		}, log)
		return fn(ctx, env{cfg: cfg, log: log, infra: infra, svc: svc}, args)
	}
}
