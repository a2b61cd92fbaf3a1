package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var ensureIndexesCmd = &cobra.Command{
	Use:   "ensure-indexes",
	Short: "Create Mongo indexes, DynamoDB tables and the search index",
	Long: `Opening the backends creates any missing Mongo indexes, DynamoDB tables
(when NOTIFICATION_STORE=dynamodb) and the Elasticsearch index. Existing
ones are left alone, so the command is safe to run on every deploy.`,
	RunE: withEnv(func(_ context.Context, e env, _ []string) error {
		e.log.Info("indexes ensured",
			"mongo", e.infra.Mongo != nil,
			"dynamodb", e.infra.Dynamo != nil,
			"elasticsearch", e.infra.Index != nil,
		)
		return nil
	}),
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load demo brands, categories, products, vouchers and the points config",
	RunE: withEnv(func(ctx context.Context, e env, _ []string) error {
		if e.cfg.DBType == "memory" {
			e.log.Warn("DB_TYPE=memory, seeded data disappears when the command exits")
		}
		rep, err := seed(ctx, e.svc, e.infra.Repos, demoCatalog)
		if err != nil {
			return err
		}
		e.log.Info("seed complete",
			"brands", rep.Brands, "categories", rep.Categories,
			"products", rep.Products, "vouchers", rep.Vouchers)
		return nil
	}),
}

var adminName, adminEmail, adminPassword string

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an administrator account",
	RunE: withEnv(func(ctx context.Context, e env, _ []string) error {
		u, err := e.svc.Auth.CreateAdmin(ctx, adminName, adminEmail, adminPassword)
		if err != nil {
			return err
		}
		fmt.Printf("admin %s created with id %s\n", u.Email, u.ID)
		return nil
	}),
}

func init() {
	createAdminCmd.Flags().StringVar(&adminName, "name", "Administrator", "display name")
	createAdminCmd.Flags().StringVar(&adminEmail, "email", "", "login email")
	createAdminCmd.Flags().StringVar(&adminPassword, "password", "", "login password, at least 6 characters")
	_ = createAdminCmd.MarkFlagRequired("email")
	_ = createAdminCmd.MarkFlagRequired("password")
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the product search index from the database",
	RunE: withEnv(func(ctx context.Context, e env, _ []string) error {
		n, err := e.svc.Search.Reindex(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("indexed %d products\n", n)
		return nil
	}),
}

var recalcTiersCmd = &cobra.Command{
	Use:   "recalc-tiers",
	Short: "Recompute every customer's loyalty tier from the current config",
	RunE: withEnv(func(ctx context.Context, e env, _ []string) error {
		n, err := e.svc.Points.RecalculateTiers(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%d customers changed tier\n", n)
		return nil
	}),
}
