package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/recipe-cli/internal/cache"
	"github.com/sells-group/recipe-cli/internal/quota"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the store schema and indexes",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		zap.L().Info("store migrated", zap.String("driver", cfg.Store.Driver))
		fmt.Fprintf(cmd.OutOrStdout(), "migrated %s store\n", cfg.Store.Driver)
		return nil
	},
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the recipe cache",
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete expired cache entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		n, err := cache.New(st, cfg.Cache.TTL()).Prune(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "pruned %d expired entries\n", n)
		return nil
	},
}

var quotaAuthenticated bool

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Inspect extraction quotas",
}

var quotaShowCmd = &cobra.Command{
	Use:   "show <identity>",
	Short: "Show this month's usage for a user id or anonymous token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		id := quota.Identity{ID: args[0], Authenticated: quotaAuthenticated}
		status, err := quota.New(st, cfg.Quota).CheckLimit(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "identity:  %s\nperiod:    %s\nused:      %d/%d\nlimited:   %t\n",
			id.Key(), quota.PeriodStart(time.Now()).Format("2006-01"), status.Current, status.Limit, status.Limited)
		return nil
	},
}

func init() {
	quotaShowCmd.Flags().BoolVar(&quotaAuthenticated, "authenticated", false, "treat the identity as a signed-in user id")

	cacheCmd.AddCommand(cachePruneCmd)
	quotaCmd.AddCommand(quotaShowCmd)
	rootCmd.AddCommand(migrateCmd, cacheCmd, quotaCmd)
}
