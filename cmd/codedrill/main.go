package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/codedrill/codedrill/internal/clock"
	"github.com/codedrill/codedrill/internal/profile"
	"github.com/codedrill/codedrill/server"
	"github.com/codedrill/codedrill/server/runner/rollover"
	"github.com/codedrill/codedrill/server/service/review"
	"github.com/codedrill/codedrill/server/timezone"
	"github.com/codedrill/codedrill/store"
	"github.com/codedrill/codedrill/store/db"
)

const version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "codedrill",
	Short: "A self-hosted spaced-repetition tracker for coding practice",
	RunE:  run,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("mode", "demo", `mode of the server: "prod", "dev" or "demo"`)
	flags.String("addr", "", "binding address")
	flags.Int("port", 8081, "binding port")
	flags.String("data", "", "data directory")
	flags.String("driver", "sqlite", `database driver: "sqlite" or "postgres"`)
	flags.String("dsn", "", "database source name")
	flags.String("timezone", "UTC", "IANA zone all schedule dates are computed in")
	flags.String("policy", "step", `interval policy variant: "step" or "difficulty"`)
	flags.String("levels", "", `step interval table, e.g. "1=1,3,7;2=3,7,14;3=7,14,30"`)
	flags.Int("rollover-minute", 5, "minutes after local midnight the overdue sweep fires")
	flags.String("secret", "", "secret for signing session data")

	// Every flag can come from the environment as CODEDRILL_<NAME>.
	viper.SetEnvPrefix("codedrill")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	if err := viper.BindPFlags(flags); err != nil {
		panic(err)
	}
}

func run(_ *cobra.Command, _ []string) error {
	p := &profile.Profile{
		Mode:           viper.GetString("mode"),
		Addr:           viper.GetString("addr"),
		Port:           viper.GetInt("port"),
		Data:           viper.GetString("data"),
		Driver:         viper.GetString("driver"),
		DSN:            viper.GetString("dsn"),
		Timezone:       viper.GetString("timezone"),
		Policy:         viper.GetString("policy"),
		RolloverMinute: viper.GetInt("rollover-minute"),
		Secret:         viper.GetString("secret"),
		Version:        version,
	}
	if raw := viper.GetString("levels"); raw != "" {
		levels, err := profile.ParseLevels(raw)
		if err != nil {
			return errors.Wrap(err, "invalid levels flag")
		}
		p.Levels = levels
	}
	if err := p.Validate(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	loc, err := timezone.ParseTimezone(p.Timezone)
	if err != nil {
		slog.Warn("unknown timezone, using UTC", "timezone", p.Timezone)
	}
	clk := clock.New(loc)

	var policy review.Policy
	switch p.Policy {
	case "difficulty":
		policy = review.NewDifficultyPolicy()
	default:
		policy = review.NewStepPolicy(p.Levels)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbDriver, err := db.NewDBDriver(p)
	if err != nil {
		return errors.Wrap(err, "failed to create database driver")
	}
	st := store.New(dbDriver, p)
	if err := st.Migrate(ctx); err != nil {
		return errors.Wrap(err, "failed to migrate database")
	}

	srv := server.NewServer(p, st, policy, clk)
	sweep := rollover.NewRunner(st, clk, policy.Unit(), p.RolloverMinute)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})
	g.Go(func() error {
		sweep.Run(gctx)
		return nil
	})
	g.Go(func() error {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		select {
		case <-sig:
			slog.Info("received shutdown signal")
			cancel()
		case <-gctx.Done():
		}
		srv.Shutdown(context.Background())
		return nil
	})
	return g.Wait()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
