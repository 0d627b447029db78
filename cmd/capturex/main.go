// Command capturex runs queue workers and submits or inspects capture jobs.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	_ "modernc.org/sqlite"

	"github.com/mohans/capturex"
	"github.com/mohans/capturex/internal/config"
)

var (
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "capturex",
	Short: "Turn captured tasks into planned, researched Notion pages",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		zc := zap.NewProductionConfig()
		level, err := zapcore.ParseLevel(cfg.Log.Level)
		if err != nil {
			return fmt.Errorf("log level: %w", err)
		}
		if verbose {
			level = zapcore.DebugLevel
		}
		zc.Level = zap.NewAtomicLevelAt(level)
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "capturex.yaml", "config file (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(workerCmd, submitCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// backends holds the shared Redis client and the configured status store.
type backends struct {
	rdb   *redis.Client
	db    *sql.DB
	queue *capturex.RedisQueue
	store capturex.Store
}

func openBackends(ctx context.Context) (*backends, error) {
	opt, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	b := &backends{rdb: redis.NewClient(opt)}
	if err := b.rdb.Ping(ctx).Err(); err != nil {
		b.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	b.queue = capturex.NewRedisQueue(b.rdb, cfg.Redis.QueueKey)

	switch cfg.Store.Backend {
	case "sqlite":
		b.db, err = sql.Open("sqlite", cfg.Store.SQLiteDSN)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		s := capturex.NewSQLStore(b.db, capturex.SQLStoreOptions{Logger: logger})
		if err := s.Migrate(ctx); err != nil {
			b.Close()
			return nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		b.store = s
	default:
		b.store = capturex.NewRedisStore(b.rdb, capturex.RedisStoreOptions{
			KeyPrefix: cfg.Redis.KeyPrefix,
			Logger:    logger,
		})
	}
	return b, nil
}

func (b *backends) Close() {
	if b.db != nil {
		_ = b.db.Close()
	}
	_ = b.rdb.Close()
}
