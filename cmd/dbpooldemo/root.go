package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/relaysql/dbpool"
	"github.com/relaysql/dbpool/adapters/redisadapter"
	"github.com/relaysql/dbpool/adapters/sqladapter"
	"github.com/relaysql/dbpool/adapters/sqliteadapter"
)

// rootCmd builds the dbpooldemo CLI. Flags bind through viper the same
// way as other_examples/perles, so DBPOOLDEMO_-prefixed env vars work
// alongside explicit flags. No config file is read.
func rootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:   "dbpooldemo",
		Short: "Exercise the dbpool worker/rendezvous connection pool",
	}

	root.PersistentFlags().Int("pool-size", dbpool.DefaultPoolSize, "number of pool workers")
	root.PersistentFlags().Duration("connection-timeout", dbpool.DefaultConnectionTimeout, "Acquire wait before overflow/timeout")
	root.PersistentFlags().Duration("idle-timeout", dbpool.DefaultIdleTimeout, "worker offer wait before validity check")
	root.PersistentFlags().Duration("max-lifetime", dbpool.DefaultMaxLifetime, "age at which a slot is replenished")
	root.PersistentFlags().Bool("throw-on-timeout", dbpool.DefaultThrowOnConnectionTimeout, "fail Acquire instead of opening an overflow connection")
	root.PersistentFlags().String("driver", "mock", "physical connection driver: mock, sql, sqlite, redis")
	root.PersistentFlags().String("dsn", "", "data source name for --driver=sql/sqlite/redis")

	v.SetEnvPrefix("dbpooldemo")
	v.AutomaticEnv()
	_ = v.BindPFlags(root.PersistentFlags())

	root.AddCommand(serveCmd(v))
	root.AddCommand(loadtestCmd(v))

	return root
}

// newLogger matches the zap production config other example pool
// implementations wire their logger from (e.g.
// other_examples/48b1492f_o3willard-AI-SSSonector's Pool).
func newLogger() *zap.Logger {
	logger, err := zap.NewProduction()
	if err != nil {
		logger = zap.NewNop()
	}
	return logger
}

func poolOptionsFromViper(v *viper.Viper, log *zap.Logger) dbpool.Options {
	return dbpool.Options{
		PoolSize:                 v.GetInt("pool-size"),
		ConnectionTimeout:        v.GetDuration("connection-timeout"),
		IdleTimeout:              v.GetDuration("idle-timeout"),
		MaxLifetime:              v.GetDuration("max-lifetime"),
		ThrowOnConnectionTimeout: v.GetBool("throw-on-timeout"),
		LogFunc:                  dbpool.ZapLogFunc(log),
	}
}

func buildFactory(v *viper.Viper) (dbpool.PhysicalFactory, func(), error) {
	ctx := context.Background()
	dsn := v.GetString("dsn")

	switch driver := v.GetString("driver"); driver {
	case "mock", "":
		return mockFactory{}, func() {}, nil

	case "sql":
		if dsn == "" {
			return nil, nil, fmt.Errorf("driver %q: --dsn is required", driver)
		}
		f, err := sqladapter.NewFactory(ctx, "mysql", dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sql driver: %w", err)
		}
		return f, func() { f.Close() }, nil

	case "sqlite":
		path := dsn
		if path == "" {
			path = "dbpooldemo.sqlite"
		}
		f, err := sqliteadapter.NewFactory(ctx, path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite driver: %w", err)
		}
		return f, func() { f.Close() }, nil

	case "redis":
		addr := dsn
		if addr == "" {
			addr = "localhost:6379"
		}
		f := redisadapter.NewFactory(&redis.Options{Addr: addr})
		return f, func() {}, nil

	default:
		return nil, nil, fmt.Errorf("driver %q: must be one of mock, sql, sqlite, redis", driver)
	}
}

// mockFactory is the default driver: a stub PhysicalConnection with no
// real network cost, useful for exercising the pool's own state machine.
type mockFactory struct{}

func (mockFactory) Open(ctx context.Context) (dbpool.PhysicalConnection, error) {
	return &mockConnection{}, nil
}

type mockConnection struct {
	closed bool
}

func (c *mockConnection) IsClosed() bool { return c.closed }

func (c *mockConnection) IsValid(timeoutSeconds int) bool {
	if c.closed {
		return false
	}
	time.Sleep(time.Millisecond) // a pinch of simulated round-trip cost
	return true
}

func (c *mockConnection) Close() error {
	c.closed = true
	return nil
}
