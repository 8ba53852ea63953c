package main

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/relaysql/dbpool"
)

func loadtestCmd(v *viper.Viper) *cobra.Command {
	var callers int
	var cycles int
	var holdMillis int

	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Drive the pool with many concurrent simulated callers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoadtest(v, callers, cycles, holdMillis)
		},
	}
	cmd.Flags().IntVar(&callers, "callers", 100, "number of concurrent simulated callers")
	cmd.Flags().IntVar(&cycles, "cycles", 10, "acquire/release cycles per caller")
	cmd.Flags().IntVar(&holdMillis, "hold-max-ms", 200, "max random hold time per cycle, in ms")

	return cmd
}

func runLoadtest(v *viper.Viper, callers, cycles, holdMillis int) error {
	log := newLogger()
	defer log.Sync() //nolint:errcheck

	factory, closeFactory, err := buildFactory(v)
	if err != nil {
		return err
	}
	defer closeFactory()

	p, err := dbpool.New(factory, poolOptionsFromViper(v, log))
	if err != nil {
		return fmt.Errorf("creating pool: %w", err)
	}
	defer p.Close()

	// alitto/pond bounds how many simulated callers actually run
	// concurrently, the way a real connection-pool load generator caps
	// its client concurrency independently of the pool size under test.
	workerPool := pond.NewPool(callers)

	var acquired, failed atomic.Int64
	ctx := context.Background()

	for i := 0; i < callers; i++ {
		workerPool.Submit(func() {
			for c := 0; c < cycles; c++ {
				conn, err := p.Acquire(ctx)
				if err != nil {
					failed.Add(1)
					continue
				}
				acquired.Add(1)
				time.Sleep(time.Duration(rand.Intn(holdMillis+1)) * time.Millisecond)
				_ = conn.Close()
			}
		})
	}

	workerPool.StopAndWait()

	fmt.Printf("acquired=%d failed=%d\n", acquired.Load(), failed.Load())
	return nil
}
