package main

import (
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"go-kvtree/util/logger"
	"go-kvtree/util/timer"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func benchCmd() *cobra.Command {
	var (
		count     int
		keySize   int
		valueSize int
		seed      int64
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Insert, read and delete random keys and report throughput",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			rnd := rand.New(rand.NewSource(seed))
			keys := make([][]byte, count)
			for i := range keys {
				keys[i] = randomKey(rnd, keySize)
			}
			val := make([]byte, valueSize)
			rnd.Read(val)

			var done atomic.Int64
			stop := timer.SetInterval(time.Second, func() {
				logger.L.WithField("done", done.Load()).Info("bench progress")
			})
			defer stop()

			phase := func(name string, fn func(key []byte) error) error {
				done.Store(0)
				start := time.Now()
				for _, key := range keys {
					if err := fn(key); err != nil {
						return err
					}
					done.Add(1)
				}

				elapsed := time.Since(start)
				logger.L.WithFields(logrus.Fields{
					"ops":     count,
					"elapsed": elapsed,
				}).Info("bench " + name)
				fmt.Printf("%-6s %8d ops %12v %10.0f ops/s\n", name, count, elapsed, float64(count)/elapsed.Seconds())
				return nil
			}

			if err := phase("insert", func(key []byte) error {
				return a.tree.Insert(key, val)
			}); err != nil {
				return err
			}
			if err := phase("get", func(key []byte) error {
				_, _, err := a.tree.Get(key)
				return err
			}); err != nil {
				return err
			}
			if err := a.tree.Verify(); err != nil {
				return err
			}
			return phase("delete", func(key []byte) error {
				_, err := a.tree.Delete(key)
				return err
			})
		},
	}

	cmd.Flags().IntVar(&count, "n", 10000, "number of keys")
	cmd.Flags().IntVar(&keySize, "key-size", 16, "key length")
	cmd.Flags().IntVar(&valueSize, "value-size", 100, "value length")
	cmd.Flags().Int64Var(&seed, "seed", time.Now().UnixMilli(), "random seed")
	return cmd
}

func randomKey(rnd *rand.Rand, length int) []byte {
	b := make([]byte, 0, length)
	for i := 0; i < length; i++ {
		b = append(b, byte('a'+rnd.Intn(int('z')-int('a'))))
	}
	return b
}
