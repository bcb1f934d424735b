package main

import (
	"fmt"
	"os"

	"go-kvtree/config"
	"go-kvtree/pkg/bptree"
	"go-kvtree/pkg/pager"
	"go-kvtree/services"
	"go-kvtree/services/parser/query"
	"go-kvtree/util/helpers"
	"go-kvtree/util/logger"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath string
	dataPath   string
	logLevel   string
	cacheSize  int
	syncWrites bool
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "kvtree",
		Short: "Copy-on-write B+ tree key-value store",
		Long: `kvtree keeps byte keys and values in a copy-on-write B+ tree whose
pages live in a LevelDB directory. Keys and values given on the command line
are taken verbatim unless prefixed with 0x, which marks a hex literal.`,
		SilenceUsage: true,
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "JSON config file")
	rootCmd.PersistentFlags().StringVar(&dataPath, "data", "", "LevelDB directory, overrides the config")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().IntVar(&cacheSize, "cache", 0, "page cache size, overrides the config")
	rootCmd.PersistentFlags().BoolVar(&syncWrites, "sync", false, "fsync every page write")

	rootCmd.AddCommand(
		queryCmd("put <key> <value>", "Insert or replace a key", 2, func(args [][]byte) query.Querier {
			return &query.QueryPut{Query: query.Query{Type: query.PUT}, Key: args[0], Value: args[1]}
		}),
		queryCmd("get <key>", "Print the value of a key", 1, func(args [][]byte) query.Querier {
			return &query.QueryGet{Query: query.Query{Type: query.GET}, Key: args[0]}
		}),
		queryCmd("del <key>", "Delete a key", 1, func(args [][]byte) query.Querier {
			return &query.QueryDelete{Query: query.Query{Type: query.DELETE}, Key: args[0]}
		}),
		queryCmd("dump", "Print the page tree", 0, func([][]byte) query.Querier {
			return &query.Query{Type: query.DUMP}
		}),
		queryCmd("stats", "Print tree statistics", 0, func([][]byte) query.Querier {
			return &query.Query{Type: query.STATS}
		}),
		queryCmd("verify", "Check the structure of the tree", 0, func([][]byte) query.Querier {
			return &query.Query{Type: query.VERIFY}
		}),
		queryCmd("reset", "Delete every key", 0, func([][]byte) query.Querier {
			return &query.Query{Type: query.RESET}
		}),
		scanCmd(),
		exportCmd(),
		importCmd(),
		benchCmd(),
		shellCmd(),
		serveCmd(),
		connectCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app is the state shared by all subcommands.
type app struct {
	cfg      *config.AppConfig
	tree     *bptree.SyncTree
	services *services.Services
}

func openApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("data") {
		cfg.Store.Path = dataPath
	}
	if flags.Changed("cache") {
		cfg.Tree.CacheSize = cacheSize
	}
	if flags.Changed("sync") {
		cfg.Store.Sync = syncWrites
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}

	if err := logger.SetLevel(cfg.Log.Level); err != nil {
		return nil, err
	}

	if cfg.Store.Path != "" {
		if err := helpers.CreateDir(cfg.Store.Path); err != nil {
			return nil, errors.Wrap(err, "failed to create data dir")
		}
	}

	store, err := pager.OpenLevel(cfg.Store.Path, cfg.Store.Sync)
	if err != nil {
		return nil, err
	}

	tree, err := bptree.Open(store, &cfg.Tree)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	logger.L.WithFields(logrus.Fields{
		"path":  cfg.Store.Path,
		"keys":  tree.Size(),
		"cache": cfg.Tree.CacheSize,
	}).Debug("store opened")

	st := bptree.NewSyncTree(tree)
	return &app{
		cfg:      cfg,
		tree:     st,
		services: services.New(st),
	}, nil
}

func (a *app) Close() {
	if err := a.services.ExecutorService.Close(); err != nil {
		logger.L.WithError(err).Error("error on gracefully stopping")
	}
}

// exec runs q and prints its result to stdout.
func (a *app) exec(q query.Querier) error {
	res, err := a.services.ExecutorService.Exec(q)
	if err != nil {
		return err
	}
	_, err = res.WriteTo(os.Stdout)
	return err
}

func queryCmd(use, short string, nargs int, build func(args [][]byte) query.Querier) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			operands := make([][]byte, 0, len(args))
			for _, arg := range args {
				b, err := helpers.ParseBytes(arg)
				if err != nil {
					return errors.Wrapf(err, "bad hex literal '%s'", arg)
				}
				operands = append(operands, b)
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			return a.exec(build(operands))
		},
	}
}

func scanCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "scan [from]",
		Short: "Print keys in order, starting at from",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := &query.QueryScan{Query: query.Query{Type: query.SCAN}, Limit: limit}
			if len(args) == 1 {
				from, err := helpers.ParseBytes(args[0])
				if err != nil {
					return errors.Wrapf(err, "bad hex literal '%s'", args[0])
				}
				q.From = from
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			return a.exec(q)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of rows, 0 for all")
	return cmd
}

func exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <file>",
		Short: "Write every pair to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			f, err := os.Create(args[0])
			if err != nil {
				return errors.Wrap(err, "failed to create export file")
			}
			defer f.Close()

			n, err := a.services.ExecutorService.Export(f)
			if err != nil {
				return err
			}
			fmt.Printf("exported %d pairs\n", n)
			return f.Sync()
		},
	}
}

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Insert the pairs of an export file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			f, err := os.Open(args[0])
			if err != nil {
				return errors.Wrap(err, "failed to open import file")
			}
			defer f.Close()

			n, err := a.services.ExecutorService.Import(f)
			fmt.Printf("imported %d pairs\n", n)
			return err
		},
	}
}
