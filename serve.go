package main

import (
	"os"
	"os/signal"
	"syscall"

	"go-kvtree/server"
	"go-kvtree/util/logger"

	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve commands over TCP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if cmd.Flags().Changed("host") {
				a.cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}

			s, err := server.New(&a.cfg.Server, a.services)
			if err != nil {
				return err
			}

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

			select {
			case err = <-s.Start():
				logger.L.WithError(err).Error("server crashed")
			case q := <-quit:
				logger.L.WithField("signal", q.String()).Info("signal received, stopping gracefully")
			}

			if cerr := s.Close(); err == nil {
				err = cerr
			}
			return err
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "listen host, overrides the config")
	cmd.Flags().IntVar(&port, "port", 0, "listen port, overrides the config")
	return cmd
}
