// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/destiny/nowlink"
	"github.com/destiny/nowlink/config"
	"github.com/destiny/nowlink/node"
	"github.com/destiny/nowlink/udp"
)

func newRun() *cobra.Command {
	var flags struct {
		config string
		level  string
	}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a node on the UDP broadcast radio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flags.config)
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true

			level := cfg.LogLevel()
			if flags.level != "" {
				if level, err = nowlink.ParseLogLevel(flags.level); err != nil {
					return err
				}
			}
			log := nowlink.NewLogger(level)
			defer log.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, log)
		},
	}
	cmd.Flags().StringVarP(&flags.config, "config", "c", "nowbadge.toml", "configuration file")
	cmd.Flags().StringVar(&flags.level, "log.level", "", "override the configured log level")
	return cmd
}

func run(ctx context.Context, cfg *config.Config, log *nowlink.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := nowlink.NewMetrics(reg)

	radio, err := udp.Listen(udp.Config{
		Addr:      cfg.Node.Address,
		Port:      cfg.Radio.Port,
		Bind:      cfg.Radio.Bind,
		Broadcast: cfg.Radio.Broadcast,
	}, log.Named("udp"))
	if err != nil {
		return err
	}
	defer radio.Close()

	n, err := node.New(cfg, radio, node.WithLogger(log), node.WithMetrics(metrics))
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return n.Run(ctx) })
	g.Go(func() error { return reportPeers(ctx, n, log) })
	g.Go(func() error { return declineRequests(ctx, n, log) })
	if cfg.Metrics.Listen != "" {
		g.Go(func() error { return serveMetrics(ctx, cfg.Metrics.Listen, reg, log) })
	}
	return g.Wait()
}

// reportPeers logs discovery progress on every peer update
func reportPeers(ctx context.Context, n *node.Node, log *nowlink.Logger) error {
	updates := n.Listener().Updates()
	ready := false
	for {
		p, err := updates.Next(ctx)
		if err != nil {
			if errors.Is(err, nowlink.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		st := n.Status()
		log.Debug("peer %s, found %s", p, st)
		if st.Ready() && !ready {
			log.Info("ready: %s peers found", st)
		}
		ready = st.Ready()
	}
}

// declineRequests refuses incoming connects. The command runs no game,
// so nothing could drive an accepted session.
func declineRequests(ctx context.Context, n *node.Node, log *nowlink.Logger) error {
	for {
		select {
		case req, ok := <-n.Mux().Requests():
			if !ok {
				return nil
			}
			log.Info("declining app %d from %s", req.App, req.Peer)
			req.Decline()
		case <-ctx.Done():
			return nil
		}
	}
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, log *nowlink.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info("metrics on http://%s/metrics", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
