package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/arloliu/leadsync"
	"github.com/arloliu/leadsync/internal/logging"
	"github.com/arloliu/leadsync/internal/metrics"
	"github.com/arloliu/leadsync/internal/replica"
)

var (
	log        = logrus.New()
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "leadsyncd",
	Short: "Runs a leadsync node.",
	Long:  `Runs a leadsync node: elects shard leaders through NATS KV and serves peer sync endpoints.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return run(ctx)
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is ./config.yaml)")
}

func run(ctx context.Context) error {
	config, err := loadConfigFromFile(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	level, err := logrus.ParseLevel(config.LoggingLevel)
	if err != nil {
		log.WithError(err).Warn("Invalid logging level, using info")

		level = logrus.InfoLevel
	}

	log.SetLevel(level)

	logger := logging.NewLogrus(log)

	nc, err := nats.Connect(config.NATSURL, nats.Name(config.Node.NodeName))
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer func() { _ = nc.Drain() }()

	registry := prometheus.NewRegistry()

	node, err := leadsync.NewNode(&config.Node, nc,
		leadsync.WithLogger(logger),
		leadsync.WithMetrics(metrics.NewPrometheus(registry, "leadsync")),
		leadsync.WithHooks(&leadsync.Hooks{
			OnEnterRecovery: func(_ context.Context, core leadsync.Core) error {
				log.WithField("core", core.Name()).Warn("Core must recover from the shard leader")
				return nil
			},
			OnCancelRecovery: func(_ context.Context, core leadsync.Core) error {
				log.WithField("core", core.Name()).Info("Core is taking over shard leadership")
				return nil
			},
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to create node: %w", err)
	}

	peerPath, err := mountPath(config.Node.BaseURL)
	if err != nil {
		return err
	}

	router := chi.NewRouter()
	router.Mount(peerPath, node.PeerHandler())

	servers := []*http.Server{{Addr: config.ListenAddr, Handler: router, ReadHeaderTimeout: 10 * time.Second}}

	if config.MetricsAddr != "" {
		metricsRouter := chi.NewRouter()
		metricsRouter.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		servers = append(servers, &http.Server{Addr: config.MetricsAddr, Handler: metricsRouter, ReadHeaderTimeout: 10 * time.Second})
	}

	g, gctx := errgroup.WithContext(ctx)

	for _, srv := range servers {
		g.Go(func() error {
			log.WithField("addr", srv.Addr).Info("Serving HTTP")

			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server %s failed: %w", srv.Addr, err)
			}

			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Node.ShutdownTimeout)
		defer cancel()

		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.WithError(err).WithField("addr", srv.Addr).Error("HTTP server did not stop cleanly")
			}
		}

		return nil
	})

	g.Go(func() error {
		if err := node.Start(gctx); err != nil {
			return fmt.Errorf("failed to start node: %w", err)
		}

		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Node.ShutdownTimeout)
			defer cancel()

			if err := node.Stop(shutdownCtx); err != nil {
				log.WithError(err).Error("Node did not stop cleanly")
			}
		}()

		for _, core := range config.Cores {
			if err := node.Register(gctx, core.Collection, core.Shard, core.CoreNodeName, replica.NewMemory(core.CoreName)); err != nil {
				return fmt.Errorf("failed to register core %s: %w", core.CoreName, err)
			}
		}

		log.WithField("cores", len(config.Cores)).Info("Node is running")

		<-gctx.Done()

		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("leadsyncd exited")

	return nil
}

// mountPath returns the router path the peer handler is mounted at.
func mountPath(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid node baseUrl %q: %w", baseURL, err)
	}

	if u.Path == "" || u.Path == "/" {
		return "/", nil
	}

	return u.Path, nil
}
