package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"chatwidget/pkg/backend"
	"chatwidget/pkg/config"
	"chatwidget/pkg/logger"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var (
	webhookPort      int
	webhookResponder string
)

var webhookCmd = &cobra.Command{
	Use:   "webhook",
	Short: "Run the demo webhook backend",
	Long:  "Serves the widget's webhook protocol locally, answering with an echo, OpenAI, fantasy or opencode responder.",
	Run: func(cmd *cobra.Command, args []string) {
		_ = args

		cfg, err := config.LoadConfig()
		if err != nil {
			fmt.Printf("failed to load config: %v\n", err)
			return
		}
		if webhookPort > 0 {
			cfg.Webhook.Port = webhookPort
		}
		if webhookResponder != "" {
			cfg.Webhook.Responder = webhookResponder
		}

		appLogger, err := logger.New(cfg.Logging)
		if err != nil {
			fmt.Printf("failed to initialize logger: %v\n", err)
			return
		}
		slog.SetDefault(appLogger)
		log := slog.Default().With("component", "cmd.webhook")

		responder, err := backend.NewResponder(cfg.Webhook)
		if err != nil {
			log.Error("Webhook configuration invalid", "error", err)
			return
		}

		runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := newWebhookServer(cfg.Webhook, responder, appLogger)
		log.Info("Webhook started", "addr", srv.Addr, "path", cfg.Webhook.Path, "responder", responder.Name())
		if err := serve(runCtx, srv); err != nil {
			log.Error("Webhook runtime failed", "error", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(webhookCmd)
	webhookCmd.Flags().IntVarP(&webhookPort, "port", "p", 0, "listen port (overrides webhook.port)")
	webhookCmd.Flags().StringVarP(&webhookResponder, "responder", "r", "", "responder: echo, openai, fantasy or opencode (overrides webhook.responder)")
}

func newWebhookServer(cfg config.WebhookConfig, responder backend.Responder, log *slog.Logger) *http.Server {
	return &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:           backend.NewRouter(backend.NewHandler(cfg, responder, log)),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// serve runs srv until ctx ends, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server) error {
	eg, groupCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	return eg.Wait()
}
