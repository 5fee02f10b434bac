package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"chatwidget/pkg/config"
	"chatwidget/pkg/logger"
	"chatwidget/pkg/ui/panel"
	"chatwidget/pkg/widget"

	"github.com/spf13/cobra"
)

var chatFlags widgetFlags

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the chat widget in the terminal",
	Long:  "Loads widget configuration and opens the chat widget: a toggle button with a teaser popup that expands into the chat panel.",
	Run: func(cmd *cobra.Command, args []string) {
		_ = args

		cfg, err := config.LoadConfig()
		if err != nil {
			fmt.Printf("failed to load config: %v\n", err)
			return
		}
		chatFlags.apply(cfg)

		appLogger, closer, err := logger.NewForTerminalUI(cfg.Logging)
		if err != nil {
			fmt.Printf("failed to initialize logger: %v\n", err)
			return
		}
		defer closer.Close()
		slog.SetDefault(appLogger)
		log := slog.Default().With("component", "cmd.chat")

		ctrl, err := newController(cfg, appLogger)
		if errors.Is(err, widget.ErrHostNotAllowed) {
			log.Warn("Widget disabled for host", "host", cfg.Widget.Host, "allowed_hosts", cfg.Widget.AllowedHosts)
			fmt.Printf("chat widget is not enabled for host %q\n", cfg.Widget.Host)
			return
		}
		if err != nil {
			fmt.Printf("failed to initialize widget: %v\n", err)
			return
		}
		defer ctrl.Shutdown()

		runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.Info("Widget started", "session_id", ctrl.SessionID(), "transport", transportName(cfg))
		if err := panel.Run(runCtx, ctrl); err != nil {
			log.Error("Widget runtime failed", "error", err)
			fmt.Printf("chat failed: %v\n", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVarP(&chatFlags.endpoint, "endpoint", "e", "", "webhook URL (overrides widget.endpoint)")
	chatCmd.Flags().StringVar(&chatFlags.host, "host", "", "host name checked against widget.allowed_hosts")
}
