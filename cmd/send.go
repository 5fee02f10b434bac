package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"chatwidget/pkg/bus"
	"chatwidget/pkg/config"
	"chatwidget/pkg/logger"
	"chatwidget/pkg/transcript"
	"chatwidget/pkg/widget"

	"github.com/spf13/cobra"
)

var (
	sendFlags    widgetFlags
	sendMessage  string
	sendNoReveal bool
)

const sendPollInterval = 100 * time.Millisecond

var errNotSent = errors.New("message was not sent")

var sendCmd = &cobra.Command{
	Use:   "send [message]",
	Short: "Send one message and print the revealed reply",
	Long:  "Sends a single message through the configured transport and prints the reply as it is revealed.",
	Run: func(cmd *cobra.Command, args []string) {
		message := resolveMessage(args)
		if message == "" {
			fmt.Println("a message is required")
			return
		}

		cfg, err := config.LoadConfig()
		if err != nil {
			fmt.Printf("failed to load config: %v\n", err)
			return
		}
		sendFlags.apply(cfg)

		appLogger, err := logger.New(cfg.Logging)
		if err != nil {
			fmt.Printf("failed to initialize logger: %v\n", err)
			return
		}
		slog.SetDefault(appLogger)

		ctrl, err := newController(cfg, appLogger)
		if errors.Is(err, widget.ErrHostNotAllowed) {
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

		if err := runSend(runCtx, ctrl, message, !sendNoReveal, cmd.OutOrStdout()); err != nil {
			fmt.Printf("send failed: %v\n", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&sendMessage, "message", "m", "", "message text to send")
	sendCmd.Flags().BoolVar(&sendNoReveal, "no-reveal", false, "print the reply at once instead of revealing it")
	sendCmd.Flags().StringVarP(&sendFlags.endpoint, "endpoint", "e", "", "webhook URL (overrides widget.endpoint)")
	sendCmd.Flags().StringVar(&sendFlags.host, "host", "", "host name checked against widget.allowed_hosts")
}

func resolveMessage(args []string) string {
	if value := strings.TrimSpace(sendMessage); value != "" {
		return value
	}

	return strings.TrimSpace(strings.Join(args, " "))
}

// sendController is the part of the widget controller runSend drives.
type sendController interface {
	SessionID() string
	Events(ctx context.Context) (<-chan bus.Event, func())
	Submit(text string) bool
	SkipReveal() bool
	Snapshot() widget.View
}

// runSend submits message and streams the reply to out until the controller is
// ready again. Events only drive the printing; the phase is re-read on every
// event and on each poll tick, so a dropped event cannot stall the command.
func runSend(ctx context.Context, ctrl sendController, message string, reveal bool, out io.Writer) error {
	log := slog.Default().With("component", "cmd.send", "session_id", ctrl.SessionID())
	events, unsubscribe := ctrl.Events(ctx)
	defer unsubscribe()

	if !ctrl.Submit(message) {
		return errNotSent
	}

	ticker := time.NewTicker(sendPollInterval)
	defer ticker.Stop()

	printed := 0
	var failure error
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case event, ok := <-events:
			if !ok {
				return errors.New("widget shut down before the reply arrived")
			}
			logEvent(log, event)

			switch event.Type {
			case bus.EventRevealProgress:
				if reveal {
					printed = printFrom(out, event.Text, printed)
				} else {
					ctrl.SkipReveal()
				}
			case bus.EventTransportFailed:
				failure = errors.New(event.Error)
			}
		}

		view := ctrl.Snapshot()
		if view.Stopped {
			return errors.New("widget shut down before the reply arrived")
		}
		if view.Phase == widget.PhaseReady {
			return finishSend(out, view, printed, failure)
		}
	}
}

// finishSend prints whatever the events did not deliver: the rest of the reply
// or the error message.
func finishSend(out io.Writer, view widget.View, printed int, failure error) error {
	if len(view.Messages) > 0 {
		if last := view.Messages[len(view.Messages)-1]; last.Role == transcript.RoleError {
			fmt.Fprintln(out, last.Text)
			if failure == nil {
				failure = errors.New("reply failed")
			}
			return failure
		}
	}

	printFrom(out, lastBotText(view), printed)
	fmt.Fprintln(out)
	return nil
}

func printFrom(out io.Writer, text string, printed int) int {
	if len(text) <= printed {
		return printed
	}
	fmt.Fprint(out, text[printed:])
	return len(text)
}

func lastBotText(view widget.View) string {
	for i := len(view.Messages) - 1; i >= 0; i-- {
		if view.Messages[i].Role == transcript.RoleBot {
			return view.Messages[i].Text
		}
	}
	return ""
}
