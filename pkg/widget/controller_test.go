package widget

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chatwidget/pkg/bus"
	"chatwidget/pkg/clock"
	"chatwidget/pkg/config"
	"chatwidget/pkg/transcript"
	"chatwidget/pkg/transport"
)

var epoch = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

type scriptedResult struct {
	reply string
	err   error
}

// scriptedTransport blocks each Send until the test supplies a result.
type scriptedTransport struct {
	mu       sync.Mutex
	requests []transport.Request
	results  chan scriptedResult
}

func newScriptedTransport() *scriptedTransport {
	return &scriptedTransport{results: make(chan scriptedResult, 8)}
}

func (s *scriptedTransport) Send(ctx context.Context, req transport.Request) (string, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	select {
	case r := <-s.results:
		return r.reply, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *scriptedTransport) reply(text string) {
	s.results <- scriptedResult{reply: text}
}

func (s *scriptedTransport) fail(err error) {
	s.results <- scriptedResult{err: err}
}

func (s *scriptedTransport) sent() []transport.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]transport.Request(nil), s.requests...)
}

func newTestController(t *testing.T, tr transport.Transport, mutate func(*config.WidgetConfig)) (*Controller, *clock.Fake) {
	t.Helper()

	cfg := config.Default().Widget
	if mutate != nil {
		mutate(&cfg)
	}

	fake := clock.NewFake(epoch)
	ctrl, err := New(cfg, tr, fake, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(ctrl.Shutdown)

	return ctrl, fake
}

func waitPhase(t *testing.T, ctrl *Controller, phase Phase) {
	t.Helper()
	require.Eventually(t, func() bool {
		return ctrl.Snapshot().Phase == phase
	}, time.Second, time.Millisecond, "phase never became %s", phase)
}

func texts(messages []transcript.Message) []string {
	out := make([]string, 0, len(messages))
	for _, msg := range messages {
		out = append(out, string(msg.Role)+":"+msg.Visible())
	}
	return out
}

func TestNewRejectsHostOutsideAllowList(t *testing.T) {
	cfg := config.Default().Widget
	cfg.AllowedHosts = []string{"example.com", "*.example.org"}
	cfg.Host = "evil.test"

	_, err := New(cfg, newScriptedTransport(), clock.NewFake(epoch), nil)
	require.ErrorIs(t, err, ErrHostNotAllowed)

	cfg.Host = "shop.example.org"
	ctrl, err := New(cfg, newScriptedTransport(), clock.NewFake(epoch), nil)
	require.NoError(t, err)
	ctrl.Shutdown()
}

func TestSessionIDFormat(t *testing.T) {
	ctrl, _ := newTestController(t, newScriptedTransport(), nil)

	pattern := regexp.MustCompile(`^session_\d+_[0-9a-f]{9}$`)
	require.Regexp(t, pattern, ctrl.SessionID())
	require.True(t, strings.HasPrefix(ctrl.SessionID(), "session_1780315200000_"))
}

func TestStubReplyWithoutEndpoint(t *testing.T) {
	fake := clock.NewFake(epoch)
	cfg := config.Default().Widget
	ctrl, err := New(cfg, transport.NewStub(fake, 0), fake, nil)
	require.NoError(t, err)
	t.Cleanup(ctrl.Shutdown)
	ctrl.Start()

	require.True(t, ctrl.Submit("hello"))

	view := ctrl.Snapshot()
	require.True(t, view.Typing())
	require.Equal(t, []string{"bot:" + config.DefaultWelcomeMessage, "user:hello"}, texts(view.Messages))

	// Teaser timer plus the stub delay.
	require.Eventually(t, func() bool { return fake.Pending() == 2 }, time.Second, time.Millisecond)
	fake.Advance(transport.DefaultStubDelay)
	waitPhase(t, ctrl, PhaseRevealing)

	view = ctrl.Snapshot()
	require.False(t, view.Typing())
	last := view.Messages[len(view.Messages)-1]
	require.True(t, last.Revealing)
	require.True(t, last.At.IsZero())

	runes := len([]rune(transport.StubReply))
	fake.Advance(500*time.Millisecond + time.Duration(runes)*15*time.Millisecond)

	view = ctrl.Snapshot()
	require.Equal(t, PhaseReady, view.Phase)
	last = view.Messages[len(view.Messages)-1]
	require.Equal(t, transcript.RoleBot, last.Role)
	require.Equal(t, transport.StubReply, last.Visible())
	require.False(t, last.Revealing)
	require.Equal(t, fake.Now(), last.At)
}

func TestSubmitIsSingleFlight(t *testing.T) {
	tr := newScriptedTransport()
	ctrl, fake := newTestController(t, tr, nil)
	ctrl.Start()

	require.True(t, ctrl.Submit("one"))
	require.False(t, ctrl.Submit("two"))
	require.Eventually(t, func() bool { return len(tr.sent()) == 1 }, time.Second, time.Millisecond)

	tr.reply("first answer")
	waitPhase(t, ctrl, PhaseRevealing)
	require.False(t, ctrl.Submit("three"), "submit must be rejected while revealing")

	fake.Advance(time.Minute)
	require.Equal(t, PhaseReady, ctrl.Snapshot().Phase)

	require.True(t, ctrl.Submit("four"))
	require.Eventually(t, func() bool { return len(tr.sent()) == 2 }, time.Second, time.Millisecond)

	sent := tr.sent()
	require.Equal(t, "one", sent[0].Message)
	require.Equal(t, "four", sent[1].Message)
	require.Equal(t, ctrl.SessionID(), sent[0].SessionID)
	require.Equal(t, epoch, sent[0].Timestamp)
}

func TestSubmitRejectsBlankText(t *testing.T) {
	tr := newScriptedTransport()
	ctrl, _ := newTestController(t, tr, nil)

	require.False(t, ctrl.Submit(""))
	require.False(t, ctrl.Submit("  \t\n"))
	require.Empty(t, ctrl.Snapshot().Messages)
	require.Equal(t, PhaseReady, ctrl.Snapshot().Phase)
}

func TestSubmitTrimsText(t *testing.T) {
	tr := newScriptedTransport()
	ctrl, _ := newTestController(t, tr, nil)

	require.True(t, ctrl.Submit("  hi there \n"))
	require.Eventually(t, func() bool { return len(tr.sent()) == 1 }, time.Second, time.Millisecond)
	require.Equal(t, "hi there", tr.sent()[0].Message)
}

func TestTransportFailureAppendsErrorAndReleasesGuard(t *testing.T) {
	tr := newScriptedTransport()
	ctrl, _ := newTestController(t, tr, nil)
	ctrl.Start()

	require.True(t, ctrl.Submit("hello"))
	tr.fail(&transport.StatusError{Code: 500})
	waitPhase(t, ctrl, PhaseReady)

	view := ctrl.Snapshot()
	require.False(t, view.Typing())
	last := view.Messages[len(view.Messages)-1]
	require.Equal(t, transcript.RoleError, last.Role)
	require.Equal(t, ErrorText, last.Text)

	errorCount := 0
	for _, msg := range view.Messages {
		if msg.Role == transcript.RoleError {
			errorCount++
		}
	}
	require.Equal(t, 1, errorCount)

	require.True(t, ctrl.Submit("again"))
}

func TestReplyEmptyAfterCleanupIsAnError(t *testing.T) {
	tr := newScriptedTransport()
	ctrl, _ := newTestController(t, tr, nil)

	require.True(t, ctrl.Submit("hello"))
	tr.reply(" **** ")
	waitPhase(t, ctrl, PhaseReady)

	messages := ctrl.Snapshot().Messages
	require.Equal(t, ErrorText, messages[len(messages)-1].Text)
}

func TestTranscriptOrderIsAppendOnly(t *testing.T) {
	tr := newScriptedTransport()
	ctrl, fake := newTestController(t, tr, nil)
	ctrl.Start()
	fake.Advance(500 * time.Millisecond)

	require.True(t, ctrl.Submit("first"))
	tr.reply("** bold ** answer")
	waitPhase(t, ctrl, PhaseRevealing)
	fake.Advance(time.Minute)

	require.True(t, ctrl.Submit("second"))
	tr.fail(errors.New("network down"))
	waitPhase(t, ctrl, PhaseReady)

	messages := ctrl.Snapshot().Messages
	require.Equal(t, []string{
		"bot:" + config.DefaultWelcomeMessage,
		"user:first",
		"bot:**bold** answer",
		"user:second",
		"error:" + ErrorText,
	}, texts(messages))

	for i, msg := range messages {
		require.Equal(t, i+1, msg.ID)
		require.False(t, msg.At.IsZero(), "message %d has no timestamp", msg.ID)
		if i > 0 {
			require.False(t, msg.At.Before(messages[i-1].At), "message %d is older than its predecessor", msg.ID)
		}
	}
}

func TestRevealProgressIsMonotonic(t *testing.T) {
	tr := newScriptedTransport()
	ctrl, fake := newTestController(t, tr, func(cfg *config.WidgetConfig) {
		cfg.RevealMode = config.RevealModeFlat
		cfg.StreamingSpeedMS = 5
	})

	events, unsubscribe := ctrl.Events(context.Background())
	defer unsubscribe()

	require.True(t, ctrl.Submit("hi"))
	tr.reply("héy")
	waitPhase(t, ctrl, PhaseRevealing)
	fake.Advance(time.Second)
	require.Equal(t, PhaseReady, ctrl.Snapshot().Phase)

	var prefixes []string
	completed := false
	for !completed {
		select {
		case event := <-events:
			switch event.Type {
			case bus.EventRevealProgress:
				prefixes = append(prefixes, event.Text)
			case bus.EventRevealCompleted:
				completed = true
			}
		case <-time.After(time.Second):
			t.Fatal("reveal did not complete")
		}
	}

	require.Equal(t, []string{"", "h", "hé", "héy"}, prefixes)
}

func TestRevealOfInvalidUTF8EndsOnStoredText(t *testing.T) {
	tr := newScriptedTransport()
	ctrl, fake := newTestController(t, tr, func(cfg *config.WidgetConfig) {
		cfg.RevealMode = config.RevealModeFlat
		cfg.StreamingSpeedMS = 5
	})

	events, unsubscribe := ctrl.Events(context.Background())
	defer unsubscribe()

	require.True(t, ctrl.Submit("hi"))
	tr.reply("ab\xffcd")
	waitPhase(t, ctrl, PhaseRevealing)
	fake.Advance(time.Second)

	var lastPrefix string
	for completed := false; !completed; {
		select {
		case event := <-events:
			switch event.Type {
			case bus.EventRevealProgress:
				lastPrefix = event.Text
			case bus.EventRevealCompleted:
				completed = true
			}
		case <-time.After(time.Second):
			t.Fatal("reveal did not complete")
		}
	}

	view := ctrl.Snapshot()
	final := view.Messages[len(view.Messages)-1]
	require.Equal(t, "ab\uFFFDcd", final.Text)
	require.Equal(t, final.Text, lastPrefix)
}

func TestSkipRevealCompletesImmediately(t *testing.T) {
	tr := newScriptedTransport()
	ctrl, fake := newTestController(t, tr, nil)

	require.False(t, ctrl.SkipReveal())
	require.True(t, ctrl.Submit("hello"))
	tr.reply("a long answer that would take a while")
	waitPhase(t, ctrl, PhaseRevealing)

	fake.Advance(10 * time.Millisecond)
	require.True(t, ctrl.SkipReveal())

	view := ctrl.Snapshot()
	require.Equal(t, PhaseReady, view.Phase)
	last := view.Messages[len(view.Messages)-1]
	require.Equal(t, "a long answer that would take a while", last.Visible())
	require.Equal(t, fake.Now(), last.At)

	fake.Advance(time.Minute)
	require.Equal(t, "a long answer that would take a while", ctrl.Snapshot().Messages[len(view.Messages)-1].Visible())
}

func TestTeaserShowsWhenLeftAlone(t *testing.T) {
	ctrl, fake := newTestController(t, newScriptedTransport(), nil)
	ctrl.Start()

	fake.Advance(6999 * time.Millisecond)
	require.Equal(t, TeaserPending, ctrl.Snapshot().Teaser)

	fake.Advance(time.Millisecond)
	require.Equal(t, TeaserShown, ctrl.Snapshot().Teaser)

	ctrl.Toggle()
	view := ctrl.Snapshot()
	require.Equal(t, VisibilityOpen, view.Visibility)
	require.Equal(t, TeaserDismissed, view.Teaser)
}

func TestOpeningBeforePopupSuppressesTeaser(t *testing.T) {
	ctrl, fake := newTestController(t, newScriptedTransport(), nil)
	ctrl.Start()

	fake.Advance(time.Second)
	ctrl.Toggle()
	ctrl.Toggle()
	require.Equal(t, VisibilityClosed, ctrl.Snapshot().Visibility)

	fake.Advance(time.Minute)
	require.Equal(t, TeaserDismissed, ctrl.Snapshot().Teaser)
}

func TestDismissTeaserWithoutOpening(t *testing.T) {
	ctrl, fake := newTestController(t, newScriptedTransport(), nil)
	ctrl.Start()

	ctrl.DismissTeaser()
	fake.Advance(time.Minute)

	view := ctrl.Snapshot()
	require.Equal(t, TeaserDismissed, view.Teaser)
	require.Equal(t, VisibilityClosed, view.Visibility)
}

func TestZeroDelaysFireImmediately(t *testing.T) {
	ctrl, fake := newTestController(t, newScriptedTransport(), func(cfg *config.WidgetConfig) {
		cfg.PopupDelayMS = 0
		cfg.WelcomeDelayMS = 0
		cfg.QuickReplyDelayMS = 0
		cfg.QuickReplies = []string{"Pricing"}
	})
	ctrl.Start()

	fake.Advance(0)
	view := ctrl.Snapshot()
	require.Equal(t, TeaserShown, view.Teaser)
	require.Equal(t, []string{"bot:" + config.DefaultWelcomeMessage}, texts(view.Messages))
	require.Equal(t, QuickRepliesShown, view.QuickReplies)
}

func TestClosingLeavesTranscriptUnchanged(t *testing.T) {
	tr := newScriptedTransport()
	ctrl, fake := newTestController(t, tr, nil)
	ctrl.Start()
	fake.Advance(time.Second)

	ctrl.Open()
	require.True(t, ctrl.Submit("hello"))
	tr.reply("Hi there")
	waitPhase(t, ctrl, PhaseRevealing)
	fake.Advance(time.Minute)

	before := ctrl.Snapshot().Messages
	ctrl.Close()
	ctrl.Toggle()
	ctrl.Toggle()

	view := ctrl.Snapshot()
	require.Equal(t, VisibilityClosed, view.Visibility)
	require.Equal(t, before, view.Messages)
	require.Equal(t, PhaseReady, view.Phase)
}

func TestQuickRepliesShowOnceAfterWelcome(t *testing.T) {
	tr := newScriptedTransport()
	ctrl, fake := newTestController(t, tr, func(cfg *config.WidgetConfig) {
		cfg.QuickReplies = []string{"Pricing", "Opening hours"}
	})
	ctrl.Start()

	fake.Advance(499 * time.Millisecond)
	require.Empty(t, ctrl.Snapshot().Messages)

	fake.Advance(time.Millisecond)
	require.Len(t, ctrl.Snapshot().Messages, 1)

	fake.Advance(299 * time.Millisecond)
	require.Equal(t, QuickRepliesPending, ctrl.Snapshot().QuickReplies)

	fake.Advance(time.Millisecond)
	view := ctrl.Snapshot()
	require.Equal(t, QuickRepliesShown, view.QuickReplies)
	require.Equal(t, []string{"Pricing", "Opening hours"}, view.Choices)

	require.False(t, ctrl.ChooseQuickReply(5))
	require.True(t, ctrl.ChooseQuickReply(1))

	view = ctrl.Snapshot()
	require.Equal(t, QuickRepliesRemoved, view.QuickReplies)
	require.Empty(t, view.Choices)
	require.Equal(t, "user:Opening hours", texts(view.Messages)[1])

	tr.reply("We open at nine.")
	waitPhase(t, ctrl, PhaseRevealing)
	fake.Advance(time.Minute)
	require.Equal(t, QuickRepliesRemoved, ctrl.Snapshot().QuickReplies)
	require.False(t, ctrl.ChooseQuickReply(0))
}

func TestSubmitBeforeQuickRepliesCancelsThem(t *testing.T) {
	ctrl, fake := newTestController(t, newScriptedTransport(), func(cfg *config.WidgetConfig) {
		cfg.QuickReplies = []string{"Pricing"}
	})
	ctrl.Start()

	fake.Advance(600 * time.Millisecond)
	require.True(t, ctrl.Submit("hello"))
	fake.Advance(time.Second)

	require.Equal(t, QuickRepliesRemoved, ctrl.Snapshot().QuickReplies)
}

func TestSubmitBeforeWelcomeFlushesIt(t *testing.T) {
	ctrl, fake := newTestController(t, newScriptedTransport(), func(cfg *config.WidgetConfig) {
		cfg.QuickReplies = []string{"Pricing"}
	})
	ctrl.Start()

	fake.Advance(100 * time.Millisecond)
	require.True(t, ctrl.Submit("quick question"))

	view := ctrl.Snapshot()
	require.Equal(t, []string{"bot:" + config.DefaultWelcomeMessage, "user:quick question"}, texts(view.Messages))

	fake.Advance(2 * time.Second)
	view = ctrl.Snapshot()
	require.Len(t, view.Messages, 2)
	require.Equal(t, QuickRepliesRemoved, view.QuickReplies)
}

func TestShutdownDiscardsLateResults(t *testing.T) {
	tr := newScriptedTransport()
	ctrl, fake := newTestController(t, tr, nil)
	ctrl.Start()

	events, _ := ctrl.Events(context.Background())

	require.True(t, ctrl.Submit("hello"))
	require.Eventually(t, func() bool { return len(tr.sent()) == 1 }, time.Second, time.Millisecond)
	before := len(ctrl.Snapshot().Messages)

	ctrl.Shutdown()
	ctrl.Shutdown()
	fake.Advance(time.Minute)

	view := ctrl.Snapshot()
	require.True(t, view.Stopped)
	require.Len(t, view.Messages, before)
	require.Zero(t, fake.Pending())
	require.False(t, ctrl.Submit("again"))

	ctrl.Toggle()
	require.Equal(t, VisibilityClosed, ctrl.Snapshot().Visibility)

	require.Eventually(t, func() bool {
		for {
			select {
			case _, ok := <-events:
				if !ok {
					return true
				}
			default:
				return false
			}
		}
	}, time.Second, time.Millisecond)
}

func TestShutdownStopsReveal(t *testing.T) {
	tr := newScriptedTransport()
	ctrl, fake := newTestController(t, tr, nil)

	require.True(t, ctrl.Submit("hello"))
	tr.reply("an answer")
	waitPhase(t, ctrl, PhaseRevealing)

	fake.Advance(320 * time.Millisecond)
	messages := ctrl.Snapshot().Messages
	bot := len(messages) - 1
	require.Equal(t, "a", messages[bot].Visible())

	ctrl.Shutdown()
	fake.Advance(time.Minute)

	require.Equal(t, "a", ctrl.Snapshot().Messages[bot].Visible())
	require.Zero(t, fake.Pending())
}
