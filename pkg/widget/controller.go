// Package widget implements the conversation session controller: visibility,
// the transcript, the single-flight send, and the load-time timers.
package widget

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"chatwidget/pkg/bus"
	"chatwidget/pkg/clock"
	"chatwidget/pkg/config"
	"chatwidget/pkg/hostgate"
	"chatwidget/pkg/reveal"
	"chatwidget/pkg/transcript"
	"chatwidget/pkg/transport"
)

// ErrorText is the fixed message shown when a send fails.
const ErrorText = "Something went wrong. Please try again."

var ErrHostNotAllowed = errors.New("widget: host is not in the allowed host list")

// Controller owns one widget mount. Every trigger (API call, timer callback,
// transport completion) runs its check-and-update under mu.
type Controller struct {
	cfg        config.WidgetConfig
	transport  transport.Transport
	clock      clock.Clock
	policy     reveal.Policy
	log        *slog.Logger
	events     *bus.Bus
	transcript *transcript.Transcript
	sessionID  string

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	started      bool
	stopped      bool
	sent         bool
	phase        Phase
	visibility   Visibility
	teaser       TeaserState
	quickReplies QuickReplyState
	welcome      WelcomeState

	welcomeTimer    clock.Timer
	quickReplyTimer clock.Timer
	teaserTimer     clock.Timer

	player   *reveal.Player
	inflight uint64
}

// New builds a controller for cfg. It returns ErrHostNotAllowed when cfg.Host
// fails the allowed-host gate; the widget must not load in that case.
func New(cfg config.WidgetConfig, tr transport.Transport, clk clock.Clock, log *slog.Logger) (*Controller, error) {
	if !hostgate.Allowed(cfg.Host, cfg.AllowedHosts) {
		return nil, ErrHostNotAllowed
	}
	if tr == nil {
		return nil, errors.New("widget: transport is required")
	}
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = slog.Default()
	}

	sessionID := newSessionID(clk.Now())
	ctx, cancel := context.WithCancel(context.Background())

	cfg.QuickReplies = slices.Clone(cfg.QuickReplies)
	return &Controller{
		cfg:        cfg,
		transport:  tr,
		clock:      clk,
		policy:     reveal.PolicyFor(cfg),
		log:        log.With("component", "widget.controller", "session_id", sessionID),
		events:     bus.New(),
		transcript: transcript.New(),
		sessionID:  sessionID,
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

func (c *Controller) SessionID() string {
	return c.sessionID
}

// Config returns the widget settings the controller was built with.
func (c *Controller) Config() config.WidgetConfig {
	cfg := c.cfg
	cfg.QuickReplies = slices.Clone(c.cfg.QuickReplies)
	cfg.AllowedHosts = slices.Clone(c.cfg.AllowedHosts)
	return cfg
}

// Events subscribes to state-change events until ctx ends or the controller
// shuts down.
func (c *Controller) Events(ctx context.Context) (<-chan bus.Event, func()) {
	return c.events.Subscribe(ctx, 0)
}

// Start schedules the welcome message and the teaser popup. Only the first call
// has an effect.
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started || c.stopped {
		return
	}
	c.started = true

	c.welcomeTimer = c.clock.AfterFunc(millis(c.cfg.WelcomeDelayMS), c.fireWelcome)
	c.teaserTimer = c.clock.AfterFunc(millis(c.cfg.PopupDelayMS), c.fireTeaser)
	c.log.Debug("Controller started",
		"welcome_delay_ms", c.cfg.WelcomeDelayMS,
		"popup_delay_ms", c.cfg.PopupDelayMS,
		"quick_replies", len(c.cfg.QuickReplies),
	)
}

// Toggle flips visibility. Opening dismisses the teaser for good.
func (c *Controller) Toggle() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return
	}
	if c.visibility == VisibilityOpen {
		c.setVisibilityLocked(VisibilityClosed)
		return
	}
	c.setVisibilityLocked(VisibilityOpen)
}

func (c *Controller) Open() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.stopped {
		c.setVisibilityLocked(VisibilityOpen)
	}
}

func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.stopped {
		c.setVisibilityLocked(VisibilityClosed)
	}
}

// DismissTeaser hides the teaser, or prevents it from ever showing, without
// opening the panel.
func (c *Controller) DismissTeaser() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.stopped {
		c.dismissTeaserLocked()
	}
}

// Snapshot copies the renderer-visible state.
func (c *Controller) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	view := View{
		SessionID:    c.sessionID,
		Visibility:   c.visibility,
		Phase:        c.phase,
		Teaser:       c.teaser,
		QuickReplies: c.quickReplies,
		Messages:     c.transcript.List(),
		Stopped:      c.stopped,
	}
	if c.quickReplies == QuickRepliesShown {
		view.Choices = slices.Clone(c.cfg.QuickReplies)
	}
	return view
}

// Shutdown cancels every timer, the reveal, and any in-flight transport call,
// then closes event subscriptions. Later calls on the controller are no-ops and
// late transport results are discarded.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	c.cancel()

	for _, timer := range []clock.Timer{c.welcomeTimer, c.quickReplyTimer, c.teaserTimer} {
		if timer != nil {
			timer.Stop()
		}
	}
	c.welcomeTimer, c.quickReplyTimer, c.teaserTimer = nil, nil, nil

	if c.player != nil {
		c.player.Stop()
		c.player = nil
	}

	c.publishLocked(bus.Event{Type: bus.EventShutdown})
	c.mu.Unlock()

	c.events.Close()
	c.log.Debug("Controller shut down")
}

func (c *Controller) fireWelcome() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.welcomeTimer = nil
	if c.stopped || c.welcome != WelcomePending {
		return
	}
	c.showWelcomeLocked()

	if len(c.cfg.QuickReplies) > 0 && !c.sent && c.quickReplies == QuickRepliesPending {
		c.quickReplyTimer = c.clock.AfterFunc(millis(c.cfg.QuickReplyDelayMS), c.fireQuickReplies)
	}
}

func (c *Controller) fireQuickReplies() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.quickReplyTimer = nil
	if c.stopped || c.sent || c.quickReplies != QuickRepliesPending {
		return
	}
	c.quickReplies = QuickRepliesShown
	c.publishLocked(bus.Event{Type: bus.EventQuickRepliesShown})
}

func (c *Controller) fireTeaser() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.teaserTimer = nil
	if c.stopped || c.teaser != TeaserPending || c.visibility == VisibilityOpen {
		return
	}
	c.teaser = TeaserShown
	c.publishLocked(bus.Event{Type: bus.EventTeaserShown, Text: c.cfg.PopupMessage})
}

func (c *Controller) showWelcomeLocked() {
	c.welcome = WelcomeShown
	if c.welcomeTimer != nil {
		c.welcomeTimer.Stop()
		c.welcomeTimer = nil
	}

	msg, err := c.transcript.Append(transcript.RoleBot, c.cfg.WelcomeMessage, c.clock.Now())
	if err != nil {
		c.log.Debug("Welcome message skipped", "error", err)
		return
	}
	c.publishLocked(bus.Event{Type: bus.EventMessageAppended, MessageID: msg.ID})
}

func (c *Controller) setVisibilityLocked(next Visibility) {
	if c.visibility == next {
		return
	}
	c.visibility = next
	if next == VisibilityOpen {
		c.dismissTeaserLocked()
	}
	c.publishLocked(bus.Event{Type: bus.EventVisibilityChanged, Text: next.String()})
}

func (c *Controller) dismissTeaserLocked() {
	if c.teaser == TeaserDismissed {
		return
	}
	c.teaser = TeaserDismissed
	if c.teaserTimer != nil {
		c.teaserTimer.Stop()
		c.teaserTimer = nil
	}
	c.publishLocked(bus.Event{Type: bus.EventTeaserDismissed})
}

func (c *Controller) removeQuickRepliesLocked() {
	if c.quickReplies == QuickRepliesRemoved {
		return
	}
	wasShown := c.quickReplies == QuickRepliesShown
	c.quickReplies = QuickRepliesRemoved
	if c.quickReplyTimer != nil {
		c.quickReplyTimer.Stop()
		c.quickReplyTimer = nil
	}
	if wasShown {
		c.publishLocked(bus.Event{Type: bus.EventQuickRepliesGone})
	}
}

func (c *Controller) publishLocked(event bus.Event) {
	event.SessionID = c.sessionID
	if event.At.IsZero() {
		event.At = c.clock.Now().UTC()
	}
	c.events.Publish(event)
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
