package widget

import (
	"errors"
	"strings"

	"chatwidget/pkg/bus"
	"chatwidget/pkg/reveal"
	"chatwidget/pkg/textfix"
	"chatwidget/pkg/transcript"
	"chatwidget/pkg/transport"
)

var errEmptyReply = errors.New("widget: reply is empty after cleanup")

// Submit sends text. It returns false, changing nothing, when the trimmed text is
// empty, a previous send has not finished, or the controller has shut down. On
// true the caller clears its input.
func (c *Controller) Submit(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped || c.phase != PhaseReady {
		return false
	}

	if c.welcome == WelcomePending {
		c.showWelcomeLocked()
	}

	now := c.clock.Now()
	msg, err := c.transcript.Append(transcript.RoleUser, text, now)
	if err != nil {
		return false
	}
	c.publishLocked(bus.Event{Type: bus.EventMessageAppended, MessageID: msg.ID})

	c.sent = true
	c.removeQuickRepliesLocked()

	c.phase = PhaseAwaitingReply
	c.publishLocked(bus.Event{Type: bus.EventTypingShown})

	c.inflight++
	go c.exchange(c.inflight, transport.Request{
		Message:   text,
		SessionID: c.sessionID,
		Timestamp: now,
	})

	c.log.Info("Message submitted", "message_length", len(text))
	return true
}

// ChooseQuickReply submits the label of the shown quick reply at index.
func (c *Controller) ChooseQuickReply(index int) bool {
	c.mu.Lock()
	if c.quickReplies != QuickRepliesShown || index < 0 || index >= len(c.cfg.QuickReplies) {
		c.mu.Unlock()
		return false
	}
	label := c.cfg.QuickReplies[index]
	c.mu.Unlock()

	return c.Submit(label)
}

// SkipReveal shows the rest of the reply being revealed at once. It reports
// whether a reveal was in progress.
func (c *Controller) SkipReveal() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped || c.phase != PhaseRevealing || c.player == nil {
		return false
	}
	c.player.Finish()
	c.completeRevealLocked()
	return true
}

func (c *Controller) exchange(token uint64, req transport.Request) {
	reply, err := c.transport.Send(c.ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped || token != c.inflight || c.phase != PhaseAwaitingReply {
		c.log.Debug("Discarding late transport result", "error", err)
		return
	}

	c.publishLocked(bus.Event{Type: bus.EventTypingHidden})

	if err != nil {
		c.failLocked(err)
		return
	}

	text := textfix.Normalize(reply)
	if text == "" {
		c.failLocked(errEmptyReply)
		return
	}

	msg, err := c.transcript.BeginReveal(transcript.RoleBot, text)
	if err != nil {
		c.failLocked(err)
		return
	}
	c.phase = PhaseRevealing
	c.publishLocked(bus.Event{Type: bus.EventMessageAppended, MessageID: msg.ID})

	var player *reveal.Player
	player = reveal.NewPlayer(c.clock, text, c.policy,
		func(prefix string) { c.onRevealProgress(player, msg.ID, prefix) },
		func() { c.onRevealComplete(player) },
	)
	c.player = player
	player.Start()

	pacing := player.Pacing()
	c.log.Debug("Reveal started",
		"runes", len([]rune(text)),
		"per_char_ms", pacing.PerChar.Milliseconds(),
		"initial_ms", pacing.Initial.Milliseconds(),
	)
}

func (c *Controller) onRevealProgress(player *reveal.Player, id int, prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped || c.player != player {
		return
	}
	if err := c.transcript.UpdateReveal(prefix); err != nil {
		return
	}
	c.publishLocked(bus.Event{Type: bus.EventRevealProgress, MessageID: id, Text: prefix})
}

func (c *Controller) onRevealComplete(player *reveal.Player) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped || c.player != player {
		return
	}
	c.completeRevealLocked()
}

func (c *Controller) completeRevealLocked() {
	c.player = nil
	c.phase = PhaseReady

	msg, err := c.transcript.CompleteReveal(c.clock.Now())
	if err != nil {
		c.log.Warn("Reveal completion without a revealing message", "error", err)
		return
	}
	c.publishLocked(bus.Event{Type: bus.EventRevealCompleted, MessageID: msg.ID})
}

func (c *Controller) failLocked(err error) {
	c.log.Warn("Message send failed", "error", err)
	c.publishLocked(bus.Event{Type: bus.EventTransportFailed, Error: err.Error()})

	msg, appendErr := c.transcript.Append(transcript.RoleError, ErrorText, c.clock.Now())
	c.phase = PhaseReady
	if appendErr != nil {
		return
	}
	c.publishLocked(bus.Event{Type: bus.EventMessageAppended, MessageID: msg.ID})
}
