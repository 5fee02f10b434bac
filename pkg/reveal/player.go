package reveal

import (
	"sync"

	"chatwidget/pkg/clock"
)

type playerState int

const (
	stateIdle playerState = iota
	statePlaying
	stateDone
)

// Player drives a Sequence on a clock. It keeps at most one pending timer, so
// prefixes are emitted strictly in order.
//
// Callbacks run without the player lock held. A callback already in flight when
// Stop returns may still run; owners that care must check they still own the
// player.
type Player struct {
	clock      clock.Clock
	seq        *Sequence
	pacing     Pacing
	onProgress func(prefix string)
	onComplete func()

	mu    sync.Mutex
	state playerState
	timer clock.Timer
}

func NewPlayer(c clock.Clock, text string, policy Policy, onProgress func(string), onComplete func()) *Player {
	seq := NewSequence(text)
	if onProgress == nil {
		onProgress = func(string) {}
	}
	if onComplete == nil {
		onComplete = func() {}
	}

	return &Player{
		clock:      c,
		seq:        seq,
		pacing:     policy.Pacing(seq.Runes()),
		onProgress: onProgress,
		onComplete: onComplete,
	}
}

// Pacing returns the pacing chosen for this text.
func (p *Player) Pacing() Pacing {
	return p.pacing
}

// Start schedules the first prefix after the initial delay. Only the first call
// has an effect.
func (p *Player) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != stateIdle {
		return
	}
	p.state = statePlaying
	p.timer = p.clock.AfterFunc(p.pacing.Initial, p.tick)
}

// Stop cancels the pending tick. It reports whether the player was still running.
func (p *Player) Stop() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.halt()
}

// Finish stops the player and returns the full text, for callers that jump
// straight to the end. No callbacks run.
func (p *Player) Finish() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seq.Full(), p.halt()
}

func (p *Player) halt() bool {
	if p.state == stateDone {
		return false
	}
	p.state = stateDone
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	return true
}

func (p *Player) tick() {
	p.mu.Lock()
	if p.state != statePlaying {
		p.mu.Unlock()
		return
	}
	prefix, _ := p.seq.Next()
	last := p.seq.Done()
	p.timer = nil
	if last {
		p.state = stateDone
	}
	p.mu.Unlock()

	p.onProgress(prefix)
	if last {
		p.onComplete()
		return
	}

	p.mu.Lock()
	if p.state == statePlaying {
		p.timer = p.clock.AfterFunc(p.pacing.PerChar, p.tick)
	}
	p.mu.Unlock()
}
