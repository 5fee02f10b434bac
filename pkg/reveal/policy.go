package reveal

import (
	"time"

	"chatwidget/pkg/config"
)

const DefaultFlatSpeed = 20 * time.Millisecond

// Pacing is the delay before the first prefix and between later prefixes.
type Pacing struct {
	PerChar time.Duration
	Initial time.Duration
}

// Policy picks a pacing for a reply of the given rune length.
type Policy interface {
	Pacing(runes int) Pacing
}

type tier struct {
	below   int
	perChar time.Duration
	initial time.Duration
}

// Longer replies type faster but wait longer before starting.
var tiers = []tier{
	{below: 50, perChar: 18 * time.Millisecond, initial: 300 * time.Millisecond},
	{below: 150, perChar: 15 * time.Millisecond, initial: 500 * time.Millisecond},
	{below: 300, perChar: 10 * time.Millisecond, initial: 800 * time.Millisecond},
}

var longest = Pacing{PerChar: 6 * time.Millisecond, Initial: time.Second}

type tiered struct{}

// Tiered returns the length-tiered policy.
func Tiered() Policy {
	return tiered{}
}

func (tiered) Pacing(runes int) Pacing {
	for _, t := range tiers {
		if runes < t.below {
			return Pacing{PerChar: t.perChar, Initial: t.initial}
		}
	}
	return longest
}

type flat struct {
	speed time.Duration
}

// Flat returns a constant per-rune delay with no initial delay. A non-positive
// speed selects DefaultFlatSpeed.
func Flat(speed time.Duration) Policy {
	if speed <= 0 {
		speed = DefaultFlatSpeed
	}
	return flat{speed: speed}
}

func (f flat) Pacing(int) Pacing {
	return Pacing{PerChar: f.speed}
}

// PolicyFor maps the widget reveal settings to a Policy.
func PolicyFor(cfg config.WidgetConfig) Policy {
	if cfg.RevealMode == config.RevealModeFlat {
		return Flat(time.Duration(cfg.StreamingSpeedMS) * time.Millisecond)
	}
	return Tiered()
}
