package widget

// Phase is the send guard. A new message is accepted only in PhaseReady.
type Phase int

const (
	PhaseReady Phase = iota
	PhaseAwaitingReply
	PhaseRevealing
)

func (p Phase) String() string {
	switch p {
	case PhaseReady:
		return "ready"
	case PhaseAwaitingReply:
		return "awaiting_reply"
	case PhaseRevealing:
		return "revealing"
	default:
		return "unknown"
	}
}

type Visibility int

const (
	VisibilityClosed Visibility = iota
	VisibilityOpen
)

func (v Visibility) String() string {
	if v == VisibilityOpen {
		return "open"
	}
	return "closed"
}

// TeaserState is one-shot: pending, then shown or dismissed.
type TeaserState int

const (
	TeaserPending TeaserState = iota
	TeaserShown
	TeaserDismissed
)

func (s TeaserState) String() string {
	switch s {
	case TeaserPending:
		return "pending"
	case TeaserShown:
		return "shown"
	default:
		return "dismissed"
	}
}

// QuickReplyState is one-shot: pending, then shown, then removed.
type QuickReplyState int

const (
	QuickRepliesPending QuickReplyState = iota
	QuickRepliesShown
	QuickRepliesRemoved
)

func (s QuickReplyState) String() string {
	switch s {
	case QuickRepliesPending:
		return "pending"
	case QuickRepliesShown:
		return "shown"
	default:
		return "removed"
	}
}

type WelcomeState int

const (
	WelcomePending WelcomeState = iota
	WelcomeShown
)
