package bus

import "time"

type EventType string

const (
	EventMessageAppended   EventType = "message_appended"
	EventRevealProgress    EventType = "reveal_progress"
	EventRevealCompleted   EventType = "reveal_completed"
	EventTypingShown       EventType = "typing_shown"
	EventTypingHidden      EventType = "typing_hidden"
	EventTeaserShown       EventType = "teaser_shown"
	EventTeaserDismissed   EventType = "teaser_dismissed"
	EventQuickRepliesShown EventType = "quick_replies_shown"
	EventQuickRepliesGone  EventType = "quick_replies_removed"
	EventVisibilityChanged EventType = "visibility_changed"
	EventTransportFailed   EventType = "transport_failed"
	EventShutdown          EventType = "shutdown"
)

// Event announces one controller state change. Renderers treat it as a signal
// to re-read the controller snapshot; the fields are informational.
type Event struct {
	Type      EventType `json:"type"`
	At        time.Time `json:"at"`
	SessionID string    `json:"session_id,omitempty"`
	MessageID int       `json:"message_id,omitempty"`
	Text      string    `json:"text,omitempty"`
	Error     string    `json:"error,omitempty"`
}
