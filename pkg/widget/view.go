package widget

import "chatwidget/pkg/transcript"

// View is a copy of everything a renderer draws. It never aliases controller state.
type View struct {
	SessionID    string
	Visibility   Visibility
	Phase        Phase
	Teaser       TeaserState
	QuickReplies QuickReplyState
	Messages     []transcript.Message
	Stopped      bool

	// Choices holds the quick-reply labels while they are shown.
	Choices []string
}

// Typing reports whether the typing indicator is visible.
func (v View) Typing() bool {
	return v.Phase == PhaseAwaitingReply
}

// Busy reports whether a send is in flight.
func (v View) Busy() bool {
	return v.Phase != PhaseReady
}
