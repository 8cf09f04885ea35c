package conversation

import (
	"context"

	"github.com/edgard/matchbot/internal/domain"
)

// EventKind classifies an inbound update.
type EventKind int

const (
	EventText EventKind = iota + 1
	EventCommand
	EventCallback
	EventPhoto
	EventLocation
)

func (k EventKind) String() string {
	switch k {
	case EventText:
		return "text"
	case EventCommand:
		return "command"
	case EventCallback:
		return "callback"
	case EventPhoto:
		return "photo"
	case EventLocation:
		return "location"
	default:
		return "unknown"
	}
}

// Event is a transport-independent inbound update.
type Event struct {
	Kind      EventKind
	UserID    domain.UserID
	Handle    string
	FirstName string
	// Text is the message text, or the command name without the slash.
	Text string
	// Data is the callback payload.
	Data      string
	PhotoRef  string
	Latitude  float64
	Longitude float64
}

// Button is a reply keyboard key.
type Button struct {
	Text            string
	RequestLocation bool
}

// InlineButton is attached to a message. Exactly one of Data or URL is set.
type InlineButton struct {
	Text string
	Data string
	URL  string
}

// Message is an outbound reply. When PhotoRef is set Text is the caption.
type Message struct {
	Text           string
	PhotoRef       string
	HTML           bool
	Keyboard       [][]Button
	Inline         [][]InlineButton
	RemoveKeyboard bool
}

// Sender delivers messages to a user.
type Sender interface {
	Send(ctx context.Context, to domain.UserID, msg Message) error
}
