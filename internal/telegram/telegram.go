// Package telegram adapts the Telegram Bot API to the narrow transport
// surface the application consumes: normalized inbound events and a small
// set of outbound sends.
package telegram

import "context"

// Button is one inline keyboard button; Data rides back on the callback.
type Button struct {
	Label string
	Data  string
}

// Keyboard is rows of buttons.
type Keyboard [][]Button

// Callback is a button press on a previously sent keyboard.
type Callback struct {
	ID        string
	Data      string
	MessageID int
}

// Event is a normalized inbound interaction. Exactly one of the payload
// groups is populated: a command, plain text, a media upload, or a
// callback.
type Event struct {
	UpdateID  int
	UserID    int64
	ChatID    int64
	FirstName string
	Username  string

	Command string // without leading slash, empty if none
	Args    string
	Text    string

	PhotoID    string // largest variant's file ID
	VideoID    string
	DocumentID string

	Callback *Callback
}

// HasMedia reports whether the event carries any uploaded asset.
func (e Event) HasMedia() bool {
	return e.PhotoID != "" || e.VideoID != "" || e.DocumentID != ""
}

// Sender is the outbound half of the transport. Chat IDs double as user
// IDs for direct messages, which notification paths rely on.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string, kb Keyboard) error
	SendPhoto(ctx context.Context, chatID int64, fileID, caption string, kb Keyboard) error
	SendVideo(ctx context.Context, chatID int64, fileID, caption string) error
	SendDocument(ctx context.Context, chatID int64, fileID, caption string) error
	EditText(ctx context.Context, chatID int64, messageID int, text string, kb Keyboard) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// Handler consumes normalized events.
type Handler interface {
	HandleEvent(ctx context.Context, ev Event)
}
