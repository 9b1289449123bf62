package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Client implements Sender over the Bot API and runs the long-poll loop.
type Client struct {
	api *tgbotapi.BotAPI
	log *slog.Logger

	mu      sync.Mutex
	workers map[int64]chan Event
	wg      sync.WaitGroup
}

func NewClient(token string, logger *slog.Logger) (*Client, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect bot api: %w", err)
	}
	return &Client{
		api:     api,
		log:     logger,
		workers: make(map[int64]chan Event),
	}, nil
}

// Username returns the bot account name reported by the transport.
func (c *Client) Username() string {
	return c.api.Self.UserName
}

// Run polls for updates until the context is cancelled. Updates are
// dispatched through one worker goroutine per chat: the transport delivers
// a chat's updates in order, and the per-chat queue preserves that order
// while unrelated chats proceed concurrently.
func (c *Client) Run(ctx context.Context, h Handler) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := c.api.GetUpdatesChan(cfg)

	for {
		select {
		case <-ctx.Done():
			c.api.StopReceivingUpdates()
			c.drain()
			return ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				c.drain()
				return nil
			}
			ev, ok := normalize(upd)
			if !ok {
				continue
			}
			c.dispatch(ctx, h, ev)
		}
	}
}

func (c *Client) dispatch(ctx context.Context, h Handler, ev Event) {
	c.mu.Lock()
	ch, ok := c.workers[ev.ChatID]
	if !ok {
		ch = make(chan Event, 16)
		c.workers[ev.ChatID] = ch
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			for e := range ch {
				h.HandleEvent(ctx, e)
			}
		}()
	}
	c.mu.Unlock()

	select {
	case ch <- ev:
	default:
		c.log.Warn("chat queue full, dropping update",
			"chat", ev.ChatID, "update", ev.UpdateID)
	}
}

func (c *Client) drain() {
	c.mu.Lock()
	for _, ch := range c.workers {
		close(ch)
	}
	c.workers = make(map[int64]chan Event)
	c.mu.Unlock()
	c.wg.Wait()
}

func normalize(upd tgbotapi.Update) (Event, bool) {
	if cb := upd.CallbackQuery; cb != nil && cb.From != nil {
		ev := Event{
			UpdateID:  upd.UpdateID,
			UserID:    cb.From.ID,
			FirstName: cb.From.FirstName,
			Username:  cb.From.UserName,
			Callback:  &Callback{ID: cb.ID, Data: cb.Data},
		}
		ev.ChatID = cb.From.ID
		if cb.Message != nil {
			ev.ChatID = cb.Message.Chat.ID
			ev.Callback.MessageID = cb.Message.MessageID
		}
		return ev, true
	}
	msg := upd.Message
	if msg == nil || msg.From == nil {
		return Event{}, false
	}
	ev := Event{
		UpdateID:  upd.UpdateID,
		UserID:    msg.From.ID,
		ChatID:    msg.Chat.ID,
		FirstName: msg.From.FirstName,
		Username:  msg.From.UserName,
	}
	if msg.IsCommand() {
		ev.Command = msg.Command()
		ev.Args = msg.CommandArguments()
	} else {
		ev.Text = msg.Text
	}
	if len(msg.Photo) > 0 {
		ev.PhotoID = msg.Photo[len(msg.Photo)-1].FileID
	}
	if msg.Video != nil {
		ev.VideoID = msg.Video.FileID
	}
	if msg.Document != nil {
		ev.DocumentID = msg.Document.FileID
	}
	return ev, true
}

func markup(kb Keyboard) *tgbotapi.InlineKeyboardMarkup {
	if len(kb) == 0 {
		return nil
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		btns := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			btns = append(btns, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data))
		}
		rows = append(rows, btns)
	}
	m := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &m
}

func (c *Client) SendText(_ context.Context, chatID int64, text string, kb Keyboard) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if m := markup(kb); m != nil {
		msg.ReplyMarkup = m
	}
	if _, err := c.api.Send(msg); err != nil {
		return fmt.Errorf("send text to %d: %w", chatID, err)
	}
	return nil
}

func (c *Client) SendPhoto(_ context.Context, chatID int64, fileID, caption string, kb Keyboard) error {
	msg := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(fileID))
	msg.Caption = caption
	if m := markup(kb); m != nil {
		msg.ReplyMarkup = m
	}
	if _, err := c.api.Send(msg); err != nil {
		return fmt.Errorf("send photo to %d: %w", chatID, err)
	}
	return nil
}

func (c *Client) SendVideo(_ context.Context, chatID int64, fileID, caption string) error {
	msg := tgbotapi.NewVideo(chatID, tgbotapi.FileID(fileID))
	msg.Caption = caption
	if _, err := c.api.Send(msg); err != nil {
		return fmt.Errorf("send video to %d: %w", chatID, err)
	}
	return nil
}

func (c *Client) SendDocument(_ context.Context, chatID int64, fileID, caption string) error {
	msg := tgbotapi.NewDocument(chatID, tgbotapi.FileID(fileID))
	msg.Caption = caption
	if _, err := c.api.Send(msg); err != nil {
		return fmt.Errorf("send document to %d: %w", chatID, err)
	}
	return nil
}

func (c *Client) EditText(_ context.Context, chatID int64, messageID int, text string, kb Keyboard) error {
	var cfg tgbotapi.EditMessageTextConfig
	if m := markup(kb); m != nil {
		cfg = tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, *m)
	} else {
		cfg = tgbotapi.NewEditMessageText(chatID, messageID, text)
	}
	if _, err := c.api.Send(cfg); err != nil {
		return fmt.Errorf("edit message %d in %d: %w", messageID, chatID, err)
	}
	return nil
}

func (c *Client) AnswerCallback(_ context.Context, callbackID, text string) error {
	cb := tgbotapi.NewCallback(callbackID, text)
	if _, err := c.api.Request(cb); err != nil {
		return fmt.Errorf("answer callback: %w", err)
	}
	return nil
}
