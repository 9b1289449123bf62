// Package app is the bot's core: it classifies inbound events, drives the
// per-actor conversation workflows, and mediates every catalog and
// subscription operation.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"animebot/internal/dedupe"
	"animebot/internal/ratelimit"
	"animebot/internal/session"
	"animebot/internal/telegram"
	"animebot/internal/token"
	"animebot/pkg/store"
)

const genericFailure = "Something went wrong. Please try again."

// Config holds the dependencies for the core application.
type Config struct {
	Store    store.Store
	Sender   telegram.Sender
	Sessions *session.Manager
	Dedupe   dedupe.Guard                  // optional
	Limiter  *ratelimit.FixedWindowLimiter // optional
	AdminID  int64
	Logger   *slog.Logger
	Now      func() time.Time // defaults to time.Now
}

// App wires storage, transport, and the conversation engine together.
type App struct {
	store    store.Store
	sender   telegram.Sender
	sessions *session.Manager
	dedupe   dedupe.Guard
	limiter  *ratelimit.FixedWindowLimiter
	adminID  int64
	log      *slog.Logger
	now      func() time.Time
}

// New validates the configuration and constructs the application.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, errors.New("app: store required")
	}
	if cfg.Sender == nil {
		return nil, errors.New("app: sender required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("app: session manager required")
	}
	if cfg.AdminID == 0 {
		return nil, errors.New("app: admin id required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &App{
		store:    cfg.Store,
		sender:   cfg.Sender,
		sessions: cfg.Sessions,
		dedupe:   cfg.Dedupe,
		limiter:  cfg.Limiter,
		adminID:  cfg.AdminID,
		log:      logger,
		now:      now,
	}, nil
}

func (a *App) isAdmin(userID int64) bool { return userID == a.adminID }

// HandleEvent processes one inbound interaction. It never panics outward:
// a failed transition logs, clears the actor's session, and answers with a
// generic failure message.
func (a *App) HandleEvent(ctx context.Context, ev telegram.Event) {
	if a.dedupe != nil && a.dedupe.Seen(ctx, ev.UpdateID) {
		a.log.Debug("duplicate update dropped", "update", ev.UpdateID)
		return
	}
	if !a.limiter.AllowUser(ev.UserID) {
		a.log.Debug("rate limited", "user", ev.UserID)
		return
	}

	k := session.Key{UserID: ev.UserID, ChatID: ev.ChatID}
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("panic while handling update",
				"user", ev.UserID, "chat", ev.ChatID,
				"panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			a.sessions.Clear(k)
			a.send(ctx, ev.ChatID, genericFailure, nil)
		}
	}()

	user, err := a.store.EnsureUser(ctx, ev.UserID, ev.FirstName, ev.Username)
	if err != nil {
		a.log.Error("ensure user failed", "user", ev.UserID, "err", err)
		a.send(ctx, ev.ChatID, genericFailure, nil)
		return
	}

	switch {
	case ev.Callback != nil:
		a.handleCallback(ctx, k, ev, user.ID)
	case ev.Command != "":
		a.handleCommand(ctx, k, ev)
	default:
		a.continueWorkflow(ctx, k, ev)
	}
}

func (a *App) handleCallback(ctx context.Context, k session.Key, ev telegram.Event, userID int64) {
	if err := a.sender.AnswerCallback(ctx, ev.Callback.ID, ""); err != nil {
		a.log.Debug("answer callback failed", "err", err)
	}
	data := ev.Callback.Data
	switch {
	case token.IsToken(data):
		a.browse(ctx, ev, data)
	case data == cbSubscribe:
		a.startSubscription(ctx, k, ev)
	case strings.HasPrefix(data, cbPayPrefix):
		a.handleReviewCallback(ctx, k, ev, data)
	default:
		// Workflow buttons (kind/quality/next/skip) only mean something
		// inside an active session.
		a.continueWorkflow(ctx, k, ev)
	}
}

func (a *App) handleCommand(ctx context.Context, k session.Key, ev telegram.Event) {
	switch ev.Command {
	case "start":
		a.sessions.Clear(k)
		a.cmdStart(ctx, ev)
	case "help":
		a.cmdHelp(ctx, ev)
	case "cancel":
		a.cmdCancel(ctx, k, ev)
	case "menu":
		a.cmdMenu(ctx, ev)
	case "subscribe":
		a.startSubscription(ctx, k, ev)
	case "donate":
		a.cmdDonate(ctx, ev)
	case "links":
		a.cmdLinks(ctx, ev)
	case "add":
		a.adminOnly(ctx, ev, func() { a.startAuthoring(ctx, k, ev) })
	case "pending":
		a.adminOnly(ctx, ev, func() { a.cmdPending(ctx, ev) })
	case "setprice":
		a.adminOnly(ctx, ev, func() { a.cmdSetPrice(ctx, ev) })
	case "setqr":
		a.adminOnly(ctx, ev, func() { a.cmdSetQR(ctx, k, ev) })
	case "setlink":
		a.adminOnly(ctx, ev, func() { a.cmdSetLink(ctx, ev) })
	default:
		a.send(ctx, ev.ChatID, "Unknown command. Try /help.", nil)
	}
}

func (a *App) adminOnly(ctx context.Context, ev telegram.Event, fn func()) {
	if !a.isAdmin(ev.UserID) {
		a.log.Warn("admin command denied", "user", ev.UserID, "command", ev.Command)
		a.send(ctx, ev.ChatID, "You are not allowed to do that.", nil)
		return
	}
	fn()
}

// continueWorkflow routes an event into whichever workflow the actor has in
// progress. With no session, stray input gets a gentle hint instead of
// silence.
func (a *App) continueWorkflow(ctx context.Context, k session.Key, ev telegram.Event) {
	st, ok := a.sessions.Get(k)
	if !ok {
		if ev.Callback != nil {
			a.send(ctx, ev.ChatID, "That button is no longer active.", nil)
		} else if ev.Text != "" || ev.HasMedia() {
			a.send(ctx, ev.ChatID, "Nothing in progress. Try /menu.", nil)
		}
		return
	}
	switch s := st.(type) {
	case authorState:
		a.advanceAuthoring(ctx, k, ev, s)
	case subProof:
		a.handleProof(ctx, k, ev)
	case subDays:
		a.handleDuration(ctx, k, ev, s)
	case awaitQR:
		a.handleQRUpload(ctx, k, ev, s)
	default:
		a.log.Error("unknown session state discarded", "user", k.UserID)
		a.sessions.Clear(k)
	}
}

func (a *App) cmdStart(ctx context.Context, ev telegram.Event) {
	text := fmt.Sprintf("Hi %s! I deliver the catalog right here in chat.\n"+
		"Browse with /menu, see /help for everything else.", ev.FirstName)
	a.send(ctx, ev.ChatID, text, telegram.Keyboard{
		{{Label: "Subscribe", Data: cbSubscribe}},
	})
}

func (a *App) cmdHelp(ctx context.Context, ev telegram.Event) {
	lines := []string{
		"/menu — browse the catalog",
		"/subscribe — request a subscription",
		"/donate — support us",
		"/links — useful links",
		"/cancel — abort the current operation",
	}
	if a.isAdmin(ev.UserID) {
		lines = append(lines,
			"",
			"/add — add catalog content",
			"/pending — review payment proofs",
			"/setprice <text> — set the price text",
			"/setqr payment|donation — set a QR image",
			"/setlink <name> <url> — set an outbound link",
		)
	}
	a.send(ctx, ev.ChatID, strings.Join(lines, "\n"), nil)
}

// cmdCancel is the fallback transition: it works from every state and
// discards the draft.
func (a *App) cmdCancel(ctx context.Context, k session.Key, ev telegram.Event) {
	if _, ok := a.sessions.Get(k); !ok {
		a.send(ctx, ev.ChatID, "Nothing to cancel.", nil)
		return
	}
	a.sessions.Clear(k)
	a.send(ctx, ev.ChatID, "Cancelled.", nil)
}

// send delivers a reply, logging transport failures instead of propagating
// them; an undeliverable reply must not poison the workflow state.
func (a *App) send(ctx context.Context, chatID int64, text string, kb telegram.Keyboard) {
	if err := a.sender.SendText(ctx, chatID, text, kb); err != nil {
		a.log.Error("send failed", "chat", chatID, "err", err)
	}
}
