package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"animebot/internal/session"
	"animebot/internal/telegram"
	"animebot/pkg/domain"
	"animebot/pkg/store"
)

// Subscription workflow callbacks.
const (
	cbSubscribe        = "sub:start"
	cbPayPrefix        = "pay:"
	cbPayViewPrefix    = "pay:view:"
	cbPayApprovePrefix = "pay:ok:"
	cbPayRejectPrefix  = "pay:no:"
)

// subProof awaits the user's payment screenshot.
type subProof struct{}

// subDays awaits the admin's duration entry for an approved payment.
type subDays struct{ UserID int64 }

// startSubscription begins the user-side flow. It only registers intent;
// access is granted exclusively by admin approval.
func (a *App) startSubscription(ctx context.Context, k session.Key, ev telegram.Event) {
	user, err := a.store.GetUser(ctx, ev.UserID)
	if err != nil {
		a.log.Error("subscription lookup failed", "user", ev.UserID, "err", err)
		a.send(ctx, ev.ChatID, genericFailure, nil)
		return
	}
	if user.Pending != nil {
		a.send(ctx, ev.ChatID, "Your payment is already awaiting review. Hang tight.", nil)
		return
	}
	cfg, err := a.store.GetSettings(ctx)
	if err != nil {
		a.log.Error("settings read failed", "err", err)
		a.send(ctx, ev.ChatID, genericFailure, nil)
		return
	}
	if cfg.PaymentQRID == "" || cfg.PriceText == "" {
		a.send(ctx, ev.ChatID, "Subscriptions aren't set up yet. Try again later.", nil)
		return
	}
	caption := cfg.PriceText + "\n\nPay via the QR above, then send a screenshot of the payment here."
	if err := a.sender.SendPhoto(ctx, ev.ChatID, cfg.PaymentQRID, caption, nil); err != nil {
		a.log.Error("payment qr send failed", "err", err)
		a.send(ctx, ev.ChatID, genericFailure, nil)
		return
	}
	a.sessions.Put(k, subProof{})
}

func (a *App) handleProof(ctx context.Context, k session.Key, ev telegram.Event) {
	if ev.PhotoID == "" {
		a.send(ctx, ev.ChatID, "Send the payment screenshot as a photo, or /cancel.", nil)
		return
	}
	p := domain.PendingPayment{ProofFileID: ev.PhotoID, SubmittedAt: a.now().UTC()}
	err := a.store.SetPending(ctx, ev.UserID, p)
	switch {
	case errors.Is(err, store.ErrPaymentPending):
		// Second submission while one is outstanding: keep the original,
		// don't ping the admin again.
		a.sessions.Clear(k)
		a.send(ctx, ev.ChatID, "You already have a payment awaiting review.", nil)
		return
	case err != nil:
		a.log.Error("store pending failed", "user", ev.UserID, "err", err)
		a.sessions.Clear(k)
		a.send(ctx, ev.ChatID, genericFailure, nil)
		return
	}
	a.sessions.Clear(k)
	a.send(ctx, ev.ChatID, "Got it! You'll be notified once it's reviewed.", nil)
	a.notifyAdminOfProof(ctx, ev)
}

func (a *App) notifyAdminOfProof(ctx context.Context, ev telegram.Event) {
	count := "?"
	if pending, err := a.store.ListPendingUsers(ctx); err == nil {
		count = strconv.Itoa(len(pending))
	} else {
		a.log.Error("pending count failed", "err", err)
	}
	text := fmt.Sprintf("💳 New payment proof from %s (id %d). Pending total: %s.",
		displayName(ev.FirstName, ev.Username), ev.UserID, count)
	kb := telegram.Keyboard{{{
		Label: "Review",
		Data:  cbPayViewPrefix + strconv.FormatInt(ev.UserID, 10),
	}}}
	if err := a.sender.SendText(ctx, a.adminID, text, kb); err != nil {
		a.log.Error("admin notification failed", "err", err)
	}
}

// cmdPending lists users with an outstanding proof, oldest first.
func (a *App) cmdPending(ctx context.Context, ev telegram.Event) {
	pending, err := a.store.ListPendingUsers(ctx)
	if err != nil {
		a.log.Error("list pending failed", "err", err)
		a.send(ctx, ev.ChatID, genericFailure, nil)
		return
	}
	if len(pending) == 0 {
		a.send(ctx, ev.ChatID, "No pending payments.", nil)
		return
	}
	var kb telegram.Keyboard
	for _, u := range pending {
		kb = append(kb, []telegram.Button{{
			Label: displayName(u.FirstName, u.Username),
			Data:  cbPayViewPrefix + strconv.FormatInt(u.ID, 10),
		}})
	}
	a.send(ctx, ev.ChatID, fmt.Sprintf("%d pending payment(s). Pick one:", len(pending)), kb)
}

func (a *App) handleReviewCallback(ctx context.Context, k session.Key, ev telegram.Event, data string) {
	if !a.isAdmin(ev.UserID) {
		a.log.Warn("review callback denied", "user", ev.UserID)
		a.send(ctx, ev.ChatID, "You are not allowed to do that.", nil)
		return
	}
	switch {
	case strings.HasPrefix(data, cbPayViewPrefix):
		a.reviewProof(ctx, ev, strings.TrimPrefix(data, cbPayViewPrefix))
	case strings.HasPrefix(data, cbPayApprovePrefix):
		a.approveProof(ctx, k, ev, strings.TrimPrefix(data, cbPayApprovePrefix))
	case strings.HasPrefix(data, cbPayRejectPrefix):
		a.rejectProof(ctx, ev, strings.TrimPrefix(data, cbPayRejectPrefix))
	default:
		a.send(ctx, ev.ChatID, "That button is no longer active.", nil)
	}
}

func (a *App) pendingUserFromCallback(ctx context.Context, ev telegram.Event, rawID string) (domain.User, bool) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		a.send(ctx, ev.ChatID, "That button is no longer active.", nil)
		return domain.User{}, false
	}
	user, err := a.store.GetUser(ctx, id)
	if err != nil {
		a.log.Error("review lookup failed", "target", id, "err", err)
		a.send(ctx, ev.ChatID, genericFailure, nil)
		return domain.User{}, false
	}
	return user, true
}

func (a *App) reviewProof(ctx context.Context, ev telegram.Event, rawID string) {
	user, ok := a.pendingUserFromCallback(ctx, ev, rawID)
	if !ok {
		return
	}
	if user.Pending == nil {
		a.send(ctx, ev.ChatID, "That payment is no longer pending.", nil)
		return
	}
	caption := fmt.Sprintf("Proof from %s (id %d), submitted %s.",
		displayName(user.FirstName, user.Username), user.ID,
		user.Pending.SubmittedAt.Format("2006-01-02 15:04 MST"))
	id := strconv.FormatInt(user.ID, 10)
	kb := telegram.Keyboard{{
		{Label: "✅ Approve", Data: cbPayApprovePrefix + id},
		{Label: "❌ Reject", Data: cbPayRejectPrefix + id},
	}}
	if err := a.sender.SendPhoto(ctx, ev.ChatID, user.Pending.ProofFileID, caption, kb); err != nil {
		a.log.Error("proof forward failed", "target", user.ID, "err", err)
		a.send(ctx, ev.ChatID, genericFailure, nil)
	}
}

func (a *App) approveProof(ctx context.Context, k session.Key, ev telegram.Event, rawID string) {
	user, ok := a.pendingUserFromCallback(ctx, ev, rawID)
	if !ok {
		return
	}
	if user.Pending == nil {
		a.send(ctx, ev.ChatID, "That payment is no longer pending.", nil)
		return
	}
	a.sessions.Put(k, subDays{UserID: user.ID})
	a.send(ctx, ev.ChatID,
		fmt.Sprintf("Approving %s — for how many days? Send a whole number.",
			displayName(user.FirstName, user.Username)), nil)
}

// handleDuration finishes an approval: positive-integer day count, expiry
// computed from now, pending cleared, user notified.
func (a *App) handleDuration(ctx context.Context, k session.Key, ev telegram.Event, s subDays) {
	n, err := strconv.Atoi(strings.TrimSpace(ev.Text))
	if ev.Text == "" || err != nil || n <= 0 {
		a.send(ctx, ev.ChatID, "Send the duration as a positive whole number of days.", nil)
		return
	}
	until := a.now().UTC().AddDate(0, 0, n)
	if err := a.store.Activate(ctx, s.UserID, until); err != nil {
		a.log.Error("activate failed", "target", s.UserID, "err", err)
		a.sessions.Clear(k)
		a.send(ctx, ev.ChatID, genericFailure, nil)
		return
	}
	a.sessions.Clear(k)
	a.log.Info("subscription approved", "target", s.UserID, "days", n)
	a.send(ctx, ev.ChatID,
		fmt.Sprintf("Approved. Subscription runs until %s.", until.Format("2006-01-02")), nil)
	a.send(ctx, s.UserID,
		fmt.Sprintf("🎉 Your subscription is active until %s. Enjoy!", until.Format("2006-01-02")), nil)
}

func (a *App) rejectProof(ctx context.Context, ev telegram.Event, rawID string) {
	user, ok := a.pendingUserFromCallback(ctx, ev, rawID)
	if !ok {
		return
	}
	if user.Pending == nil {
		a.send(ctx, ev.ChatID, "That payment is no longer pending.", nil)
		return
	}
	if err := a.store.ClearPending(ctx, user.ID); err != nil {
		a.log.Error("reject failed", "target", user.ID, "err", err)
		a.send(ctx, ev.ChatID, genericFailure, nil)
		return
	}
	a.log.Info("payment rejected", "target", user.ID)
	a.send(ctx, ev.ChatID, "Rejected.", nil)
	a.send(ctx, user.ID, "Your payment proof was rejected. Contact support if this seems wrong.", nil)
}

func displayName(first, username string) string {
	if username != "" {
		return fmt.Sprintf("%s (@%s)", first, username)
	}
	return first
}
