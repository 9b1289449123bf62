package app

import (
	"context"
	"strings"
	"testing"

	"animebot/pkg/store"
)

func configurePayments(t *testing.T, f *fixture) {
	t.Helper()
	ctx := context.Background()
	if err := f.store.SetSettingsField(ctx, store.FieldPaymentQR, "qr-pay"); err != nil {
		t.Fatalf("seed qr: %v", err)
	}
	if err := f.store.SetSettingsField(ctx, store.FieldPriceText, "100/month"); err != nil {
		t.Fatalf("seed price: %v", err)
	}
}

func TestSubscribeRequiresConfiguration(t *testing.T) {
	f := newFixture(t)
	f.app.HandleEvent(context.Background(), cmdEv(5, "subscribe", ""))
	if !strings.Contains(f.sender.last(t).text, "aren't set up") {
		t.Fatalf("unconfigured subscribe not refused: %q", f.sender.last(t).text)
	}
	// No session was opened: a photo now is stray input.
	f.app.HandleEvent(context.Background(), photoEv(5, "proof"))
	if !strings.Contains(f.sender.last(t).text, "Nothing in progress") {
		t.Fatalf("session opened despite refusal: %q", f.sender.last(t).text)
	}
}

func TestSubscriptionApprovalEndToEnd(t *testing.T) {
	f := newFixture(t)
	configurePayments(t, f)
	ctx := context.Background()
	const userID = int64(5)

	// User requests payment details.
	f.app.HandleEvent(ctx, cmdEv(userID, "subscribe", ""))
	qr := f.sender.lastTo(t, userID)
	if qr.kind != "photo" || qr.fileID != "qr-pay" || !strings.Contains(qr.text, "100/month") {
		t.Fatalf("payment prompt wrong: %+v", qr)
	}

	// User submits proof; record is created and the admin is notified.
	f.app.HandleEvent(ctx, photoEv(userID, "proof-1"))
	u, err := f.store.GetUser(ctx, userID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u.Pending == nil || u.Pending.ProofFileID != "proof-1" {
		t.Fatalf("pending not stored: %+v", u.Pending)
	}
	note := f.sender.lastTo(t, adminID)
	if !strings.Contains(note.text, "Pending total: 1") {
		t.Fatalf("admin notification wrong: %q", note.text)
	}
	if data := buttonData(note.kb); len(data) != 1 || data[0] != "pay:view:5" {
		t.Fatalf("review button wrong: %v", buttonData(note.kb))
	}

	// Admin reviews: the proof image is forwarded with approve/reject choices.
	f.app.HandleEvent(ctx, cbEv(adminID, "pay:view:5"))
	review := f.sender.lastTo(t, adminID)
	if review.kind != "photo" || review.fileID != "proof-1" {
		t.Fatalf("proof not forwarded: %+v", review)
	}
	if data := buttonData(review.kb); len(data) != 2 || data[0] != "pay:ok:5" || data[1] != "pay:no:5" {
		t.Fatalf("review buttons: %v", buttonData(review.kb))
	}

	// Approve. Garbage durations are re-prompted without losing the flow.
	f.app.HandleEvent(ctx, cbEv(adminID, "pay:ok:5"))
	for _, bad := range []string{"abc", "-5", "0"} {
		f.app.HandleEvent(ctx, textEv(adminID, bad))
		if !strings.Contains(f.sender.lastTo(t, adminID).text, "positive whole number") {
			t.Fatalf("duration %q not re-prompted: %q", bad, f.sender.lastTo(t, adminID).text)
		}
	}
	f.app.HandleEvent(ctx, textEv(adminID, "30"))

	u, err = f.store.GetUser(ctx, userID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if !u.Subscribed || u.Pending != nil || u.ExpiresAt == nil {
		t.Fatalf("activation incomplete: %+v", u)
	}
	want := testNow.AddDate(0, 0, 30)
	if !u.ExpiresAt.Equal(want) {
		t.Fatalf("expiry = %v, want %v", u.ExpiresAt, want)
	}
	if !strings.Contains(f.sender.lastTo(t, userID).text, "active until") {
		t.Fatalf("user not notified: %q", f.sender.lastTo(t, userID).text)
	}
}

func TestSecondProofKeepsFirst(t *testing.T) {
	f := newFixture(t)
	configurePayments(t, f)
	ctx := context.Background()

	f.app.HandleEvent(ctx, cmdEv(5, "subscribe", ""))
	f.app.HandleEvent(ctx, photoEv(5, "first"))

	// The session is closed, so the second attempt goes through /subscribe
	// again and is short-circuited by the outstanding record.
	f.app.HandleEvent(ctx, cmdEv(5, "subscribe", ""))
	if !strings.Contains(f.sender.lastTo(t, 5).text, "already awaiting review") {
		t.Fatalf("duplicate not short-circuited: %q", f.sender.lastTo(t, 5).text)
	}
	u, err := f.store.GetUser(ctx, 5)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u.Pending == nil || u.Pending.ProofFileID != "first" {
		t.Fatalf("original proof lost: %+v", u.Pending)
	}
}

func TestRejectClearsPendingAndNotifies(t *testing.T) {
	f := newFixture(t)
	configurePayments(t, f)
	ctx := context.Background()

	f.app.HandleEvent(ctx, cmdEv(5, "subscribe", ""))
	f.app.HandleEvent(ctx, photoEv(5, "proof"))
	f.app.HandleEvent(ctx, cbEv(adminID, "pay:no:5"))

	u, err := f.store.GetUser(ctx, 5)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u.Pending != nil || u.Subscribed {
		t.Fatalf("reject did not clear pending: %+v", u)
	}
	if !strings.Contains(f.sender.lastTo(t, 5).text, "rejected") {
		t.Fatalf("user not told: %q", f.sender.lastTo(t, 5).text)
	}
}

func TestReviewCallbacksAreAdminOnly(t *testing.T) {
	f := newFixture(t)
	configurePayments(t, f)
	ctx := context.Background()

	f.app.HandleEvent(ctx, cmdEv(5, "subscribe", ""))
	f.app.HandleEvent(ctx, photoEv(5, "proof"))

	f.app.HandleEvent(ctx, cbEv(6, "pay:ok:5"))
	if got := f.sender.lastTo(t, 6).text; got != "You are not allowed to do that." {
		t.Fatalf("non-admin approval reply: %q", got)
	}
	u, err := f.store.GetUser(ctx, 5)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u.Subscribed || u.Pending == nil {
		t.Fatalf("non-admin callback changed state: %+v", u)
	}
}

func TestStaleReviewButton(t *testing.T) {
	f := newFixture(t)
	// No pending record exists for this user.
	ctx := context.Background()
	f.app.HandleEvent(ctx, cmdEv(7, "start", ""))
	f.app.HandleEvent(ctx, cbEv(adminID, "pay:view:7"))
	if !strings.Contains(f.sender.lastTo(t, adminID).text, "no longer pending") {
		t.Fatalf("stale button reply: %q", f.sender.lastTo(t, adminID).text)
	}
}
