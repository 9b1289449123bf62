package app

import (
	"context"
	"strings"
	"testing"

	"animebot/pkg/store"
)

func TestSetPriceAndQR(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.app.HandleEvent(ctx, cmdEv(adminID, "setprice", ""))
	if !strings.Contains(f.sender.last(t).text, "Usage:") {
		t.Fatalf("missing usage hint: %q", f.sender.last(t).text)
	}
	f.app.HandleEvent(ctx, cmdEv(adminID, "setprice", "150 per month"))

	f.app.HandleEvent(ctx, cmdEv(adminID, "setqr", "payment"))
	f.app.HandleEvent(ctx, textEv(adminID, "not a photo"))
	if !strings.Contains(f.sender.last(t).text, "as a photo") {
		t.Fatalf("non-photo QR accepted: %q", f.sender.last(t).text)
	}
	f.app.HandleEvent(ctx, photoEv(adminID, "qr-img"))

	cfg, err := f.store.GetSettings(ctx)
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if cfg.PriceText != "150 per month" || cfg.PaymentQRID != "qr-img" {
		t.Fatalf("settings not stored: %+v", cfg)
	}
}

func TestSettingsCommandsAreAdminOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, cmd := range []string{"setprice", "setqr", "setlink", "pending", "add"} {
		f.app.HandleEvent(ctx, cmdEv(5, cmd, "x"))
		if got := f.sender.last(t).text; got != "You are not allowed to do that." {
			t.Fatalf("/%s reply: %q", cmd, got)
		}
	}
}

func TestSetLinkAndLinksListing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.app.HandleEvent(ctx, cmdEv(adminID, "setlink", "channel ftp://bad"))
	if !strings.Contains(f.sender.last(t).text, "Usage:") {
		t.Fatalf("bad url accepted: %q", f.sender.last(t).text)
	}
	f.app.HandleEvent(ctx, cmdEv(adminID, "setlink", "channel https://t.example/chan"))
	f.app.HandleEvent(ctx, cmdEv(adminID, "setlink", "backup https://example.com/b"))

	f.app.HandleEvent(ctx, cmdEv(5, "links", ""))
	got := f.sender.lastTo(t, 5).text
	want := "backup: https://example.com/b\nchannel: https://t.example/chan"
	if got != want {
		t.Fatalf("links listing = %q, want %q", got, want)
	}
}

func TestDonateUsesDonationQR(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.app.HandleEvent(ctx, cmdEv(5, "donate", ""))
	if !strings.Contains(f.sender.lastTo(t, 5).text, "aren't set up") {
		t.Fatalf("unconfigured donate reply: %q", f.sender.lastTo(t, 5).text)
	}

	if err := f.store.SetSettingsField(ctx, store.FieldDonationQR, "qr-don"); err != nil {
		t.Fatalf("seed donation qr: %v", err)
	}
	f.app.HandleEvent(ctx, cmdEv(5, "donate", ""))
	got := f.sender.lastTo(t, 5)
	if got.kind != "photo" || got.fileID != "qr-don" {
		t.Fatalf("donate delivery: %+v", got)
	}
}
