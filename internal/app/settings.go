package app

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"animebot/internal/session"
	"animebot/internal/telegram"
	"animebot/pkg/store"
)

// awaitQR is the one-step flow collecting a QR image for a settings field.
type awaitQR struct{ Field store.SettingsField }

func (a *App) cmdSetPrice(ctx context.Context, ev telegram.Event) {
	price := strings.TrimSpace(ev.Args)
	if price == "" {
		a.send(ctx, ev.ChatID, "Usage: /setprice <text shown to subscribers>", nil)
		return
	}
	if err := a.store.SetSettingsField(ctx, store.FieldPriceText, price); err != nil {
		a.log.Error("set price failed", "err", err)
		a.send(ctx, ev.ChatID, genericFailure, nil)
		return
	}
	a.send(ctx, ev.ChatID, "Price text updated.", nil)
}

func (a *App) cmdSetQR(ctx context.Context, k session.Key, ev telegram.Event) {
	var field store.SettingsField
	switch strings.TrimSpace(ev.Args) {
	case "payment":
		field = store.FieldPaymentQR
	case "donation":
		field = store.FieldDonationQR
	default:
		a.send(ctx, ev.ChatID, "Usage: /setqr payment|donation", nil)
		return
	}
	a.sessions.Put(k, awaitQR{Field: field})
	a.send(ctx, ev.ChatID, "Send the QR image now, or /cancel.", nil)
}

func (a *App) handleQRUpload(ctx context.Context, k session.Key, ev telegram.Event, s awaitQR) {
	if ev.PhotoID == "" {
		a.send(ctx, ev.ChatID, "Send the QR as a photo, or /cancel.", nil)
		return
	}
	if err := a.store.SetSettingsField(ctx, s.Field, ev.PhotoID); err != nil {
		a.log.Error("set qr failed", "field", s.Field, "err", err)
		a.sessions.Clear(k)
		a.send(ctx, ev.ChatID, genericFailure, nil)
		return
	}
	a.sessions.Clear(k)
	a.send(ctx, ev.ChatID, "QR image updated.", nil)
}

func (a *App) cmdSetLink(ctx context.Context, ev telegram.Event) {
	parts := strings.Fields(ev.Args)
	if len(parts) != 2 || !strings.HasPrefix(parts[1], "http") {
		a.send(ctx, ev.ChatID, "Usage: /setlink <name> <url>", nil)
		return
	}
	if err := a.store.SetLink(ctx, parts[0], parts[1]); err != nil {
		a.log.Error("set link failed", "name", parts[0], "err", err)
		a.send(ctx, ev.ChatID, genericFailure, nil)
		return
	}
	a.send(ctx, ev.ChatID, fmt.Sprintf("Link %q updated.", parts[0]), nil)
}

func (a *App) cmdLinks(ctx context.Context, ev telegram.Event) {
	cfg, err := a.store.GetSettings(ctx)
	if err != nil {
		a.log.Error("settings read failed", "err", err)
		a.send(ctx, ev.ChatID, genericFailure, nil)
		return
	}
	if len(cfg.Links) == 0 {
		a.send(ctx, ev.ChatID, "No links configured yet.", nil)
		return
	}
	names := make([]string, 0, len(cfg.Links))
	for name := range cfg.Links {
		names = append(names, name)
	}
	sort.Strings(names)
	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "%s: %s\n", name, cfg.Links[name])
	}
	a.send(ctx, ev.ChatID, strings.TrimRight(b.String(), "\n"), nil)
}

func (a *App) cmdDonate(ctx context.Context, ev telegram.Event) {
	cfg, err := a.store.GetSettings(ctx)
	if err != nil {
		a.log.Error("settings read failed", "err", err)
		a.send(ctx, ev.ChatID, genericFailure, nil)
		return
	}
	if cfg.DonationQRID == "" {
		a.send(ctx, ev.ChatID, "Donations aren't set up yet.", nil)
		return
	}
	if err := a.sender.SendPhoto(ctx, ev.ChatID, cfg.DonationQRID, "Thank you for supporting us! ❤️", nil); err != nil {
		a.log.Error("donation qr send failed", "err", err)
		a.send(ctx, ev.ChatID, genericFailure, nil)
	}
}
