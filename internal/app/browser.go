package app

import (
	"context"
	"errors"
	"fmt"

	"animebot/internal/telegram"
	"animebot/internal/token"
	"animebot/pkg/domain"
	"animebot/pkg/store"
)

// cmdMenu opens the catalog at the title list.
func (a *App) cmdMenu(ctx context.Context, ev telegram.Event) {
	a.browse(ctx, ev, token.Prefix)
}

// browse is the stateless navigation handler: the full position rides in
// the token, so any button press can be served without session memory.
func (a *App) browse(ctx context.Context, ev telegram.Event, data string) {
	p, err := token.Decode(data)
	if err != nil {
		a.log.Warn("bad nav token", "data", data, "err", err)
		a.send(ctx, ev.ChatID, "That button is invalid or has expired.", nil)
		return
	}
	if active, reason := a.checkAccess(ctx, ev.UserID); !active {
		a.refuseAccess(ctx, ev, reason)
		return
	}
	if p.Depth() == 0 {
		a.renderTitleList(ctx, ev)
		return
	}
	title, err := a.store.GetTitle(ctx, p.TitleID)
	if errors.Is(err, store.ErrNotFound) {
		a.send(ctx, ev.ChatID, "That title is no longer in the catalog.", nil)
		return
	}
	if err != nil {
		a.log.Error("title lookup failed", "title", p.TitleID, "err", err)
		a.send(ctx, ev.ChatID, genericFailure, nil)
		return
	}
	switch p.Depth() {
	case 1:
		a.renderSeasonList(ctx, ev, title, p)
	case 2:
		a.renderEpisodeList(ctx, ev, title, p)
	case 3:
		a.renderQualityList(ctx, ev, title, p)
	default:
		a.deliver(ctx, ev, title, p)
	}
}

func (a *App) refuseAccess(ctx context.Context, ev telegram.Event, reason string) {
	text := fmt.Sprintf("⛔ %s. Subscribe to access the catalog.", capitalize(reason))
	a.send(ctx, ev.ChatID, text, telegram.Keyboard{
		{{Label: "Subscribe", Data: cbSubscribe}},
	})
}

func (a *App) renderTitleList(ctx context.Context, ev telegram.Event) {
	titles, err := a.store.ListTitles(ctx)
	if err != nil {
		a.log.Error("list titles failed", "err", err)
		a.send(ctx, ev.ChatID, genericFailure, nil)
		return
	}
	if len(titles) == 0 {
		a.render(ctx, ev, "The catalog is empty for now.", nil)
		return
	}
	var kb telegram.Keyboard
	for _, t := range titles {
		data, err := token.Encode(token.Path{TitleID: t.ID})
		if err != nil {
			a.log.Warn("skipping title button", "title", t.ID, "err", err)
			continue
		}
		kb = append(kb, []telegram.Button{{Label: t.Name, Data: data}})
	}
	a.render(ctx, ev, "Pick a title:", kb)
}

func (a *App) renderSeasonList(ctx context.Context, ev telegram.Event, title domain.Title, p token.Path) {
	kb := a.childButtons(p, domain.SortKeys(mapKeys(title.Seasons)), 4)
	kb = append(kb, backRow(p))
	a.render(ctx, ev, fmt.Sprintf("%s — pick a season:", title.Name), kb)
}

func (a *App) renderEpisodeList(ctx context.Context, ev telegram.Event, title domain.Title, p token.Path) {
	season, ok := title.Seasons[p.Season]
	if !ok {
		a.send(ctx, ev.ChatID, "That season is no longer in the catalog.", nil)
		return
	}
	kb := a.childButtons(p, domain.SortKeys(mapKeys(season.Episodes)), 4)
	kb = append(kb, backRow(p))
	a.render(ctx, ev,
		fmt.Sprintf("%s — season %s — pick an episode:", title.Name, p.Season), kb)
}

func (a *App) renderQualityList(ctx context.Context, ev telegram.Event, title domain.Title, p token.Path) {
	ep, ok := title.Seasons[p.Season].Episodes[p.Episode]
	if !ok {
		a.send(ctx, ev.ChatID, "That episode is no longer in the catalog.", nil)
		return
	}
	// Fixed tiers in display order first, then any legacy labels.
	var keys []string
	for _, tier := range domain.QualityTiers {
		if _, ok := ep.Qualities[tier]; ok {
			keys = append(keys, tier)
		}
	}
	for _, q := range domain.SortKeys(mapKeys(ep.Qualities)) {
		if !domain.IsQualityTier(q) {
			keys = append(keys, q)
		}
	}
	kb := a.childButtons(p, keys, 4)
	kb = append(kb, backRow(p))
	a.render(ctx, ev,
		fmt.Sprintf("%s — S%s E%s — pick a quality:", title.Name, p.Season, p.Episode), kb)
}

// deliver re-sends the stored media through the transport call recorded at
// authoring time; the two delivery calls are not interchangeable.
func (a *App) deliver(ctx context.Context, ev telegram.Event, title domain.Title, p token.Path) {
	handle, ok := title.Seasons[p.Season].Episodes[p.Episode].Qualities[p.Quality]
	if !ok {
		a.send(ctx, ev.ChatID, "That file is no longer available.", nil)
		return
	}
	caption := fmt.Sprintf("%s — S%s E%s (%s)", title.Name, p.Season, p.Episode, p.Quality)
	var err error
	switch handle.Kind {
	case domain.MediaVideo:
		err = a.sender.SendVideo(ctx, ev.ChatID, handle.FileID, caption)
	default:
		err = a.sender.SendDocument(ctx, ev.ChatID, handle.FileID, caption)
	}
	if err != nil {
		a.log.Error("delivery failed",
			"title", title.ID, "season", p.Season, "episode", p.Episode,
			"quality", p.Quality, "err", err)
		a.send(ctx, ev.ChatID, "Delivery failed — the file may have been removed. Tell the admin.", nil)
		return
	}
	a.log.Info("media delivered",
		"user", ev.UserID, "title", title.ID, "season", p.Season,
		"episode", p.Episode, "quality", p.Quality)
}

func (a *App) childButtons(p token.Path, keys []string, perRow int) telegram.Keyboard {
	var kb telegram.Keyboard
	var row []telegram.Button
	for _, key := range keys {
		data, err := token.Encode(p.Child(key))
		if err != nil {
			a.log.Warn("skipping nav button", "key", key, "err", err)
			continue
		}
		row = append(row, telegram.Button{Label: key, Data: data})
		if len(row) == perRow {
			kb = append(kb, row)
			row = nil
		}
	}
	if len(row) > 0 {
		kb = append(kb, row)
	}
	return kb
}

func backRow(p token.Path) []telegram.Button {
	data, err := token.Encode(p.Parent())
	if err != nil {
		data = token.Prefix
	}
	return []telegram.Button{{Label: "« Back", Data: data}}
}

// render edits the existing menu message in place when the event came from
// a button press, falling back to a fresh message.
func (a *App) render(ctx context.Context, ev telegram.Event, text string, kb telegram.Keyboard) {
	if ev.Callback != nil && ev.Callback.MessageID != 0 {
		if err := a.sender.EditText(ctx, ev.ChatID, ev.Callback.MessageID, text, kb); err == nil {
			return
		}
	}
	a.send(ctx, ev.ChatID, text, kb)
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
