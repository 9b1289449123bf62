package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"animebot/internal/session"
	"animebot/internal/telegram"
	"animebot/internal/token"
	"animebot/pkg/domain"
	"animebot/pkg/store"
)

// Authoring workflow callbacks.
const (
	cbKindSeries     = "kind:series"
	cbKindMovie      = "kind:movie"
	cbSynopsisSkip   = "syn:skip"
	cbQualityPrefix  = "q:"
	cbQualityDone    = "q:done"
	cbNextEpisode    = "next:episode"
	cbNextSeason     = "next:season"
	cbAnnounceEp     = "next:announce_ep"
	cbAnnounceSeason = "next:announce_season"
	cbFinish         = "next:finish"
)

// titleDraft accumulates the catalog path being authored. Nothing is
// persisted until the commit transition.
type titleDraft struct {
	ID        string
	Meta      store.TitleMeta
	Existing  bool
	Season    string
	Episode   string
	Qualities map[string]domain.MediaHandle
}

// authorState is the authoring workflow's state sum type; each variant
// carries exactly the draft progress valid at that step.
type authorState interface{ authorStep() string }

type authorKind struct{}
type authorName struct{ Kind domain.TitleKind }
type authorPoster struct{ Draft titleDraft }
type authorSynopsis struct{ Draft titleDraft }
type authorSeason struct{ Draft titleDraft }
type authorEpisode struct{ Draft titleDraft }
type authorQuality struct{ Draft titleDraft }
type authorUpload struct {
	Draft   titleDraft
	Quality string
}
type authorNext struct{ Draft titleDraft }

func (authorKind) authorStep() string     { return "kind" }
func (authorName) authorStep() string     { return "name" }
func (authorPoster) authorStep() string   { return "poster" }
func (authorSynopsis) authorStep() string { return "synopsis" }
func (authorSeason) authorStep() string   { return "season" }
func (authorEpisode) authorStep() string  { return "episode" }
func (authorQuality) authorStep() string  { return "quality" }
func (authorUpload) authorStep() string   { return "upload" }
func (authorNext) authorStep() string     { return "next" }

func (a *App) startAuthoring(ctx context.Context, k session.Key, ev telegram.Event) {
	a.sessions.Put(k, authorKind{})
	a.send(ctx, ev.ChatID, "What are you adding? (/cancel aborts at any point)", telegram.Keyboard{
		{{Label: "Series", Data: cbKindSeries}, {Label: "Movie", Data: cbKindMovie}},
	})
}

// advanceAuthoring runs one transition. An event of the wrong shape for
// the current step re-prompts and leaves state and draft untouched.
func (a *App) advanceAuthoring(ctx context.Context, k session.Key, ev telegram.Event, st authorState) {
	switch s := st.(type) {
	case authorKind:
		a.authorPickKind(ctx, k, ev)
	case authorName:
		a.authorEnterName(ctx, k, ev, s)
	case authorPoster:
		a.authorAttachPoster(ctx, k, ev, s)
	case authorSynopsis:
		a.authorEnterSynopsis(ctx, k, ev, s)
	case authorSeason:
		a.authorEnterSeason(ctx, k, ev, s)
	case authorEpisode:
		a.authorEnterEpisode(ctx, k, ev, s)
	case authorQuality:
		a.authorPickQuality(ctx, k, ev, s)
	case authorUpload:
		a.authorReceiveMedia(ctx, k, ev, s)
	case authorNext:
		a.authorPickNext(ctx, k, ev, s)
	}
}

func (a *App) authorPickKind(ctx context.Context, k session.Key, ev telegram.Event) {
	var kind domain.TitleKind
	switch callbackData(ev) {
	case cbKindSeries:
		kind = domain.KindSeries
	case cbKindMovie:
		kind = domain.KindMovie
	default:
		a.send(ctx, ev.ChatID, "Please pick Series or Movie using the buttons.", nil)
		return
	}
	a.sessions.Put(k, authorName{Kind: kind})
	a.send(ctx, ev.ChatID, "Send the title name.", nil)
}

func (a *App) authorEnterName(ctx context.Context, k session.Key, ev telegram.Event, s authorName) {
	name := strings.TrimSpace(ev.Text)
	if name == "" {
		a.send(ctx, ev.ChatID, "Send the title name as plain text.", nil)
		return
	}
	id := domain.Slug(name)
	if id == "" {
		a.send(ctx, ev.ChatID, "That name has no usable characters. Try another.", nil)
		return
	}
	// The slug must fit on a navigation button, same bound as other keys.
	if err := domain.ValidateKey(id); err != nil {
		a.send(ctx, ev.ChatID, "That name is too long. Pick a shorter one.", nil)
		return
	}
	existing, err := a.store.GetTitle(ctx, id)
	switch {
	case err == nil:
		// Same derived identifier: merge into the stored title instead of
		// creating a duplicate, reusing its poster, synopsis, and kind.
		draft := titleDraft{
			ID: id,
			Meta: store.TitleMeta{
				Name:     existing.Name,
				PosterID: existing.PosterID,
				Synopsis: existing.Synopsis,
				Kind:     existing.Kind,
			},
			Existing: true,
		}
		a.send(ctx, ev.ChatID,
			fmt.Sprintf("%q already exists — adding to it.", existing.Name), nil)
		a.authorAdvanceToSeason(ctx, k, ev, draft)
	case errors.Is(err, store.ErrNotFound):
		draft := titleDraft{ID: id, Meta: store.TitleMeta{Name: name, Kind: s.Kind}}
		a.sessions.Put(k, authorPoster{Draft: draft})
		a.send(ctx, ev.ChatID, "Send the poster image.", nil)
	default:
		a.failAuthoring(ctx, k, ev, "look up title", err)
	}
}

func (a *App) authorAttachPoster(ctx context.Context, k session.Key, ev telegram.Event, s authorPoster) {
	if ev.PhotoID == "" {
		a.send(ctx, ev.ChatID, "A poster image is required. Send it as a photo.", nil)
		return
	}
	s.Draft.Meta.PosterID = ev.PhotoID
	a.sessions.Put(k, authorSynopsis{Draft: s.Draft})
	a.send(ctx, ev.ChatID, "Send a short synopsis, or skip it.", telegram.Keyboard{
		{{Label: "Skip", Data: cbSynopsisSkip}},
	})
}

func (a *App) authorEnterSynopsis(ctx context.Context, k session.Key, ev telegram.Event, s authorSynopsis) {
	switch {
	case callbackData(ev) == cbSynopsisSkip:
	case strings.TrimSpace(ev.Text) != "":
		s.Draft.Meta.Synopsis = strings.TrimSpace(ev.Text)
	default:
		a.send(ctx, ev.ChatID, "Send the synopsis as text, or press Skip.", nil)
		return
	}
	a.authorAdvanceToSeason(ctx, k, ev, s.Draft)
}

// authorAdvanceToSeason moves into season entry; movies get the fixed
// season key and skip straight to the episode prompt.
func (a *App) authorAdvanceToSeason(ctx context.Context, k session.Key, ev telegram.Event, draft titleDraft) {
	if draft.Meta.Kind == domain.KindMovie {
		draft.Season = domain.MovieSeasonKey
		a.sessions.Put(k, authorEpisode{Draft: draft})
		a.send(ctx, ev.ChatID, "Send the episode label (e.g. 1, or Full).", nil)
		return
	}
	a.sessions.Put(k, authorSeason{Draft: draft})
	a.send(ctx, ev.ChatID, "Send the season label (e.g. 1, Special).", nil)
}

func (a *App) authorEnterSeason(ctx context.Context, k session.Key, ev telegram.Event, s authorSeason) {
	key := strings.TrimSpace(ev.Text)
	if err := domain.ValidateKey(key); err != nil {
		a.send(ctx, ev.ChatID, keyProblem("season", err), nil)
		return
	}
	stored, err := a.store.GetTitle(ctx, s.Draft.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		a.failAuthoring(ctx, k, ev, "check season", err)
		return
	}
	if err == nil {
		if _, dup := stored.Seasons[key]; dup {
			a.send(ctx, ev.ChatID,
				fmt.Sprintf("Season %q already exists under this title. Pick a different label.", key), nil)
			return
		}
	}
	s.Draft.Season = key
	a.sessions.Put(k, authorEpisode{Draft: s.Draft})
	a.send(ctx, ev.ChatID, "Send the episode label (e.g. 1).", nil)
}

func (a *App) authorEnterEpisode(ctx context.Context, k session.Key, ev telegram.Event, s authorEpisode) {
	key := strings.TrimSpace(ev.Text)
	if err := domain.ValidateKey(key); err != nil {
		a.send(ctx, ev.ChatID, keyProblem("episode", err), nil)
		return
	}
	s.Draft.Episode = key
	s.Draft.Qualities = make(map[string]domain.MediaHandle)
	a.sessions.Put(k, authorQuality{Draft: s.Draft})
	a.promptQuality(ctx, ev.ChatID, s.Draft)
}

func (a *App) promptQuality(ctx context.Context, chatID int64, draft titleDraft) {
	var row []telegram.Button
	for _, tier := range domain.QualityTiers {
		label := tier
		if _, ok := draft.Qualities[tier]; ok {
			label = "✓ " + tier
		}
		row = append(row, telegram.Button{Label: label, Data: cbQualityPrefix + tier})
	}
	kb := telegram.Keyboard{row, {{Label: "Done", Data: cbQualityDone}}}
	text := fmt.Sprintf("Pick a quality to upload for episode %s (%d added so far).",
		draft.Episode, len(draft.Qualities))
	a.send(ctx, chatID, text, kb)
}

func (a *App) authorPickQuality(ctx context.Context, k session.Key, ev telegram.Event, s authorQuality) {
	data := callbackData(ev)
	if data == cbQualityDone {
		if len(s.Draft.Qualities) == 0 {
			a.send(ctx, ev.ChatID, "Upload at least one quality before finishing.", nil)
			return
		}
		a.commitEpisode(ctx, k, ev, s.Draft)
		return
	}
	tier := strings.TrimPrefix(data, cbQualityPrefix)
	if data == "" || !domain.IsQualityTier(tier) {
		a.send(ctx, ev.ChatID, "Use the quality buttons.", nil)
		return
	}
	a.sessions.Put(k, authorUpload{Draft: s.Draft, Quality: tier})
	a.send(ctx, ev.ChatID,
		fmt.Sprintf("Send the %s file now (video or document).", tier), nil)
}

// authorReceiveMedia stores the upload under the picked quality and loops
// back to quality selection so the episode can accumulate more variants.
// Re-picking a tier overwrites it, which is how re-uploads work.
func (a *App) authorReceiveMedia(ctx context.Context, k session.Key, ev telegram.Event, s authorUpload) {
	var handle domain.MediaHandle
	switch {
	case ev.VideoID != "":
		handle = domain.MediaHandle{FileID: ev.VideoID, Kind: domain.MediaVideo}
	case ev.DocumentID != "":
		handle = domain.MediaHandle{FileID: ev.DocumentID, Kind: domain.MediaDocument}
	default:
		a.send(ctx, ev.ChatID, "Send the file as a video or document.", nil)
		return
	}
	s.Draft.Qualities[s.Quality] = handle
	a.sessions.Put(k, authorQuality{Draft: s.Draft})
	a.promptQuality(ctx, ev.ChatID, s.Draft)
}

// commitEpisode is the single write transition of the workflow; everything
// before it lives only in the draft.
func (a *App) commitEpisode(ctx context.Context, k session.Key, ev telegram.Event, draft titleDraft) {
	err := a.store.UpsertEpisode(ctx, draft.ID, draft.Meta, draft.Season, draft.Episode, draft.Qualities)
	if err != nil {
		a.failAuthoring(ctx, k, ev, "commit episode", err)
		return
	}
	a.log.Info("episode committed",
		"title", draft.ID, "season", draft.Season, "episode", draft.Episode,
		"qualities", len(draft.Qualities))
	a.sessions.Put(k, authorNext{Draft: draft})
	text := fmt.Sprintf("Saved %s / season %s / episode %s (%d qualities). What next?",
		draft.Meta.Name, draft.Season, draft.Episode, len(draft.Qualities))
	kb := telegram.Keyboard{
		{{Label: "Next episode", Data: cbNextEpisode}},
		{{Label: "Announce episode", Data: cbAnnounceEp}, {Label: "Announce season", Data: cbAnnounceSeason}},
		{{Label: "Finish", Data: cbFinish}},
	}
	if draft.Meta.Kind == domain.KindSeries {
		kb[0] = append(kb[0], telegram.Button{Label: "New season", Data: cbNextSeason})
	}
	a.send(ctx, ev.ChatID, text, kb)
}

func (a *App) authorPickNext(ctx context.Context, k session.Key, ev telegram.Event, s authorNext) {
	switch callbackData(ev) {
	case cbNextEpisode:
		draft := s.Draft
		draft.Episode = ""
		draft.Qualities = nil
		a.sessions.Put(k, authorEpisode{Draft: draft})
		a.send(ctx, ev.ChatID, "Send the next episode label.", nil)
	case cbNextSeason:
		draft := s.Draft
		draft.Season = ""
		draft.Episode = ""
		draft.Qualities = nil
		a.sessions.Put(k, authorSeason{Draft: draft})
		a.send(ctx, ev.ChatID, "Send the new season label.", nil)
	case cbAnnounceEp:
		a.sendAnnouncement(ctx, ev.ChatID, s.Draft, false)
	case cbAnnounceSeason:
		a.sendAnnouncement(ctx, ev.ChatID, s.Draft, true)
	case cbFinish:
		a.sessions.Clear(k)
		a.send(ctx, ev.ChatID, "Done.", nil)
	default:
		a.send(ctx, ev.ChatID, "Use the buttons to continue.", nil)
	}
}

// sendAnnouncement composes a shareable post: poster, caption, and buttons
// that deep-link straight into delivery. The admin forwards it wherever it
// should appear.
func (a *App) sendAnnouncement(ctx context.Context, chatID int64, draft titleDraft, wholeSeason bool) {
	title, err := a.store.GetTitle(ctx, draft.ID)
	if err != nil {
		a.log.Error("announcement lookup failed", "title", draft.ID, "err", err)
		a.send(ctx, chatID, genericFailure, nil)
		return
	}
	var caption string
	var kb telegram.Keyboard
	if wholeSeason {
		caption = fmt.Sprintf("📢 %s — Season %s", title.Name, draft.Season)
		eps := domain.SortKeys(mapKeys(title.Seasons[draft.Season].Episodes))
		var row []telegram.Button
		for _, ep := range eps {
			t, err := token.Encode(token.Path{TitleID: title.ID, Season: draft.Season, Episode: ep})
			if err != nil {
				a.log.Warn("skipping announcement button", "episode", ep, "err", err)
				continue
			}
			row = append(row, telegram.Button{Label: "Ep " + ep, Data: t})
			if len(row) == 4 {
				kb = append(kb, row)
				row = nil
			}
		}
		if len(row) > 0 {
			kb = append(kb, row)
		}
	} else {
		caption = fmt.Sprintf("📢 %s — S%s E%s is out!", title.Name, draft.Season, draft.Episode)
		t, err := token.Encode(token.Path{TitleID: title.ID, Season: draft.Season, Episode: draft.Episode})
		if err != nil {
			a.log.Error("announcement token failed", "err", err)
			a.send(ctx, chatID, genericFailure, nil)
			return
		}
		kb = telegram.Keyboard{{{Label: "▶ Watch", Data: t}}}
	}
	if title.Synopsis != "" {
		caption += "\n\n" + title.Synopsis
	}
	if err := a.sender.SendPhoto(ctx, chatID, title.PosterID, caption, kb); err != nil {
		a.log.Error("announcement send failed", "err", err)
		a.send(ctx, chatID, genericFailure, nil)
	}
}

// failAuthoring implements the persistence-failure policy: log with
// context, tell the actor, drop the draft, return to idle.
func (a *App) failAuthoring(ctx context.Context, k session.Key, ev telegram.Event, op string, err error) {
	a.log.Error("authoring failed", "op", op, "user", ev.UserID, "err", err)
	a.sessions.Clear(k)
	a.send(ctx, ev.ChatID, genericFailure, nil)
}

func keyProblem(what string, err error) string {
	switch {
	case errors.Is(err, domain.ErrEmptyKey):
		return fmt.Sprintf("Send the %s label as plain text.", what)
	case errors.Is(err, domain.ErrKeyTooLong):
		return fmt.Sprintf("That %s label is too long. Keep it under 32 characters.", what)
	default:
		return fmt.Sprintf("The %s label may not contain ':', '.' or '$'. Pick another.", what)
	}
}

func callbackData(ev telegram.Event) string {
	if ev.Callback == nil {
		return ""
	}
	return ev.Callback.Data
}

func mapKeys[M ~map[string]V, V any](m M) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
