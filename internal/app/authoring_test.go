package app

import (
	"context"
	"strings"
	"testing"

	"animebot/pkg/domain"
	"animebot/pkg/store"
)

// runAuthoring drives the full happy path for a new series up to the
// quality menu.
func runAuthoringToQuality(t *testing.T, f *fixture) {
	t.Helper()
	ctx := context.Background()
	f.app.HandleEvent(ctx, cmdEv(adminID, "add", ""))
	f.app.HandleEvent(ctx, cbEv(adminID, cbKindSeries))
	f.app.HandleEvent(ctx, textEv(adminID, "One Piece"))
	f.app.HandleEvent(ctx, photoEv(adminID, "poster-1"))
	f.app.HandleEvent(ctx, cbEv(adminID, cbSynopsisSkip))
	f.app.HandleEvent(ctx, textEv(adminID, "1"))
	f.app.HandleEvent(ctx, textEv(adminID, "1"))
}

func TestAuthoringFullEpisodeCommit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	runAuthoringToQuality(t, f)
	f.app.HandleEvent(ctx, cbEv(adminID, "q:720p"))
	f.app.HandleEvent(ctx, videoEv(adminID, "file-720"))
	f.app.HandleEvent(ctx, cbEv(adminID, cbQualityDone))

	title, err := f.store.GetTitle(ctx, "one_piece")
	if err != nil {
		t.Fatalf("committed title missing: %v", err)
	}
	h := title.Seasons["1"].Episodes["1"].Qualities["720p"]
	if h.FileID != "file-720" || h.Kind != domain.MediaVideo {
		t.Fatalf("stored handle = %+v", h)
	}
	if !strings.Contains(f.sender.last(t).text, "What next?") {
		t.Fatalf("no post-commit menu: %q", f.sender.last(t).text)
	}

	f.app.HandleEvent(ctx, cbEv(adminID, cbFinish))
	if got := f.sender.last(t).text; got != "Done." {
		t.Fatalf("finish reply: %q", got)
	}
}

func TestAuthoringMultipleQualitiesAccumulate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	runAuthoringToQuality(t, f)
	f.app.HandleEvent(ctx, cbEv(adminID, "q:720p"))
	f.app.HandleEvent(ctx, videoEv(adminID, "v-720"))
	// Upload loops back to quality selection, not forward.
	if !strings.Contains(f.sender.last(t).text, "Pick a quality") {
		t.Fatalf("expected quality menu again, got %q", f.sender.last(t).text)
	}
	f.app.HandleEvent(ctx, cbEv(adminID, "q:1080p"))
	f.app.HandleEvent(ctx, docEv(adminID, "d-1080"))
	f.app.HandleEvent(ctx, cbEv(adminID, cbQualityDone))

	title, _ := f.store.GetTitle(ctx, "one_piece")
	qs := title.Seasons["1"].Episodes["1"].Qualities
	if len(qs) != 2 {
		t.Fatalf("qualities = %v", qs)
	}
	if qs["1080p"].Kind != domain.MediaDocument {
		t.Fatalf("document kind not preserved: %+v", qs["1080p"])
	}
}

func TestAuthoringReuploadOverwritesQuality(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	runAuthoringToQuality(t, f)
	f.app.HandleEvent(ctx, cbEv(adminID, "q:720p"))
	f.app.HandleEvent(ctx, videoEv(adminID, "first"))
	f.app.HandleEvent(ctx, cbEv(adminID, "q:720p"))
	f.app.HandleEvent(ctx, videoEv(adminID, "second"))
	f.app.HandleEvent(ctx, cbEv(adminID, cbQualityDone))

	title, _ := f.store.GetTitle(ctx, "one_piece")
	if got := title.Seasons["1"].Episodes["1"].Qualities["720p"].FileID; got != "second" {
		t.Fatalf("re-upload did not overwrite: %q", got)
	}
}

func TestAuthoringDoneRequiresUpload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	runAuthoringToQuality(t, f)
	f.app.HandleEvent(ctx, cbEv(adminID, cbQualityDone))
	if !strings.Contains(f.sender.last(t).text, "at least one quality") {
		t.Fatalf("empty commit allowed: %q", f.sender.last(t).text)
	}
	if _, err := f.store.GetTitle(ctx, "one_piece"); err == nil {
		t.Fatalf("nothing should have been written")
	}
}

func TestAuthoringExistingTitleSkipsMetaPrompts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seed := map[string]domain.MediaHandle{"720p": {FileID: "f", Kind: domain.MediaVideo}}
	meta := store.TitleMeta{Name: "One Piece", PosterID: "poster", Kind: domain.KindSeries}
	if err := f.store.UpsertEpisode(ctx, "one_piece", meta, "1", "1", seed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	f.app.HandleEvent(ctx, cmdEv(adminID, "add", ""))
	f.app.HandleEvent(ctx, cbEv(adminID, cbKindSeries))
	// Different spelling, same derived identifier: merge, not duplicate.
	f.app.HandleEvent(ctx, textEv(adminID, "ONE piece!"))

	last := f.sender.last(t)
	if !strings.Contains(last.text, "season") {
		t.Fatalf("should jump to season entry, got %q", last.text)
	}

	f.app.HandleEvent(ctx, textEv(adminID, "2"))
	f.app.HandleEvent(ctx, textEv(adminID, "1"))
	f.app.HandleEvent(ctx, cbEv(adminID, "q:480p"))
	f.app.HandleEvent(ctx, videoEv(adminID, "s2e1"))
	f.app.HandleEvent(ctx, cbEv(adminID, cbQualityDone))

	title, _ := f.store.GetTitle(ctx, "one_piece")
	if title.PosterID != "poster" {
		t.Fatalf("existing poster clobbered: %q", title.PosterID)
	}
	if _, ok := title.Seasons["2"].Episodes["1"].Qualities["480p"]; !ok {
		t.Fatalf("new season not committed: %+v", title.Seasons)
	}
}

func TestAuthoringDuplicateSeasonRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seed := map[string]domain.MediaHandle{"720p": {FileID: "f", Kind: domain.MediaVideo}}
	meta := store.TitleMeta{Name: "One Piece", PosterID: "poster", Kind: domain.KindSeries}
	_ = f.store.UpsertEpisode(ctx, "one_piece", meta, "1", "1", seed)

	f.app.HandleEvent(ctx, cmdEv(adminID, "add", ""))
	f.app.HandleEvent(ctx, cbEv(adminID, cbKindSeries))
	f.app.HandleEvent(ctx, textEv(adminID, "One Piece"))
	f.app.HandleEvent(ctx, textEv(adminID, "1"))

	if !strings.Contains(f.sender.last(t).text, "already exists") {
		t.Fatalf("duplicate season accepted: %q", f.sender.last(t).text)
	}
	title, _ := f.store.GetTitle(ctx, "one_piece")
	if len(title.Seasons) != 1 {
		t.Fatalf("title document mutated: %+v", title.Seasons)
	}

	// Draft retained: a different label proceeds.
	f.app.HandleEvent(ctx, textEv(adminID, "2"))
	if !strings.Contains(f.sender.last(t).text, "episode label") {
		t.Fatalf("workflow did not continue: %q", f.sender.last(t).text)
	}
}

func TestAuthoringMovieSkipsSeasonPrompt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.app.HandleEvent(ctx, cmdEv(adminID, "add", ""))
	f.app.HandleEvent(ctx, cbEv(adminID, cbKindMovie))
	f.app.HandleEvent(ctx, textEv(adminID, "Your Name"))
	f.app.HandleEvent(ctx, photoEv(adminID, "poster"))
	f.app.HandleEvent(ctx, cbEv(adminID, cbSynopsisSkip))
	// Straight to the episode prompt, season auto-filled.
	if !strings.Contains(f.sender.last(t).text, "episode label") {
		t.Fatalf("movie did not skip season prompt: %q", f.sender.last(t).text)
	}
	f.app.HandleEvent(ctx, textEv(adminID, "Full"))
	f.app.HandleEvent(ctx, cbEv(adminID, "q:1080p"))
	f.app.HandleEvent(ctx, videoEv(adminID, "movie-file"))
	f.app.HandleEvent(ctx, cbEv(adminID, cbQualityDone))

	title, _ := f.store.GetTitle(ctx, "your_name")
	if _, ok := title.Seasons[domain.MovieSeasonKey]; !ok {
		t.Fatalf("movie season key missing: %+v", title.Seasons)
	}
}

func TestAuthoringWrongShapeReprompts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.app.HandleEvent(ctx, cmdEv(adminID, "add", ""))
	f.app.HandleEvent(ctx, cbEv(adminID, cbKindSeries))
	f.app.HandleEvent(ctx, textEv(adminID, "One Piece"))
	// Text arrives where an image is required: re-prompt, no state change.
	f.app.HandleEvent(ctx, textEv(adminID, "not a photo"))
	if !strings.Contains(f.sender.last(t).text, "poster image") {
		t.Fatalf("no corrective prompt: %q", f.sender.last(t).text)
	}
	// The step still accepts the right shape afterwards.
	f.app.HandleEvent(ctx, photoEv(adminID, "poster"))
	if !strings.Contains(f.sender.last(t).text, "synopsis") {
		t.Fatalf("state advanced incorrectly: %q", f.sender.last(t).text)
	}
}

func TestAuthoringSeasonKeyWithDelimiterRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	runAuthoringToQuality(t, f) // we're at quality for season "1" episode "1"
	f.app.HandleEvent(ctx, cbEv(adminID, "q:720p"))
	f.app.HandleEvent(ctx, videoEv(adminID, "v"))
	f.app.HandleEvent(ctx, cbEv(adminID, cbQualityDone))
	f.app.HandleEvent(ctx, cbEv(adminID, cbNextSeason))
	f.app.HandleEvent(ctx, textEv(adminID, "2:director-cut"))
	if !strings.Contains(f.sender.last(t).text, "may not contain") {
		t.Fatalf("delimiter key accepted: %q", f.sender.last(t).text)
	}
}

func TestAuthoringOverlongNameRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.app.HandleEvent(ctx, cmdEv(adminID, "add", ""))
	f.app.HandleEvent(ctx, cbEv(adminID, cbKindSeries))
	f.app.HandleEvent(ctx, textEv(adminID, strings.Repeat("saga ", 10)))
	if !strings.Contains(f.sender.last(t).text, "too long") {
		t.Fatalf("overlong name accepted: %q", f.sender.last(t).text)
	}
	// Still at the name step: a valid name proceeds to the poster prompt.
	f.app.HandleEvent(ctx, textEv(adminID, "One Piece"))
	if !strings.Contains(f.sender.last(t).text, "poster") {
		t.Fatalf("name step lost: %q", f.sender.last(t).text)
	}
}

func TestAuthoringNonAdminDenied(t *testing.T) {
	f := newFixture(t)
	f.app.HandleEvent(context.Background(), cmdEv(5, "add", ""))
	if !strings.Contains(f.sender.last(t).text, "not allowed") {
		t.Fatalf("non-admin not denied: %q", f.sender.last(t).text)
	}
}

func TestAuthoringCancelClearsDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	runAuthoringToQuality(t, f)
	f.app.HandleEvent(ctx, cmdEv(adminID, "cancel", ""))
	if got := f.sender.last(t).text; got != "Cancelled." {
		t.Fatalf("cancel reply: %q", got)
	}
	// Next text input hits idle handling, not the old draft.
	f.app.HandleEvent(ctx, textEv(adminID, "720p"))
	if !strings.Contains(f.sender.last(t).text, "Nothing in progress") {
		t.Fatalf("draft survived cancel: %q", f.sender.last(t).text)
	}
}

func TestAnnouncementCarriesNavButtons(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	runAuthoringToQuality(t, f)
	f.app.HandleEvent(ctx, cbEv(adminID, "q:720p"))
	f.app.HandleEvent(ctx, videoEv(adminID, "v"))
	f.app.HandleEvent(ctx, cbEv(adminID, cbQualityDone))
	f.app.HandleEvent(ctx, cbEv(adminID, cbAnnounceEp))

	last := f.sender.last(t)
	if last.kind != "photo" || last.fileID != "poster-1" {
		t.Fatalf("announcement should carry the poster: %+v", last)
	}
	data := buttonData(last.kb)
	if len(data) != 1 || data[0] != "nav:one_piece:1:1" {
		t.Fatalf("announcement buttons = %v", data)
	}
}
