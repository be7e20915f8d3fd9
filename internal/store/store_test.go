package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trailfetch/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "trailfetch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func strptr(s string) *string { return &s }
func intptr(n int) *int       { return &n }

func TestCreateAndGetProcess(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := &models.Process{
		Services:        "appletv|netflix",
		Name:            strptr("Inception"),
		Year:            intptr(2010),
		Lang:            "en-US",
		FullAudioTracks: true,
		CallbackURL:     strptr("https://example.com/hook"),
	}
	require.NoError(t, s.CreateProcess(ctx, p))
	require.NotEmpty(t, p.ID)

	got, err := s.GetProcess(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.False(t, got.IsCompleted)
	assert.Equal(t, "Inception", *got.Name)
	assert.Equal(t, 2010, *got.Year)
	assert.True(t, got.FullAudioTracks)
	assert.Equal(t, "appletv|netflix", got.Services)
}

func TestGetProcessNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetProcess(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateStatusDerivesCompletion(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := &models.Process{Name: strptr("Dune")}
	require.NoError(t, s.CreateProcess(ctx, p))

	require.NoError(t, s.UpdateStatus(ctx, p.ID, models.StatusProcessing, ""))
	got, err := s.GetProcess(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, got.IsCompleted)

	require.NoError(t, s.UpdateStatus(ctx, p.ID, models.StatusDone, ""))
	got, err = s.GetProcess(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.IsCompleted)
	assert.Equal(t, models.StatusDone, got.Status)

	assert.ErrorIs(t, s.UpdateStatus(ctx, "missing", models.StatusDone, ""), ErrNotFound)
}

func TestTrailerPageSurvivesFailure(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := &models.Process{Name: strptr("Heat")}
	require.NoError(t, s.CreateProcess(ctx, p))

	require.NoError(t, s.SetTrailerPage(ctx, p.ID, "https://tv.apple.com/movie/heat"))
	require.NoError(t, s.UpdateStatus(ctx, p.ID, models.StatusError, "download failed"))

	got, err := s.GetProcess(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got.TrailerPage)
	assert.Equal(t, "https://tv.apple.com/movie/heat", *got.TrailerPage)
	assert.Equal(t, "download failed", got.StatusDetails)
}

func TestTrailersAndSubtitles(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := &models.Process{Name: strptr("Arrival")}
	require.NoError(t, s.CreateProcess(ctx, p))

	tr := &models.Trailer{URL: "https://blob/abc/trailer.mp4", ThumbnailURL: "https://blob/abc/thumb.jpg", Title: "Official Trailer"}
	require.NoError(t, s.InsertTrailer(ctx, p.ID, tr))
	require.NotEmpty(t, tr.ID)

	require.NoError(t, s.InsertSubtitle(ctx, tr.ID, &models.Subtitle{Language: "pt-BR", URL: "https://blob/abc/pt.vtt"}))
	require.NoError(t, s.InsertSubtitle(ctx, tr.ID, &models.Subtitle{Language: "en", URL: "https://blob/abc/en.vtt"}))

	detail, err := s.GetProcessDetail(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, detail.Trailers, 1)
	assert.Equal(t, "Official Trailer", detail.Trailers[0].Title)
	require.Len(t, detail.Trailers[0].Subtitles, 2)
	assert.Equal(t, "pt-BR", detail.Trailers[0].Subtitles[0].Language)
}

func TestListAndCountIncomplete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := &models.Process{Name: strptr("A")}
	b := &models.Process{Name: strptr("B")}
	c := &models.Process{Name: strptr("C")}
	for _, p := range []*models.Process{a, b, c} {
		require.NoError(t, s.CreateProcess(ctx, p))
	}
	require.NoError(t, s.UpdateStatus(ctx, b.ID, models.StatusNoTrailers, ""))

	n, err := s.CountIncomplete(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	list, err := s.ListIncomplete(ctx)
	require.NoError(t, err)
	ids := []string{list[0].ID, list[1].ID}
	assert.ElementsMatch(t, []string{a.ID, c.ID}, ids)
}

func TestListFeedOnlyDoneWithTrailers(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	withTrailer := &models.Process{Name: strptr("Alien")}
	require.NoError(t, s.CreateProcess(ctx, withTrailer))
	require.NoError(t, s.InsertTrailer(ctx, withTrailer.ID, &models.Trailer{URL: "https://blob/x/t.mp4"}))
	require.NoError(t, s.UpdateStatus(ctx, withTrailer.ID, models.StatusDone, ""))

	doneEmpty := &models.Process{Name: strptr("Blade Runner")}
	require.NoError(t, s.CreateProcess(ctx, doneEmpty))
	require.NoError(t, s.UpdateStatus(ctx, doneEmpty.ID, models.StatusDone, ""))

	pending := &models.Process{Name: strptr("Tron")}
	require.NoError(t, s.CreateProcess(ctx, pending))

	feed, err := s.ListFeed(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, withTrailer.ID, feed[0].ID)
	require.Len(t, feed[0].Trailers, 1)
}

func TestListFeedPagination(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var ids []string
	for _, name := range []string{"Alien", "Aliens", "Alien 3"} {
		p := &models.Process{Name: strptr(name)}
		require.NoError(t, s.CreateProcess(ctx, p))
		require.NoError(t, s.InsertTrailer(ctx, p.ID, &models.Trailer{URL: "https://blob/x/" + p.ID + ".mp4"}))
		require.NoError(t, s.UpdateStatus(ctx, p.ID, models.StatusDone, ""))
		ids = append(ids, p.ID)
		time.Sleep(5 * time.Millisecond) // distinct updated_at ordering
	}

	first, err := s.ListFeed(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, ids[2], first[0].ID)
	assert.Equal(t, ids[1], first[1].ID)

	second, err := s.ListFeed(ctx, 2, 1)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, ids[0], second[0].ID)
}
