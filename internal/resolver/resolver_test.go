package resolver_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/vmunix/tvgrab/internal/download"
	"github.com/vmunix/tvgrab/internal/resolver"
	"github.com/vmunix/tvgrab/internal/resolver/mocks"
)

// testLogger returns a discard logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const seriesURL = "http://site.test/foo.htm"

func newSite(t *testing.T) *mocks.MockSite {
	t.Helper()
	ctrl := gomock.NewController(t)
	site := mocks.NewMockSite(ctrl)
	site.EXPECT().Series(gomock.Any()).DoAndReturn(func(title string) resolver.SeriesHandle {
		return resolver.SeriesHandle{Title: title, SearchURL: "http://site.test/search?q=" + title}
	}).AnyTimes()
	return site
}

func season(n int) resolver.SeasonNode {
	return resolver.SeasonNode{Label: "Season " + itoa(n), PageURL: "http://site.test/s" + itoa(n)}
}

func episode(s, e int, hint string) resolver.EpisodeNode {
	id := "s" + itoa(s) + "e" + itoa(e)
	return resolver.EpisodeNode{Label: "Foo " + id, PageURL: "http://site.test/" + id, FormatHint: hint}
}

func fileURL(ep resolver.EpisodeNode) string {
	return ep.PageURL + ".bin"
}

func itoa(n int) string {
	return string(rune('0' + n))
}

// expectFoo sets up the search and series page of "Foo" with the given seasons.
func expectFoo(site *mocks.MockSite, seasons ...resolver.SeasonNode) {
	site.EXPECT().Search(gomock.Any(), gomock.Any()).Return([]resolver.SearchResult{
		{Text: "Foo Fighters", URL: "http://site.test/ff.htm"},
		{Text: " foo ", URL: seriesURL},
	}, nil)
	site.EXPECT().Seasons(gomock.Any(), seriesURL).Return(seasons, nil)
}

// expectLinks makes DownloadLink answer for eps, the earlier ones slowest so
// completion order is the reverse of document order.
func expectLinks(site *mocks.MockSite, eps ...resolver.EpisodeNode) {
	for i, ep := range eps {
		delay := time.Duration(len(eps)-i) * 10 * time.Millisecond
		site.EXPECT().DownloadLink(gomock.Any(), ep).DoAndReturn(func(ctx context.Context, ep resolver.EpisodeNode) (string, error) {
			time.Sleep(delay)
			return fileURL(ep), nil
		})
	}
}

func TestResolve_SeasonWithLimit(t *testing.T) {
	site := newSite(t)
	s1, s2 := season(1), season(2)
	expectFoo(site, s1, s2)

	e1, e2, e3 := episode(2, 1, "High MP4"), episode(2, 2, "[AVI]"), episode(2, 3, "High MP4")
	site.EXPECT().Episodes(gomock.Any(), s2).Return([]resolver.EpisodeNode{e1, e2, e3}, nil)
	expectLinks(site, e1, e2)

	r := resolver.New(site, resolver.Options{}, testLogger())
	res, err := r.Resolve(context.Background(), "Foo", resolver.Selection{Season: 2, Limit: 2})

	require.NoError(t, err)
	assert.Equal(t, seriesURL, res.SeriesURL)
	assert.Equal(t, 2, res.Seasons)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, []download.Task{
		{URL: fileURL(e1), Name: "Foo s2e1.mp4"},
		{URL: fileURL(e2), Name: "Foo s2e2.avi"},
	}, res.Tasks)
}

func TestResolve_AllSeasonsKeepDocumentOrder(t *testing.T) {
	site := newSite(t)
	s1, s2 := season(1), season(2)
	expectFoo(site, s1, s2)

	s1eps := []resolver.EpisodeNode{episode(1, 1, "High MP4"), episode(1, 2, "High MP4")}
	s2eps := []resolver.EpisodeNode{episode(2, 1, "High MP4"), episode(2, 2, "High MP4"), episode(2, 3, "High MP4")}
	site.EXPECT().Episodes(gomock.Any(), s1).DoAndReturn(func(context.Context, resolver.SeasonNode) ([]resolver.EpisodeNode, error) {
		time.Sleep(20 * time.Millisecond)
		return s1eps, nil
	})
	site.EXPECT().Episodes(gomock.Any(), s2).Return(s2eps, nil)
	expectLinks(site, append(s1eps, s2eps...)...)

	res, err := resolver.New(site, resolver.Options{EpisodeConcurrency: 3}, testLogger()).
		Resolve(context.Background(), "Foo", resolver.Selection{})

	require.NoError(t, err)
	var names []string
	for _, task := range res.Tasks {
		names = append(names, task.Name)
	}
	assert.Equal(t, []string{"Foo s1e1.mp4", "Foo s1e2.mp4", "Foo s2e1.mp4", "Foo s2e2.mp4", "Foo s2e3.mp4"}, names)
}

func TestResolve_SingleEpisodePerSeason(t *testing.T) {
	site := newSite(t)
	s1, s2 := season(1), season(2)
	expectFoo(site, s1, s2)

	s1eps := []resolver.EpisodeNode{episode(1, 1, "High MP4")}
	s2eps := []resolver.EpisodeNode{episode(2, 1, "High MP4"), episode(2, 2, "[webm]")}
	site.EXPECT().Episodes(gomock.Any(), s1).Return(s1eps, nil)
	site.EXPECT().Episodes(gomock.Any(), s2).Return(s2eps, nil)
	expectLinks(site, s2eps[1])

	res, err := resolver.New(site, resolver.Options{}, testLogger()).
		Resolve(context.Background(), "Foo", resolver.Selection{Episode: 2, Limit: 1})

	require.NoError(t, err)
	require.Len(t, res.Tasks, 1)
	assert.Equal(t, "Foo s2e2.webm", res.Tasks[0].Name)

	require.Len(t, res.Warnings, 1, "season 1 has no episode 2")
	assert.Equal(t, resolver.KindSelectionOutOfRange, res.Warnings[0].Kind)
	assert.Equal(t, "season 1 episode 2", res.Warnings[0].Scope)
	assert.ErrorIs(t, res.Warnings[0], resolver.ErrSelectionOutOfRange)
}

func TestResolve_SeasonOutOfRange(t *testing.T) {
	site := newSite(t)
	expectFoo(site, season(1), season(2))

	res, err := resolver.New(site, resolver.Options{}, testLogger()).
		Resolve(context.Background(), "Foo", resolver.Selection{Season: 3})

	require.NoError(t, err)
	assert.Empty(t, res.Tasks)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, resolver.KindSelectionOutOfRange, res.Warnings[0].Kind)
	assert.ErrorIs(t, res.Warnings[0].Err, resolver.ErrSelectionOutOfRange)
}

func TestResolve_NotFound(t *testing.T) {
	site := newSite(t)
	site.EXPECT().Search(gomock.Any(), gomock.Any()).Return([]resolver.SearchResult{
		{Text: "Fool Us", URL: "http://site.test/a"},
		{Text: "Zebra", URL: "http://site.test/b"},
		{Text: "Foo Fighters", URL: "http://site.test/c"},
	}, nil)

	res, err := resolver.New(site, resolver.Options{}, testLogger()).
		Resolve(context.Background(), "Foo", resolver.Selection{})

	require.Error(t, err)
	assert.ErrorIs(t, err, resolver.ErrNotFound)
	var nf *resolver.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "Foo", nf.Title)
	assert.Equal(t, []string{"Fool Us", "Foo Fighters"}, nf.Candidates)
	require.NotNil(t, res)
	assert.Empty(t, res.Tasks)
}

func TestResolve_SearchFailure(t *testing.T) {
	site := newSite(t)
	boom := errors.New("connection refused")
	site.EXPECT().Search(gomock.Any(), gomock.Any()).Return(nil, boom)

	res, err := resolver.New(site, resolver.Options{}, testLogger()).
		Resolve(context.Background(), "Foo", resolver.Selection{})

	require.ErrorIs(t, err, boom)
	assert.Empty(t, res.Tasks)
}

func TestResolve_EpisodeFailuresDoNotAbortSiblings(t *testing.T) {
	site := newSite(t)
	s1, s2 := season(1), season(2)
	expectFoo(site, s1, s2)

	broken := resolver.EpisodeNode{Err: resolver.ErrMissingNode}
	noLink := episode(1, 3, "High MP4")
	ok1, ok2 := episode(1, 1, "High MP4"), episode(1, 4, "High MP4")
	site.EXPECT().Episodes(gomock.Any(), s1).Return([]resolver.EpisodeNode{ok1, broken, noLink, ok2}, nil)
	site.EXPECT().Episodes(gomock.Any(), s2).Return(nil, errors.New("season page gone"))

	expectLinks(site, ok1, ok2)
	site.EXPECT().DownloadLink(gomock.Any(), noLink).Return("", resolver.ErrMissingNode)

	res, err := resolver.New(site, resolver.Options{}, testLogger()).
		Resolve(context.Background(), "Foo", resolver.Selection{})

	require.NoError(t, err)
	require.Len(t, res.Tasks, 2)
	assert.Equal(t, "Foo s1e1.mp4", res.Tasks[0].Name)
	assert.Equal(t, "Foo s1e4.mp4", res.Tasks[1].Name)

	require.Len(t, res.Warnings, 3)
	assert.Equal(t, "season 1 episode 2", res.Warnings[0].Scope)
	assert.Equal(t, "season 1 episode 3", res.Warnings[1].Scope)
	assert.Equal(t, "season 2", res.Warnings[2].Scope)
	for _, w := range res.Warnings {
		assert.Equal(t, resolver.KindResolution, w.Kind)
	}
	assert.ErrorIs(t, res.Warnings[1], resolver.ErrMissingNode)
}

func TestResolve_NameCollisionSuffix(t *testing.T) {
	site := newSite(t)
	s1 := season(1)
	expectFoo(site, s1)

	a := resolver.EpisodeNode{Label: "Pilot", PageURL: "http://site.test/a", FormatHint: "High MP4"}
	b := resolver.EpisodeNode{Label: "PILOT", PageURL: "http://site.test/b", FormatHint: "High MP4"}
	c := resolver.EpisodeNode{Label: "Pilot", PageURL: "http://site.test/c", FormatHint: "High MP4"}
	site.EXPECT().Episodes(gomock.Any(), s1).Return([]resolver.EpisodeNode{a, b, c}, nil)
	expectLinks(site, a, b, c)

	res, err := resolver.New(site, resolver.Options{Collision: resolver.CollisionSuffix}, testLogger()).
		Resolve(context.Background(), "Foo", resolver.Selection{})

	require.NoError(t, err)
	require.Len(t, res.Tasks, 3)
	assert.Equal(t, "Pilot.mp4", res.Tasks[0].Name)
	assert.Equal(t, "PILOT (2).mp4", res.Tasks[1].Name)
	assert.Equal(t, "Pilot (3).mp4", res.Tasks[2].Name)
	assert.Equal(t, fileURL(c), res.Tasks[2].URL)
}

func TestResolve_NameCollisionFail(t *testing.T) {
	site := newSite(t)
	s1 := season(1)
	expectFoo(site, s1)

	a := resolver.EpisodeNode{Label: "Pilot", PageURL: "http://site.test/a", FormatHint: "High MP4"}
	b := resolver.EpisodeNode{Label: "Pilot", PageURL: "http://site.test/b", FormatHint: "High MP4"}
	site.EXPECT().Episodes(gomock.Any(), s1).Return([]resolver.EpisodeNode{a, b}, nil)
	expectLinks(site, a, b)

	res, err := resolver.New(site, resolver.Options{Collision: resolver.CollisionFail}, testLogger()).
		Resolve(context.Background(), "Foo", resolver.Selection{})

	require.NoError(t, err)
	require.Len(t, res.Tasks, 1)
	assert.Equal(t, fileURL(a), res.Tasks[0].URL)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, resolver.KindNameCollision, res.Warnings[0].Kind)
	assert.ErrorIs(t, res.Warnings[0], resolver.ErrNameCollision)
}

func TestResolve_SortByName(t *testing.T) {
	site := newSite(t)
	s1 := season(1)
	expectFoo(site, s1)

	b := resolver.EpisodeNode{Label: "B", PageURL: "http://site.test/b", FormatHint: "High MP4"}
	a := resolver.EpisodeNode{Label: "A", PageURL: "http://site.test/a", FormatHint: "High MP4"}
	site.EXPECT().Episodes(gomock.Any(), s1).Return([]resolver.EpisodeNode{b, a}, nil)
	expectLinks(site, b, a)

	res, err := resolver.New(site, resolver.Options{SortByName: true}, testLogger()).
		Resolve(context.Background(), "Foo", resolver.Selection{})

	require.NoError(t, err)
	require.Len(t, res.Tasks, 2)
	assert.Equal(t, "A.mp4", res.Tasks[0].Name)
	assert.Equal(t, "B.mp4", res.Tasks[1].Name)
}

func TestResolve_InvalidSelection(t *testing.T) {
	site := newSite(t)

	_, err := resolver.New(site, resolver.Options{}, testLogger()).
		Resolve(context.Background(), "Foo", resolver.Selection{Limit: -1})

	assert.ErrorIs(t, err, resolver.ErrSelectionOutOfRange)
}

func TestResolve_Canceled(t *testing.T) {
	site := newSite(t)
	s1 := season(1)
	expectFoo(site, s1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ep := episode(1, 1, "High MP4")
	site.EXPECT().Episodes(gomock.Any(), s1).Return([]resolver.EpisodeNode{ep, episode(1, 2, "High MP4")}, nil)
	site.EXPECT().DownloadLink(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, _ resolver.EpisodeNode) (string, error) {
		cancel()
		return "", ctx.Err()
	}).MaxTimes(2)

	res, err := resolver.New(site, resolver.Options{EpisodeConcurrency: 1}, testLogger()).
		Resolve(ctx, "Foo", resolver.Selection{})

	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, res.Tasks)
	assert.Empty(t, res.Warnings, "cancellation is not a per-episode warning")
}

func TestResolveURL_SkipsSearch(t *testing.T) {
	site := newSite(t)
	s1 := season(1)
	site.EXPECT().Seasons(gomock.Any(), seriesURL).Return([]resolver.SeasonNode{s1}, nil)
	ep := episode(1, 1, "[AVI]")
	site.EXPECT().Episodes(gomock.Any(), s1).Return([]resolver.EpisodeNode{ep}, nil)
	expectLinks(site, ep)

	res, err := resolver.New(site, resolver.Options{}, testLogger()).
		ResolveURL(context.Background(), "Foo", seriesURL, resolver.Selection{})

	require.NoError(t, err)
	assert.Equal(t, "Foo", res.Series)
	require.Len(t, res.Tasks, 1)
	assert.Equal(t, "Foo s1e1.avi", res.Tasks[0].Name)
}
