package resolver

import (
	"context"
)

//go:generate mockgen -destination=mocks/site.go -package=mocks . Site

// Site walks the page hierarchy of one content site. Each method fetches
// one kind of page; the Resolver decides which pages to visit.
type Site interface {
	// Series builds the handle used to search for title.
	Series(title string) SeriesHandle
	// Search returns every result anchor on the search page, in document order.
	Search(ctx context.Context, series SeriesHandle) ([]SearchResult, error)
	// Seasons returns the season anchors of a series page, in document order.
	Seasons(ctx context.Context, seriesURL string) ([]SeasonNode, error)
	// Episodes returns one node per episode container of a season page, in
	// document order. A container missing its link or label yields a node
	// with Err set so that indices stay aligned with the page.
	Episodes(ctx context.Context, season SeasonNode) ([]EpisodeNode, error)
	// DownloadLink follows an episode's format link to the direct file URL.
	DownloadLink(ctx context.Context, episode EpisodeNode) (string, error)
}

// SeriesHandle identifies a series to search for.
type SeriesHandle struct {
	Title     string
	SearchURL string
}

// SearchResult is one anchor on the search page.
type SearchResult struct {
	Text string
	URL  string
}

// SeasonNode is a season anchor on a series page.
type SeasonNode struct {
	Label   string
	PageURL string
}

// EpisodeNode is an episode container on a season page.
type EpisodeNode struct {
	Label      string
	PageURL    string
	FormatHint string // visible text of the format anchor, e.g. "High MP4" or "[AVI]"
	Err        error
}
