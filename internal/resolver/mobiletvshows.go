package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/vmunix/tvgrab/internal/config"
	"github.com/vmunix/tvgrab/internal/fetch"
)

// MobileTVShows reads the mobiletvshows page schema. Every selector comes
// from config so a layout change needs no code change.
type MobileTVShows struct {
	cfg     config.SiteConfig
	base    *url.URL
	fetcher fetch.Fetcher
	log     *slog.Logger
}

var _ Site = (*MobileTVShows)(nil)

// NewMobileTVShows creates the site reader. cfg must have passed validation.
func NewMobileTVShows(cfg config.SiteConfig, fetcher fetch.Fetcher, log *slog.Logger) (*MobileTVShows, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	if log == nil {
		log = slog.Default()
	}
	return &MobileTVShows{
		cfg:     cfg,
		base:    base,
		fetcher: fetcher,
		log:     log.With("component", "site"),
	}, nil
}

// Series builds the search URL: spaces become "+", everything else is
// query-escaped.
func (m *MobileTVShows) Series(title string) SeriesHandle {
	query := url.QueryEscape(strings.TrimSpace(title))
	path := strings.ReplaceAll(m.cfg.SearchPath, "{query}", query)
	return SeriesHandle{Title: title, SearchURL: m.link(path)}
}

func (m *MobileTVShows) Search(ctx context.Context, series SeriesHandle) ([]SearchResult, error) {
	page, err := m.fetcher.Fetch(ctx, series.SearchURL)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", series.Title, err)
	}

	var results []SearchResult
	page.Find(m.cfg.SearchResult).Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		results = append(results, SearchResult{Text: strings.TrimSpace(a.Text()), URL: m.link(href)})
	})
	return results, nil
}

func (m *MobileTVShows) Seasons(ctx context.Context, seriesURL string) ([]SeasonNode, error) {
	page, err := m.fetcher.Fetch(ctx, seriesURL)
	if err != nil {
		return nil, fmt.Errorf("series page: %w", err)
	}

	var seasons []SeasonNode
	page.Find(m.cfg.SeasonLink).Each(func(_ int, a *goquery.Selection) {
		season := SeasonNode{Label: strings.TrimSpace(a.Text())}
		if href, ok := a.Attr("href"); ok && strings.TrimSpace(href) != "" {
			season.PageURL = m.link(href)
		}
		seasons = append(seasons, season)
	})
	return seasons, nil
}

func (m *MobileTVShows) Episodes(ctx context.Context, season SeasonNode) ([]EpisodeNode, error) {
	if season.PageURL == "" {
		return nil, fmt.Errorf("%w: season %q has no link", ErrMissingNode, season.Label)
	}
	page, err := m.fetcher.Fetch(ctx, season.PageURL)
	if err != nil {
		return nil, fmt.Errorf("season page %q: %w", season.Label, err)
	}

	var episodes []EpisodeNode
	page.Find(m.cfg.EpisodeContainer).Each(func(_ int, box *goquery.Selection) {
		episodes = append(episodes, m.episode(box))
	})
	return episodes, nil
}

func (m *MobileTVShows) episode(box *goquery.Selection) EpisodeNode {
	var ep EpisodeNode
	ep.Label = strings.TrimSpace(box.Find(m.cfg.EpisodeLabel).First().Text())

	link := box.Find(m.cfg.EpisodeLink).First()
	href, ok := link.Attr("href")
	switch {
	case !ok || strings.TrimSpace(href) == "":
		ep.Err = fmt.Errorf("%w: format link %q", ErrMissingNode, m.cfg.EpisodeLink)
	case ep.Label == "":
		ep.Err = fmt.Errorf("%w: episode label %q", ErrMissingNode, m.cfg.EpisodeLabel)
	default:
		ep.PageURL = m.link(href)
		ep.FormatHint = strings.TrimSpace(link.Text())
	}
	return ep
}

func (m *MobileTVShows) DownloadLink(ctx context.Context, episode EpisodeNode) (string, error) {
	page, err := m.fetcher.Fetch(ctx, episode.PageURL)
	if err != nil {
		return "", fmt.Errorf("episode page: %w", err)
	}
	href, ok := page.Find(m.cfg.DownloadPageLink).First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return "", fmt.Errorf("%w: download page link %q", ErrMissingNode, m.cfg.DownloadPageLink)
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}
	page, err = m.fetcher.Fetch(ctx, m.link(href))
	if err != nil {
		return "", fmt.Errorf("download page: %w", err)
	}

	inputs := page.Find(m.cfg.DownloadInput)
	value, ok := inputs.Eq(m.cfg.DownloadInputIndex - 1).Attr("value")
	if !ok || strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("%w: input %d of %q (found %d)",
			ErrMissingNode, m.cfg.DownloadInputIndex, m.cfg.DownloadInput, inputs.Length())
	}
	return strings.TrimSpace(value), nil
}

// link resolves an href found on any page of the site against the base URL.
func (m *MobileTVShows) link(href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		m.log.Debug("unparseable href", "href", href, "error", err)
		return ""
	}
	return m.base.ResolveReference(ref).String()
}
