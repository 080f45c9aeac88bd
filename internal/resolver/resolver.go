// Package resolver turns a series title and a selection into the list of
// files to download by walking a site's search, series, season and episode
// pages.
package resolver

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/vmunix/tvgrab/internal/download"
)

// DefaultEpisodeConcurrency bounds concurrent episode page walks.
const DefaultEpisodeConcurrency = 5

// Selection narrows which seasons and episodes are resolved. Indices are
// 1-based and zero means unset. Episode takes precedence over Limit.
type Selection struct {
	Season  int
	Episode int
	Limit   int
}

// Validate rejects negative values.
func (s Selection) Validate() error {
	if s.Season < 0 || s.Episode < 0 || s.Limit < 0 {
		return fmt.Errorf("%w: season, episode and limit must be positive", ErrSelectionOutOfRange)
	}
	return nil
}

// CollisionPolicy decides what happens when two episodes map to one file name.
type CollisionPolicy string

const (
	// CollisionSuffix renames later duplicates "Name (2).ext", "Name (3).ext".
	CollisionSuffix CollisionPolicy = "suffix"
	// CollisionFail drops later duplicates with a NameCollision warning.
	CollisionFail CollisionPolicy = "fail"
)

// Options tunes resolution.
type Options struct {
	EpisodeConcurrency int
	SortByName         bool
	Collision          CollisionPolicy
}

// Result is the outcome of a resolution. Tasks are in season order, then
// episode order, unless SortByName is set.
type Result struct {
	Series    string
	SeriesURL string
	Seasons   int // seasons listed on the series page
	Tasks     []download.Task
	Warnings  []*Warning
}

// Resolver walks a Site. It is safe for concurrent use.
type Resolver struct {
	site Site
	opts Options
	log  *slog.Logger
}

// New creates a resolver.
func New(site Site, opts Options, log *slog.Logger) *Resolver {
	if opts.EpisodeConcurrency <= 0 {
		opts.EpisodeConcurrency = DefaultEpisodeConcurrency
	}
	if opts.Collision == "" {
		opts.Collision = CollisionSuffix
	}
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{site: site, opts: opts, log: log.With("component", "resolver")}
}

// Resolve searches for title and resolves the selected episodes. The
// returned Result is never nil. A title without an exact match yields an
// empty Result and a *NotFoundError; skipped seasons and episodes are
// reported in Result.Warnings, not as an error.
func (r *Resolver) Resolve(ctx context.Context, title string, sel Selection) (*Result, error) {
	res := &Result{Series: strings.TrimSpace(title)}
	if err := sel.Validate(); err != nil {
		return res, err
	}
	log := r.log.With("series", res.Series)

	handle := r.site.Series(title)
	results, err := r.site.Search(ctx, handle)
	if err != nil {
		log.Error("search failed", "url", handle.SearchURL, "error", err)
		return res, err
	}

	for _, candidate := range results {
		if sameTitle(title, candidate.Text) {
			log.Info("series found", "url", candidate.URL)
			return r.resolveSeries(ctx, res, candidate.URL, sel, log)
		}
	}

	texts := make([]string, len(results))
	for i, c := range results {
		texts[i] = c.Text
	}
	nf := &NotFoundError{Title: res.Series, Candidates: rankCandidates(title, texts)}
	log.Info("no exact match", "results", len(results), "candidates", nf.Candidates)
	return res, nf
}

// ResolveURL resolves the selected episodes of the series page at
// seriesURL without searching. title names the result.
func (r *Resolver) ResolveURL(ctx context.Context, title, seriesURL string, sel Selection) (*Result, error) {
	res := &Result{Series: strings.TrimSpace(title)}
	if err := sel.Validate(); err != nil {
		return res, err
	}
	return r.resolveSeries(ctx, res, seriesURL, sel, r.log.With("series", res.Series))
}

// resolved is a task with the position it came from.
type resolved struct {
	task            download.Task
	season, episode int
}

// warnings collects warnings from concurrent season and episode walks.
type warnings struct {
	mu    sync.Mutex
	items []*Warning
	log   *slog.Logger
}

func (w *warnings) add(warning *Warning) {
	w.log.Warn("skipped", "kind", warning.Kind, "scope", warning.Scope, "error", warning.Err)
	w.mu.Lock()
	w.items = append(w.items, warning)
	w.mu.Unlock()
}

func (r *Resolver) resolveSeries(ctx context.Context, res *Result, seriesURL string, sel Selection, log *slog.Logger) (*Result, error) {
	start := time.Now()
	res.SeriesURL = seriesURL
	if err := ctx.Err(); err != nil {
		return res, err
	}

	seasons, err := r.site.Seasons(ctx, seriesURL)
	if err != nil {
		log.Error("series page failed", "url", seriesURL, "error", err)
		return res, err
	}
	res.Seasons = len(seasons)
	log.Info("seasons listed", "count", len(seasons))

	warns := &warnings{log: log}
	indices := make([]int, 0, len(seasons))
	switch {
	case sel.Season > len(seasons):
		warns.add(newWarning(KindSelectionOutOfRange, sel.Season, 0,
			fmt.Errorf("%w: season %d requested, %d listed", ErrSelectionOutOfRange, sel.Season, len(seasons))))
	case sel.Season > 0:
		indices = append(indices, sel.Season)
	default:
		for i := range seasons {
			indices = append(indices, i+1)
		}
	}

	// Each season fills its own slot; order is restored from slots, not
	// from completion order.
	slots := make([][]*resolved, len(indices))
	sem := semaphore.NewWeighted(int64(r.opts.EpisodeConcurrency))
	var g errgroup.Group
	for i, idx := range indices {
		g.Go(func() error {
			slots[i] = r.resolveSeason(ctx, idx, seasons[idx-1], sel, sem, warns, log)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return res, err
	}

	var found []resolved
	for _, season := range slots {
		for _, ep := range season {
			if ep != nil {
				found = append(found, *ep)
			}
		}
	}

	res.Tasks = r.disambiguate(found, warns)
	if r.opts.SortByName {
		slices.SortStableFunc(res.Tasks, func(a, b download.Task) int {
			return cmp.Compare(a.Name, b.Name)
		})
	}

	slices.SortStableFunc(warns.items, func(a, b *Warning) int {
		return cmp.Or(cmp.Compare(a.season, b.season), cmp.Compare(a.episode, b.episode))
	})
	res.Warnings = warns.items

	log.Info("resolution finished",
		"tasks", len(res.Tasks),
		"warnings", len(res.Warnings),
		"duration_ms", time.Since(start).Milliseconds())
	return res, nil
}

// resolveSeason lists one season's episodes and resolves the selected ones
// concurrently. The returned slice is indexed by selection order; nil
// entries are episodes that were skipped.
func (r *Resolver) resolveSeason(ctx context.Context, idx int, season SeasonNode, sel Selection,
	sem *semaphore.Weighted, warns *warnings, log *slog.Logger) []*resolved {
	log = log.With("season", season.Label)

	if ctx.Err() != nil {
		return nil
	}
	episodes, err := r.site.Episodes(ctx, season)
	if err != nil {
		if ctx.Err() == nil {
			warns.add(newWarning(KindResolution, idx, 0, err))
		}
		return nil
	}
	log.Info("episodes listed", "count", len(episodes))

	var picked []int
	switch {
	case sel.Episode > len(episodes):
		warns.add(newWarning(KindSelectionOutOfRange, idx, sel.Episode,
			fmt.Errorf("%w: episode %d requested, %d listed", ErrSelectionOutOfRange, sel.Episode, len(episodes))))
		return nil
	case sel.Episode > 0:
		picked = []int{sel.Episode}
	default:
		n := len(episodes)
		if sel.Limit > 0 {
			n = min(sel.Limit, n)
		}
		for i := range n {
			picked = append(picked, i+1)
		}
	}

	out := make([]*resolved, len(picked))
	var g errgroup.Group
	for slot, epIdx := range picked {
		ep := episodes[epIdx-1]
		if ep.Err != nil {
			warns.add(newWarning(KindResolution, idx, epIdx, ep.Err))
			continue
		}
		g.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				return nil
			}
			defer sem.Release(1)

			link, err := r.site.DownloadLink(ctx, ep)
			if err != nil {
				if ctx.Err() == nil {
					warns.add(newWarning(KindResolution, idx, epIdx, fmt.Errorf("%q: %w", ep.Label, err)))
				}
				return nil
			}
			name := FileName(ep.Label, ep.FormatHint)
			log.Debug("episode resolved", "episode", ep.Label, "name", name)
			out[slot] = &resolved{task: download.Task{URL: link, Name: name}, season: idx, episode: epIdx}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// disambiguate guards against two episodes writing one file. Names are
// compared case-insensitively since common filesystems are.
func (r *Resolver) disambiguate(found []resolved, warns *warnings) []download.Task {
	used := make(map[string]bool, len(found))
	tasks := make([]download.Task, 0, len(found))
	for _, f := range found {
		name := f.task.Name
		if used[strings.ToLower(name)] {
			if r.opts.Collision == CollisionFail {
				warns.add(newWarning(KindNameCollision, f.season, f.episode,
					fmt.Errorf("%w: %q", ErrNameCollision, name)))
				continue
			}
			n := 2
			for used[strings.ToLower(withSuffix(name, n))] {
				n++
			}
			renamed := withSuffix(name, n)
			warns.log.Warn("renamed duplicate file name", "kind", KindNameCollision, "name", name, "renamed", renamed)
			name = renamed
		}
		used[strings.ToLower(name)] = true
		f.task.Name = name
		tasks = append(tasks, f.task)
	}
	return tasks
}
