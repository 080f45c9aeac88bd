package resolver

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the resolver package.
var (
	// ErrNotFound is returned when no search result exactly matches the title.
	ErrNotFound = errors.New("series not found")

	// ErrSelectionOutOfRange is returned when a season or episode index
	// exceeds what the site lists.
	ErrSelectionOutOfRange = errors.New("selection out of range")

	// ErrMissingNode is returned when a page lacks an expected element.
	ErrMissingNode = errors.New("expected page element missing")

	// ErrNameCollision is returned when two episodes resolve to the same file
	// name under the fail policy.
	ErrNameCollision = errors.New("file name collision")
)

// Warning kinds, logged as the "kind" attribute.
const (
	KindResolution          = "ResolutionWarning"
	KindSelectionOutOfRange = "SelectionOutOfRange"
	KindNameCollision       = "NameCollision"
)

// NotFoundError reports a failed title search together with the closest
// result texts, best first.
type NotFoundError struct {
	Title      string
	Candidates []string
}

func (e *NotFoundError) Error() string {
	if len(e.Candidates) == 0 {
		return fmt.Sprintf("%v: %q (no search results)", ErrNotFound, e.Title)
	}
	return fmt.Sprintf("%v: %q (did you mean: %s)", ErrNotFound, e.Title, strings.Join(e.Candidates, ", "))
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// Warning records a season or episode that was skipped.
type Warning struct {
	Kind  string
	Scope string // e.g. "season 2" or "season 2 episode 3"
	Err   error

	season, episode int
}

func (w *Warning) Error() string {
	return fmt.Sprintf("%s: %s: %v", w.Kind, w.Scope, w.Err)
}

func (w *Warning) Unwrap() error { return w.Err }

func newWarning(kind string, season, episode int, err error) *Warning {
	scope := fmt.Sprintf("season %d", season)
	if episode > 0 {
		scope += fmt.Sprintf(" episode %d", episode)
	}
	return &Warning{Kind: kind, Scope: scope, Err: err, season: season, episode: episode}
}
