package scheduler

import (
	"maps"
	"slices"
	"time"

	"github.com/vmunix/tvgrab/internal/download"
)

// Summary is the final tally of a run.
type Summary struct {
	Total           int            `json:"total"`
	Completed       int            `json:"completed"`
	AlreadyComplete int            `json:"already_complete"`
	Failed          int            `json:"failed"`
	Bytes           int64          `json:"bytes"`
	Reasons         map[string]int `json:"reasons,omitempty"` // failure reason -> count
	Duration        time.Duration  `json:"duration"`
}

// Summarize tallies results. Completed includes AlreadyComplete.
func Summarize(results []download.Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch r.Outcome {
		case download.OutcomeCompleted:
			s.Completed++
		case download.OutcomeAlreadyComplete:
			s.Completed++
			s.AlreadyComplete++
		default:
			s.Failed++
			if s.Reasons == nil {
				s.Reasons = make(map[string]int)
			}
			s.Reasons[r.Reason()]++
		}
		s.Bytes += r.Bytes
	}
	return s
}

// ReasonKeys returns the failure reasons in stable order.
func (s Summary) ReasonKeys() []string {
	return slices.Sorted(maps.Keys(s.Reasons))
}
