package pagination

import (
	"cmp"
	"slices"

	"github.com/rs/zerolog"
)

// Aggregate merges page outcomes into a Result. Outcomes are visited in
// ascending page index regardless of the order they are passed in, so the
// record order never depends on completion order. Failed pages are logged and
// reported, never returned as an error.
func Aggregate[T any](logger zerolog.Logger, outcomes []Outcome[T]) Result[T] {
	sorted := slices.Clone(outcomes)
	slices.SortStableFunc(sorted, func(a, b Outcome[T]) int {
		return cmp.Compare(a.Index, b.Index)
	})

	var result Result[T]
	for _, o := range sorted {
		if !o.OK() {
			logger.Error().
				Err(o.Err).
				Int("page", o.Index).
				Msg("Failed to fetch page")
			result.FailedPages = append(result.FailedPages, FailedPage{Index: o.Index, Err: o.Err})
			continue
		}
		result.Records = append(result.Records, o.Page.Items...)
	}

	return result
}
