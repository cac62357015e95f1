package highlights

import (
	"sort"
	"strings"

	"github.com/forPelevin/clipforge/internal/types"
	"github.com/google/uuid"
)

type SelectOptions struct {
	VideoID     string
	MinDuration float64
	MaxDuration float64
	TopK        int
	// Distinct forbids a window that overlaps an earlier pick. With
	// Distinct=false every round rescans the full transcript, so the same
	// window can be returned more than once.
	Distinct bool
	NewID    func() string
}

func DefaultSelectOptions() SelectOptions {
	return SelectOptions{
		MinDuration: 15,
		MaxDuration: 60,
		TopK:        5,
		Distinct:    true,
		NewID:       uuid.NewString,
	}
}

type window struct {
	i, j int
	avg  float64
}

// SelectClips picks up to TopK windows of contiguous segments whose span is
// within [MinDuration, MaxDuration], each maximizing the average segment
// score. The result is sorted by score descending, ties by earliest start.
func SelectClips(scored []types.ScoredSegment, opts SelectOptions) []types.Clip {
	out := []types.Clip{}
	n := len(scored)
	if n == 0 || opts.TopK <= 0 || opts.MaxDuration < opts.MinDuration {
		return out
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	prefix := make([]float64, n+1)
	for k, s := range scored {
		prefix[k+1] = prefix[k] + s.Score
	}
	claimed := make([]bool, n)

	for round := 0; round < opts.TopK; round++ {
		best, ok := bestWindow(scored, prefix, claimed, opts)
		if !ok {
			break
		}
		out = append(out, buildClip(scored, best, opts.VideoID, newID()))
		if opts.Distinct {
			for k := best.i; k <= best.j; k++ {
				claimed[k] = true
			}
		}
	}

	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Score != out[b].Score {
			return out[a].Score > out[b].Score
		}
		return out[a].Start < out[b].Start
	})
	return out
}

func bestWindow(scored []types.ScoredSegment, prefix []float64, claimed []bool, opts SelectOptions) (window, bool) {
	var (
		best  window
		found bool
	)
	for i := range scored {
		if claimed[i] {
			continue
		}
		start := scored[i].Start
		for j := i; j < len(scored); j++ {
			if claimed[j] {
				// any window extending past j overlaps a previous pick
				break
			}
			span := scored[j].End - start
			if span > opts.MaxDuration {
				break
			}
			if span < opts.MinDuration {
				continue
			}
			avg := (prefix[j+1] - prefix[i]) / float64(j-i+1)
			if !found || avg > best.avg {
				best = window{i: i, j: j, avg: avg}
				found = true
			}
		}
	}
	return best, found
}

func buildClip(scored []types.ScoredSegment, w window, videoID, id string) types.Clip {
	parts := make([]string, 0, w.j-w.i+1)
	for k := w.i; k <= w.j; k++ {
		if t := strings.TrimSpace(scored[k].Text); t != "" {
			parts = append(parts, t)
		}
	}
	return types.Clip{
		ID:           id,
		VideoID:      videoID,
		Start:        scored[w.i].Start,
		End:          scored[w.j].End,
		Text:         strings.Join(parts, " "),
		Score:        w.avg,
		RenderStatus: types.RenderPending,
	}
}
