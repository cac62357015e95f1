package highlights

import (
	"context"
	"fmt"
	"strings"

	"github.com/forPelevin/clipforge/internal/types"
)

// DefaultRateCap is the speaking rate (words/second) that maps to a full
// rate score.
const DefaultRateCap = 5.0

type Weights struct {
	Sentiment    float64 `yaml:"sentiment"`
	Subjectivity float64 `yaml:"subjectivity"`
	Rate         float64 `yaml:"rate"`
}

func DefaultWeights() Weights {
	return Weights{Sentiment: 0.4, Subjectivity: 0.3, Rate: 0.3}
}

func (w Weights) Validate() error {
	if w.Sentiment < 0 || w.Subjectivity < 0 || w.Rate < 0 {
		return fmt.Errorf("weights must be non-negative, got %+v", w)
	}
	return nil
}

// Analyzer maps text to sentiment scalars.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (types.Sentiment, error)
}

// Engagement combines sentiment, subjectivity and speaking rate into one
// score. Output stays in [0,1] when the weights sum to 1.
func Engagement(seg types.Segment, s types.Sentiment, w Weights, rateCap float64) float64 {
	sentiment := (clamp(s.Polarity, -1, 1) + 1) / 2
	subjectivity := clamp(s.Subjectivity, 0, 1)
	rate := RateScore(seg, rateCap)
	return w.Sentiment*sentiment + w.Subjectivity*subjectivity + w.Rate*rate
}

// RateScore is words-per-second clipped at rateCap and scaled to [0,1].
// Degenerate segments (end <= start) contribute 0.
func RateScore(seg types.Segment, rateCap float64) float64 {
	if rateCap <= 0 {
		rateCap = DefaultRateCap
	}
	d := seg.Duration()
	if d <= 0 {
		return 0
	}
	wps := float64(len(strings.Fields(seg.Text))) / d
	if wps > rateCap {
		wps = rateCap
	}
	return wps / rateCap
}

// ScoreSegments runs the analyzer over every segment, in order.
func ScoreSegments(ctx context.Context, a Analyzer, segs []types.Segment, w Weights, rateCap float64) ([]types.ScoredSegment, error) {
	out := make([]types.ScoredSegment, 0, len(segs))
	for i, seg := range segs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, err := a.Analyze(ctx, seg.Text)
		if err != nil {
			return nil, fmt.Errorf("analyze segment %d: %w", i, err)
		}
		out = append(out, types.ScoredSegment{Segment: seg, Score: Engagement(seg, s, w, rateCap)})
	}
	return out, nil
}

func clamp(x, a, b float64) float64 {
	if x < a {
		return a
	}
	if x > b {
		return b
	}
	return x
}
