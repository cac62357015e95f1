// Package lexicon is the offline analyzer. Polarity is VADER's compound
// score; subjectivity is the mean rating of known opinion words, scaled by
// a preceding intensifier.
package lexicon

import (
	"context"
	"strings"
	"unicode"

	"github.com/jonreiter/govader"

	"github.com/forPelevin/clipforge/internal/types"
)

// Analyzer is safe for concurrent use; its tables are read-only after New.
type Analyzer struct {
	vader        *govader.SentimentIntensityAnalyzer
	subjectivity map[string]float64
	intensifiers map[string]float64
}

func New() *Analyzer {
	return &Analyzer{
		vader:        govader.NewSentimentIntensityAnalyzer(),
		subjectivity: defaultSubjectivity,
		intensifiers: defaultIntensifiers,
	}
}

func (a *Analyzer) Analyze(ctx context.Context, text string) (types.Sentiment, error) {
	if err := ctx.Err(); err != nil {
		return types.Sentiment{}, err
	}
	if strings.TrimSpace(text) == "" {
		return types.Sentiment{}, nil
	}
	return types.Sentiment{
		Polarity:     clamp(a.vader.PolarityScores(text).Compound, -1, 1),
		Subjectivity: a.subjectivityOf(text),
	}, nil
}

func (a *Analyzer) subjectivityOf(text string) float64 {
	var (
		sum   float64
		n     int
		scale = 1.0
	)
	for _, tok := range tokenize(text) {
		if m, ok := a.intensifiers[tok]; ok {
			scale *= m
			continue
		}
		v, ok := a.subjectivity[tok]
		if !ok {
			continue
		}
		sum += clamp(v*scale, 0, 1)
		n++
		scale = 1
	}
	if n == 0 {
		return 0
	}
	subj := sum / float64(n)
	if exclaim := min(strings.Count(text, "!"), 3); exclaim > 0 {
		subj += 0.05 * float64(exclaim)
	}
	return clamp(subj, 0, 1)
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
