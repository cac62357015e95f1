package lexicon

var defaultIntensifiers = map[string]float64{
	"very":       1.3,
	"really":     1.3,
	"so":         1.2,
	"extremely":  1.5,
	"incredibly": 1.5,
	"super":      1.4,
	"totally":    1.3,
	"absolutely": 1.4,
	"pretty":     1.1,
	"quite":      1.1,
	"most":       1.2,
	"slightly":   0.6,
	"somewhat":   0.7,
	"barely":     0.5,
}

// defaultSubjectivity rates how opinionated a word is, 0 for factual and 1
// for purely personal judgement.
var defaultSubjectivity = map[string]float64{
	// positive
	"amazing":     0.9,
	"awesome":     1.0,
	"beautiful":   1.0,
	"best":        0.3,
	"better":      0.5,
	"brilliant":   1.0,
	"cool":        0.65,
	"excellent":   1.0,
	"excited":     0.75,
	"exciting":    0.8,
	"fantastic":   0.9,
	"fun":         0.2,
	"funny":       1.0,
	"glad":        1.0,
	"good":        0.6,
	"great":       0.75,
	"happy":       1.0,
	"helpful":     0.5,
	"impressive":  1.0,
	"incredible":  0.9,
	"interesting": 0.5,
	"love":        0.6,
	"lovely":      0.75,
	"nice":        1.0,
	"perfect":     1.0,
	"powerful":    1.0,
	"right":       0.54,
	"success":     0.4,
	"successful":  0.95,
	"thanks":      0.2,
	"true":        0.65,
	"useful":      0.0,
	"win":         0.4,
	"won":         0.4,
	"wonderful":   1.0,
	"wow":         1.0,
	"yes":         0.3,

	// negative
	"angry":      1.0,
	"annoying":   0.9,
	"awful":      1.0,
	"bad":        0.67,
	"boring":     1.0,
	"broken":     0.4,
	"crazy":      0.9,
	"difficult":  1.0,
	"disaster":   0.8,
	"dumb":       0.5,
	"fail":       0.3,
	"failed":     0.3,
	"fake":       1.0,
	"hard":       0.54,
	"hate":       0.9,
	"horrible":   1.0,
	"lost":       0.3,
	"mad":        1.0,
	"mistake":    0.4,
	"poor":       0.6,
	"problem":    0.3,
	"sad":        1.0,
	"scary":      1.0,
	"stupid":     1.0,
	"terrible":   1.0,
	"ugly":       1.0,
	"useless":    0.0,
	"weird":      1.0,
	"worse":      0.6,
	"worst":      1.0,
	"wrong":      0.9,

	// subjective, roughly neutral
	"believe":   0.6,
	"feel":      0.7,
	"honestly":  0.8,
	"literally": 0.5,
	"obviously": 0.5,
	"think":     0.5,
	"surprised": 0.8,
	"strange":   0.15,
}
