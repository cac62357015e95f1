// Package subtitles renders burn-in captions for a clip. Transcripts only
// carry segment-level timing, so word timings are estimated by spreading
// each segment's words evenly over its span.
package subtitles

import (
	"fmt"
	"strings"
	"time"

	"github.com/forPelevin/clipforge/internal/types"
)

const (
	lineCharBudget = 42
	lineWordBudget = 8
)

// ClipASS returns an ASS document for the clip window [start, end) with
// event times relative to the clip start. It returns "" when no segment
// text falls inside the window.
func ClipASS(segs []types.Segment, start, end float64) string {
	words := estimateWords(segs, dur(start), dur(end))
	if len(words) == 0 {
		return ""
	}
	return render(packLines(words))
}

type word struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

type line struct {
	Start time.Duration
	End   time.Duration
	Words []word
}

func estimateWords(segs []types.Segment, start, end time.Duration) []word {
	var out []word
	for _, s := range segs {
		ss, se := dur(s.Start), dur(s.End)
		if se <= start || ss >= end || se <= ss {
			continue
		}
		fields := strings.Fields(s.Text)
		if len(fields) == 0 {
			continue
		}
		step := (se - ss) / time.Duration(len(fields))
		for i, f := range fields {
			ws := ss + time.Duration(i)*step
			we := ws + step
			if we <= start || ws >= end {
				continue
			}
			ws = max(ws, start)
			we = min(we, end)
			text := sanitize(f)
			if text == "" {
				continue
			}
			out = append(out, word{Start: ws - start, End: we - start, Text: text})
		}
	}
	return out
}

func packLines(words []word) []line {
	var out []line
	cur := line{Start: words[0].Start}
	curLen := 0
	for _, w := range words {
		wl := len([]rune(w.Text))
		next := curLen + wl
		if curLen > 0 {
			next++
		}
		if len(cur.Words) > 0 && (len(cur.Words) >= lineWordBudget || next > lineCharBudget) {
			cur.End = cur.Words[len(cur.Words)-1].End
			out = append(out, cur)
			cur = line{Start: w.Start}
			curLen, next = 0, wl
		}
		cur.Words = append(cur.Words, w)
		curLen = next
	}
	cur.End = cur.Words[len(cur.Words)-1].End
	return append(out, cur)
}

func render(lines []line) string {
	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n\n[Events]\n")
	b.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
	for _, ln := range lines {
		fmt.Fprintf(&b, "Dialogue: 0,%s,%s,Caption,,0,0,0,,", assTime(ln.Start), assTime(ln.End))
		for i, w := range ln.Words {
			cs := int((w.End - w.Start) / (10 * time.Millisecond))
			if cs < 1 {
				cs = 1
			}
			if i > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "{\\k%d}%s", cs, w.Text)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

var header = strings.TrimSpace(`
[Script Info]
ScriptType: v4.00+
PlayResX: 1920
PlayResY: 1080
ScaledBorderAndShadow: yes

[V4+ Styles]
Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding
Style: Caption, Inter, 72, &H00FFFFFF, &H0000D2FF, &H00000000, &H64000000, 1,0,0,0,100,100,0,0,1,5,2,2, 80,80,80,1
`)

func assTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d / time.Hour)
	d -= time.Duration(h) * time.Hour
	m := int(d / time.Minute)
	d -= time.Duration(m) * time.Minute
	s := int(d / time.Second)
	d -= time.Duration(s) * time.Second
	cs := int(d / (10 * time.Millisecond))
	return fmt.Sprintf("%d:%02d:%02d.%02d", h, m, s, cs)
}

// sanitize drops characters that ASS treats as override or escape markers.
func sanitize(s string) string {
	s = strings.ReplaceAll(s, "\\", "")
	s = strings.ReplaceAll(s, "{", "(")
	s = strings.ReplaceAll(s, "}", ")")
	return strings.TrimSpace(s)
}

func dur(sec float64) time.Duration { return time.Duration(sec * float64(time.Second)) }
