package types

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusPending     Status = "pending"
	StatusDownloading Status = "downloading"
	StatusProcessing  Status = "processing"
	StatusAnalyzing   Status = "analyzing"
	StatusComplete    Status = "complete"
	StatusError       Status = "error"
)

type RenderStatus string

const (
	RenderPending    RenderStatus = "pending"
	RenderGenerating RenderStatus = "generating"
	RenderComplete   RenderStatus = "complete"
	RenderError      RenderStatus = "error"
)

// Segment is a time-coded span of transcribed speech, in seconds.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

func (s Segment) Duration() float64 { return s.End - s.Start }

// Sentiment is the output of lexical analysis over a span of text.
// Polarity is in [-1, 1], Subjectivity in [0, 1].
type Sentiment struct {
	Polarity     float64 `json:"polarity"`
	Subjectivity float64 `json:"subjectivity"`
}

type ScoredSegment struct {
	Segment
	Score float64 `json:"score"`
}

// Metadata is what the acquisition service knows about a URL before download.
type Metadata struct {
	Title           string  `json:"title"`
	ThumbnailRef    string  `json:"thumbnail"`
	DurationSeconds float64 `json:"duration"`
}

type Clip struct {
	ID           string       `json:"id"`
	VideoID      string       `json:"video_id"`
	Start        float64      `json:"start"`
	End          float64      `json:"end"`
	Text         string       `json:"text"`
	Score        float64      `json:"score"`
	RenderStatus RenderStatus `json:"render_status"`
	OutputPath   string       `json:"output_path,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`
}

func (c Clip) Duration() float64 { return c.End - c.Start }

// DurationLabel renders the clip range as "MM:SS - MM:SS".
func (c Clip) DurationLabel() string {
	return fmt.Sprintf("%s - %s", minSec(c.Start), minSec(c.End))
}

type Project struct {
	ID              string    `json:"id"`
	SourceURL       string    `json:"url"`
	Title           string    `json:"title"`
	ThumbnailRef    string    `json:"thumbnail"`
	DurationSeconds float64   `json:"duration"`
	Status          Status    `json:"status"`
	ProgressPercent int       `json:"progress"`
	MediaPath       string    `json:"file_path,omitempty"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	Segments        []Segment `json:"segments"`
	Clips           []Clip    `json:"clips"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Clone returns a deep copy; slices are never shared between copies.
func (p Project) Clone() Project {
	out := p
	out.Segments = append([]Segment(nil), p.Segments...)
	out.Clips = append([]Clip(nil), p.Clips...)
	if out.Segments == nil {
		out.Segments = []Segment{}
	}
	if out.Clips == nil {
		out.Clips = []Clip{}
	}
	return out
}

func (p Project) ClipByID(id string) (Clip, int, bool) {
	for i, c := range p.Clips {
		if c.ID == id {
			return c, i, true
		}
	}
	return Clip{}, -1, false
}

type EventKind string

const (
	EventProjectAdded     EventKind = "project.added"
	EventDownloadProgress EventKind = "download.progress"
	EventDownloadComplete EventKind = "download.complete"
	EventDownloadFailed   EventKind = "download.failed"
	EventAnalysisStarted  EventKind = "analysis.started"
	EventTranscribed      EventKind = "analysis.transcribed"
	EventAnalysisComplete EventKind = "analysis.complete"
	EventAnalysisFailed   EventKind = "analysis.failed"
	EventRenderStarted    EventKind = "render.started"
	EventRenderComplete   EventKind = "render.complete"
	EventRenderFailed     EventKind = "render.failed"
)

// Event is an ephemeral notification; it is never stored on a record.
type Event struct {
	Kind      EventKind `json:"kind"`
	ProjectID string    `json:"project_id"`
	ClipID    string    `json:"clip_id,omitempty"`
	Status    string    `json:"status,omitempty"`
	Progress  int       `json:"progress,omitempty"`
	Message   string    `json:"message,omitempty"`
	At        time.Time `json:"at"`
}

type Manifest struct {
	ProjectID string         `json:"project_id"`
	Input     string         `json:"input"`
	Title     string         `json:"title"`
	Clips     []ManifestClip `json:"clips"`
}

type ManifestClip struct {
	ID       string  `json:"id"`
	StartSec float64 `json:"start_sec"`
	EndSec   float64 `json:"end_sec"`
	Score    float64 `json:"score"`
	Text     string  `json:"text"`
	File     string  `json:"file"`
	Range    string  `json:"range"`
}

// FormatDuration renders seconds as "MM:SS", or "HH:MM:SS" past one hour.
func FormatDuration(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	total := int(sec)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

func minSec(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	total := int(sec)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
