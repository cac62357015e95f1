package ports

import (
	"context"
	"time"

	"github.com/forPelevin/clipforge/internal/types"
)

// Acquirer resolves and downloads source videos.
type Acquirer interface {
	Resolve(ctx context.Context, url string) (types.Metadata, error)
	// Fetch streams the media to destPath, calling onProgress with
	// percentages as the download advances. Values are not guaranteed to be
	// monotonic.
	Fetch(ctx context.Context, url, destPath string, onProgress func(percent int)) error
}

type Transcriber interface {
	Transcribe(ctx context.Context, mediaPath string) ([]types.Segment, error)
}

type LexicalAnalyzer interface {
	Analyze(ctx context.Context, text string) (types.Sentiment, error)
}

type Renderer interface {
	// ExtractAndEncode re-encodes [start, end) of mediaPath into destPath.
	// burnASS, when set, is an ASS subtitle file burned into the video.
	ExtractAndEncode(ctx context.Context, mediaPath string, start, end time.Duration, destPath, burnASS string) error
}

type Prober interface {
	ProbeDuration(ctx context.Context, mediaPath string) (time.Duration, error)
}

type AudioExtractor interface {
	ExtractAudioMono16k(ctx context.Context, inMedia, outWav string) error
}

type Notifier interface {
	Notify(ctx context.Context, ev types.Event)
}
