package usecase

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/forPelevin/clipforge/internal/types"
)

type fakeAcquirer struct {
	meta       types.Metadata
	resolveErr error
	progress   []int
	fetchErr   error
	// when set, Fetch waits for release (or cancellation) before writing
	release chan struct{}
}

func (f *fakeAcquirer) Resolve(ctx context.Context, url string) (types.Metadata, error) {
	if f.resolveErr != nil {
		return types.Metadata{}, f.resolveErr
	}
	return f.meta, nil
}

func (f *fakeAcquirer) Fetch(ctx context.Context, url, dest string, onProgress func(int)) error {
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	for _, p := range f.progress {
		onProgress(p)
	}
	if err := os.WriteFile(dest, []byte("media"), 0o644); err != nil {
		return err
	}
	return f.fetchErr
}

type fakeTranscriber struct {
	segs  []types.Segment
	err   error
	panic string
	// started receives once per call; release gates the call when set
	started chan struct{}
	release chan struct{}
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, mediaPath string) ([]types.Segment, error) {
	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.panic != "" {
		panic(f.panic)
	}
	return f.segs, f.err
}

type fakeAnalyzer struct {
	err error
}

func (f fakeAnalyzer) Analyze(ctx context.Context, text string) (types.Sentiment, error) {
	if f.err != nil {
		return types.Sentiment{}, f.err
	}
	return types.Sentiment{Polarity: 0.5, Subjectivity: 0.5}, nil
}

type fakeRenderer struct {
	calls   atomic.Int32
	err     error
	mu      sync.Mutex
	burnASS []string
	// block makes every call wait for cancellation
	block bool
}

func (f *fakeRenderer) ExtractAndEncode(ctx context.Context, mediaPath string, start, end time.Duration, destPath, burnASS string) error {
	f.calls.Add(1)
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	f.mu.Lock()
	f.burnASS = append(f.burnASS, burnASS)
	f.mu.Unlock()
	if burnASS != "" {
		if _, err := os.Stat(burnASS); err != nil {
			return fmt.Errorf("subtitles missing: %w", err)
		}
	}
	if err := os.WriteFile(destPath, []byte(fmt.Sprintf("clip %s-%s", start, end)), 0o644); err != nil {
		return err
	}
	return f.err
}

type fakeProber struct {
	d   time.Duration
	err error
}

func (f fakeProber) ProbeDuration(ctx context.Context, mediaPath string) (time.Duration, error) {
	return f.d, f.err
}

// analyzeOnDownload starts analysis the moment a download completes, the
// way an event subscriber would.
type analyzeOnDownload struct {
	svc  *Service
	errs chan error
}

func (n *analyzeOnDownload) Notify(ctx context.Context, ev types.Event) {
	if ev.Kind == types.EventDownloadComplete {
		n.errs <- n.svc.Analyze(ctx, ev.ProjectID)
	}
}

// eventRecorder buffers events; sends never block, so a full buffer drops.
type eventRecorder struct {
	ch chan types.Event
}

func newEventRecorder(buffer int) *eventRecorder {
	return &eventRecorder{ch: make(chan types.Event, buffer)}
}

func (r *eventRecorder) Notify(_ context.Context, ev types.Event) {
	select {
	case r.ch <- ev:
	default:
	}
}

func (r *eventRecorder) Events() <-chan types.Event { return r.ch }

type harness struct {
	svc       *Service
	acq       *fakeAcquirer
	asr       *fakeTranscriber
	renderer  *fakeRenderer
	events    *eventRecorder
	mediaDir  string
	clipsDir  string
	urlSerial int
}

func newHarness(t *testing.T, mutate func(d *Deps, o *Options)) *harness {
	t.Helper()
	tmp := t.TempDir()
	h := &harness{
		acq:      &fakeAcquirer{meta: types.Metadata{Title: "Talk", ThumbnailRef: "https://img/t.jpg", DurationSeconds: 60}},
		asr:      &fakeTranscriber{segs: transcript(20, 3)},
		renderer: &fakeRenderer{},
		events:   newEventRecorder(1024),
		mediaDir: tmp + "/media",
		clipsDir: tmp + "/clips",
	}
	log := logrus.New()
	log.SetOutput(io.Discard)

	d := Deps{
		Acquirer:    h.acq,
		Transcriber: h.asr,
		Analyzer:    fakeAnalyzer{},
		Renderer:    h.renderer,
		Notifier:    h.events,
		Log:         log,
	}
	o := Options{MediaDir: h.mediaDir, ClipsDir: h.clipsDir}
	if mutate != nil {
		mutate(&d, &o)
	}
	h.svc = New(d, o)
	t.Cleanup(h.svc.Close)
	return h
}

func (h *harness) nextURL() string {
	h.urlSerial++
	return fmt.Sprintf("https://videos.example.com/watch?v=%d", h.urlSerial)
}

// ready adds a project and waits for its download to finish.
func (h *harness) ready(t *testing.T) types.Project {
	t.Helper()
	p, err := h.svc.AddProject(context.Background(), h.nextURL())
	require.NoError(t, err)
	h.svc.Wait()
	p, err = h.svc.Project(p.ID)
	require.NoError(t, err)
	require.Equal(t, types.StatusComplete, p.Status, p.ErrorMessage)
	return p
}

// analyzed returns a project whose clips have been selected.
func (h *harness) analyzed(t *testing.T) types.Project {
	t.Helper()
	p := h.ready(t)
	require.NoError(t, h.svc.Analyze(context.Background(), p.ID))
	h.svc.Wait()
	p, err := h.svc.Project(p.ID)
	require.NoError(t, err)
	require.Equal(t, types.StatusComplete, p.Status, p.ErrorMessage)
	require.NotEmpty(t, p.Clips)
	return p
}

func (h *harness) drainEvents() []types.Event {
	var out []types.Event
	for {
		select {
		case ev := <-h.events.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func transcript(n int, segDur float64) []types.Segment {
	segs := make([]types.Segment, n)
	for i := range segs {
		segs[i] = types.Segment{
			Start: float64(i) * segDur,
			End:   float64(i+1) * segDur,
			Text:  fmt.Sprintf("segment %d has a few words", i),
		}
	}
	return segs
}
