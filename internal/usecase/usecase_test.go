package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forPelevin/clipforge/internal/types"
)

func TestAddProject_ProgressArrivesInOrder(t *testing.T) {
	h := newHarness(t, nil)
	h.acq.progress = []int{10, 40, 90, 100}

	p, err := h.svc.AddProject(context.Background(), "https://videos.example.com/watch?v=abc")
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, p.Status)
	h.svc.Wait()

	var seen []int
	for _, ev := range h.drainEvents() {
		if ev.Kind == types.EventDownloadProgress {
			seen = append(seen, ev.Progress)
		}
	}
	assert.Equal(t, []int{10, 40, 90, 100}, seen)

	got, err := h.svc.Project(p.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusComplete, got.Status)
	assert.Equal(t, 100, got.ProgressPercent)
	assert.Equal(t, filepath.Join(h.mediaDir, p.ID+".mp4"), got.MediaPath)
	assert.FileExists(t, got.MediaPath)
	assert.Equal(t, "Talk", got.Title)
	assert.Empty(t, got.ErrorMessage)
}

func TestAddProject_DecreasingProgressIsDropped(t *testing.T) {
	h := newHarness(t, nil)
	h.acq.progress = []int{10, 40, 25, 40, 150, 90}

	_, err := h.svc.AddProject(context.Background(), h.nextURL())
	require.NoError(t, err)
	h.svc.Wait()

	var seen []int
	for _, ev := range h.drainEvents() {
		if ev.Kind == types.EventDownloadProgress {
			seen = append(seen, ev.Progress)
		}
	}
	assert.Equal(t, []int{10, 40, 100}, seen)
}

func TestAddProject_InvalidURL(t *testing.T) {
	h := newHarness(t, nil)
	for _, raw := range []string{"", "   ", "not a url", "ftp://videos.example.com/x", "https://"} {
		_, err := h.svc.AddProject(context.Background(), raw)
		assert.ErrorIs(t, err, ErrInvalidURL, "%q", raw)
	}
	assert.Empty(t, h.svc.Projects())
	assert.Empty(t, h.drainEvents())
}

func TestAddProject_MetadataDefaultsAndMeasuredDuration(t *testing.T) {
	h := newHarness(t, func(d *Deps, _ *Options) {
		d.Prober = fakeProber{d: 125400 * time.Millisecond}
	})
	h.acq.meta = types.Metadata{}

	p := h.ready(t)
	assert.Equal(t, "Untitled Video", p.Title)
	assert.Equal(t, "/placeholder.svg", p.ThumbnailRef)
	assert.Equal(t, 125.0, p.DurationSeconds)
}

func TestAddProject_FetchFailureRemovesPartialMedia(t *testing.T) {
	h := newHarness(t, nil)
	h.acq.fetchErr = errors.New("network down")

	p, err := h.svc.AddProject(context.Background(), h.nextURL())
	require.NoError(t, err)
	h.svc.Wait()

	got, _ := h.svc.Project(p.ID)
	assert.Equal(t, types.StatusError, got.Status)
	assert.Equal(t, "network down", got.ErrorMessage)
	assert.Empty(t, got.MediaPath)
	assert.NoFileExists(t, filepath.Join(h.mediaDir, p.ID+".mp4"))

	kinds := map[types.EventKind]bool{}
	for _, ev := range h.drainEvents() {
		kinds[ev.Kind] = true
	}
	assert.True(t, kinds[types.EventDownloadFailed])
}

func TestAddProject_ResolveFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.acq.resolveErr = errors.New("video unavailable")

	p, err := h.svc.AddProject(context.Background(), h.nextURL())
	require.NoError(t, err)
	h.svc.Wait()

	got, _ := h.svc.Project(p.ID)
	assert.Equal(t, types.StatusError, got.Status)
	assert.Equal(t, "video unavailable", got.ErrorMessage)
}

func TestAddProject_SameURLInFlight(t *testing.T) {
	h := newHarness(t, nil)
	h.acq.release = make(chan struct{})
	const url = "https://videos.example.com/watch?v=dup"

	_, err := h.svc.AddProject(context.Background(), url)
	require.NoError(t, err)
	_, err = h.svc.AddProject(context.Background(), url)
	assert.ErrorIs(t, err, ErrInFlight)
	assert.Len(t, h.svc.Projects(), 1)

	close(h.acq.release)
	h.svc.Wait()

	_, err = h.svc.AddProject(context.Background(), url)
	assert.NoError(t, err, "a finished download no longer blocks the url")
	h.svc.Wait()
}

func TestProjects_MostRecentFirst(t *testing.T) {
	h := newHarness(t, nil)
	a := h.ready(t)
	b := h.ready(t)

	list := h.svc.Projects()
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].ID)
	assert.Equal(t, a.ID, list[1].ID)
}

func TestAnalyze_SelectsClips(t *testing.T) {
	h := newHarness(t, nil)
	p := h.analyzed(t)

	assert.Len(t, p.Segments, 20)
	for _, c := range p.Clips {
		assert.Equal(t, p.ID, c.VideoID)
		assert.Equal(t, types.RenderPending, c.RenderStatus)
		assert.GreaterOrEqual(t, c.Duration(), 15.0)
		assert.LessOrEqual(t, c.Duration(), 60.0)
		assert.NotEmpty(t, c.Text)
	}

	var kinds []types.EventKind
	for _, ev := range h.drainEvents() {
		if ev.ProjectID == p.ID {
			kinds = append(kinds, ev.Kind)
		}
	}
	assert.Subset(t, kinds, []types.EventKind{types.EventAnalysisStarted, types.EventTranscribed, types.EventAnalysisComplete})
}

func TestAnalyze_TranscriptionFailure(t *testing.T) {
	h := newHarness(t, nil)
	p := h.ready(t)
	h.asr.err = errors.New("whisper exploded")

	require.NoError(t, h.svc.Analyze(context.Background(), p.ID))
	h.svc.Wait()

	got, _ := h.svc.Project(p.ID)
	assert.Equal(t, types.StatusError, got.Status)
	assert.Contains(t, got.ErrorMessage, "whisper exploded")
	assert.Empty(t, got.Segments)
	assert.Empty(t, got.Clips)
}

func TestAnalyze_ScoringFailureKeepsTranscript(t *testing.T) {
	h := newHarness(t, func(d *Deps, _ *Options) {
		d.Analyzer = fakeAnalyzer{err: errors.New("model offline")}
	})
	p := h.ready(t)

	require.NoError(t, h.svc.Analyze(context.Background(), p.ID))
	h.svc.Wait()

	got, _ := h.svc.Project(p.ID)
	assert.Equal(t, types.StatusError, got.Status)
	assert.Contains(t, got.ErrorMessage, "model offline")
	assert.Len(t, got.Segments, 20)
	assert.Empty(t, got.Clips)
}

func TestAnalyze_PanicIsContained(t *testing.T) {
	h := newHarness(t, nil)
	p := h.ready(t)
	h.asr.panic = "decoder blew up"

	require.NoError(t, h.svc.Analyze(context.Background(), p.ID))
	h.svc.Wait()

	got, _ := h.svc.Project(p.ID)
	assert.Equal(t, types.StatusError, got.Status)
	assert.Contains(t, got.ErrorMessage, "decoder blew up")

	// the analysis slot is released after a failure
	h.asr.panic = ""
	require.NoError(t, h.svc.Analyze(context.Background(), p.ID))
	h.svc.Wait()
	got, _ = h.svc.Project(p.ID)
	assert.Equal(t, types.StatusComplete, got.Status)
}

func TestAnalyze_BusyRejectionDoesNotMutate(t *testing.T) {
	h := newHarness(t, nil)
	a := h.ready(t)
	b := h.ready(t)

	h.asr.started = make(chan struct{}, 1)
	h.asr.release = make(chan struct{})

	require.NoError(t, h.svc.Analyze(context.Background(), a.ID))
	<-h.asr.started

	before, _ := h.svc.Project(b.ID)
	err := h.svc.Analyze(context.Background(), b.ID)
	assert.ErrorIs(t, err, ErrBusy)
	after, _ := h.svc.Project(b.ID)
	assert.Equal(t, before, after)

	assert.ErrorIs(t, h.svc.Analyze(context.Background(), a.ID), ErrInFlight)

	close(h.asr.release)
	h.svc.Wait()

	got, _ := h.svc.Project(a.ID)
	assert.Equal(t, types.StatusComplete, got.Status)
	assert.NoError(t, h.svc.Analyze(context.Background(), b.ID), "slot is free again")
	h.svc.Wait()
}

func TestAnalyze_Rejections(t *testing.T) {
	h := newHarness(t, nil)
	assert.ErrorIs(t, h.svc.Analyze(context.Background(), "missing"), ErrNotFound)

	h.acq.release = make(chan struct{})
	p, err := h.svc.AddProject(context.Background(), h.nextURL())
	require.NoError(t, err)
	assert.ErrorIs(t, h.svc.Analyze(context.Background(), p.ID), ErrNotReady)

	close(h.acq.release)
	h.svc.Wait()
	h.acq.release = nil

	h.acq.fetchErr = errors.New("gone")
	failed, err := h.svc.AddProject(context.Background(), h.nextURL())
	require.NoError(t, err)
	h.svc.Wait()
	assert.ErrorIs(t, h.svc.Analyze(context.Background(), failed.ID), ErrNotReady)
}

func TestAnalyze_RerunReplacesResults(t *testing.T) {
	h := newHarness(t, nil)
	p := h.analyzed(t)
	first := p.Clips

	h.asr.segs = transcript(10, 3)
	require.NoError(t, h.svc.Analyze(context.Background(), p.ID))
	h.svc.Wait()

	got, _ := h.svc.Project(p.ID)
	assert.Equal(t, types.StatusComplete, got.Status)
	assert.Len(t, got.Segments, 10)
	for _, c := range got.Clips {
		for _, old := range first {
			assert.NotEqual(t, old.ID, c.ID)
		}
		assert.LessOrEqual(t, c.End, 30.0)
	}
}

func TestRenderClip_IsIdempotent(t *testing.T) {
	h := newHarness(t, nil)
	p := h.analyzed(t)
	clip := p.Clips[0]

	started, err := h.svc.RenderClip(context.Background(), clip.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RenderGenerating, started.RenderStatus)
	h.svc.Wait()

	done, err := h.svc.Clip(clip.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RenderComplete, done.RenderStatus)
	want := ClipPath(h.clipsDir, p.ID, clip.ID)
	assert.Equal(t, want, done.OutputPath)
	assert.NoFileExists(t, filepath.Join(h.clipsDir, p.ID, clip.ID+".partial.mp4"))

	before, err := os.ReadFile(want)
	require.NoError(t, err)
	st1, _ := os.Stat(want)

	_, err = h.svc.RenderClip(context.Background(), clip.ID)
	assert.ErrorIs(t, err, ErrAlreadyRendered)
	h.svc.Wait()

	assert.Equal(t, int32(1), h.renderer.calls.Load())
	after, _ := os.ReadFile(want)
	st2, _ := os.Stat(want)
	assert.Equal(t, before, after)
	assert.Equal(t, st1.ModTime(), st2.ModTime())

	proj, _ := h.svc.Project(p.ID)
	assert.Equal(t, types.StatusComplete, proj.Status)
}

func TestRenderClip_FailureLeavesNoOutput(t *testing.T) {
	h := newHarness(t, nil)
	p := h.analyzed(t)
	clip := p.Clips[0]
	h.renderer.err = errors.New("encoder crashed")

	_, err := h.svc.RenderClip(context.Background(), clip.ID)
	require.NoError(t, err)
	h.svc.Wait()

	got, _ := h.svc.Clip(clip.ID)
	assert.Equal(t, types.RenderError, got.RenderStatus)
	assert.Contains(t, got.ErrorMessage, "encoder crashed")
	assert.Empty(t, got.OutputPath)
	assert.NoFileExists(t, ClipPath(h.clipsDir, p.ID, clip.ID))
	assert.NoFileExists(t, filepath.Join(h.clipsDir, p.ID, clip.ID+".partial.mp4"))

	proj, _ := h.svc.Project(p.ID)
	assert.Equal(t, types.StatusComplete, proj.Status, "render failure leaves project status alone")

	// an errored clip can be re-triggered
	h.renderer.err = nil
	_, err = h.svc.RenderClip(context.Background(), clip.ID)
	require.NoError(t, err)
	h.svc.Wait()
	got, _ = h.svc.Clip(clip.ID)
	assert.Equal(t, types.RenderComplete, got.RenderStatus)
}

func TestRenderClip_MissingSource(t *testing.T) {
	h := newHarness(t, nil)
	p := h.analyzed(t)
	require.NoError(t, os.Remove(p.MediaPath))

	_, err := h.svc.RenderClip(context.Background(), p.Clips[0].ID)
	require.NoError(t, err)
	h.svc.Wait()

	got, _ := h.svc.Clip(p.Clips[0].ID)
	assert.Equal(t, types.RenderError, got.RenderStatus)
	assert.Zero(t, h.renderer.calls.Load())
}

func TestRenderClip_UnknownClip(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.svc.RenderClip(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRenderAll(t *testing.T) {
	h := newHarness(t, func(_ *Deps, o *Options) { o.BurnSubtitles = true })
	p := h.analyzed(t)

	started, err := h.svc.RenderAll(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Len(t, started, len(p.Clips))
	h.svc.Wait()

	got, _ := h.svc.Project(p.ID)
	for _, c := range got.Clips {
		assert.Equal(t, types.RenderComplete, c.RenderStatus, c.ID)
		assert.FileExists(t, c.OutputPath)
		assert.NoFileExists(t, filepath.Join(h.clipsDir, p.ID, c.ID+".ass"), "subtitle scratch file is removed")
	}
	for _, ass := range h.renderer.burnASS {
		assert.NotEmpty(t, ass)
	}

	again, err := h.svc.RenderAll(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Empty(t, again)
	assert.Equal(t, int32(len(p.Clips)), h.renderer.calls.Load())

	m, err := h.svc.Manifest(p.ID)
	require.NoError(t, err)
	assert.Len(t, m.Clips, len(p.Clips))
	assert.Equal(t, got.Clips[0].OutputPath, m.Clips[0].File)
}

func TestAddProject_AnalyzableWhenCompleteIsAnnounced(t *testing.T) {
	n := &analyzeOnDownload{errs: make(chan error, 1)}
	h := newHarness(t, func(d *Deps, _ *Options) { d.Notifier = n })
	n.svc = h.svc

	p, err := h.svc.AddProject(context.Background(), h.nextURL())
	require.NoError(t, err)
	h.svc.Wait()

	require.NoError(t, <-n.errs)
	got, err := h.svc.Project(p.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusComplete, got.Status, got.ErrorMessage)
	assert.NotEmpty(t, got.Clips)
}

func TestAddProject_SameURLAcceptedAfterFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.acq.fetchErr = errors.New("network down")
	url := h.nextURL()

	_, err := h.svc.AddProject(context.Background(), url)
	require.NoError(t, err)
	h.svc.Wait()

	h.acq.fetchErr = nil
	p, err := h.svc.AddProject(context.Background(), url)
	require.NoError(t, err)
	h.svc.Wait()
	got, _ := h.svc.Project(p.ID)
	assert.Equal(t, types.StatusComplete, got.Status)
}

func TestAddProject_DurationFailureIsLogged(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	h := newHarness(t, func(d *Deps, _ *Options) {
		d.Log = log
		d.Prober = fakeProber{err: errors.New("ffprobe missing")}
	})
	h.acq.meta.DurationSeconds = 0

	p := h.ready(t)
	assert.Zero(t, p.DurationSeconds)

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Message == "measure duration" {
			warned = true
			assert.Equal(t, p.ID, e.Data["project_id"])
		}
	}
	assert.True(t, warned)
}

func TestAnalyze_RerunRemovesStaleRenders(t *testing.T) {
	h := newHarness(t, nil)
	p := h.analyzed(t)
	old := p.Clips[0]

	_, err := h.svc.RenderClip(context.Background(), old.ID)
	require.NoError(t, err)
	h.svc.Wait()
	stale := ClipPath(h.clipsDir, p.ID, old.ID)
	require.FileExists(t, stale)

	require.NoError(t, h.svc.Analyze(context.Background(), p.ID))
	h.svc.Wait()
	assert.NoFileExists(t, stale)

	got, _ := h.svc.Project(p.ID)
	require.NotEmpty(t, got.Clips)
	_, err = h.svc.RenderClip(context.Background(), got.Clips[0].ID)
	require.NoError(t, err)
	h.svc.Wait()
	assert.FileExists(t, ClipPath(h.clipsDir, p.ID, got.Clips[0].ID))
}

func TestLegTimeouts(t *testing.T) {
	const limit = 50 * time.Millisecond

	t.Run("acquire", func(t *testing.T) {
		h := newHarness(t, func(_ *Deps, o *Options) { o.AcquireTimeout = limit })
		h.acq.release = make(chan struct{})

		p, err := h.svc.AddProject(context.Background(), h.nextURL())
		require.NoError(t, err)
		h.svc.Wait()

		got, _ := h.svc.Project(p.ID)
		assert.Equal(t, types.StatusError, got.Status)
		assert.Contains(t, got.ErrorMessage, "deadline exceeded")
		assert.Empty(t, got.MediaPath)
	})

	t.Run("analyze", func(t *testing.T) {
		h := newHarness(t, func(_ *Deps, o *Options) { o.AnalyzeTimeout = limit })
		p := h.ready(t)
		h.asr.release = make(chan struct{})

		require.NoError(t, h.svc.Analyze(context.Background(), p.ID))
		h.svc.Wait()

		got, _ := h.svc.Project(p.ID)
		assert.Equal(t, types.StatusError, got.Status)
		assert.Contains(t, got.ErrorMessage, "deadline exceeded")
		assert.NoError(t, h.svc.Analyze(context.Background(), p.ID), "slot is released")
		h.svc.Wait()
	})

	t.Run("render includes queueing", func(t *testing.T) {
		h := newHarness(t, func(_ *Deps, o *Options) {
			o.RenderTimeout = limit
			o.RenderConcurrency = 1
		})
		p := h.analyzed(t)
		require.GreaterOrEqual(t, len(p.Clips), 2)
		h.renderer.block = true

		started, err := h.svc.RenderAll(context.Background(), p.ID)
		require.NoError(t, err)
		h.svc.Wait()

		// the deadline also covers time spent waiting for a render slot
		assert.LessOrEqual(t, int(h.renderer.calls.Load()), len(started))
		for _, c := range started {
			got, err := h.svc.Clip(c.ID)
			require.NoError(t, err)
			assert.Equal(t, types.RenderError, got.RenderStatus)
			assert.Contains(t, got.ErrorMessage, "deadline exceeded")
			assert.NoFileExists(t, ClipPath(h.clipsDir, p.ID, c.ID))
		}
	})
}

func TestClose_CancelsInFlightLegs(t *testing.T) {
	h := newHarness(t, nil)
	h.acq.release = make(chan struct{})

	p, err := h.svc.AddProject(context.Background(), h.nextURL())
	require.NoError(t, err)
	h.svc.Close()

	got, _ := h.svc.Project(p.ID)
	assert.Equal(t, types.StatusError, got.Status)
	assert.Contains(t, got.ErrorMessage, "context canceled")

	_, err = h.svc.AddProject(context.Background(), h.nextURL())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestStageError(t *testing.T) {
	base := errors.New("boom")
	err := stageErr(StageScoring, base)

	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StageScoring, se.Stage)
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "scoring: boom", err.Error())
	assert.Equal(t, "boom", recordMessage(err))
	assert.Same(t, err, stageErr(StageRender, err), "existing stage is kept")
}
