package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/forPelevin/clipforge/internal/domain/highlights"
	"github.com/forPelevin/clipforge/internal/metrics"
	"github.com/forPelevin/clipforge/internal/store"
	"github.com/forPelevin/clipforge/internal/types"
)

// Analyze transcribes, scores and selects clips for a downloaded project.
// Only one project is analyzed at a time; a concurrent request is rejected
// with ErrBusy rather than queued.
func (s *Service) Analyze(_ context.Context, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.reject("analyze", "closed", ErrClosed)
	}

	p, ok := s.store.Get(projectID)
	if !ok {
		return s.reject("analyze", "not_found", ErrNotFound)
	}
	if s.analyzing == projectID {
		return s.reject("analyze", "in_flight", fmt.Errorf("%w: project %s is already being analyzed", ErrInFlight, projectID))
	}
	if err := analyzable(p, s.isAcquiring(projectID)); err != nil {
		reason := "not_ready"
		if !errors.Is(err, ErrNotReady) {
			reason = "in_flight"
		}
		return s.reject("analyze", reason, err)
	}
	if s.analyzing != "" {
		return s.reject("analyze", "busy", fmt.Errorf("%w: project %s holds the analysis slot", ErrBusy, s.analyzing))
	}

	// the reset is the commit point; re-check under the store lock
	p, err := s.store.UpdateIf(projectID, func(cur types.Project) error {
		return analyzable(cur, false)
	}, store.ResetAnalysis())
	if err != nil {
		return s.reject("analyze", "not_ready", err)
	}
	s.analyzing = projectID
	log := s.log.WithFields(logrus.Fields{"project_id": projectID, "leg": metrics.LegAnalyze})
	s.discardRenders(projectID, log)
	s.notify(types.Event{Kind: types.EventAnalysisStarted, ProjectID: projectID, Status: string(types.StatusAnalyzing), Message: "analysis started"})

	stage := StageTranscription
	s.spawn(metrics.LegAnalyze, s.opts.AnalyzeTimeout, &stage,
		func(ctx context.Context) error { return s.analyze(ctx, p, &stage, log) },
		func(err error) { s.failProject(projectID, types.EventAnalysisFailed, err, log) },
		func() {
			s.mu.Lock()
			if s.analyzing == projectID {
				s.analyzing = ""
			}
			s.mu.Unlock()
		},
	)
	return nil
}

// discardRenders removes clip files left by an earlier analysis; the reset
// dropped every record that pointed at them. No clip of the project can be
// rendering here, since analyzable refuses that case.
func (s *Service) discardRenders(projectID string, log logrus.FieldLogger) {
	if s.opts.ClipsDir == "" {
		return
	}
	if err := os.RemoveAll(filepath.Join(s.opts.ClipsDir, projectID)); err != nil {
		log.WithError(err).Warn("remove stale clips")
	}
}

func analyzable(p types.Project, acquiring bool) error {
	if acquiring || p.MediaPath == "" {
		return ErrNotReady
	}
	switch p.Status {
	case types.StatusPending, types.StatusDownloading:
		return ErrNotReady
	case types.StatusAnalyzing:
		return fmt.Errorf("%w: project %s is already being analyzed", ErrInFlight, p.ID)
	}
	for _, c := range p.Clips {
		if c.RenderStatus == types.RenderGenerating {
			return fmt.Errorf("%w: clip %s is rendering", ErrInFlight, c.ID)
		}
	}
	return nil
}

func (s *Service) isAcquiring(projectID string) bool {
	for _, id := range s.acquiring {
		if id == projectID {
			return true
		}
	}
	return false
}

// analyze runs the stages strictly in order. stage is advanced as each one
// starts so a failure or panic is attributed correctly.
func (s *Service) analyze(ctx context.Context, p types.Project, stage *Stage, log logrus.FieldLogger) error {
	*stage = StageTranscription
	log.WithField("media", p.MediaPath).Info("transcribing")
	segs, err := s.d.Transcriber.Transcribe(ctx, p.MediaPath)
	if err != nil {
		return stageErr(StageTranscription, err)
	}
	if _, err := s.store.Update(p.ID, store.Segments(segs)); err != nil {
		return stageErr(StageTranscription, err)
	}
	s.notify(types.Event{Kind: types.EventTranscribed, ProjectID: p.ID, Status: string(types.StatusAnalyzing), Message: fmt.Sprintf("%d segments transcribed", len(segs))})

	*stage = StageScoring
	scored, err := highlights.ScoreSegments(ctx, s.d.Analyzer, segs, s.opts.Weights, s.opts.RateCap)
	if err != nil {
		return stageErr(StageScoring, err)
	}

	*stage = StageSelection
	if err := ctx.Err(); err != nil {
		return stageErr(StageSelection, err)
	}
	opts := s.opts.Selection
	opts.VideoID = p.ID
	clips := highlights.SelectClips(scored, opts)

	if _, err := s.store.Update(p.ID, store.Clips(clips), store.Status(types.StatusComplete)); err != nil {
		return stageErr(StageSelection, err)
	}
	log.WithField("clips", len(clips)).Info("analysis complete")
	s.notify(types.Event{Kind: types.EventAnalysisComplete, ProjectID: p.ID, Status: string(types.StatusComplete), Message: fmt.Sprintf("%d clips selected", len(clips))})
	return nil
}
