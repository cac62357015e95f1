package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/forPelevin/clipforge/internal/domain/subtitles"
	"github.com/forPelevin/clipforge/internal/metrics"
	"github.com/forPelevin/clipforge/internal/store"
	"github.com/forPelevin/clipforge/internal/types"
)

// ClipPath is where a rendered clip lives: <clipsDir>/<projectID>/<clipID>.mp4.
func ClipPath(clipsDir, projectID, clipID string) string {
	return filepath.Join(clipsDir, projectID, clipID+".mp4")
}

// RenderClip starts rendering one clip. A clip that is already rendered or
// rendering is rejected without touching the encoder.
func (s *Service) RenderClip(_ context.Context, clipID string) (types.Clip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startRender(clipID)
}

// RenderAll starts rendering every pending or failed clip of a project and
// returns the clips that were started.
func (s *Service) RenderAll(_ context.Context, projectID string) ([]types.Clip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.store.Get(projectID)
	if !ok {
		return nil, s.reject("render_all", "not_found", ErrNotFound)
	}
	if p.MediaPath == "" || p.Status == types.StatusAnalyzing {
		return nil, s.reject("render_all", "not_ready", ErrNotReady)
	}
	started := []types.Clip{}
	for _, c := range p.Clips {
		if c.RenderStatus != types.RenderPending && c.RenderStatus != types.RenderError {
			continue
		}
		rc, err := s.startRender(c.ID)
		switch {
		case err == nil:
			started = append(started, rc)
		case errors.Is(err, ErrInFlight), errors.Is(err, ErrAlreadyRendered):
		default:
			return started, err
		}
	}
	return started, nil
}

// startRender must be called with s.mu held.
func (s *Service) startRender(clipID string) (types.Clip, error) {
	if s.closed {
		return types.Clip{}, s.reject("render", "closed", ErrClosed)
	}
	p, _, ok := s.store.FindClip(clipID)
	if !ok {
		return types.Clip{}, s.reject("render", "not_found", fmt.Errorf("clip %s: %w", clipID, ErrNotFound))
	}

	// the switch to generating is the commit point
	p, err := s.store.UpdateIf(p.ID, func(cur types.Project) error {
		c, _, ok := cur.ClipByID(clipID)
		switch {
		case !ok:
			return fmt.Errorf("clip %s: %w", clipID, ErrNotFound)
		case cur.MediaPath == "" || cur.Status == types.StatusAnalyzing:
			return ErrNotReady
		case c.RenderStatus == types.RenderComplete:
			return ErrAlreadyRendered
		case c.RenderStatus == types.RenderGenerating:
			return fmt.Errorf("%w: clip %s is rendering", ErrInFlight, clipID)
		}
		return nil
	}, store.ClipRender(clipID, types.RenderGenerating, "", ""))
	if err != nil {
		return types.Clip{}, s.reject("render", rejectReason(err), err)
	}
	c, _, _ := p.ClipByID(clipID)
	s.notify(types.Event{Kind: types.EventRenderStarted, ProjectID: p.ID, ClipID: clipID, Status: string(types.RenderGenerating), Message: "rendering clip"})

	stage := StageRender
	log := s.log.WithFields(logrus.Fields{"project_id": p.ID, "clip_id": clipID, "leg": metrics.LegRender})
	s.spawn(metrics.LegRender, s.opts.RenderTimeout, &stage,
		func(ctx context.Context) error { return s.renderClip(ctx, p, c, log) },
		func(err error) {
			msg := recordMessage(err)
			log.WithError(err).Error("render failed")
			if _, uerr := s.store.Update(p.ID, store.ClipRender(clipID, types.RenderError, "", msg)); uerr != nil {
				log.WithError(uerr).Warn("record render failure")
			}
			s.notify(types.Event{Kind: types.EventRenderFailed, ProjectID: p.ID, ClipID: clipID, Status: string(types.RenderError), Message: msg})
		},
		nil,
	)
	return c, nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrNotReady):
		return "not_ready"
	case errors.Is(err, ErrAlreadyRendered):
		return "already_rendered"
	default:
		return "in_flight"
	}
}

// renderClip encodes into a .partial file next to the final path and
// renames it into place, so the final path never holds partial output.
func (s *Service) renderClip(ctx context.Context, p types.Project, c types.Clip, log logrus.FieldLogger) error {
	if err := s.render.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.render.Release(1)

	if _, err := os.Stat(p.MediaPath); err != nil {
		return fmt.Errorf("source media unavailable: %w", err)
	}
	final := ClipPath(s.opts.ClipsDir, p.ID, c.ID)
	dir := filepath.Dir(final)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create clip dir: %w", err)
	}
	partial := filepath.Join(dir, c.ID+".partial.mp4")

	var assPath string
	if s.opts.BurnSubtitles {
		if doc := subtitles.ClipASS(p.Segments, c.Start, c.End); doc != "" {
			assPath = filepath.Join(dir, c.ID+".ass")
			if err := os.WriteFile(assPath, []byte(doc), 0o644); err != nil {
				return fmt.Errorf("write subtitles: %w", err)
			}
			defer os.Remove(assPath)
		}
	}

	log.WithField("output", final).Info("rendering clip")
	start, end := seconds(c.Start), seconds(c.End)
	if err := s.d.Renderer.ExtractAndEncode(ctx, p.MediaPath, start, end, partial, assPath); err != nil {
		_ = os.Remove(partial)
		return err
	}
	if err := os.Rename(partial, final); err != nil {
		_ = os.Remove(partial)
		return fmt.Errorf("finalize clip: %w", err)
	}

	if _, err := s.store.Update(p.ID, store.ClipRender(c.ID, types.RenderComplete, final, "")); err != nil {
		return err
	}
	log.Info("clip rendered")
	s.notify(types.Event{Kind: types.EventRenderComplete, ProjectID: p.ID, ClipID: c.ID, Status: string(types.RenderComplete), Message: "clip ready"})
	return nil
}

func seconds(sec float64) time.Duration { return time.Duration(sec * float64(time.Second)) }
