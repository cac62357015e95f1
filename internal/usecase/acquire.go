package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/forPelevin/clipforge/internal/metrics"
	"github.com/forPelevin/clipforge/internal/store"
	"github.com/forPelevin/clipforge/internal/types"
)

const (
	defaultTitle     = "Untitled Video"
	defaultThumbnail = "/placeholder.svg"
)

// AddProject registers a video and starts downloading it in the background.
func (s *Service) AddProject(_ context.Context, rawURL string) (types.Project, error) {
	src, err := validateURL(rawURL)
	if err != nil {
		return types.Project{}, s.reject("add", "invalid_url", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return types.Project{}, s.reject("add", "closed", ErrClosed)
	}
	if id, ok := s.acquiring[src]; ok {
		return types.Project{}, s.reject("add", "in_flight", fmt.Errorf("%w: %s is being downloaded by project %s", ErrInFlight, src, id))
	}

	p := s.store.Insert(types.Project{
		ID:        s.newID(),
		SourceURL: src,
		Status:    types.StatusPending,
	})
	s.acquiring[src] = p.ID
	s.notify(types.Event{Kind: types.EventProjectAdded, ProjectID: p.ID, Status: string(p.Status), Message: "video added"})

	stage := StageAcquisition
	log := s.log.WithFields(logrus.Fields{"project_id": p.ID, "leg": metrics.LegAcquire})
	dest := filepath.Join(s.opts.MediaDir, p.ID+".mp4")
	s.spawn(metrics.LegAcquire, s.opts.AcquireTimeout, &stage,
		func(ctx context.Context) error { return s.acquire(ctx, p.ID, src, dest, log) },
		func(err error) {
			if rmErr := os.Remove(dest); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				log.WithError(rmErr).Warn("remove partial media")
			}
			s.mu.Lock()
			s.releaseSource(src, p.ID)
			s.mu.Unlock()
			s.failProject(p.ID, types.EventDownloadFailed, err, log)
		},
		func() {
			s.mu.Lock()
			s.releaseSource(src, p.ID)
			s.mu.Unlock()
		},
	)
	return p, nil
}

func (s *Service) acquire(ctx context.Context, id, src, dest string, log logrus.FieldLogger) error {
	if _, err := s.store.Update(id, store.StartDownload()); err != nil {
		return err
	}
	log.Info("resolving video")

	meta, err := s.d.Acquirer.Resolve(ctx, src)
	if err != nil {
		return err
	}
	if meta.Title == "" {
		meta.Title = defaultTitle
	}
	if meta.ThumbnailRef == "" {
		meta.ThumbnailRef = defaultThumbnail
	}
	if _, err := s.store.Update(id, store.Metadata(meta)); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create media dir: %w", err)
	}

	progress := make(chan int, 16)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		s.drainProgress(id, progress)
	}()
	err = s.d.Acquirer.Fetch(ctx, src, dest, func(pct int) {
		select {
		case progress <- pct:
		case <-ctx.Done():
		}
	})
	close(progress)
	<-drained
	if err != nil {
		return err
	}
	if _, err := os.Stat(dest); err != nil {
		return fmt.Errorf("downloaded media missing: %w", err)
	}

	if meta.DurationSeconds <= 0 && s.d.Prober != nil {
		if d, perr := s.d.Prober.ProbeDuration(ctx, dest); perr != nil {
			log.WithError(perr).Warn("measure duration")
		} else if _, uerr := s.store.Update(id, store.Duration(math.Round(d.Seconds()))); uerr != nil {
			log.WithError(uerr).Warn("record probed duration")
		}
	}

	// released with the media commit: complete must mean analyzable
	s.mu.Lock()
	s.releaseSource(src, id)
	_, err = s.store.Update(id, store.Media(dest))
	s.mu.Unlock()
	if err != nil {
		return err
	}
	log.WithField("media", dest).Info("download complete")
	s.notify(types.Event{Kind: types.EventDownloadComplete, ProjectID: id, Status: string(types.StatusComplete), Progress: 100, Message: "download complete"})
	return nil
}

// releaseSource forgets an in-flight download of src, unless a newer
// project has since claimed the same URL. Callers must hold s.mu.
func (s *Service) releaseSource(src, id string) {
	if s.acquiring[src] == id {
		delete(s.acquiring, src)
	}
}

// drainProgress is the single writer of download progress for one project.
// Values are clamped and only strictly increasing ones are applied, since
// the acquirer does not guarantee ordering.
func (s *Service) drainProgress(id string, in <-chan int) {
	last := 0
	for pct := range in {
		pct = max(0, min(100, pct))
		if pct <= last {
			continue
		}
		last = pct
		if _, err := s.store.Update(id, store.Progress(pct)); err != nil {
			continue
		}
		s.notify(types.Event{Kind: types.EventDownloadProgress, ProjectID: id, Status: string(types.StatusDownloading), Progress: pct})
	}
}

func (s *Service) failProject(id string, kind types.EventKind, err error, log logrus.FieldLogger) {
	msg := recordMessage(err)
	log.WithError(err).Error("leg failed")
	if _, uerr := s.store.Update(id, store.Failed(msg)); uerr != nil {
		log.WithError(uerr).Warn("record failure")
	}
	s.notify(types.Event{Kind: kind, ProjectID: id, Status: string(types.StatusError), Message: msg})
}
