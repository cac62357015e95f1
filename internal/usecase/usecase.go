package usecase

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/forPelevin/clipforge/internal/domain/highlights"
	"github.com/forPelevin/clipforge/internal/metrics"
	"github.com/forPelevin/clipforge/internal/ports"
	"github.com/forPelevin/clipforge/internal/store"
	"github.com/forPelevin/clipforge/internal/types"
)

type Deps struct {
	Acquirer    ports.Acquirer
	Transcriber ports.Transcriber
	Analyzer    ports.LexicalAnalyzer
	Renderer    ports.Renderer
	// Prober fills in the duration when the resolver reports none. Optional.
	Prober   ports.Prober
	Notifier ports.Notifier
	Store    *store.Store
	Log      logrus.FieldLogger
	NewID    func() string
}

type Options struct {
	MediaDir string
	ClipsDir string

	Selection     highlights.SelectOptions
	Weights       highlights.Weights
	RateCap       float64
	BurnSubtitles bool

	RenderConcurrency int64

	// Zero means no per-leg deadline.
	AcquireTimeout time.Duration
	AnalyzeTimeout time.Duration
	RenderTimeout  time.Duration
}

// Service owns every project's lifecycle. Commands validate and commit
// synchronously, then run their leg in the background; legs report back
// only through the store and the notifier.
type Service struct {
	d     Deps
	opts  Options
	store *store.Store
	log   logrus.FieldLogger
	newID func() string

	root   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	render *semaphore.Weighted

	mu        sync.Mutex
	closed    bool
	analyzing string            // project holding the analysis token
	acquiring map[string]string // source url -> project id
}

func New(d Deps, opts Options) *Service {
	if d.Store == nil {
		d.Store = store.New()
	}
	if d.Log == nil {
		d.Log = logrus.StandardLogger()
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	if opts.Selection.TopK <= 0 {
		opts.Selection = highlights.DefaultSelectOptions()
	}
	if opts.Selection.NewID == nil {
		opts.Selection.NewID = uuid.NewString
	}
	if opts.Weights == (highlights.Weights{}) {
		opts.Weights = highlights.DefaultWeights()
	}
	if opts.RateCap <= 0 {
		opts.RateCap = highlights.DefaultRateCap
	}
	if opts.RenderConcurrency <= 0 {
		opts.RenderConcurrency = 2
	}
	root, cancel := context.WithCancel(context.Background())
	return &Service{
		d:         d,
		opts:      opts,
		store:     d.Store,
		log:       d.Log.WithField("component", "usecase"),
		newID:     d.NewID,
		root:      root,
		cancel:    cancel,
		render:    semaphore.NewWeighted(opts.RenderConcurrency),
		acquiring: make(map[string]string),
	}
}

func (s *Service) Projects() []types.Project { return s.store.List() }

func (s *Service) Project(id string) (types.Project, error) {
	p, ok := s.store.Get(id)
	if !ok {
		return types.Project{}, ErrNotFound
	}
	return p, nil
}

func (s *Service) Clip(clipID string) (types.Clip, error) {
	_, c, ok := s.store.FindClip(clipID)
	if !ok {
		return types.Clip{}, fmt.Errorf("clip %s: %w", clipID, ErrNotFound)
	}
	return c, nil
}

// Manifest lists a project's clips in selection order.
func (s *Service) Manifest(projectID string) (types.Manifest, error) {
	p, err := s.Project(projectID)
	if err != nil {
		return types.Manifest{}, err
	}
	m := types.Manifest{ProjectID: p.ID, Input: p.SourceURL, Title: p.Title, Clips: []types.ManifestClip{}}
	for _, c := range p.Clips {
		m.Clips = append(m.Clips, types.ManifestClip{
			ID:       c.ID,
			StartSec: c.Start,
			EndSec:   c.End,
			Score:    c.Score,
			Text:     c.Text,
			File:     c.OutputPath,
			Range:    c.DurationLabel(),
		})
	}
	return m, nil
}

// Wait blocks until every background leg has finished.
func (s *Service) Wait() { s.wg.Wait() }

// Close cancels in-flight legs and waits for them to record their outcome.
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}

// spawn runs fn as a background leg. A panic inside fn is recovered and
// handed to fail like any other error. Callers must hold s.mu.
func (s *Service) spawn(leg string, timeout time.Duration, stage *Stage, fn func(ctx context.Context) error, fail func(error), done func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if done != nil {
			defer done()
		}
		ctx, cancel := s.legContext(timeout)
		defer cancel()

		finish := metrics.StartLeg(leg)
		err := runRecovered(ctx, stage, fn)
		finish(err)
		if err != nil && fail != nil {
			fail(err)
		}
	}()
}

func (s *Service) legContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(s.root, timeout)
	}
	return context.WithCancel(s.root)
}

func runRecovered(ctx context.Context, stage *Stage, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &StageError{Stage: *stage, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	return stageErr(*stage, fn(ctx))
}

func (s *Service) notify(ev types.Event) {
	if s.d.Notifier == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	s.d.Notifier.Notify(s.root, ev)
}

func (s *Service) reject(command, reason string, err error) error {
	metrics.Rejected(command, reason)
	return err
}

func validateURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: url is empty", ErrInvalidURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: scheme must be http or https", ErrInvalidURL)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: host is required", ErrInvalidURL)
	}
	return raw, nil
}
