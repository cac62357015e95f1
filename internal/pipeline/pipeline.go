// Package pipeline wires configuration to adapters and the service, and
// implements the one-shot run used by the CLI.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/sirupsen/logrus"

	"github.com/forPelevin/clipforge/internal/config"
	"github.com/forPelevin/clipforge/internal/domain/highlights"
	"github.com/forPelevin/clipforge/internal/notify"
	"github.com/forPelevin/clipforge/internal/ports"
	"github.com/forPelevin/clipforge/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/clipforge/internal/ports/adapters/lexicon"
	"github.com/forPelevin/clipforge/internal/ports/adapters/openrouter"
	"github.com/forPelevin/clipforge/internal/ports/adapters/whispercpp"
	"github.com/forPelevin/clipforge/internal/ports/adapters/ytdlp"
	"github.com/forPelevin/clipforge/internal/types"
	"github.com/forPelevin/clipforge/internal/usecase"
)

// App is a wired service plus whatever must be released on shutdown.
type App struct {
	Service *usecase.Service
	closers []func() error
	log     logrus.FieldLogger
}

// Build constructs every adapter named by cfg. A NATS connection failure is
// logged and the service falls back to log notifications only.
func Build(cfg *config.Config, log logrus.FieldLogger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	app := &App{log: log}

	video := ffmpeg.New(ffmpeg.Options{
		FFmpegPath:  cfg.Tools.FFmpeg,
		FFprobePath: cfg.Tools.FFprobe,
		Preset:      cfg.Render.Preset,
		CRF:         cfg.Render.CRF,
		Threads:     cfg.Render.Threads,
	}, log)

	notifiers := notify.Multi{notify.NewLog(log)}
	if cfg.NATS.URL != "" {
		nc, err := notify.NewNATS(cfg.NATS.URL, cfg.NATS.SubjectPrefix, log)
		if err != nil {
			log.WithError(err).Warn("NATS unavailable, events go to the log only")
		} else {
			notifiers = append(notifiers, nc)
			app.closers = append(app.closers, nc.Close)
		}
	}

	sel := highlights.DefaultSelectOptions()
	sel.MinDuration = cfg.Selection.MinDuration
	sel.MaxDuration = cfg.Selection.MaxDuration
	sel.TopK = cfg.Selection.TopK
	sel.Distinct = cfg.Selection.Distinct

	app.Service = usecase.New(usecase.Deps{
		Acquirer:    ytdlp.New(ytdlp.Options{Path: cfg.Tools.YtDlp, Format: cfg.Tools.Format}, log),
		Transcriber: whispercpp.New(cfg.Tools.WhisperBin, cfg.Tools.WhisperModel, cfg.CacheDir(), video, log),
		Analyzer:    newAnalyzer(cfg, log),
		Renderer:    video,
		Prober:      video,
		Notifier:    notifiers,
		Log:         log,
	}, usecase.Options{
		MediaDir:          cfg.MediaDir(),
		ClipsDir:          cfg.ClipsDir(),
		Selection:         sel,
		Weights:           cfg.Selection.Weights,
		RateCap:           cfg.Selection.RateCap,
		BurnSubtitles:     cfg.Render.BurnSubtitles,
		RenderConcurrency: int64(cfg.Render.Concurrency),
		AcquireTimeout:    cfg.Timeouts.Acquire,
		AnalyzeTimeout:    cfg.Timeouts.Analyze,
		RenderTimeout:     cfg.Timeouts.Render,
	})
	return app, nil
}

func newAnalyzer(cfg *config.Config, log logrus.FieldLogger) ports.LexicalAnalyzer {
	if cfg.Analyzer.Kind == config.AnalyzerOpenRouter {
		or := cfg.Analyzer.OpenRouter
		return openrouter.New(or.APIKey, or.Model, or.BaseURL, log)
	}
	return lexicon.New()
}

// Close stops the service, then releases notifier connections.
func (a *App) Close() error {
	a.Service.Close()
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

type RunConfig struct {
	URL    string
	OutDir string
	// MaxClips caps how many selected clips are rendered. Zero renders all.
	MaxClips int
}

// Run drives one video end to end: download, analyze, render every clip and
// write manifest.json into a fresh run directory under OutDir. It returns
// the run directory.
func Run(ctx context.Context, svc *usecase.Service, rc RunConfig, log logrus.FieldLogger) (string, error) {
	stop := context.AfterFunc(ctx, svc.Close)
	defer stop()

	p, err := svc.AddProject(ctx, rc.URL)
	if err != nil {
		return "", err
	}
	log = log.WithField("project_id", p.ID)
	log.Info("downloading")
	svc.Wait()
	if p, err = checkStatus(svc, p.ID); err != nil {
		return "", err
	}

	log.WithField("title", p.Title).Info("analyzing")
	if err := svc.Analyze(ctx, p.ID); err != nil {
		return "", err
	}
	svc.Wait()
	if p, err = checkStatus(svc, p.ID); err != nil {
		return "", err
	}
	log.WithField("clips", len(p.Clips)).Info("clips selected")

	clips := p.Clips
	if rc.MaxClips > 0 && len(clips) > rc.MaxClips {
		clips = clips[:rc.MaxClips]
	}
	for _, c := range clips {
		if _, err := svc.RenderClip(ctx, c.ID); err != nil {
			return "", err
		}
	}
	svc.Wait()
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m, err := svc.Manifest(p.ID)
	if err != nil {
		return "", err
	}
	m.Clips = renderedOnly(m.Clips, clips, svc)

	outDir := rc.OutDir
	if outDir == "" {
		outDir = "out"
	}
	runDir := buildRunOutDir(outDir, p.Title, time.Now().UTC())
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal manifest: %w", err)
	}
	manifestPath := filepath.Join(runDir, "manifest.json")
	if err := os.WriteFile(manifestPath, b, 0o644); err != nil {
		return "", err
	}
	log.WithFields(logrus.Fields{"clips": len(m.Clips), "manifest": manifestPath}).Info("manifest written")
	return runDir, nil
}

func checkStatus(svc *usecase.Service, id string) (types.Project, error) {
	p, err := svc.Project(id)
	if err != nil {
		return p, err
	}
	if p.Status == types.StatusError {
		return p, errors.New(p.ErrorMessage)
	}
	return p, nil
}

// renderedOnly keeps manifest entries for the requested clips that finished
// rendering; failures are reported on the clip itself.
func renderedOnly(all []types.ManifestClip, wanted []types.Clip, svc *usecase.Service) []types.ManifestClip {
	keep := make(map[string]bool, len(wanted))
	for _, c := range wanted {
		if cur, err := svc.Clip(c.ID); err == nil && cur.RenderStatus == types.RenderComplete {
			keep[c.ID] = true
		}
	}
	out := make([]types.ManifestClip, 0, len(keep))
	for _, mc := range all {
		if keep[mc.ID] {
			out = append(out, mc)
		}
	}
	return out
}

func buildRunOutDir(outRoot, title string, now time.Time) string {
	name := normalizePathSegment(title)
	if name == "" {
		name = "video"
	}
	ts := now.UTC().Format("20060102-150405Z")
	suffix := hash(fmt.Sprintf("%s|%d", title, now.UTC().UnixNano()))[:6]
	return filepath.Join(outRoot, fmt.Sprintf("%s-%s-%s", name, ts, suffix))
}

func normalizePathSegment(s string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:12]
}

// ensure adapters implement ports
var (
	_ ports.Acquirer        = (*ytdlp.Adapter)(nil)
	_ ports.Transcriber     = (*whispercpp.Adapter)(nil)
	_ ports.LexicalAnalyzer = (*lexicon.Analyzer)(nil)
	_ ports.LexicalAnalyzer = (*openrouter.Analyzer)(nil)
	_ ports.Renderer        = (*ffmpeg.Adapter)(nil)
	_ ports.Prober          = (*ffmpeg.Adapter)(nil)
	_ ports.AudioExtractor  = (*ffmpeg.Adapter)(nil)
	_ ports.Notifier        = notify.Multi(nil)
	_ ports.Notifier        = (*notify.NATS)(nil)
)
