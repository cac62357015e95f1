package ytdlp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/forPelevin/clipforge/internal/types"
)

// DefaultFormat prefers an mp4 video with m4a audio and falls back to the
// best single mp4, then anything.
const DefaultFormat = "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best"

const progressPrefix = "clipforge-progress:"

var percentRE = regexp.MustCompile(`(\d+(?:\.\d+)?)%`)

type Options struct {
	Path   string
	Format string
}

type Adapter struct {
	bin    string
	format string
	log    logrus.FieldLogger
}

func New(opts Options, log logrus.FieldLogger) *Adapter {
	if opts.Path == "" {
		opts.Path = "yt-dlp"
	}
	if opts.Format == "" {
		opts.Format = DefaultFormat
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Adapter{bin: opts.Path, format: opts.Format, log: log.WithField("component", "ytdlp")}
}

func (a *Adapter) Resolve(ctx context.Context, url string) (types.Metadata, error) {
	cmd := exec.CommandContext(ctx, a.bin, "-J", "--no-playlist", "--no-warnings", url)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return types.Metadata{}, fmt.Errorf("yt-dlp resolve: %w\n%s", err, strings.TrimSpace(stderr.String()))
	}
	return parseMetadata(out)
}

func parseMetadata(b []byte) (types.Metadata, error) {
	var info struct {
		Title     string   `json:"title"`
		Thumbnail string   `json:"thumbnail"`
		Duration  *float64 `json:"duration"`
	}
	if err := json.Unmarshal(b, &info); err != nil {
		return types.Metadata{}, fmt.Errorf("decode yt-dlp metadata: %w", err)
	}
	m := types.Metadata{
		Title:        strings.TrimSpace(info.Title),
		ThumbnailRef: strings.TrimSpace(info.Thumbnail),
	}
	if info.Duration != nil && *info.Duration > 0 {
		m.DurationSeconds = *info.Duration
	}
	return m, nil
}

// Fetch downloads url into destPath and reports integer percentages parsed
// from yt-dlp's progress lines.
func (a *Adapter) Fetch(ctx context.Context, url, destPath string, onProgress func(int)) error {
	args := []string{
		"--no-playlist",
		"--no-warnings",
		"--newline",
		"--no-part",
		"--force-overwrites",
		"-f", a.format,
		"--merge-output-format", "mp4",
		"--progress-template", "download:" + progressPrefix + "%(progress._percent_str)s",
		"-o", destPath,
		url,
	}
	a.log.WithFields(logrus.Fields{"url": url, "dest": destPath}).Debug("fetching media")

	cmd := exec.CommandContext(ctx, a.bin, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("yt-dlp stdout pipe: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start yt-dlp: %w", err)
	}

	// stdout must be drained before Wait closes the pipe
	streamProgress(stdout, onProgress)

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("yt-dlp download: %w\n%s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func streamProgress(r io.Reader, onProgress func(int)) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		pct, ok := parseProgressLine(scanner.Text())
		if ok && onProgress != nil {
			onProgress(pct)
		}
	}
}

// parseProgressLine understands both the templated line and yt-dlp's
// default "[download]  42.3% of ..." line.
func parseProgressLine(line string) (int, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, progressPrefix) && !strings.HasPrefix(line, "[download]") {
		return 0, false
	}
	m := percentRE.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return int(f), true
}
