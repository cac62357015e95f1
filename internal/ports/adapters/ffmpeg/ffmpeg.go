package ffmpeg

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

type Options struct {
	FFmpegPath  string
	FFprobePath string
	Preset      string
	CRF         int
	Threads     int
}

type Adapter struct {
	ffmpeg  string
	ffprobe string
	preset  string
	crf     int
	threads int
	log     logrus.FieldLogger
}

func New(opts Options, log logrus.FieldLogger) *Adapter {
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = "ffmpeg"
	}
	if opts.FFprobePath == "" {
		opts.FFprobePath = "ffprobe"
	}
	if opts.Preset == "" {
		opts.Preset = "veryfast"
	}
	if opts.CRF <= 0 {
		opts.CRF = 18
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Adapter{
		ffmpeg:  opts.FFmpegPath,
		ffprobe: opts.FFprobePath,
		preset:  opts.Preset,
		crf:     opts.CRF,
		threads: opts.Threads,
		log:     log.WithField("component", "ffmpeg"),
	}
}

func (a *Adapter) ExtractAudioMono16k(ctx context.Context, inMedia, outWav string) error {
	cmd := exec.CommandContext(ctx, a.ffmpeg,
		"-y",
		"-i", inMedia,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-f", "wav",
		outWav,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg extract audio: %w\n%s", err, tail(b))
	}
	return nil
}

// ExtractAndEncode cuts [start, end) from mediaPath and re-encodes it to
// H.264/AAC. The container is forced to mp4 so destPath may carry any
// suffix.
func (a *Adapter) ExtractAndEncode(ctx context.Context, mediaPath string, start, end time.Duration, destPath, burnASS string) error {
	if end <= start {
		return fmt.Errorf("ffmpeg render clip: invalid range %s..%s", start, end)
	}
	args := []string{
		"-y",
		"-ss", fmtSeconds(start),
		"-to", fmtSeconds(end),
		"-i", mediaPath,
	}
	if burnASS != "" {
		// -ss before -i resets timestamps, so clip-local subtitle times line up
		args = append(args, "-vf", "subtitles="+escapeFilterPath(burnASS))
	}
	if a.threads > 0 {
		args = append(args, "-threads", strconv.Itoa(a.threads))
	}
	args = append(args,
		"-c:v", "libx264",
		"-preset", a.preset,
		"-crf", strconv.Itoa(a.crf),
		"-c:a", "aac",
		"-b:a", "192k",
		"-movflags", "+faststart",
		"-f", "mp4",
		destPath,
	)
	a.log.WithFields(logrus.Fields{"input": mediaPath, "output": destPath, "start": start, "end": end}).Debug("rendering clip")
	cmd := exec.CommandContext(ctx, a.ffmpeg, args...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg render clip: %w\n%s", err, tail(b))
	}
	return nil
}

func (a *Adapter) ProbeDuration(ctx context.Context, mediaPath string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, a.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		mediaPath,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration: %w\n%s", err, tail(b))
	}
	return parseDuration(string(b))
}

func parseDuration(out string) (time.Duration, error) {
	s := strings.TrimSpace(out)
	sec, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	return time.Duration(sec * float64(time.Second)), nil
}

func fmtSeconds(d time.Duration) string {
	sec := float64(d) / float64(time.Second)
	return strconv.FormatFloat(sec, 'f', 3, 64)
}

func escapeFilterPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "\\\\")
	p = strings.ReplaceAll(p, ":", "\\:")
	p = strings.ReplaceAll(p, "'", "\\'")
	return p
}

// tail keeps the end of noisy tool output, where the actual error is.
func tail(b []byte) string {
	const max = 2000
	if len(b) <= max {
		return string(b)
	}
	return "..." + string(b[len(b)-max:])
}
