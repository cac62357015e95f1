package whispercpp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/forPelevin/clipforge/internal/ports"
	"github.com/forPelevin/clipforge/internal/types"
)

// Adapter transcribes media with whisper.cpp. Audio is extracted to 16kHz
// mono WAV first since that is the only input whisper.cpp accepts.
type Adapter struct {
	bin      string
	model    string
	cacheDir string
	audio    ports.AudioExtractor
	log      logrus.FieldLogger
}

func New(binPath, modelPath, cacheDir string, audio ports.AudioExtractor, log logrus.FieldLogger) *Adapter {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Adapter{
		bin:      binPath,
		model:    modelPath,
		cacheDir: cacheDir,
		audio:    audio,
		log:      log.WithField("component", "whispercpp"),
	}
}

func (a *Adapter) Transcribe(ctx context.Context, mediaPath string) ([]types.Segment, error) {
	if err := os.MkdirAll(a.cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("whisper cache dir: %w", err)
	}
	work, err := os.MkdirTemp(a.cacheDir, "whisper-")
	if err != nil {
		return nil, fmt.Errorf("whisper workdir: %w", err)
	}
	defer os.RemoveAll(work)

	wav := filepath.Join(work, "audio.wav")
	if err := a.audio.ExtractAudioMono16k(ctx, mediaPath, wav); err != nil {
		return nil, err
	}

	outPrefix := filepath.Join(work, "whisper")
	args := []string{
		"-m", a.model,
		"-f", wav,
		"-oj",
		"-of", outPrefix,
	}
	a.log.WithField("media", mediaPath).Debug("running whisper.cpp")
	cmd := exec.CommandContext(ctx, a.bin, args...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("whisper.cpp failed: %w\n%s", err, string(b))
	}

	jb, err := os.ReadFile(outPrefix + ".json")
	if err != nil {
		return nil, err
	}
	return parseOutput(jb)
}

type output struct {
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

// parseOutput converts whisper.cpp -oj output (millisecond offsets) into
// segments, dropping blank or zero-length entries.
func parseOutput(b []byte) ([]types.Segment, error) {
	var out output
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode whisper json: %w", err)
	}
	segs := make([]types.Segment, 0, len(out.Transcription))
	for _, t := range out.Transcription {
		text := strings.TrimSpace(t.Text)
		if text == "" || t.Offsets.To <= t.Offsets.From {
			continue
		}
		segs = append(segs, types.Segment{
			Start: float64(t.Offsets.From) / 1000,
			End:   float64(t.Offsets.To) / 1000,
			Text:  text,
		})
	}
	return segs, nil
}
