package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/fmueller/voxsub/internal/platform"
	"github.com/fmueller/voxsub/internal/transcript"
	"go.uber.org/zap"
)

// LocalEngine runs a whisper.cpp command line binary and reads its full JSON
// output, which carries segment offsets and per-token probabilities.
type LocalEngine struct {
	Executable string
	ModelPath  string
	Catalog    Catalog
	Logger     *zap.Logger
}

// NewLocalEngine uses executable when set and otherwise looks for a whisper-cli
// binary installed next to the voxsub executable.
func NewLocalEngine(executable, modelPath string, catalog Catalog, logger *zap.Logger) (*LocalEngine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(modelPath) == "" {
		return nil, errors.New("local engine: model path is required")
	}

	if override := strings.TrimSpace(executable); override != "" {
		if err := ensureExecutable(override); err != nil {
			return nil, fmt.Errorf("local engine: whisper path is not executable: %w", err)
		}
		return &LocalEngine{Executable: override, ModelPath: modelPath, Catalog: catalog, Logger: logger}, nil
	}

	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve voxsub executable path: %w", err)
	}
	resolved, err := ResolveLocalEnginePath(self)
	if err != nil {
		return nil, err
	}
	return &LocalEngine{Executable: resolved, ModelPath: modelPath, Catalog: catalog, Logger: logger}, nil
}

func ResolveLocalEnginePath(selfExecutable string) (string, error) {
	for _, candidate := range EnginePathCandidates(selfExecutable) {
		if err := ensureExecutable(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("whisper-cli not found near %s; set engine.whisper_path or VOXSUB_WHISPER_PATH", selfExecutable)
}

func EnginePathCandidates(selfExecutable string) []string {
	binDir := filepath.Dir(selfExecutable)
	name := engineBinaryName()
	rt := platform.CurrentRuntime()
	hostTarget := fmt.Sprintf("%s_%s", rt.OS, rt.Arch)

	return []string{
		filepath.Join(binDir, "..", "libexec", "whisper", name),
		filepath.Join(binDir, "libexec", "whisper", name),
		filepath.Join(binDir, "packaging", "whisper", hostTarget, name),
		filepath.Join(binDir, name),
	}
}

func (l *LocalEngine) Transcribe(ctx context.Context, req Request) (transcript.Transcript, error) {
	cfg, err := l.Catalog.Resolve(req.Config)
	if err != nil {
		return transcript.Transcript{}, engineError(req.Config, err)
	}
	if req.Audio.IsZero() {
		return transcript.Transcript{}, engineError(cfg.Name, errors.New("audio path or data is required"))
	}
	if err := ensureExecutable(l.Executable); err != nil {
		return transcript.Transcript{}, engineError(cfg.Name, fmt.Errorf("whisper-cli missing or not executable: %w", err))
	}

	audioPath, cleanup, err := materializeAudio(req.Audio)
	if err != nil {
		return transcript.Transcript{}, engineError(cfg.Name, err)
	}
	defer cleanup()

	outBase := filepath.Join(os.TempDir(), fmt.Sprintf("voxsub-%d", time.Now().UnixNano()))
	jsonOut := outBase + ".json"
	defer os.Remove(jsonOut)

	args := []string{
		"-m", l.ModelPath,
		"-f", audioPath,
		"-ojf", "-np",
		"-of", outBase,
		"-tp", strconv.FormatFloat(cfg.Temperature, 'f', 2, 64),
	}
	if cfg.BeamSize > 0 {
		args = append(args, "-bs", strconv.Itoa(cfg.BeamSize))
	}
	if cfg.Prompt != "" {
		args = append(args, "--prompt", cfg.Prompt)
	}
	language := normalizeLanguage(req.Language)
	if language != "" {
		args = append(args, "-l", language)
	}

	cmd := exec.CommandContext(ctx, l.Executable, args...)
	var stderr bytes.Buffer
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr

	l.Logger.Debug("running whisper-cli", zap.String("engine", l.Executable), zap.String("config", cfg.Name), zap.Strings("args", args))
	started := time.Now()
	if err := cmd.Run(); err != nil {
		return transcript.Transcript{}, engineError(cfg.Name, describeRunError(err, strings.TrimSpace(stderr.String())))
	}
	elapsed := time.Since(started)

	content, err := os.ReadFile(jsonOut)
	if err != nil {
		return transcript.Transcript{}, engineError(cfg.Name, fmt.Errorf("read whisper output: %w", err))
	}
	segments, detected, err := parseWhisperJSON(content)
	if err != nil {
		return transcript.Transcript{}, engineError(cfg.Name, err)
	}
	if detected == "" {
		detected = language
	}

	return transcript.Transcript{
		Text:           transcript.JoinText(segments),
		Segments:       segments,
		Language:       detected,
		EngineUsed:     cfg.Name,
		ProcessingTime: elapsed,
	}, nil
}

type whisperOutput struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text   string `json:"text"`
		Tokens []struct {
			Text string  `json:"text"`
			P    float64 `json:"p"`
		} `json:"tokens"`
	} `json:"transcription"`
}

// parseWhisperJSON converts whisper.cpp full JSON output into segments.
// Confidence is the mean probability of the non-special tokens.
func parseWhisperJSON(content []byte) ([]transcript.Segment, string, error) {
	var out whisperOutput
	if err := json.Unmarshal(content, &out); err != nil {
		return nil, "", fmt.Errorf("parse whisper output: %w", err)
	}

	segments := make([]transcript.Segment, 0, len(out.Transcription))
	for _, entry := range out.Transcription {
		seg := transcript.Segment{
			Start: float64(entry.Offsets.From) / 1000,
			End:   float64(entry.Offsets.To) / 1000,
			Text:  strings.TrimSpace(entry.Text),
		}
		var sum float64
		count := 0
		for _, token := range entry.Tokens {
			if strings.HasPrefix(token.Text, "[_") {
				continue
			}
			sum += token.P
			count++
		}
		if count > 0 {
			seg.Confidence = transcript.Confidence(math.Min(1, math.Max(0, sum/float64(count))))
		}
		segments = append(segments, seg)
	}
	return segments, out.Result.Language, nil
}

func materializeAudio(audio Audio) (string, func(), error) {
	if len(audio.Data) == 0 {
		path := filepath.Clean(audio.Path)
		if _, err := os.Stat(path); err != nil {
			return "", nil, fmt.Errorf("audio file not found: %w", err)
		}
		return path, func() {}, nil
	}

	f, err := os.CreateTemp("", "voxsub-audio-*"+filepath.Ext(audio.FileName()))
	if err != nil {
		return "", nil, fmt.Errorf("create temp audio: %w", err)
	}
	if _, err := f.Write(audio.Data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, fmt.Errorf("write temp audio: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", nil, fmt.Errorf("close temp audio: %w", err)
	}
	return f.Name(), func() { os.Remove(f.Name()) }, nil
}

func describeRunError(err error, stderr string) error {
	switch {
	case isMissingSharedLibraryError(stderr):
		return fmt.Errorf("whisper-cli is missing shared libraries (%s); rebuild it with BUILD_SHARED_LIBS=OFF", stderr)
	case isIllegalInstructionError(stderr) || isIllegalInstructionError(err.Error()):
		return errors.New("whisper-cli crashed with an illegal CPU instruction; point engine.whisper_path at a build for this CPU")
	default:
		return fmt.Errorf("whisper-cli failed: %w (%s)", err, stderr)
	}
}

func engineBinaryName() string {
	if runtime.GOOS == "windows" {
		return "whisper-cli.exe"
	}
	return "whisper-cli"
}

func ensureExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if runtime.GOOS != "windows" && info.Mode()&0o111 == 0 {
		return fmt.Errorf("%s is not executable", path)
	}
	return nil
}

func isMissingSharedLibraryError(stderr string) bool {
	value := strings.ToLower(stderr)
	for _, pattern := range []string{
		"error while loading shared libraries",
		"cannot open shared object file",
		"dyld: library not loaded",
	} {
		if strings.Contains(value, pattern) {
			return true
		}
	}
	return false
}

func isIllegalInstructionError(stderr string) bool {
	return strings.Contains(strings.ToLower(stderr), "illegal instruction")
}
