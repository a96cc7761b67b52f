package whisper

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/fmueller/voxsub/internal/platform"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const sampleWhisperJSON = `{
  "result": {"language": "ko"},
  "transcription": [
    {
      "offsets": {"from": 0, "to": 2500},
      "text": " 안녕하세요.",
      "tokens": [
        {"text": "[_BEG_]", "p": 0.1},
        {"text": " 안녕", "p": 0.9},
        {"text": "하세요.", "p": 0.7}
      ]
    },
    {
      "offsets": {"from": 2500, "to": 4000},
      "text": " 반갑습니다",
      "tokens": []
    }
  ]
}`

func TestResolveLocalEnginePathFindsLibexecSibling(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	binDir := filepath.Join(root, "bin")
	engineDir := filepath.Join(root, "libexec", "whisper")
	require.NoError(t, os.MkdirAll(binDir, 0o755))
	require.NoError(t, os.MkdirAll(engineDir, 0o755))

	voxsub := filepath.Join(binDir, "voxsub")
	require.NoError(t, os.WriteFile(voxsub, []byte(""), 0o755))

	enginePath := filepath.Join(engineDir, engineBinaryName())
	require.NoError(t, os.WriteFile(enginePath, []byte(""), 0o755))

	resolved, err := ResolveLocalEnginePath(voxsub)
	require.NoError(t, err)
	require.Equal(t, enginePath, resolved)
}

func TestResolveLocalEnginePathMissing(t *testing.T) {
	t.Parallel()

	voxsub := filepath.Join(t.TempDir(), "bin", "voxsub")
	require.NoError(t, os.MkdirAll(filepath.Dir(voxsub), 0o755))
	require.NoError(t, os.WriteFile(voxsub, []byte(""), 0o755))

	_, err := ResolveLocalEnginePath(voxsub)
	require.Error(t, err)
	require.Contains(t, err.Error(), "whisper-cli not found")
}

func TestResolveLocalEnginePathFindsPackagingPathForLocalDev(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	voxsub := filepath.Join(root, "voxsub")
	require.NoError(t, os.WriteFile(voxsub, []byte(""), 0o755))

	targetDir := filepath.Join(root, "packaging", "whisper", fmt.Sprintf("%s_%s", runtime.GOOS, platform.NormalizeArch(runtime.GOARCH)))
	require.NoError(t, os.MkdirAll(targetDir, 0o755))
	enginePath := filepath.Join(targetDir, engineBinaryName())
	require.NoError(t, os.WriteFile(enginePath, []byte(""), 0o755))

	resolved, err := ResolveLocalEnginePath(voxsub)
	require.NoError(t, err)
	require.Equal(t, enginePath, resolved)
}

func TestNewLocalEngineRequiresModelPath(t *testing.T) {
	t.Parallel()

	_, err := NewLocalEngine("", " ", DefaultCatalog(), nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "model path is required")
}

func TestParseWhisperJSON(t *testing.T) {
	t.Parallel()

	segments, language, err := parseWhisperJSON([]byte(sampleWhisperJSON))
	require.NoError(t, err)
	require.Equal(t, "ko", language)
	require.Len(t, segments, 2)

	require.Equal(t, 0.0, segments[0].Start)
	require.Equal(t, 2.5, segments[0].End)
	require.Equal(t, "안녕하세요.", segments[0].Text)
	require.NotNil(t, segments[0].Confidence)
	require.InDelta(t, 0.8, *segments[0].Confidence, 1e-9)

	require.Equal(t, 4.0, segments[1].End)
	require.Nil(t, segments[1].Confidence)
}

func TestParseWhisperJSONRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, _, err := parseWhisperJSON([]byte("not json"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse whisper output")
}

func TestLocalEngineTranscribeRunsWhisperCLI(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell fake requires a POSIX shell")
	}
	t.Parallel()

	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args.txt")
	fixture := filepath.Join(dir, "fixture.json")
	require.NoError(t, os.WriteFile(fixture, []byte(sampleWhisperJSON), 0o644))

	script := fmt.Sprintf(`#!/bin/sh
printf '%%s\n' "$@" > %q
out=""
while [ $# -gt 0 ]; do
  if [ "$1" = "-of" ]; then out="$2"; fi
  shift
done
cp %q "$out.json"
`, argsFile, fixture)
	executable := filepath.Join(dir, "whisper-cli")
	require.NoError(t, os.WriteFile(executable, []byte(script), 0o755))

	audio := filepath.Join(dir, "input.wav")
	require.NoError(t, os.WriteFile(audio, []byte("RIFF"), 0o644))

	engine, err := NewLocalEngine(executable, filepath.Join(dir, "model.bin"), DefaultCatalog(), zap.NewNop())
	require.NoError(t, err)

	result, err := engine.Transcribe(context.Background(), Request{
		Audio:    Audio{Path: audio},
		Config:   "whisper-1-creative",
		Language: "ko",
	})
	require.NoError(t, err)
	require.Equal(t, "안녕하세요. 반갑습니다", result.Text)
	require.Equal(t, "whisper-1-creative", result.EngineUsed)
	require.Equal(t, "ko", result.Language)
	require.Len(t, result.Segments, 2)

	rawArgs, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	args := strings.Split(strings.TrimSpace(string(rawArgs)), "\n")
	require.Contains(t, args, "-ojf")
	require.Contains(t, args, "0.30")
	require.Contains(t, args, "8")
	require.Contains(t, args, audio)
}

func TestLocalEngineTranscribeWritesInMemoryAudio(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell fake requires a POSIX shell")
	}
	t.Parallel()

	dir := t.TempDir()
	captured := filepath.Join(dir, "captured.wav")
	fixture := filepath.Join(dir, "fixture.json")
	require.NoError(t, os.WriteFile(fixture, []byte(sampleWhisperJSON), 0o644))

	script := fmt.Sprintf(`#!/bin/sh
out=""
in=""
while [ $# -gt 0 ]; do
  case "$1" in
    -of) out="$2" ;;
    -f) in="$2" ;;
  esac
  shift
done
cp "$in" %q
cp %q "$out.json"
`, captured, fixture)
	executable := filepath.Join(dir, "whisper-cli")
	require.NoError(t, os.WriteFile(executable, []byte(script), 0o755))

	engine, err := NewLocalEngine(executable, filepath.Join(dir, "model.bin"), DefaultCatalog(), nil)
	require.NoError(t, err)

	_, err = engine.Transcribe(context.Background(), Request{
		Audio: Audio{Data: []byte("audio-bytes"), Name: "clip.wav"},
	})
	require.NoError(t, err)

	content, err := os.ReadFile(captured)
	require.NoError(t, err)
	require.Equal(t, "audio-bytes", string(content))
}

func TestLocalEngineTranscribeWrapsFailures(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell fake requires a POSIX shell")
	}
	t.Parallel()

	dir := t.TempDir()
	executable := filepath.Join(dir, "whisper-cli")
	require.NoError(t, os.WriteFile(executable, []byte("#!/bin/sh\necho 'Illegal instruction' >&2\nexit 132\n"), 0o755))
	audio := filepath.Join(dir, "input.wav")
	require.NoError(t, os.WriteFile(audio, []byte("RIFF"), 0o644))

	engine, err := NewLocalEngine(executable, filepath.Join(dir, "model.bin"), DefaultCatalog(), nil)
	require.NoError(t, err)

	_, err = engine.Transcribe(context.Background(), Request{Audio: Audio{Path: audio}, Config: "whisper-1-standard"})
	require.Error(t, err)

	var engineErr *EngineError
	require.True(t, errors.As(err, &engineErr))
	require.Equal(t, "whisper-1-standard", engineErr.Config)
	require.Contains(t, err.Error(), "illegal CPU instruction")
}

func TestLocalEngineTranscribeUnknownConfig(t *testing.T) {
	t.Parallel()

	engine := &LocalEngine{Executable: "/nonexistent", ModelPath: "model.bin", Catalog: DefaultCatalog()}
	_, err := engine.Transcribe(context.Background(), Request{Audio: Audio{Path: "a.wav"}, Config: "nope"})
	require.ErrorIs(t, err, ErrUnknownConfig)
}

func TestIsMissingSharedLibraryError(t *testing.T) {
	t.Parallel()

	require.True(t, isMissingSharedLibraryError("error while loading shared libraries: libwhisper.so.1: cannot open shared object file"))
	require.True(t, isMissingSharedLibraryError("dyld: Library not loaded: @rpath/libwhisper.dylib"))
	require.False(t, isMissingSharedLibraryError("some other runtime error"))
}

func TestIsIllegalInstructionError(t *testing.T) {
	t.Parallel()

	require.True(t, isIllegalInstructionError("signal: illegal instruction (core dumped)"))
	require.True(t, isIllegalInstructionError("signal: illegal instruction"))
	require.False(t, isIllegalInstructionError("some other runtime error"))
	require.False(t, isIllegalInstructionError(""))
}
