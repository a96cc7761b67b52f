package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigsListsCatalog(t *testing.T) {
	t.Parallel()

	stdout, _, err := runCommand(t, []string{"configs"})
	require.NoError(t, err)
	require.Contains(t, stdout, "whisper-1-standard")
	require.Contains(t, stdout, "whisper-1-optimized *")
	require.Contains(t, stdout, "whisper-1-creative")
	require.NotContains(t, stdout, "Recommended")
}

func TestConfigsRecommendsForDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		args []string
		want string
	}{
		{args: []string{"--duration", "45s"}, want: "whisper-1-optimized"},
		{args: []string{"--duration", "3m", "--priority", "speed"}, want: "whisper-1-standard"},
		{args: []string{"--duration", "3m", "--priority", "quality"}, want: "whisper-1-creative"},
		{args: []string{"--duration", "10m"}, want: "whisper-1-standard"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			t.Parallel()

			stdout, _, err := runCommand(t, append([]string{"configs"}, tt.args...))
			require.NoError(t, err)
			require.Contains(t, stdout, "Recommended for ")
			require.True(t, strings.HasSuffix(strings.TrimSpace(stdout), tt.want), "got: %s", stdout)
		})
	}
}

func TestConfigsUsesConfiguredTranscriptionModel(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.OpenAI.TranscriptionModel = "gpt-4o-transcribe"

	stdout, _, err := runApp(t, newTestApp(cfg, &fakeRunner{}), "configs")
	require.NoError(t, err)
	require.Contains(t, stdout, "gpt-4o-transcribe")
}
