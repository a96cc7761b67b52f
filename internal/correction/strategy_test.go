package correction

import (
	"testing"

	"github.com/fmueller/voxsub/internal/quality"
	"github.com/stretchr/testify/require"
)

func TestSelectDecisionTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		metrics quality.Metrics
		want    Strategy
	}{
		{name: "high overall wins over weak script", metrics: quality.Metrics{Overall: 0.92, ScriptQuality: 0.5, Grammar: 0.3}, want: Precision},
		{name: "boundary overall", metrics: quality.Metrics{Overall: 0.90, ScriptQuality: 0.9, Grammar: 0.9}, want: Precision},
		{name: "weak script", metrics: quality.Metrics{Overall: 0.8, ScriptQuality: 0.69, Grammar: 0.3}, want: ScriptQuality},
		{name: "weak grammar", metrics: quality.Metrics{Overall: 0.8, ScriptQuality: 0.7, Grammar: 0.59}, want: Grammar},
		{name: "balanced", metrics: quality.Metrics{Overall: 0.8, ScriptQuality: 0.7, Grammar: 0.6}, want: General},
		{name: "zero metrics", metrics: quality.Metrics{}, want: ScriptQuality},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, Select(tc.metrics))
		})
	}
}

func TestStrategyAggressiveness(t *testing.T) {
	t.Parallel()

	require.Equal(t, 0.05, Precision.Aggressiveness)
	for _, s := range []Strategy{ScriptQuality, Grammar, General} {
		require.Equal(t, 0.10, s.Aggressiveness, s.Name)
	}
}

func TestStrategyInstructionDescribesFormat(t *testing.T) {
	t.Parallel()

	seen := map[string]bool{}
	for _, s := range Strategies() {
		instruction := s.Instruction()
		require.Contains(t, instruction, "[번호]")
		require.Contains(t, instruction, s.guidance)
		require.False(t, seen[instruction], "instructions must differ per strategy")
		seen[instruction] = true
	}
}

func TestLookup(t *testing.T) {
	t.Parallel()

	s, err := Lookup("grammar")
	require.NoError(t, err)
	require.Equal(t, Grammar, s)

	_, err = Lookup("aggressive")
	require.Error(t, err)
}
