package correction

import (
	"fmt"
	"strings"

	"github.com/fmueller/voxsub/internal/quality"
)

// Focus names the area a correction pass concentrates on.
type Focus string

const (
	FocusGeneral   Focus = "general"
	FocusScript    Focus = "script-quality"
	FocusGrammar   Focus = "grammar"
	FocusPrecision Focus = "precision"
)

// Strategy is one of four fixed correction configurations. Aggressiveness is
// handed to the correction service as its sampling temperature.
type Strategy struct {
	Name           string  `json:"name"`
	Focus          Focus   `json:"focus"`
	Aggressiveness float64 `json:"aggressiveness"`
	guidance       string
}

var (
	Precision = Strategy{
		Name:           "precision",
		Focus:          FocusPrecision,
		Aggressiveness: 0.05,
		guidance:       "세밀한 문법과 자연스러운 표현",
	}
	ScriptQuality = Strategy{
		Name:           "script-quality",
		Focus:          FocusScript,
		Aggressiveness: 0.10,
		guidance:       "한국어 표현과 어휘 개선",
	}
	Grammar = Strategy{
		Name:           "grammar",
		Focus:          FocusGrammar,
		Aggressiveness: 0.10,
		guidance:       "문법 오류와 문장 구조 개선",
	}
	General = Strategy{
		Name:           "general",
		Focus:          FocusGeneral,
		Aggressiveness: 0.10,
		guidance:       "맞춤법, 띄어쓰기, 자연스러운 표현",
	}
)

// Strategies lists every strategy in selection order.
func Strategies() []Strategy {
	return []Strategy{Precision, ScriptQuality, Grammar, General}
}

// Select picks the strategy for a transcript from its final metrics.
func Select(m quality.Metrics) Strategy {
	switch {
	case m.Overall >= 0.90:
		return Precision
	case m.ScriptQuality < 0.70:
		return ScriptQuality
	case m.Grammar < 0.60:
		return Grammar
	default:
		return General
	}
}

// Lookup returns the strategy with the given name.
func Lookup(name string) (Strategy, error) {
	for _, s := range Strategies() {
		if s.Name == strings.TrimSpace(name) {
			return s, nil
		}
	}
	return Strategy{}, fmt.Errorf("unknown correction strategy %q", name)
}

func (s Strategy) String() string {
	return s.Name
}

// Instruction is the system prompt sent with every batch.
func (s Strategy) Instruction() string {
	var b strings.Builder
	b.WriteString("당신은 한국어 전문 교정자입니다. 음성 인식 결과를 교정해 주세요.\n\n")
	fmt.Fprintf(&b, "교정 전략: %s\n\n", s.guidance)
	b.WriteString("교정 원칙:\n")
	b.WriteString("1. 음성학적 오류 수정: \"되요\" → \"돼요\", \"할께요\" → \"할게요\"\n")
	b.WriteString("2. 띄어쓰기 정규화: \"할수있다\" → \"할 수 있다\"\n")
	b.WriteString("3. 표준 맞춤법과 외래어 표기법 준수\n")
	b.WriteString("4. 원본 의미를 절대 바꾸지 말 것\n")
	b.WriteString("5. 앞뒤 문맥과 전체 어조의 일관성 유지\n")
	if s.Focus == FocusPrecision {
		b.WriteString("6. 이미 정확한 문장은 그대로 두고 꼭 필요한 부분만 고칠 것\n")
	}
	b.WriteString("\n입력 형식: [번호] 텍스트\n")
	b.WriteString("출력 형식: 같은 번호를 유지한 채 교정된 텍스트만 한 줄에 하나씩 출력")
	return b.String()
}
