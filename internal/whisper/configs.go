package whisper

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const DefaultConfig = "whisper-1-optimized"

// Config is a named engine setting trading latency against quality.
// Lower ranks are faster or better.
type Config struct {
	Name        string
	Description string
	Model       string
	Temperature float64
	BeamSize    int
	LatencyRank int
	QualityRank int
	Prompt      string
}

type Priority string

const (
	PrioritySpeed    Priority = "speed"
	PriorityQuality  Priority = "quality"
	PriorityBalanced Priority = "balanced"
)

func ParsePriority(value string) (Priority, error) {
	switch p := Priority(strings.ToLower(strings.TrimSpace(value))); p {
	case "":
		return PriorityBalanced, nil
	case PrioritySpeed, PriorityQuality, PriorityBalanced:
		return p, nil
	default:
		return "", fmt.Errorf("unknown priority %q (expected speed, quality or balanced)", value)
	}
}

var defaultConfigs = []Config{
	{
		Name:        "whisper-1-standard",
		Description: "Deterministic decoding with a short prompt",
		Model:       "whisper-1",
		Temperature: 0.0,
		BeamSize:    5,
		LatencyRank: 2,
		QualityRank: 3,
		Prompt:      "다음은 한국어 음성입니다. 표준어로 정확하게 받아 적어 주세요.",
	},
	{
		Name:        "whisper-1-optimized",
		Description: "Low temperature with spelling and punctuation guidance",
		Model:       "whisper-1",
		Temperature: 0.1,
		BeamSize:    5,
		LatencyRank: 1,
		QualityRank: 1,
		Prompt: "다음은 한국어 음성입니다. 표준어로 정확하게 받아 적어 주세요. " +
			"맞춤법과 띄어쓰기를 지키고, 문장 부호를 자연스럽게 넣고, 고유명사는 정확히 표기해 주세요.",
	},
	{
		Name:        "whisper-1-creative",
		Description: "Higher temperature with wider search for difficult audio",
		Model:       "whisper-1",
		Temperature: 0.3,
		BeamSize:    8,
		LatencyRank: 3,
		QualityRank: 2,
		Prompt: "다음은 한국어 음성입니다. 표준어로 받아 적되 자연스러운 문장으로 정리해 주세요. " +
			"맞춤법과 띄어쓰기를 지키고, 고유명사는 정확히 표기해 주세요.",
	},
}

// Catalog is the fixed set of configurations an engine can run with.
type Catalog struct {
	configs map[string]Config
}

func DefaultCatalog() Catalog {
	return NewCatalog(defaultConfigs...)
}

func NewCatalog(configs ...Config) Catalog {
	registry := make(map[string]Config, len(configs))
	for _, cfg := range configs {
		registry[cfg.Name] = cfg
	}
	return Catalog{configs: registry}
}

// WithModel returns a copy of c whose configurations all use model. An empty
// model leaves c unchanged.
func (c Catalog) WithModel(model string) Catalog {
	model = strings.TrimSpace(model)
	if model == "" {
		return c
	}
	configs := c.Configs()
	for i := range configs {
		configs[i].Model = model
	}
	return NewCatalog(configs...)
}

func (c Catalog) Names() []string {
	names := make([]string, 0, len(c.configs))
	for name := range c.configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c Catalog) Configs() []Config {
	out := make([]Config, 0, len(c.configs))
	for _, name := range c.Names() {
		out = append(out, c.configs[name])
	}
	return out
}

func (c Catalog) Lookup(name string) (Config, bool) {
	cfg, ok := c.configs[name]
	return cfg, ok
}

// Resolve returns the named configuration, or the default one for an empty name.
func (c Catalog) Resolve(name string) (Config, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultConfig
	}
	cfg, ok := c.configs[name]
	if !ok {
		return Config{}, fmt.Errorf("%w %q (known configurations: %s)", ErrUnknownConfig, name, strings.Join(c.Names(), ", "))
	}
	return cfg, nil
}

// HighestQuality returns the best-ranked configuration other than exclude.
func (c Catalog) HighestQuality(exclude string) (string, bool) {
	return c.best(exclude, func(cfg Config) int { return cfg.QualityRank })
}

// Fastest returns the lowest-latency configuration other than exclude.
func (c Catalog) Fastest(exclude string) (string, bool) {
	return c.best(exclude, func(cfg Config) int { return cfg.LatencyRank })
}

func (c Catalog) best(exclude string, rank func(Config) int) (string, bool) {
	found := false
	var best Config
	for _, name := range c.Names() {
		if name == exclude {
			continue
		}
		cfg := c.configs[name]
		if !found || rank(cfg) < rank(best) {
			best = cfg
			found = true
		}
	}
	return best.Name, found
}

// Recommend picks a starting configuration from the audio duration.
func (c Catalog) Recommend(duration time.Duration, priority Priority) string {
	var name string
	switch {
	case duration <= time.Minute:
		name = "whisper-1-optimized"
	case duration <= 5*time.Minute:
		switch priority {
		case PrioritySpeed:
			name = "whisper-1-standard"
		case PriorityQuality:
			name = "whisper-1-creative"
		default:
			name = "whisper-1-optimized"
		}
	default:
		if priority == PriorityQuality {
			name = "whisper-1-creative"
		} else {
			name = "whisper-1-standard"
		}
	}
	if _, ok := c.configs[name]; ok {
		return name
	}
	return DefaultConfig
}
