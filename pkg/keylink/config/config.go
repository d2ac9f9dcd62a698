package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sciknow/keylink/pkg/keylink/internalerr"
)

// Match modes for the mode-aware weight tables.
const (
	ModeLabelExact = "label"
	ModeAliasExact = "alias"
	ModeNone       = "none"
)

// Weights holds the per-signal weights for one match mode.
type Weights struct {
	Context         float64 `yaml:"context"`
	Label           float64 `yaml:"label"`
	Canonicality    float64 `yaml:"canonicality"`
	ContextType     float64 `yaml:"context_type"`
	ContextSubclass float64 `yaml:"context_subclass"`
	TypeCount       float64 `yaml:"type_count"`
	SubclassCount   float64 `yaml:"subclass_count"`
	AliasInverse    float64 `yaml:"alias_inverse"`
	TokenPenalty    float64 `yaml:"token_penalty"`
}

// DomainLabels configures one domain bucket by human-readable labels.
// Both lists are resolved to entity ids once at startup.
type DomainLabels struct {
	TypeWhitelist []string `yaml:"type_whitelist"`
	RootLabels    []string `yaml:"root_labels"`
}

// Config is the tunable runtime configuration of the resolution engine.
type Config struct {
	// External search service
	APIURL         string   `yaml:"api_url"`
	UserAgent      string   `yaml:"user_agent"`
	Languages      []string `yaml:"languages"`
	SearchLimit    int      `yaml:"search_limit"`
	MaxAttempts    int      `yaml:"max_attempts"`
	BaseDelayMS    int      `yaml:"base_delay_ms"`
	RequestDelayMS int      `yaml:"request_delay_ms"`

	// Thresholds and bonuses
	MinLabelSimilarity float64 `yaml:"min_label_similarity"`
	MinTotalScore      float64 `yaml:"min_total_score"`
	ExactBonusLabel    float64 `yaml:"exact_bonus_label"`
	ExactBonusAlias    float64 `yaml:"exact_bonus_alias"`
	TypeBonus          float64 `yaml:"type_bonus"`
	DomainTypeBonus    float64 `yaml:"domain_type_bonus"`
	DomainRootBonus    float64 `yaml:"domain_root_bonus"`

	// Feature toggles
	EnableTypeBlock      bool `yaml:"enable_type_block"`
	EnablePreferredBonus bool `yaml:"enable_preferred_bonus"`
	EnableExactSafetyNet bool `yaml:"enable_exact_safety_net"`

	// Context token filtering
	Stopwords   []string `yaml:"stopwords"`
	MinTokenLen int      `yaml:"min_token_len"`

	// Hierarchy expansion
	MaxDepth         int `yaml:"max_depth"`
	MaxNodes         int `yaml:"max_nodes"`
	TypeTextMaxChars int `yaml:"type_text_max_chars"`

	// Type filtering by label
	DisallowedTypeLabels []string                `yaml:"disallowed_type_labels"`
	PreferredTypeLabels  []string                `yaml:"preferred_type_labels"`
	DisambiguationTypeID string                  `yaml:"disambiguation_type_id"`
	Domains              map[string]DomainLabels `yaml:"domains"`

	// Mode-aware scoring weights, keyed by match mode
	Weights map[string]Weights `yaml:"weights"`

	// Diagnostics
	DebugScores     bool   `yaml:"debug_scores"`
	DebugScoresPath string `yaml:"debug_scores_path"`
}

// Default returns the tuned default configuration.
func Default() Config {
	return Config{
		APIURL:         "https://www.wikidata.org/w/api.php",
		UserAgent:      "keylink/1.0 (keyword-to-entity mapper)",
		Languages:      []string{"en", "fr"},
		SearchLimit:    50,
		MaxAttempts:    5,
		BaseDelayMS:    500,
		RequestDelayMS: 100,

		MinLabelSimilarity: 70,
		MinTotalScore:      30,
		ExactBonusLabel:    20,
		ExactBonusAlias:    15,
		TypeBonus:          30,
		DomainTypeBonus:    12,
		DomainRootBonus:    15,

		EnableTypeBlock:      true,
		EnablePreferredBonus: true,
		EnableExactSafetyNet: true,

		Stopwords: []string{
			"the", "of", "and", "for", "with", "from", "this", "that", "into",
			"using", "based", "study", "analysis", "approach",
			"de", "la", "le", "les", "des", "une", "dans", "pour", "sur",
		},
		MinTokenLen: 4,

		MaxDepth:         5,
		MaxNodes:         300,
		TypeTextMaxChars: 5000,

		DisallowedTypeLabels: []string{
			"Wikimedia disambiguation page", "Wikimedia category",
			"Wikimedia template", "Wikimedia list article",
			"scholarly article", "academic journal", "book", "thesis",
			"conference paper", "report", "magazine", "newspaper", "patent",
			"organization", "company", "university", "human", "person",
			"award", "software", "website",
			"country", "city", "human settlement", "building", "event",
			"extended play", "album", "song", "film", "television series",
		},
		PreferredTypeLabels: []string{
			"scientific concept", "academic discipline", "theory", "model",
			"method", "technique", "process", "phenomenon", "property",
			"quantity", "physical quantity", "physical law", "physical constant",
			"chemical compound", "chemical substance", "chemical process",
			"algorithm", "data structure", "computing concept",
			"mathematical object", "biological process", "disease",
		},
		DisambiguationTypeID: "Q4167410",
		Domains:              map[string]DomainLabels{},

		Weights: map[string]Weights{
			ModeLabelExact: {
				Context: 2.0, Label: 0.4, Canonicality: 3.0,
				ContextType: 2.5, ContextSubclass: 1.0,
				TypeCount: 1.0, SubclassCount: 0.5, AliasInverse: 0,
			},
			ModeAliasExact: {
				Context: 2.0, Label: 0.4, Canonicality: 2.0,
				ContextType: 4.0, ContextSubclass: 1.0,
				TypeCount: 1.0, SubclassCount: 0.5, AliasInverse: 0.5,
			},
			ModeNone: {
				Context: 2.0, Label: 0.6, Canonicality: 3.0,
				ContextType: 2.5, ContextSubclass: 1.0,
				TypeCount: 1.0, SubclassCount: 0.5, AliasInverse: 0,
			},
		},

		DebugScoresPath: "debug_scores.csv",
	}
}

// Load reads a YAML file on top of the defaults. Keys absent from the
// file keep their default values; the weights map is replaced per mode.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, internalerr.ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks hard constraints; missing weight modes are filled
// from the defaults rather than rejected.
func (c *Config) Validate() error {
	if len(c.Languages) == 0 {
		return fmt.Errorf("languages must not be empty: %w", internalerr.ErrInvalidConfig)
	}
	if c.SearchLimit <= 0 || c.SearchLimit > 50 {
		return fmt.Errorf("search_limit must be in 1..50: %w", internalerr.ErrInvalidConfig)
	}
	if c.MaxDepth < 1 || c.MaxDepth > 6 {
		return fmt.Errorf("max_depth must be in 1..6: %w", internalerr.ErrInvalidConfig)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be >= 1: %w", internalerr.ErrInvalidConfig)
	}
	def := Default()
	if c.Weights == nil {
		c.Weights = def.Weights
	}
	for _, mode := range []string{ModeLabelExact, ModeAliasExact, ModeNone} {
		if _, ok := c.Weights[mode]; !ok {
			c.Weights[mode] = def.Weights[mode]
		}
	}
	return nil
}

// BaseDelay is the linear backoff unit for retries.
func (c *Config) BaseDelay() time.Duration { return time.Duration(c.BaseDelayMS) * time.Millisecond }

// RequestDelay is the minimum pause between outbound API requests.
func (c *Config) RequestDelay() time.Duration {
	return time.Duration(c.RequestDelayMS) * time.Millisecond
}

// WeightsFor returns the weight table for a match mode, falling back to
// the "none" table for unknown modes.
func (c *Config) WeightsFor(mode string) Weights {
	if w, ok := c.Weights[mode]; ok {
		return w
	}
	return c.Weights[ModeNone]
}
