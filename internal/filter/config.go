package filter

import (
	_ "embed"
	"fmt"
	"math"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRules []byte

// Rule is a named list of keywords sharing one weight.
type Rule struct {
	Name     string   `json:"name,omitempty" yaml:"name"`
	Keywords []string `json:"keywords" yaml:"keywords"`
	Weight   float64  `json:"weight" yaml:"weight"`
}

// Config is the complete rule set used to score items. It is treated as an
// immutable value: updates replace it wholesale.
type Config struct {
	Include         []Rule  `json:"include" yaml:"include"`
	Exclude         []Rule  `json:"exclude" yaml:"exclude"`
	MinIncludeScore float64 `json:"min_include_score" yaml:"min_include_score"`
	MaxExcludeScore float64 `json:"max_exclude_score" yaml:"max_exclude_score"`
}

// ConfigError reports an invalid rule set. The scorer keeps its previous
// configuration when one is returned.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid filter config: %s: %s", e.Field, e.Msg)
}

// DefaultConfig returns the compiled-in rule set.
func DefaultConfig() Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultRules, &cfg); err != nil {
		panic(fmt.Sprintf("filter: parsing embedded rules: %v", err))
	}
	return cfg
}

// ParseConfig decodes a YAML rule set and validates it.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, &ConfigError{Field: "document", Msg: err.Error()}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks thresholds and rules.
func (c Config) Validate() error {
	if err := validThreshold("min_include_score", c.MinIncludeScore); err != nil {
		return err
	}
	if err := validThreshold("max_exclude_score", c.MaxExcludeScore); err != nil {
		return err
	}
	if len(c.Include) == 0 && len(c.Exclude) == 0 {
		return &ConfigError{Field: "rules", Msg: "at least one include or exclude rule is required"}
	}
	if err := validRules("include", c.Include); err != nil {
		return err
	}
	return validRules("exclude", c.Exclude)
}

func validThreshold(field string, v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return &ConfigError{Field: field, Msg: fmt.Sprintf("must be between 0 and 1, got %v", v)}
	}
	return nil
}

func validRules(group string, rules []Rule) error {
	for i, r := range rules {
		field := fmt.Sprintf("%s[%d]", group, i)
		if math.IsNaN(r.Weight) || math.IsInf(r.Weight, 0) || r.Weight <= 0 {
			return &ConfigError{Field: field + ".weight", Msg: fmt.Sprintf("must be positive, got %v", r.Weight)}
		}
		if len(r.Keywords) == 0 {
			return &ConfigError{Field: field + ".keywords", Msg: "must not be empty"}
		}
		for j, kw := range r.Keywords {
			if strings.TrimSpace(kw) == "" {
				return &ConfigError{Field: fmt.Sprintf("%s.keywords[%d]", field, j), Msg: "must not be blank"}
			}
		}
	}
	return nil
}

// clone returns a deep copy so callers cannot mutate an installed snapshot.
func (c Config) clone() Config {
	out := c
	out.Include = cloneRules(c.Include)
	out.Exclude = cloneRules(c.Exclude)
	return out
}

func cloneRules(rules []Rule) []Rule {
	if rules == nil {
		return nil
	}
	out := make([]Rule, len(rules))
	for i, r := range rules {
		out[i] = r
		out[i].Keywords = append([]string(nil), r.Keywords...)
	}
	return out
}
