package filter

import (
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
)

// bodyPrefix is how much of the body, in characters, contributes to scoring.
const bodyPrefix = 500

// Decision is the outcome of scoring one item.
type Decision struct {
	ShouldFilter bool    `json:"should_filter"`
	Reason       string  `json:"reason"`
	IncludeScore float64 `json:"include_score"`
	ExcludeScore float64 `json:"exclude_score"`
}

// Input is one item to score.
type Input struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Body        string `json:"body,omitempty"`
}

// BatchDecision holds per-item decisions and aggregate statistics.
type BatchDecision struct {
	Decisions  []Decision     `json:"decisions"`
	Total      int            `json:"total"`
	Filtered   int            `json:"filtered"`
	Kept       int            `json:"kept"`
	FilterRate float64        `json:"filter_rate"`
	Reasons    map[string]int `json:"reasons"`
}

type keyword struct {
	text   string
	weight float64
}

// snapshot is an installed config together with its lower-cased keyword
// index. It is never modified after installation.
type snapshot struct {
	cfg          Config
	include      []keyword
	exclude      []keyword
	includeTotal float64
	excludeTotal float64
}

func compile(cfg Config) *snapshot {
	s := &snapshot{cfg: cfg.clone()}
	s.include, s.includeTotal = flatten(cfg.Include)
	s.exclude, s.excludeTotal = flatten(cfg.Exclude)
	return s
}

func flatten(rules []Rule) ([]keyword, float64) {
	var (
		kws   []keyword
		total float64
	)
	for _, r := range rules {
		for _, kw := range r.Keywords {
			kws = append(kws, keyword{text: strings.ToLower(strings.TrimSpace(kw)), weight: r.Weight})
			total += r.Weight
		}
	}
	return kws, total
}

// Scorer decides whether items are relevant. It is safe for concurrent use;
// each call scores against one consistent config snapshot.
type Scorer struct {
	current atomic.Pointer[snapshot]
}

// NewScorer creates a Scorer with cfg installed. The config is validated.
func NewScorer(cfg Config) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Scorer{}
	s.current.Store(compile(cfg))
	return s, nil
}

// NewDefaultScorer creates a Scorer using the compiled-in rules.
func NewDefaultScorer() *Scorer {
	s := &Scorer{}
	s.current.Store(compile(DefaultConfig()))
	return s
}

// Config returns a copy of the active configuration.
func (s *Scorer) Config() Config {
	return s.current.Load().cfg.clone()
}

// Update validates cfg and installs it. On error the previous config stays
// active.
func (s *Scorer) Update(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.current.Store(compile(cfg))
	slog.Info("filter config updated",
		"include_rules", len(cfg.Include),
		"exclude_rules", len(cfg.Exclude),
		"min_include_score", cfg.MinIncludeScore,
		"max_exclude_score", cfg.MaxExcludeScore,
	)
	return nil
}

// ShouldFilter scores an item and decides whether to drop it.
func (s *Scorer) ShouldFilter(title, description, body string) Decision {
	return s.current.Load().decide(title, description, body)
}

// Batch scores every item against the same snapshot and summarizes the
// outcome.
func (s *Scorer) Batch(items []Input) BatchDecision {
	snap := s.current.Load()
	out := BatchDecision{
		Decisions: make([]Decision, 0, len(items)),
		Total:     len(items),
		Reasons:   make(map[string]int),
	}
	for _, in := range items {
		d := snap.decide(in.Title, in.Description, in.Body)
		out.Decisions = append(out.Decisions, d)
		if d.ShouldFilter {
			out.Filtered++
		} else {
			out.Kept++
		}
		out.Reasons[reasonKey(d.Reason)]++
	}
	if out.Total > 0 {
		out.FilterRate = float64(out.Filtered) / float64(out.Total) * 100
	}
	return out
}

func (s *snapshot) decide(title, description, body string) Decision {
	text := scoringText(title, description, body)
	inc := coverage(text, s.include, s.includeTotal)
	exc := coverage(text, s.exclude, s.excludeTotal)

	d := Decision{IncludeScore: inc, ExcludeScore: exc}
	switch {
	case exc > s.cfg.MaxExcludeScore:
		d.ShouldFilter = true
		d.Reason = fmt.Sprintf("technical/dev content, exclude score %s", pct(exc))
	case inc < s.cfg.MinIncludeScore:
		d.ShouldFilter = true
		d.Reason = fmt.Sprintf("below relevance threshold, include score %s", pct(inc))
	case exc > inc:
		d.ShouldFilter = true
		d.Reason = fmt.Sprintf("exclusion dominates, exclude %s > include %s", pct(exc), pct(inc))
	default:
		d.Reason = fmt.Sprintf("relevant content, include %s, exclude %s", pct(inc), pct(exc))
	}
	return d
}

func scoringText(title, description, body string) string {
	if r := []rune(body); len(r) > bodyPrefix {
		body = string(r[:bodyPrefix])
	}
	return strings.ToLower(title + " " + description + " " + body)
}

func coverage(text string, kws []keyword, total float64) float64 {
	if total == 0 {
		return 0
	}
	var hit float64
	for _, kw := range kws {
		if strings.Contains(text, kw.text) {
			hit += kw.weight
		}
	}
	return hit / total
}

func pct(score float64) string {
	return fmt.Sprintf("%.0f%%", score*100)
}

// reasonKey is the first clause of a reason, used to group decisions.
func reasonKey(reason string) string {
	if i := strings.IndexByte(reason, ','); i >= 0 {
		return reason[:i]
	}
	return reason
}
