package cognitive

import (
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/user/cognitive/pkg/llm"
)

// DefaultDowntimeThreshold is how long a downtime entry keeps a model out
// of selection.
const DefaultDowntimeThreshold = 5 * time.Minute

// Downtime excludes a model from selection for a while.
type Downtime struct {
	Ref       llm.Ref   `json:"ref"`
	StartedAt time.Time `json:"startedAt"`
	Reason    string    `json:"reason"`
}

// Active reports whether the downtime still applies at now.
func (d Downtime) Active(now time.Time, threshold time.Duration) bool {
	return now.Sub(d.StartedAt) <= threshold
}

// Preferences are the ranked model lists and known downtimes.
type Preferences struct {
	Best      []llm.Ref  `json:"best"`
	Fast      []llm.Ref  `json:"fast"`
	Downtimes []Downtime `json:"downtimes"`
}

// Clone returns a deep copy of p. A nil p clones to nil.
func (p *Preferences) Clone() *Preferences {
	if p == nil {
		return nil
	}
	return &Preferences{
		Best:      cloneOrEmpty(p.Best),
		Fast:      cloneOrEmpty(p.Fast),
		Downtimes: cloneOrEmpty(p.Downtimes),
	}
}

func cloneOrEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return slices.Clone(s)
}

// DefaultPreferences ranks installed models into best and fast lists.
func DefaultPreferences(models []llm.Model) *Preferences {
	return &Preferences{
		Best:      refs(GetBestModels(models)),
		Fast:      refs(GetFastModels(models)),
		Downtimes: []Downtime{},
	}
}

func refs(models []llm.Model) []llm.Ref {
	out := make([]llm.Ref, len(models))
	for i, m := range models {
		out[i] = m.Ref()
	}
	return out
}

// ActiveDowntimes filters out entries older than threshold.
func ActiveDowntimes(downtimes []Downtime, now time.Time, threshold time.Duration) []Downtime {
	out := make([]Downtime, 0, len(downtimes))
	for _, d := range downtimes {
		if d.Active(now, threshold) {
			out = append(out, d)
		}
	}
	return out
}

// MergeDowntimes concatenates lists, dropping exact duplicates.
func MergeDowntimes(lists ...[]Downtime) []Downtime {
	type key struct {
		ref llm.Ref
		at  int64
	}
	seen := make(map[key]bool)
	out := []Downtime{}
	for _, list := range lists {
		for _, d := range list {
			k := key{d.Ref, d.StartedAt.UnixNano()}
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, d)
		}
	}
	return out
}

// PickModel returns the first candidate without an active downtime.
func PickModel(candidates []llm.Ref, downtimes []Downtime, now time.Time, threshold time.Duration) (llm.Ref, error) {
	down := make(map[llm.Ref]bool)
	for _, d := range ActiveDowntimes(downtimes, now, threshold) {
		down[d.Ref] = true
	}
	for _, ref := range candidates {
		if !down[ref] {
			return ref, nil
		}
	}
	return "", fmt.Errorf("%w: all %d candidates are down", ErrNoModelAvailable, len(candidates))
}

// Model tags used by ranking.
const (
	TagRecommended    = "recommended"
	TagDeprecated     = "deprecated"
	TagLowCost        = "low-cost"
	TagGeneralPurpose = "general-purpose"
	TagReasoning      = "reasoning"
	TagAgents         = "agents"
	TagCoding         = "coding"
	TagVision         = "vision"
	TagPreview        = "preview"
)

var bestScores = map[string]int{
	TagRecommended:    10,
	TagGeneralPurpose: 5,
	TagAgents:         3,
	TagCoding:         2,
	TagVision:         1,
	TagLowCost:        -3,
	TagPreview:        -5,
}

var fastScores = map[string]int{
	TagLowCost:        10,
	TagRecommended:    5,
	TagGeneralPurpose: 2,
	TagReasoning:      -3,
	TagPreview:        -5,
}

func score(m llm.Model, scores map[string]int) int {
	total := 0
	for _, t := range m.Tags {
		total += scores[t]
	}
	return total
}

func cost(m llm.Model) float64 {
	return m.Input.CostPer1MTokens + m.Output.CostPer1MTokens
}

// GetBestModels orders non-deprecated models by capability: tag score, then
// higher cost, then ref.
func GetBestModels(models []llm.Model) []llm.Model {
	return rank(models, bestScores, func(a, b float64) bool { return a > b })
}

// GetFastModels orders non-deprecated models by speed and price: tag score,
// then lower cost, then ref.
func GetFastModels(models []llm.Model) []llm.Model {
	return rank(models, fastScores, func(a, b float64) bool { return a < b })
}

func rank(models []llm.Model, scores map[string]int, byCost func(a, b float64) bool) []llm.Model {
	out := make([]llm.Model, 0, len(models))
	for _, m := range models {
		if !m.HasTag(TagDeprecated) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		si, sj := score(out[i], scores), score(out[j], scores)
		if si != sj {
			return si > sj
		}
		ci, cj := cost(out[i]), cost(out[j])
		if ci != cj {
			return byCost(ci, cj)
		}
		return out[i].Ref() < out[j].Ref()
	})
	return out
}
