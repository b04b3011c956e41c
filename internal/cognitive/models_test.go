package cognitive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/cognitive/pkg/llm"
)

func model(integration, id string, cost float64, tags ...string) llm.Model {
	return llm.Model{
		ID:          id,
		Name:        id,
		Integration: integration,
		Tags:        tags,
		Input:       llm.TokenLimits{CostPer1MTokens: cost},
		Output:      llm.TokenLimits{CostPer1MTokens: cost},
	}
}

func TestGetBestModels(t *testing.T) {
	models := []llm.Model{
		model("openai", "gpt-4o-mini", 0.5, TagLowCost, TagGeneralPurpose),
		model("openai", "gpt-4o", 5, TagRecommended, TagGeneralPurpose, TagVision),
		model("openai", "gpt-3.5", 1, TagDeprecated, TagRecommended),
		model("anthropic", "claude", 8, TagRecommended, TagGeneralPurpose, TagVision),
		model("groq", "preview", 0.1, TagPreview),
	}

	got := refs(GetBestModels(models))
	assert.Equal(t, []llm.Ref{"anthropic:claude", "openai:gpt-4o", "openai:gpt-4o-mini", "groq:preview"}, got)
}

func TestGetFastModels(t *testing.T) {
	models := []llm.Model{
		model("openai", "gpt-4o", 5, TagRecommended, TagGeneralPurpose),
		model("openai", "gpt-4o-mini", 0.5, TagLowCost, TagGeneralPurpose),
		model("groq", "llama", 0.2, TagLowCost, TagGeneralPurpose),
		model("openai", "o1", 10, TagReasoning, TagRecommended),
		model("openai", "old", 0.1, TagDeprecated, TagLowCost),
	}

	got := refs(GetFastModels(models))
	assert.Equal(t, []llm.Ref{"groq:llama", "openai:gpt-4o-mini", "openai:gpt-4o", "openai:o1"}, got)
}

func TestRankingTiesBreakOnRef(t *testing.T) {
	models := []llm.Model{model("b", "m", 1), model("a", "m", 1)}
	assert.Equal(t, []llm.Ref{"a:m", "b:m"}, refs(GetBestModels(models)))
	assert.Equal(t, []llm.Ref{"a:m", "b:m"}, refs(GetFastModels(models)))
}

func TestDefaultPreferences(t *testing.T) {
	prefs := DefaultPreferences(nil)
	assert.NotNil(t, prefs.Best)
	assert.NotNil(t, prefs.Fast)
	assert.NotNil(t, prefs.Downtimes)
	assert.Empty(t, prefs.Best)
}

func TestPickModel(t *testing.T) {
	candidates := []llm.Ref{"a:1", "b:2", "c:3"}

	got, err := PickModel(candidates, nil, testNow, DefaultDowntimeThreshold)
	require.NoError(t, err)
	assert.Equal(t, llm.Ref("a:1"), got)

	downtimes := []Downtime{
		{Ref: "a:1", StartedAt: testNow.Add(-time.Minute)},
		{Ref: "b:2", StartedAt: testNow.Add(-time.Hour)},
	}
	got, err = PickModel(candidates, downtimes, testNow, DefaultDowntimeThreshold)
	require.NoError(t, err)
	assert.Equal(t, llm.Ref("b:2"), got)

	downtimes = append(downtimes, Downtime{Ref: "b:2", StartedAt: testNow}, Downtime{Ref: "c:3", StartedAt: testNow})
	_, err = PickModel(candidates, downtimes, testNow, DefaultDowntimeThreshold)
	assert.ErrorIs(t, err, ErrNoModelAvailable)

	_, err = PickModel(nil, nil, testNow, DefaultDowntimeThreshold)
	assert.ErrorIs(t, err, ErrNoModelAvailable)
}

func TestDowntimeActiveBoundary(t *testing.T) {
	d := Downtime{Ref: "a:1", StartedAt: testNow.Add(-DefaultDowntimeThreshold)}
	assert.True(t, d.Active(testNow, DefaultDowntimeThreshold))
	assert.False(t, d.Active(testNow.Add(time.Millisecond), DefaultDowntimeThreshold))
}

func TestMergeDowntimes(t *testing.T) {
	a := Downtime{Ref: "a:1", StartedAt: testNow}
	b := Downtime{Ref: "b:2", StartedAt: testNow}

	merged := MergeDowntimes([]Downtime{a}, []Downtime{a, b})
	assert.Equal(t, []Downtime{a, b}, merged)
	assert.NotNil(t, MergeDowntimes())
}

func TestPreferencesClone(t *testing.T) {
	var nilPrefs *Preferences
	assert.Nil(t, nilPrefs.Clone())

	p := &Preferences{Best: []llm.Ref{"a:1"}}
	cp := p.Clone()
	cp.Best[0] = "b:2"
	assert.Equal(t, llm.Ref("a:1"), p.Best[0])
	assert.NotNil(t, cp.Fast)
}
