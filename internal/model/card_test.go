package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCard() *Card {
	return &Card{
		Fights: []Fight{
			{FightID: "f1", Fighter1: "A", Fighter2: "B", WeightClass: "Lightweight"},
			{FightID: "f2", Fighter1: "C", Fighter2: "D", WeightClass: "Heavyweight"},
		},
	}
}

func TestCardValidate_OK(t *testing.T) {
	t.Parallel()
	require.NoError(t, validCard().Validate())
}

func TestCardValidate_Problems(t *testing.T) {
	t.Parallel()

	hot := 2.5
	zero := 0.0
	tests := []struct {
		name string
		edit func(c *Card)
		want string
	}{
		{"no fights", func(c *Card) { c.Fights = nil }, "card has no fights"},
		{"missing id", func(c *Card) { c.Fights[0].FightID = " " }, "fight #1: fight_id is required"},
		{"duplicate id", func(c *Card) { c.Fights[1].FightID = "f1" }, `fight "f1": duplicate fight_id`},
		{"missing fighter1", func(c *Card) { c.Fights[0].Fighter1 = "" }, `fight "f1": fighter1 is required`},
		{"missing fighter2", func(c *Card) { c.Fights[1].Fighter2 = "" }, `fight "f2": fighter2 is required`},
		{"same fighter", func(c *Card) { c.Fights[0].Fighter2 = " a " }, "fighters cannot be the same person"},
		{"temperature", func(c *Card) { c.AgentTemperatures.Judge = &hot }, "agent_temperatures.judge"},
		{"top p", func(c *Card) { c.AgentTopPs.MarketOdds = &zero }, "agent_top_ps.market_odds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := validCard()
			tt.edit(c)
			err := c.Validate()
			require.Error(t, err)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, ve.Error(), tt.want)
		})
	}
}

func TestFightHasFighter(t *testing.T) {
	t.Parallel()

	f := Fight{FightID: "ufc-1", Fighter1: "Jiří Procházka", Fighter2: "Alex Pereira"}

	name, ok := f.HasFighter("jiri  prochazka")
	assert.True(t, ok)
	assert.Equal(t, "Jiří Procházka", name)

	name, ok = f.HasFighter("ALEX PEREIRA")
	assert.True(t, ok)
	assert.Equal(t, "Alex Pereira", name)

	_, ok = f.HasFighter("Jon Jones")
	assert.False(t, ok)

	_, ok = f.HasFighter("  ")
	assert.False(t, ok)
}

func TestCardSummary(t *testing.T) {
	t.Parallel()

	c := validCard()
	c.Fights[0].Fighter1Record = "20-1"
	c.Fights[0].Location = "Abu Dhabi"

	got := c.Summary()
	assert.Contains(t, got, "Fight f1: A vs B (Lightweight) - records 20-1 / -; location Abu Dhabi")
	assert.Contains(t, got, "Fight f2: C vs D (Heavyweight)")
}

func TestCardUnmarshal_RoleMaps(t *testing.T) {
	t.Parallel()

	body := `{
		"fights": [{"fight_id": "f1", "fighter1": "A", "fighter2": "B", "weight_class": "Flyweight"}],
		"use_serper": true,
		"agent_models": {"judge": "gpt-5", "tape_study": "claude-sonnet-4-5-20250929"},
		"agent_temperatures": {"risk_scorer": 0.3},
		"api_keys": {"openai": "sk-test"}
	}`

	var c Card
	require.NoError(t, json.Unmarshal([]byte(body), &c))

	assert.True(t, c.UseWebSearch)
	assert.Equal(t, "gpt-5", c.AgentModels.Get(RoleJudge))
	assert.Equal(t, "claude-sonnet-4-5-20250929", c.AgentModels.TapeStudy)
	assert.Empty(t, c.AgentModels.Get(RoleMarketOdds))
	require.NotNil(t, c.AgentTemperatures.RiskScorer)
	assert.InDelta(t, 0.3, *c.AgentTemperatures.RiskScorer, 1e-9)
	assert.Nil(t, c.AgentTemperatures.Judge)
	assert.Equal(t, "sk-test", c.APIKeys.OpenAI)
}

func TestCardUnmarshal_UnknownRole(t *testing.T) {
	t.Parallel()

	var c Card
	err := json.Unmarshal([]byte(`{"fights": [], "agent_models": {"referee": "gpt-5"}}`), &c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown role "referee"`)
}

func TestParseCard_YAML(t *testing.T) {
	t.Parallel()

	doc := `
fights:
  - fight_id: ufc-1
    fighter1: Alexander Volkanovski
    fighter2: Ilia Topuria
    weight_class: Featherweight
    date: 2024-02-17
use_web_search: true
agent_prompts:
  market_odds: Focus on closing line value.
`
	c, err := ParseCard("card.yaml", []byte(doc))
	require.NoError(t, err)
	require.Len(t, c.Fights, 1)
	assert.Equal(t, "Ilia Topuria", c.Fights[0].Fighter2)
	assert.Equal(t, "2024-02-17", c.Fights[0].Date)
	assert.True(t, c.UseWebSearch)
	assert.Equal(t, "Focus on closing line value.", c.AgentPrompts.MarketOdds)
}

func TestParseCard_BadJSON(t *testing.T) {
	t.Parallel()

	_, err := ParseCard("card.json", []byte(`{"fights": [`))
	require.Error(t, err)
}

func TestCredentialsMerge(t *testing.T) {
	t.Parallel()

	req := Credentials{OpenAI: " sk-req ", Serper: ""}
	env := Credentials{OpenAI: "sk-env", Anthropic: "ant-env", Serper: "srp-env"}

	got := req.Merge(env)
	assert.Equal(t, "sk-req", got.OpenAI)
	assert.Equal(t, "ant-env", got.Anthropic)
	assert.Equal(t, "srp-env", got.Serper)
	assert.Empty(t, got.Google)
	assert.NotContains(t, got.String(), "sk-req")
}
