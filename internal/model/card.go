package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Fight is one scheduled bout on a card.
type Fight struct {
	FightID        string `json:"fight_id" yaml:"fight_id"`
	Fighter1       string `json:"fighter1" yaml:"fighter1"`
	Fighter2       string `json:"fighter2" yaml:"fighter2"`
	WeightClass    string `json:"weight_class" yaml:"weight_class"`
	Fighter1Record string `json:"fighter1_record,omitempty" yaml:"fighter1_record"`
	Fighter2Record string `json:"fighter2_record,omitempty" yaml:"fighter2_record"`
	Date           string `json:"date,omitempty" yaml:"date"`
	Location       string `json:"location,omitempty" yaml:"location"`
	AdditionalInfo string `json:"additional_info,omitempty" yaml:"additional_info"`
}

// Matchup returns "Fighter1 vs Fighter2".
func (f Fight) Matchup() string {
	return f.Fighter1 + " vs " + f.Fighter2
}

// HasFighter reports whether name refers to one of the two corners and
// returns the card's spelling of that fighter.
func (f Fight) HasFighter(name string) (string, bool) {
	key := FoldName(name)
	if key == "" {
		return "", false
	}
	switch key {
	case FoldName(f.Fighter1):
		return f.Fighter1, true
	case FoldName(f.Fighter2):
		return f.Fighter2, true
	}
	return "", false
}

// Credentials holds per-provider API keys supplied with a request or loaded
// from the environment.
type Credentials struct {
	Anthropic  string `json:"anthropic,omitempty" mapstructure:"anthropic"`
	OpenAI     string `json:"openai,omitempty" mapstructure:"openai"`
	Google     string `json:"google,omitempty" mapstructure:"google"`
	Perplexity string `json:"perplexity,omitempty" mapstructure:"perplexity"`
	Serper     string `json:"serper,omitempty" mapstructure:"serper"`
}

// Merge returns c with every empty key filled from fallback. Keys present on
// c win.
func (c Credentials) Merge(fallback Credentials) Credentials {
	pick := func(a, b string) string {
		if strings.TrimSpace(a) != "" {
			return strings.TrimSpace(a)
		}
		return b
	}
	return Credentials{
		Anthropic:  pick(c.Anthropic, fallback.Anthropic),
		OpenAI:     pick(c.OpenAI, fallback.OpenAI),
		Google:     pick(c.Google, fallback.Google),
		Perplexity: pick(c.Perplexity, fallback.Perplexity),
		Serper:     pick(c.Serper, fallback.Serper),
	}
}

// String never prints key material.
func (c Credentials) String() string {
	var set []string
	for name, v := range map[string]string{
		"anthropic":  c.Anthropic,
		"openai":     c.OpenAI,
		"google":     c.Google,
		"perplexity": c.Perplexity,
		"serper":     c.Serper,
	} {
		if v != "" {
			set = append(set, name)
		}
	}
	return fmt.Sprintf("credentials(%d set)", len(set))
}

// Card is the unit of work for one pipeline run: the fights plus optional
// per-role overrides. Empty strings and nil pointers mean "use the default".
type Card struct {
	Fights            []Fight           `json:"fights"`
	UseWebSearch      bool              `json:"use_web_search,omitempty"`
	AgentModels       PerRole[string]   `json:"agent_models"`
	AgentPrompts      PerRole[string]   `json:"agent_prompts"`
	AgentTemperatures PerRole[*float64] `json:"agent_temperatures"`
	AgentTopPs        PerRole[*float64] `json:"agent_top_ps"`
	APIKeys           Credentials       `json:"api_keys"`
}

// UnmarshalJSON accepts "use_serper" as an alias for "use_web_search".
func (c *Card) UnmarshalJSON(data []byte) error {
	type plain Card
	aux := struct {
		*plain
		UseSerper *bool `json:"use_serper"`
	}{plain: (*plain)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.UseSerper != nil && *aux.UseSerper {
		c.UseWebSearch = true
	}
	return nil
}

// Fight returns the fight with the given id.
func (c *Card) Fight(id string) (Fight, bool) {
	for _, f := range c.Fights {
		if f.FightID == id {
			return f, true
		}
	}
	return Fight{}, false
}

// Summary flattens the card into one line per fight. Optional details are
// included only when set.
func (c *Card) Summary() string {
	var b strings.Builder
	for i, f := range c.Fights {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "Fight %s: %s vs %s (%s)", f.FightID, f.Fighter1, f.Fighter2, f.WeightClass)
		var extra []string
		if f.Fighter1Record != "" || f.Fighter2Record != "" {
			extra = append(extra, fmt.Sprintf("records %s / %s", orDash(f.Fighter1Record), orDash(f.Fighter2Record)))
		}
		if f.Date != "" {
			extra = append(extra, "date "+f.Date)
		}
		if f.Location != "" {
			extra = append(extra, "location "+f.Location)
		}
		if f.AdditionalInfo != "" {
			extra = append(extra, "notes: "+f.AdditionalInfo)
		}
		if len(extra) > 0 {
			b.WriteString(" - ")
			b.WriteString(strings.Join(extra, "; "))
		}
	}
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
