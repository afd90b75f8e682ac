package model

import (
	"encoding/json"
	"sort"

	"github.com/rotisserie/eris"
)

// Role identifies one stage of the card analysis pipeline.
type Role string

const (
	RoleTapeStudy          Role = "tape_study"
	RoleStatsTrends        Role = "stats_trends"
	RoleNewsWeighins       Role = "news_weighins"
	RoleStyleMatchup       Role = "style_matchup"
	RoleMarketOdds         Role = "market_odds"
	RoleJudge              Role = "judge"
	RoleRiskScorer         Role = "risk_scorer"
	RoleConsistencyChecker Role = "consistency_checker"
)

// AnalystRoles lists the five analyst lenses in the order their reports are
// handed to the judge.
var AnalystRoles = [5]Role{
	RoleTapeStudy,
	RoleStatsTrends,
	RoleNewsWeighins,
	RoleStyleMatchup,
	RoleMarketOdds,
}

// AllRoles lists every pipeline role, analysts first.
var AllRoles = [8]Role{
	RoleTapeStudy,
	RoleStatsTrends,
	RoleNewsWeighins,
	RoleStyleMatchup,
	RoleMarketOdds,
	RoleJudge,
	RoleRiskScorer,
	RoleConsistencyChecker,
}

// ParseRole converts a role name into a Role.
func ParseRole(name string) (Role, error) {
	for _, r := range AllRoles {
		if string(r) == name {
			return r, nil
		}
	}
	return "", eris.Errorf("model: unknown role %q", name)
}

// Label returns a human readable name for the role.
func (r Role) Label() string {
	switch r {
	case RoleTapeStudy:
		return "Tape Study"
	case RoleStatsTrends:
		return "Stats & Trends"
	case RoleNewsWeighins:
		return "News/Weigh-ins"
	case RoleStyleMatchup:
		return "Style Matchup"
	case RoleMarketOdds:
		return "Market/Odds"
	case RoleJudge:
		return "Judge"
	case RoleRiskScorer:
		return "Risk Scorer"
	case RoleConsistencyChecker:
		return "Consistency Checker"
	default:
		return string(r)
	}
}

// PerRole carries one value per pipeline role. It replaces open-ended
// role-name maps: every role has a field, and decoding rejects unknown names.
type PerRole[T any] struct {
	TapeStudy          T `json:"tape_study" mapstructure:"tape_study"`
	StatsTrends        T `json:"stats_trends" mapstructure:"stats_trends"`
	NewsWeighins       T `json:"news_weighins" mapstructure:"news_weighins"`
	StyleMatchup       T `json:"style_matchup" mapstructure:"style_matchup"`
	MarketOdds         T `json:"market_odds" mapstructure:"market_odds"`
	Judge              T `json:"judge" mapstructure:"judge"`
	RiskScorer         T `json:"risk_scorer" mapstructure:"risk_scorer"`
	ConsistencyChecker T `json:"consistency_checker" mapstructure:"consistency_checker"`
}

// Get returns the value stored for r.
func (p *PerRole[T]) Get(r Role) T {
	return *p.slot(r)
}

// Set stores v for r.
func (p *PerRole[T]) Set(r Role, v T) {
	*p.slot(r) = v
}

// Ptr returns the address of r's value, for binding form fields.
func (p *PerRole[T]) Ptr(r Role) *T {
	return p.slot(r)
}

func (p *PerRole[T]) slot(r Role) *T {
	switch r {
	case RoleTapeStudy:
		return &p.TapeStudy
	case RoleStatsTrends:
		return &p.StatsTrends
	case RoleNewsWeighins:
		return &p.NewsWeighins
	case RoleStyleMatchup:
		return &p.StyleMatchup
	case RoleMarketOdds:
		return &p.MarketOdds
	case RoleJudge:
		return &p.Judge
	case RoleRiskScorer:
		return &p.RiskScorer
	case RoleConsistencyChecker:
		return &p.ConsistencyChecker
	}
	panic("model: unknown role " + string(r))
}

// UnmarshalJSON decodes a role-keyed object. Absent roles keep their zero
// value; unknown role names are an error.
func (p *PerRole[T]) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return eris.Wrap(err, "model: decode role map")
	}
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out PerRole[T]
	for _, k := range keys {
		r, err := ParseRole(k)
		if err != nil {
			return err
		}
		var v T
		if err := json.Unmarshal(raw[k], &v); err != nil {
			return eris.Wrapf(err, "model: decode role %s", k)
		}
		out.Set(r, v)
	}
	*p = out
	return nil
}
