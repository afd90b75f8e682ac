package analysis

import (
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fightcard/internal/llm"
	"github.com/sells-group/fightcard/internal/model"
)

// RoleDefault is the process-wide configuration for one role.
type RoleDefault struct {
	Model       llm.ModelRef
	Temperature float64
	TopP        float64
	// Prompt replaces the built-in system prompt when set.
	Prompt string
}

// StageSettings is everything a stage needs to make its model call.
type StageSettings struct {
	Role        model.Role
	Model       llm.ModelRef
	Temperature float64
	TopP        *float64
	// System is the resolved system prompt.
	System      string
	Credentials model.Credentials
}

func (s StageSettings) call(prompt string) llm.Call {
	return llm.Call{
		Model:       s.Model,
		Role:        s.Role,
		System:      s.System,
		Prompt:      prompt,
		Temperature: s.Temperature,
		TopP:        s.TopP,
	}
}

// resolveSettings is Resolve, swappable in tests.
var resolveSettings = Resolve

// Resolve merges the card's per-role overrides over defaults. Request
// credentials win over process credentials. An unsupported model override is
// reported as a *model.ValidationError.
func Resolve(card *model.Card, defaults model.PerRole[RoleDefault], creds model.Credentials) (model.PerRole[StageSettings], error) {
	var out model.PerRole[StageSettings]
	var problems []string
	merged := card.APIKeys.Merge(creds)

	for _, role := range model.AllRoles {
		def := defaults.Get(role)
		s := StageSettings{
			Role:        role,
			Model:       def.Model,
			Temperature: def.Temperature,
			System:      DefaultPrompt(role),
			Credentials: merged,
		}
		if def.Prompt != "" {
			s.System = def.Prompt
		}
		if def.TopP > 0 {
			topP := def.TopP
			s.TopP = &topP
		}

		if id := card.AgentModels.Get(role); id != "" {
			ref, err := llm.ParseModel(id)
			if err != nil {
				problems = append(problems, fmt.Sprintf("agent_models.%s: unsupported model %q", role, id))
				continue
			}
			s.Model = ref
		}
		if s.Model.IsZero() {
			return out, eris.Errorf("no model configured for %s", role)
		}
		if p := card.AgentPrompts.Get(role); p != "" {
			s.System = p
		}
		if t := card.AgentTemperatures.Get(role); t != nil {
			s.Temperature = *t
		}
		if p := card.AgentTopPs.Get(role); p != nil {
			topP := *p
			s.TopP = &topP
		}
		out.Set(role, s)
	}
	if len(problems) > 0 {
		return out, &model.ValidationError{Problems: problems}
	}
	return out, nil
}
