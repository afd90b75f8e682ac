package model

import (
	"fmt"
	"strings"
)

// ValidationError lists every shape problem found in a caller-supplied Card.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid card: " + strings.Join(e.Problems, "; ")
}

// Validate checks the card's shape before any stage runs. It returns nil or a
// *ValidationError.
func (c *Card) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if len(c.Fights) == 0 {
		add("card has no fights")
	}

	seen := make(map[string]bool, len(c.Fights))
	for i, f := range c.Fights {
		label := fmt.Sprintf("fight #%d", i+1)
		id := strings.TrimSpace(f.FightID)
		if id == "" {
			add("%s: fight_id is required", label)
		} else {
			label = fmt.Sprintf("fight %q", id)
			if seen[id] {
				add("%s: duplicate fight_id", label)
			}
			seen[id] = true
		}
		if strings.TrimSpace(f.Fighter1) == "" {
			add("%s: fighter1 is required", label)
		}
		if strings.TrimSpace(f.Fighter2) == "" {
			add("%s: fighter2 is required", label)
		}
		if FoldName(f.Fighter1) != "" && FoldName(f.Fighter1) == FoldName(f.Fighter2) {
			add("%s: fighters cannot be the same person", label)
		}
	}

	for _, r := range AllRoles {
		if t := c.AgentTemperatures.Get(r); t != nil && (*t < 0 || *t > 2) {
			add("agent_temperatures.%s: %.2f outside [0, 2]", r, *t)
		}
		if p := c.AgentTopPs.Get(r); p != nil && (*p <= 0 || *p > 1) {
			add("agent_top_ps.%s: %.2f outside (0, 1]", r, *p)
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
