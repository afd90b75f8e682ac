// Package wizard collects a fight card interactively.
package wizard

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/rotisserie/eris"
	"golang.org/x/term"

	"github.com/sells-group/fightcard/internal/llm"
	"github.com/sells-group/fightcard/internal/model"
)

// MaxFights is the most fights one wizard session accepts.
const MaxFights = 10

// WeightClasses are the divisions offered for each fight.
var WeightClasses = []string{
	"Strawweight", "Flyweight", "Bantamweight", "Featherweight", "Lightweight",
	"Welterweight", "Middleweight", "Light Heavyweight", "Heavyweight",
}

// Entry is one fight as typed into the wizard.
type Entry struct {
	RedCorner      string
	RedRecord      string
	BlueCorner     string
	BlueRecord     string
	WeightClass    string
	Date           string
	Location       string
	AdditionalInfo string
}

// ModelChoices are the models offered per role when overriding defaults.
var ModelChoices = model.PerRole[[]string]{
	TapeStudy:          []string{"claude-3-7-sonnet-20250219", "claude-3-5-sonnet", "gpt-5", "gpt-4"},
	StatsTrends:        []string{"gpt-5", "gpt-4", "claude-3-7-sonnet-20250219"},
	NewsWeighins:       []string{"gpt-5", "gpt-4", "claude-3-7-sonnet-20250219", "gemini-2.5-pro", "sonar-pro"},
	StyleMatchup:       []string{"claude-3-7-sonnet-20250219", "claude-3-5-sonnet", "gpt-5"},
	MarketOdds:         []string{"gpt-5-mini", "gpt-4", "gpt-3.5"},
	Judge:              []string{"gpt-5", "gpt-4", "claude-3-7-sonnet-20250219"},
	RiskScorer:         []string{"gpt-5-mini", "gpt-4", "claude-3-5-haiku"},
	ConsistencyChecker: []string{"claude-3-5-haiku-20241022", "gpt-4", "claude-3-5-sonnet"},
}

// Options tunes a wizard session.
type Options struct {
	// Configured holds keys already set through config or the environment.
	// A configured key may be left blank in the wizard.
	Configured model.Credentials
}

// Run asks for the number of fights, the web search toggle, API keys,
// optional per-role models and every fight's details, then returns the
// validated card.
func Run(in io.Reader, out io.Writer, opts Options) (*model.Card, error) {
	accessible := !isTerminal(in)
	countRaw := "1"
	useSearch := false
	overrideModels := false

	setup := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("How many fights?").
				Description(fmt.Sprintf("Between 1 and %d", MaxFights)).
				Value(&countRaw).
				Validate(func(s string) error {
					_, err := parseCount(s)
					return err
				}),
			huh.NewConfirm().
				Title("Enable web search?").
				Description("Adds recent news and weigh-in results to the news analyst (needs a Serper key)").
				Value(&useSearch),
			huh.NewConfirm().
				Title("Override agent models?").
				Value(&overrideModels),
		),
	)
	if err := runForm(setup, in, out, accessible); err != nil {
		return nil, err
	}
	count, _ := parseCount(countRaw)

	var keys model.Credentials
	if err := runForm(keysForm(&keys, opts.Configured, useSearch, !accessible), in, out, accessible); err != nil {
		return nil, err
	}

	var models model.PerRole[string]
	if overrideModels {
		if err := runForm(modelsForm(&models), in, out, accessible); err != nil {
			return nil, err
		}
	}

	entries := make([]Entry, count)
	for i := range entries {
		if err := runForm(fightForm(i+1, &entries[i]), in, out, accessible); err != nil {
			return nil, err
		}
	}

	card := BuildCard(entries, useSearch)
	card.APIKeys = trimKeys(keys)
	card.AgentModels = models
	if err := card.Validate(); err != nil {
		return nil, err
	}
	return card, nil
}

// keysForm asks for provider keys. OpenAI and Anthropic are required, and
// Serper too when web search is on, unless already configured.
func keysForm(keys *model.Credentials, configured model.Credentials, useSearch, masked bool) *huh.Form {
	field := func(title, help string, v *string, needed bool) *huh.Input {
		in := huh.NewInput().
			Title(title).
			Description(help).
			Value(v).
			Validate(keyRequired(title, needed))
		if masked {
			in = in.EchoMode(huh.EchoModePassword)
		}
		return in
	}
	return huh.NewForm(
		huh.NewGroup(
			huh.NewNote().Title("API Keys").Description("Leave blank to use keys from config or the environment"),
			field("OpenAI API Key", "e.g., sk-proj-...", &keys.OpenAI, configured.OpenAI == ""),
			field("Anthropic API Key", "e.g., sk-ant-api03-...", &keys.Anthropic, configured.Anthropic == ""),
			field("Google API Key", "Only needed when a role uses Gemini", &keys.Google, false),
			field("Perplexity API Key", "Only needed when a role uses Sonar", &keys.Perplexity, false),
			field("Serper API Key", "Only needed when web search is enabled", &keys.Serper, useSearch && configured.Serper == ""),
		),
	)
}

// modelsForm offers a model per role. The first option keeps the
// configured default.
func modelsForm(models *model.PerRole[string]) *huh.Form {
	var fields []huh.Field
	for _, role := range model.AllRoles {
		options := []huh.Option[string]{huh.NewOption("Default", "")}
		for _, id := range ModelChoices.Get(role) {
			options = append(options, huh.NewOption(id, id))
		}
		fields = append(fields, huh.NewSelect[string]().
			Title(role.Label()+" Agent").
			Options(options...).
			Value(models.Ptr(role)).
			Validate(validModel))
	}
	return huh.NewForm(huh.NewGroup(fields...))
}

func fightForm(n int, e *Entry) *huh.Form {
	e.WeightClass = "Lightweight"
	options := make([]huh.Option[string], len(WeightClasses))
	for i, wc := range WeightClasses {
		options[i] = huh.NewOption(wc, wc)
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewNote().Title(fmt.Sprintf("Fight #%d", n)),
			huh.NewInput().
				Title(fmt.Sprintf("Red Corner #%d", n)).
				Placeholder("e.g., Alexander Volkanovski").
				Value(&e.RedCorner).
				Validate(required("Red Corner fighter name is required")),
			huh.NewInput().
				Title("Record").
				Placeholder("e.g., 25-3-0").
				Value(&e.RedRecord),
			huh.NewInput().
				Title(fmt.Sprintf("Blue Corner #%d", n)).
				Placeholder("e.g., Ilia Topuria").
				Value(&e.BlueCorner).
				Validate(func(s string) error {
					if err := required("Blue Corner fighter name is required")(s); err != nil {
						return err
					}
					if model.FoldName(s) == model.FoldName(e.RedCorner) {
						return eris.New("Fighters cannot be the same person")
					}
					return nil
				}),
			huh.NewInput().
				Title("Record").
				Placeholder("e.g., 14-0-0").
				Value(&e.BlueRecord),
			huh.NewSelect[string]().
				Title("Weight Class").
				Options(options...).
				Value(&e.WeightClass),
			huh.NewInput().
				Title("Fight Date").
				Placeholder("YYYY-MM-DD").
				Value(&e.Date),
			huh.NewInput().
				Title("Location").
				Placeholder("e.g., Etihad Arena, Abu Dhabi").
				Value(&e.Location),
			huh.NewText().
				Title("Additional Info").
				Placeholder("e.g., UFC Featherweight Championship").
				Value(&e.AdditionalInfo),
		),
	)
}

func runForm(form *huh.Form, in io.Reader, out io.Writer, accessible bool) error {
	// Accessible mode reads line by line, for piped input and tests.
	form = form.WithInput(in).WithOutput(out).WithAccessible(accessible)
	if err := form.Run(); err != nil {
		return eris.Wrap(err, "wizard")
	}
	return nil
}

func isTerminal(in io.Reader) bool {
	f, ok := in.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// BuildCard turns wizard entries into a card with ids fight_1, fight_2, ...
func BuildCard(entries []Entry, useSearch bool) *model.Card {
	card := &model.Card{UseWebSearch: useSearch}
	for i, e := range entries {
		card.Fights = append(card.Fights, model.Fight{
			FightID:        "fight_" + strconv.Itoa(i+1),
			Fighter1:       strings.TrimSpace(e.RedCorner),
			Fighter2:       strings.TrimSpace(e.BlueCorner),
			WeightClass:    e.WeightClass,
			Fighter1Record: strings.TrimSpace(e.RedRecord),
			Fighter2Record: strings.TrimSpace(e.BlueRecord),
			Date:           strings.TrimSpace(e.Date),
			Location:       strings.TrimSpace(e.Location),
			AdditionalInfo: strings.TrimSpace(e.AdditionalInfo),
		})
	}
	return card
}

func parseCount(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 || n > MaxFights {
		return 0, eris.Errorf("enter a number between 1 and %d", MaxFights)
	}
	return n, nil
}

func keyRequired(title string, needed bool) func(string) error {
	return func(s string) error {
		if needed && strings.TrimSpace(s) == "" {
			return eris.Errorf("%s is required", title)
		}
		return nil
	}
}

func validModel(id string) error {
	if id == "" {
		return nil
	}
	_, err := llm.ParseModel(id)
	return err
}

func trimKeys(c model.Credentials) model.Credentials {
	return model.Credentials{
		Anthropic:  strings.TrimSpace(c.Anthropic),
		OpenAI:     strings.TrimSpace(c.OpenAI),
		Google:     strings.TrimSpace(c.Google),
		Perplexity: strings.TrimSpace(c.Perplexity),
		Serper:     strings.TrimSpace(c.Serper),
	}
}

func required(msg string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return eris.New(msg)
		}
		return nil
	}
}
