// Package export renders card analyses as JSON, CSV or a plain-text report.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fightcard/internal/model"
)

// Format is an output format.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatText Format = "text"
)

// CSVHeader is the first row of every CSV export.
var CSVHeader = []string{"Fight_ID", "Pick", "Confidence", "Path_to_Victory", "Risk_Flags", "Props"}

const listSep = "; "

// ParseFormat converts a flag value into a Format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV, FormatText:
		return f, nil
	case "txt":
		return FormatText, nil
	}
	return "", eris.Errorf("export: unknown format %q (want json, csv or text)", s)
}

// Write renders result in format.
func Write(w io.Writer, format Format, card *model.Card, result model.CardAnalysis) error {
	switch format {
	case FormatJSON:
		return JSON(w, result)
	case FormatCSV:
		return CSV(w, card, result)
	case FormatText:
		return Text(w, card, result)
	}
	return eris.Errorf("export: unknown format %q", format)
}

// JSON writes the analysis as indented JSON in the judge's order.
func JSON(w io.Writer, result model.CardAnalysis) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(model.NewCardAnalysis(result.Analyses)); err != nil {
		return eris.Wrap(err, "export: encode json")
	}
	return nil
}

// CSV writes one row per analysis in card order.
func CSV(w io.Writer, card *model.Card, result model.CardAnalysis) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, a := range CardOrder(card, result) {
		row := []string{
			a.FightID,
			a.Pick,
			strconv.Itoa(a.Confidence),
			a.PathToVictory,
			strings.Join(a.RiskFlags, listSep),
			strings.Join(a.Props, listSep),
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrapf(err, "export: write csv row %s", a.FightID)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}

// Text writes a human readable report in card order. Fights without a
// prediction are listed as such.
func Text(w io.Writer, card *model.Card, result model.CardAnalysis) error {
	_, err := io.WriteString(w, Summary(card, result))
	return eris.Wrap(err, "export: write text")
}

// Summary renders the plain-text report.
func Summary(card *model.Card, result model.CardAnalysis) string {
	var b strings.Builder
	b.WriteString("UFC Card Analysis\n=================\n")

	byID := result.ByFightID()
	seen := make(map[string]bool, len(byID))
	if card != nil {
		for _, f := range card.Fights {
			fmt.Fprintf(&b, "\nFight %s: %s", f.FightID, f.Matchup())
			if f.WeightClass != "" {
				fmt.Fprintf(&b, " (%s)", f.WeightClass)
			}
			b.WriteByte('\n')
			a, ok := byID[f.FightID]
			if !ok {
				b.WriteString("  No prediction\n")
				continue
			}
			seen[f.FightID] = true
			writeAnalysis(&b, a)
		}
	}
	for _, a := range result.Analyses {
		if seen[a.FightID] {
			continue
		}
		seen[a.FightID] = true
		fmt.Fprintf(&b, "\nFight %s\n", a.FightID)
		writeAnalysis(&b, a)
	}
	return b.String()
}

func writeAnalysis(b *strings.Builder, a model.FightAnalysis) {
	fmt.Fprintf(b, "  Pick: %s (%d%% confidence)\n", a.Pick, a.Confidence)
	if a.PathToVictory != "" {
		fmt.Fprintf(b, "  Path to victory: %s\n", a.PathToVictory)
	}
	if len(a.RiskFlags) > 0 {
		fmt.Fprintf(b, "  Risk flags: %s\n", strings.Join(a.RiskFlags, listSep))
	}
	if len(a.Props) > 0 {
		fmt.Fprintf(b, "  Props: %s\n", strings.Join(a.Props, listSep))
	}
}

// CardOrder returns the analyses sorted by the card's fight order. Analyses
// for fights not on the card follow in their original order.
func CardOrder(card *model.Card, result model.CardAnalysis) []model.FightAnalysis {
	out := make([]model.FightAnalysis, 0, len(result.Analyses))
	byID := result.ByFightID()
	used := make(map[string]bool, len(byID))
	if card != nil {
		for _, f := range card.Fights {
			if a, ok := byID[f.FightID]; ok && !used[f.FightID] {
				out = append(out, a)
				used[f.FightID] = true
			}
		}
	}
	for _, a := range result.Analyses {
		if !used[a.FightID] {
			out = append(out, a)
			used[a.FightID] = true
		}
	}
	return out
}
