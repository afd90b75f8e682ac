package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/fightcard/internal/analysis"
	"github.com/sells-group/fightcard/internal/model"
)

var rolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "Show the resolved model, temperature and top-p for every role",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := roleDefaults(cfg)
		if err != nil {
			return err
		}
		return printRoles(cmd.OutOrStdout(), defaults)
	},
}

func init() {
	rootCmd.AddCommand(rolesCmd)
}

func printRoles(out io.Writer, defaults model.PerRole[analysis.RoleDefault]) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ROLE\tLABEL\tPROVIDER\tMODEL\tTEMPERATURE\tTOP_P\tPROMPT")
	for _, r := range model.AllRoles {
		d := defaults.Get(r)
		prompt := "built-in"
		if d.Prompt != "" {
			prompt = "custom"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\t%.2f\t%s\n",
			r, r.Label(), d.Model.Provider, d.Model.Name, d.Temperature, d.TopP, prompt)
	}
	return w.Flush()
}
