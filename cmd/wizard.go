package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/fightcard/internal/export"
	"github.com/sells-group/fightcard/internal/wizard"
)

var wizardPublish bool

var wizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Enter a fight card interactively and analyze it",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		card, err := wizard.Run(cmd.InOrStdin(), cmd.OutOrStdout(), wizard.Options{Configured: cfg.Credentials()})
		if err != nil {
			return err
		}

		env, err := initEnv(cfg, wizardPublish)
		if err != nil {
			return err
		}

		return analyzeAndReport(ctx, env, card, export.FormatText, cmd.OutOrStdout())
	},
}

func init() {
	wizardCmd.Flags().BoolVar(&wizardPublish, "publish", false, "post the text summary to the configured Telegram chat")
	rootCmd.AddCommand(wizardCmd)
}
