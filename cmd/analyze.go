package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/fightcard/internal/export"
	"github.com/sells-group/fightcard/internal/model"
)

var (
	analyzeCardPath  string
	analyzeFormat    string
	analyzeOut       string
	analyzeWebSearch bool
	analyzePublish   bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a fight card file",
	Long:  "Reads a card from a JSON or YAML file, runs the full pipeline in-process and writes the result.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		format, err := export.ParseFormat(analyzeFormat)
		if err != nil {
			return err
		}

		card, err := loadCard(analyzeCardPath)
		if err != nil {
			return err
		}
		if analyzeWebSearch {
			card.UseWebSearch = true
		}

		env, err := initEnv(cfg, analyzePublish)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if analyzeOut != "" {
			f, err := os.Create(analyzeOut)
			if err != nil {
				return eris.Wrapf(err, "create %s", analyzeOut)
			}
			defer f.Close() //nolint:errcheck
			w = f
		}

		return analyzeAndReport(ctx, env, card, format, w)
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeCardPath, "card", "", "path to a card file (.json, .yaml or .yml)")
	analyzeCmd.Flags().StringVar(&analyzeFormat, "format", "text", "output format: json, csv or text")
	analyzeCmd.Flags().StringVar(&analyzeOut, "out", "", "write the result to this file instead of stdout")
	analyzeCmd.Flags().BoolVar(&analyzeWebSearch, "web-search", false, "add recent web search results to the news analyst")
	analyzeCmd.Flags().BoolVar(&analyzePublish, "publish", false, "post the text summary to the configured Telegram chat")
	_ = analyzeCmd.MarkFlagRequired("card")
	rootCmd.AddCommand(analyzeCmd)
}

func loadCard(path string) (*model.Card, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read card %s", path)
	}
	return model.ParseCard(path, data)
}

// analyzeAndReport runs card, writes it in format to w and publishes the
// text summary when env has a Telegram sink.
func analyzeAndReport(ctx context.Context, env *appEnv, card *model.Card, format export.Format, w io.Writer) error {
	run, err := env.Pipeline.Run(ctx, card)
	if err != nil {
		return err
	}

	if degraded := run.Degraded(); len(degraded) > 0 {
		zap.L().Warn("analysis degraded",
			zap.String("run_id", run.ID.String()),
			zap.String("stages", roleList(degraded)),
		)
	}

	if err := export.Write(w, format, card, run.Analysis); err != nil {
		return err
	}

	if env.Telegram != nil {
		if err := env.Telegram.Publish(ctx, export.Summary(card, run.Analysis)); err != nil {
			return err
		}
	}
	return nil
}
