package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"bond-arena/internal/classify"
	"bond-arena/internal/game"
)

func newIdentifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identify <formula>",
		Short: "Name a molecule from its formula",
		Long: `Asks the configured classifier to name a formula such as H2O or CH4.

With ANTHROPIC_API_KEY set the Anthropic API is used; otherwise, or when the
call fails, the built-in table answers.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			comp, err := game.ParseFormula(args[0])
			if err != nil {
				return err
			}
			appCfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			offline, _ := cmd.Flags().GetBool("offline")
			var classifier classify.Classifier = classify.NewFallbackClassifier()
			if !offline {
				classifier = classify.New(appCfg.Classifier)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), appCfg.Classifier.Timeout)
			defer cancel()

			id, err := classifier.Identify(ctx, comp)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "classifier failed, using built-in table: %v\n", err)
				id, _ = classify.NewFallbackClassifier().Identify(ctx, comp)
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), id)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n%s\n(source: %s)\n", id.Formula, id.Name, id.Fact, id.Source)
			return nil
		},
	}
	cmd.Flags().Bool("offline", false, "Only use the built-in table")
	return cmd
}
