package cli

import (
	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/cliprelay/internal/pipeline"
)

func NewTranslateCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "translate <language>",
		Short: "Translate new transcripts into a language",
		Long: "Watch the transcript directory and keep a rolling translation into <language>.\n" +
			"Requires OPENAI_API_KEY.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := setLanguage(deps, args[0]); err != nil {
				return err
			}
			return runPipeline(cmd.Context(), deps, pipeline.Stages{Translate: true})
		},
	}
}
