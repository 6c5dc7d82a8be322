package cli

import (
	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/cliprelay/internal/pipeline"
)

func NewRecordCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "record",
		Short: "Record alternating clips into the audio directory",
		Long: "Record the input device as back-to-back WAV clips named by their start time.\n" +
			"Press Ctrl+C to stop.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd.Context(), deps, pipeline.Stages{Record: true})
		},
	}
}
