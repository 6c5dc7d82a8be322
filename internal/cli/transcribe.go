package cli

import (
	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/cliprelay/internal/pipeline"
)

func NewTranscribeCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "transcribe",
		Short: "Transcribe new clips as they appear",
		Long:  "Watch the audio directory and write a transcript for each new clip. Requires GROQ_API_KEY.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd.Context(), deps, pipeline.Stages{Transcribe: true})
		},
	}
}
