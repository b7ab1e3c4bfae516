package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	transcribeNormalize bool
	transcribeDetail    bool
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <file>...",
	Short: "Transcribe audio files",
	Long: `Transcribe audio files in one batch and print one line per file, in
argument order. Any file that fails to decode fails the whole batch.

With --detail each line is followed by the emitted symbols and the
time steps they span.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTranscribe,
}

func init() {
	transcribeCmd.Flags().BoolVarP(&transcribeNormalize, "normalize", "n", false, "resample inputs to the configured rate before featurizing")
	transcribeCmd.Flags().BoolVar(&transcribeDetail, "detail", false, "print per-symbol timing")
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	cfg, err := getConfig()
	if err != nil {
		return err
	}
	svc, err := loadService(cfg, runtime.GOMAXPROCS(0))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !transcribeDetail {
		texts, err := svc.TranscribeFiles(cmd.Context(), args, transcribeNormalize)
		if err != nil {
			return err
		}
		for _, t := range texts {
			fmt.Fprintln(out, t)
		}
		return nil
	}

	results, err := svc.TranscribeFilesDetailed(cmd.Context(), args, transcribeNormalize)
	if err != nil {
		return err
	}
	for i, r := range results {
		fmt.Fprintf(out, "%s\t%s\n", args[i], r.Text)
		for _, s := range r.Symbols {
			fmt.Fprintf(out, "  [%d-%d] %q %.3f\n", s.StartStep, s.EndStep, s.Text, s.Prob)
		}
	}
	return nil
}
