package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/ieee0824/speechtext/eval"
)

var (
	evalManifest  string
	evalNormalize bool
	evalShowAll   bool
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Score transcriptions against reference text",
	Long: `Transcribe every file listed in a manifest and report the character
and word error rates against the references.

The manifest holds one "path<TAB>reference" pair per line. Relative paths
are resolved against the manifest's directory; blank lines and lines
starting with # are ignored.`,
	Args: cobra.NoArgs,
	RunE: runEval,
}

func init() {
	evalCmd.Flags().StringVar(&evalManifest, "manifest", "", "manifest file (required)")
	evalCmd.Flags().BoolVarP(&evalNormalize, "normalize", "n", false, "resample inputs to the configured rate")
	evalCmd.Flags().BoolVar(&evalShowAll, "show", false, "print each hypothesis next to its reference")
	evalCmd.MarkFlagRequired("manifest")
}

func runEval(cmd *cobra.Command, _ []string) error {
	cfg, err := getConfig()
	if err != nil {
		return err
	}
	entries, err := eval.ReadManifestFile(evalManifest)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("manifest %s has no entries", evalManifest)
	}
	svc, err := loadService(cfg, runtime.GOMAXPROCS(0))
	if err != nil {
		return err
	}

	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.Path
	}
	hyps, err := svc.TranscribeFiles(cmd.Context(), paths, evalNormalize)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var score eval.Score
	for i, e := range entries {
		score.Add(e.Reference, hyps[i])
		if evalShowAll {
			fmt.Fprintf(out, "%s\n  REF: %s\n  HYP: %s\n", e.Path, e.Reference, hyps[i])
		}
	}
	fmt.Fprintf(out, "utterances: %d (exact %d)\n", score.Utterances, score.Exact)
	fmt.Fprintf(out, "CER: %.2f%% (%d/%d)\n", 100*score.CER(), score.Chars.Errors, score.Chars.RefLength)
	fmt.Fprintf(out, "WER: %.2f%% (%d/%d)\n", 100*score.WER(), score.Words.Errors, score.Words.RefLength)
	return nil
}
