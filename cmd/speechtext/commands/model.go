package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ieee0824/speechtext/model"
	"github.com/ieee0824/speechtext/vocab"
)

var (
	modelVocab   string
	modelOut     string
	modelHidden  int
	modelContext int
	modelLayers  int
	modelBN      bool
	modelSeed    int64
)

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Model directory tools",
}

var modelInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a randomly initialised model directory",
	Long: `Write a model directory holding randomly initialised weights and a copy
of the vocabulary. The output is untrained; it exists to exercise the
pipeline end to end and to give training code a starting point.

The feature dimension follows the configured FFT length.`,
	Args: cobra.NoArgs,
	RunE: runModelInit,
}

func init() {
	f := modelInitCmd.Flags()
	f.StringVar(&modelVocab, "vocab", "", "vocabulary file, one symbol per line (required)")
	f.StringVar(&modelOut, "out", "", "output directory (default: configured model dir)")
	f.IntVar(&modelHidden, "hidden", 256, "hidden layer width")
	f.IntVar(&modelContext, "context", 5, "context frames on each side")
	f.IntVar(&modelLayers, "layers", 3, "number of hidden layers")
	f.BoolVar(&modelBN, "batch-norm", false, "add batch normalisation to hidden layers")
	f.Int64Var(&modelSeed, "seed", 1, "random seed")
	modelInitCmd.MarkFlagRequired("vocab")

	modelCmd.AddCommand(modelInitCmd)
}

func runModelInit(cmd *cobra.Command, _ []string) error {
	cfg, err := getConfig()
	if err != nil {
		return err
	}
	out := cfg.ModelDir
	if cmd.Flags().Changed("out") {
		out = modelOut
	}

	v, err := vocab.LoadFile(modelVocab)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(out, 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}

	featureDim := cfg.FeatureConfig().NumBins()
	dnn := model.NewDNN(featureDim, modelHidden, modelContext, modelLayers, v.NumClasses(), modelBN, modelSeed)
	weights := filepath.Join(out, "model.gob")
	if err := dnn.SaveFile(weights); err != nil {
		return err
	}

	f, err := os.Create(filepath.Join(out, model.VocabularyFile))
	if err != nil {
		return fmt.Errorf("create vocabulary: %w", err)
	}
	if err := v.Save(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	logger.Info("model written", "path", weights, "features", featureDim, "classes", v.NumClasses())
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d features, %d classes)\n", out, featureDim, v.NumClasses())
	return nil
}
