package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ieee0824/speechtext/internal/config"
	"github.com/ieee0824/speechtext/internal/logging"
)

var (
	// Global flags
	cfgFile  string
	envFile  string
	modelDir string
	logLevel string
	verbose  bool

	globalConfig *config.Config
	configErr    error
	baseLogger   = slog.New(slog.DiscardHandler)
	logger       = baseLogger
	logCloser    io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "speechtext",
	Short: "Batch speech-to-text with a CTC acoustic model",
	Long: `speechtext turns audio files into text using a character-level
acoustic model and greedy CTC decoding.

Settings are read from built-in defaults, an optional YAML file (--config),
an optional .env file (--env-file) and SPEECHTEXT_* environment variables.
Command line flags override all of them.

Examples:
  # Serve the HTTP API on the configured address
  speechtext serve --config speechtext.yaml

  # Transcribe two files, resampling to 16 kHz first
  speechtext transcribe --normalize a.wav b.mp3
`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPostRun: func(*cobra.Command, []string) {
		if logCloser != nil {
			logCloser.Close()
		}
	},
}

// Command returns the root cobra command.
func Command() *cobra.Command {
	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file; ignored when missing")
	rootCmd.PersistentFlags().StringVarP(&modelDir, "model-dir", "m", "", "model directory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(transcribeCmd)
	rootCmd.AddCommand(evalCmd)
	rootCmd.AddCommand(reapCmd)
	rootCmd.AddCommand(modelCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	globalConfig, configErr = config.Load(cfgFile, envFile)
	if configErr != nil {
		return
	}

	flags := rootCmd.PersistentFlags()
	if flags.Changed("model-dir") {
		globalConfig.ModelDir = modelDir
	}
	if flags.Changed("log-level") {
		globalConfig.Log.Level = logLevel
	}
	if verbose {
		globalConfig.Log.Level = "debug"
	}
	if configErr = globalConfig.Validate(); configErr != nil {
		return
	}

	l, closer, err := logging.New(globalConfig.Log, os.Stderr)
	if err != nil {
		configErr = err
		return
	}
	baseLogger, logCloser = l, closer
	logger = logging.Component(l, logging.ComponentApp)
}

// getConfig returns the loaded configuration or the error that prevented
// loading it.
func getConfig() (*config.Config, error) {
	if configErr != nil {
		return nil, fmt.Errorf("load config: %w", configErr)
	}
	if globalConfig == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}
	return globalConfig, nil
}
