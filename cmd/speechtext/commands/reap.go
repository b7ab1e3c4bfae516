package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ieee0824/speechtext/internal/tempfiles"
)

var (
	reapDir string
	reapTTL time.Duration
)

var reapCmd = &cobra.Command{
	Use:   "reap",
	Short: "Delete expired uploads once",
	Long: `Run a single sweep over the upload directory, deleting files whose
timestamp prefix is older than the lifetime. Files without a timestamp
prefix are left alone.`,
	Args: cobra.NoArgs,
	RunE: runReap,
}

func init() {
	reapCmd.Flags().StringVar(&reapDir, "dir", "", "upload directory (default from config)")
	reapCmd.Flags().DurationVar(&reapTTL, "ttl", 0, "file lifetime (default from config)")
}

func runReap(cmd *cobra.Command, _ []string) error {
	cfg, err := getConfig()
	if err != nil {
		return err
	}
	dir, ttl := cfg.UploadDir, cfg.FileLifetime()
	if cmd.Flags().Changed("dir") {
		dir = reapDir
	}
	if cmd.Flags().Changed("ttl") {
		ttl = reapTTL
	}
	if dir == "" {
		return errors.New("no upload directory: set upload_dir or pass --dir")
	}

	st, err := tempfiles.Sweep(dir, ttl, time.Now())
	if err != nil {
		return err
	}
	logger.Debug("sweep done", "dir", dir, "ttl", ttl)
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %d, failed %d, skipped %d\n", st.Deleted, st.Failed, st.Skipped)
	return nil
}
