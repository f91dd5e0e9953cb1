package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"docresearch/src/core/research"
	"docresearch/src/fsutil"
	"docresearch/src/log"
)

var ingestChunkSize int

var ingestCmd = &cobra.Command{
	Use:   "ingest <path>...",
	Short: "Ingest local files or directories into the vector store",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().IntVar(&ingestChunkSize, "chunk-size", 0, "maximum chunk length (defaults to chunking.size)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := buildApp(ctx, roleCLI)
	if err != nil {
		return err
	}
	defer a.Close()

	fs := fsutil.NewLocalFileStore(viper.GetString("upload.dir"))
	var paths []string
	for _, arg := range args {
		files, err := fs.ListFiles(arg)
		if err != nil {
			return fmt.Errorf("failed to list %s: %w", arg, err)
		}
		paths = append(paths, files...)
	}

	bar := getProgressBar(len(paths), "ingesting")
	var indexed, chunks int
	var errs []error
	for _, path := range paths {
		n, err := ingestPath(cmd, a.ingest, fs, path)
		if err != nil {
			log.Error(err, "Failed to ingest file", "path", path)
			errs = append(errs, err)
		}
		if n > 0 {
			indexed++
			chunks += n
		}
		_ = bar.Add(1)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nIngested %d of %d files. %d chunks embedded.\n", indexed, len(paths), chunks)
	return errors.Join(errs...)
}

func ingestPath(cmd *cobra.Command, ingest research.Ingestor, fs fsutil.FileStore, path string) (int, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return ingest.IngestFile(cmd.Context(), research.UploadFile{Filename: filepath.Base(path), Data: data}, ingestChunkSize)
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("files"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionClearOnFinish(),
	)
}
