package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"docresearch/src/core/research"
)

var (
	themesQuery  string
	themesTopK   int
	themesOutput string
)

var themesCmd = &cobra.Command{
	Use:   "themes",
	Short: "Identify themes across the ingested documents",
	Args:  cobra.NoArgs,
	RunE:  runThemes,
}

func init() {
	rootCmd.AddCommand(themesCmd)
	themesCmd.Flags().StringVar(&themesQuery, "query", "", "focus the themes on a research question")
	themesCmd.Flags().IntVar(&themesTopK, "top-k", research.DefaultThemesTopK, "number of chunks to sample")
	themesCmd.Flags().StringVarP(&themesOutput, "output", "o", "json", "output format: json or yaml")
}

func runThemes(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd.Context(), roleCLI)
	if err != nil {
		return err
	}
	defer a.Close()

	themes, err := a.themes.Themes(cmd.Context(), research.ThemesRequest{Query: themesQuery, TopK: themesTopK})
	if err != nil {
		themes = research.ThemeErrorObject(err, "Failed to parse AI output")
	}

	out, err := renderThemes(themes, themesOutput)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}

func renderThemes(themes research.Themes, format string) ([]byte, error) {
	switch format {
	case "json":
		out, err := json.MarshalIndent(themes, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(out, '\n'), nil
	case "yaml", "yml":
		return yaml.Marshal(map[string]any(themes))
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}
