package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"docresearch/src/core/research"
)

var (
	askTopK  int
	askModel string
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question over the ingested documents",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().IntVar(&askTopK, "top-k", research.DefaultQueryTopK, "number of chunks to retrieve")
	askCmd.Flags().StringVar(&askModel, "model", "", "LLM model override")
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd.Context(), roleCLI)
	if err != nil {
		return err
	}
	defer a.Close()

	spinner := getSpinner("thinking")
	resp, err := a.query.Query(cmd.Context(), research.QueryRequest{
		Q:     strings.Join(args, " "),
		TopK:  askTopK,
		Model: askModel,
	})
	_ = spinner.Finish()
	if err != nil {
		return err
	}

	printAnswer(cmd.OutOrStdout(), resp)
	return nil
}

// printAnswer writes the answer followed by one citation line per document, sorted by document id.
func printAnswer(w io.Writer, resp *research.QueryResponse) {
	fmt.Fprintln(w, resp.Answer)
	if len(resp.Citations) == 0 {
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, color.New(color.Bold).Sprint("Citations:"))
	docs := make([]string, 0, len(resp.Citations))
	for doc := range resp.Citations {
		docs = append(docs, doc)
	}
	sort.Strings(docs)
	for _, doc := range docs {
		fmt.Fprintf(w, "- %s: %s\n", color.CyanString(doc), strings.Join(resp.Citations[doc], ", "))
	}
}
