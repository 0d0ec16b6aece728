package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/castn/sourceswitch/internal/core/domain"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search every enabled source for a book",
	Long:  "Probe all enabled sources for a title and print the ranked candidates, best first.",
	Args:  cobra.NoArgs,
	RunE:  runSearch,
}

var (
	searchTitle  string
	searchAuthor string
	searchLimit  int
)

func init() {
	searchCmd.Flags().StringVarP(&searchTitle, "title", "t", "", "Book title (required)")
	searchCmd.Flags().StringVarP(&searchAuthor, "author", "a", "", "Book author")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 20, "Maximum candidates to print (0 for all)")

	if err := searchCmd.MarkFlagRequired("title"); err != nil {
		panic(fmt.Sprintf("failed to mark title flag as required: %v", err))
	}

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ranked, err := a.aggregator.SearchRanked(cmd.Context(), domain.SearchQuery{Title: searchTitle, Author: searchAuthor})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if searchLimit > 0 && len(ranked) > searchLimit {
		ranked = ranked[:searchLimit]
	}
	return printCandidates(cmd.OutOrStdout(), ranked)
}

func printCandidates(out io.Writer, ranked []domain.RankInput) error {
	if len(ranked) == 0 {
		_, err := fmt.Fprintln(out, "no candidates found")
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSOURCE\tWEIGHT\tMATCH\tTITLE\tAUTHOR\tLATEST\tURL")
	for i, in := range ranked {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
			i+1, in.Source.ID, in.Source.Weight, in.Match,
			in.Candidate.Title, in.Candidate.Author, in.Candidate.LatestChapter, in.Candidate.ResultURL)
	}
	return tw.Flush()
}
