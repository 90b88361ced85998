package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/staysearch/internal/domain/search/filter"
	"github.com/kailas-cloud/staysearch/internal/domain/search/request"
	chiTransport "github.com/kailas-cloud/staysearch/internal/transport/chi"
	answeruc "github.com/kailas-cloud/staysearch/internal/usecase/answer"
)

func newSearchCmd(flags *rootFlags) *cobra.Command {
	var (
		k         int
		threshold float64
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Print the ranked listings retrieved for a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := flags.load(true)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			thr := cfg.Retrieval.Threshold
			if cmd.Flags().Changed("threshold") {
				thr = &threshold
			}
			if !cmd.Flags().Changed("k") {
				k = cfg.Retrieval.TopK
			}
			req, err := request.New(strings.Join(args, " "), k, thr, nil)
			if err != nil {
				return err
			}

			a, err := buildApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			set, pred, err := a.retriever.Retrieve(cmd.Context(), req.Query(), req.TopK(), req.Threshold())
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			rows := answeruc.Summaries(set, a.prices)

			if asJSON {
				return printJSON(cmd.OutOrStdout(), pred, rows)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "filters: %s\n", pred)
			return printTable(cmd.OutOrStdout(), rows)
		},
	}
	cmd.Flags().IntVar(&k, "k", 0, "maximum number of listings")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "minimum cosine similarity, exclusive")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

// printJSON writes the same body as GET /api/v1/search.
func printJSON(w io.Writer, pred filter.Predicate, rows []answeruc.ListingSummary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(chiTransport.SearchResponse{Filters: pred.View(), Results: rows})
}

func printTable(w io.Writer, rows []answeruc.ListingSummary) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "no matching listings")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tSCORE\tID\tNAME\tNEIGHBOURHOOD\tPRICE")
	for i, r := range rows {
		fmt.Fprintf(tw, "%d\t%.4f\t%d\t%s\t%s\t%s\n", i+1, r.Score, r.ID, r.Name, r.Neighbourhood, r.PriceDisplay)
	}
	return tw.Flush()
}
