package main

import (
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/staysearch/internal/domain/search/request"
	answeruc "github.com/kailas-cloud/staysearch/internal/usecase/answer"
)

func newAskCmd(flags *rootFlags) *cobra.Command {
	var (
		k         int
		threshold float64
	)
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question and stream it to stdout",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := flags.load(true)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			var thr *float64
			if cmd.Flags().Changed("threshold") {
				thr = &threshold
			} else {
				thr = cfg.Retrieval.Threshold
			}
			if !cmd.Flags().Changed("k") {
				k = cfg.Retrieval.TopK
			}
			req, err := request.New(strings.Join(args, " "), k, thr, nil)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			sink := &writerSink{out: cmd.OutOrStdout(), status: cmd.ErrOrStderr()}
			res := a.answers.Answer(ctx, req, sink)
			fmt.Fprintln(sink.out)
			printSources(cmd.OutOrStdout(), res.Listings)
			fmt.Fprintf(cmd.ErrOrStderr(), "query_id=%s kind=%s filters=%s\n", res.QueryID, res.Kind, res.Filters)
			return nil
		},
	}
	cmd.Flags().IntVar(&k, "k", 0, "number of listings to ground the answer on")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "minimum cosine similarity, exclusive")
	return cmd
}

// writerSink streams tokens to out and progress lines to status.
type writerSink struct {
	out    io.Writer
	status io.Writer
}

func (s *writerSink) Transition(st answeruc.State) {
	if msg := st.Message(); msg != "" {
		fmt.Fprintln(s.status, msg)
	}
}

func (s *writerSink) Token(text string) error {
	_, err := io.WriteString(s.out, text)
	return err
}

func printSources(w io.Writer, listings []answeruc.ListingSummary) {
	if len(listings) == 0 {
		return
	}
	fmt.Fprintln(w, "\nSources:")
	for _, l := range listings {
		fmt.Fprintf(w, "  - %s (%s, %s) %s\n", l.Name, l.Neighbourhood, l.PriceDisplay, l.URL)
	}
}
