package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/okian/perfreport/internal/domain/schema"
)

func newInspectCmd() *cobra.Command {
	var season string
	cmd := &cobra.Command{
		Use:   "inspect <csv>",
		Short: "Show how a CSV's columns resolve and which charts it yields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := schema.ParseSeason(season)
			if err != nil {
				return err
			}
			l, err := load(args[0], s)
			if err != nil {
				return err
			}
			return printInspection(cmd.OutOrStdout(), l)
		},
	}
	cmd.Flags().StringVar(&season, "season", string(schema.SeasonOff), "season: off or in")
	return cmd
}

func printInspection(out io.Writer, l *loaded) error {
	t, av, res := l.table, l.avail, l.result
	fmt.Fprintf(out, "File:     %s (%s, %s athletes, %d columns)\n",
		t.Filename, humanize.Bytes(uint64(t.Stats.Bytes)), humanize.Comma(int64(len(t.Rows))), len(t.Headers))
	fmt.Fprintf(out, "Season:   %s\n\n", res.Season.Label())

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COLUMN\tMETRIC\tMATCH\tAVAILABLE")
	for _, b := range av.Bindings {
		match := "partial"
		if b.Exact {
			match = "exact"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", b.Header, b.Key, match, av.Available(b.Key))
	}
	for _, h := range av.Unrecognized {
		fmt.Fprintf(tw, "%s\t-\tunrecognized\t-\n", h)
	}
	for _, h := range av.Duplicates {
		fmt.Fprintf(tw, "%s\t-\tduplicate\t-\n", h)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	titles := make([]string, 0, len(res.Charts))
	for _, c := range res.Charts {
		titles = append(titles, c.Title)
	}
	fmt.Fprintf(out, "\nCharts:   %s\n", orNone(titles))
	sections := make([]string, 0, len(res.Sections))
	for _, s := range res.Sections {
		sections = append(sections, string(s))
	}
	fmt.Fprintf(out, "Sections: %s\n", orNone(sections))

	if n := t.Stats.SanitizedTotal(); n > 0 || t.Stats.Truncated > 0 {
		fmt.Fprintf(out, "Sanitized: %d cells neutralized, %d truncated\n", n, t.Stats.Truncated)
	}
	return nil
}

func orNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}
