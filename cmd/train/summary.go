package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"fault-triage/backend/internal/trainer"
)

func renderSummary(w io.Writer, summary *trainer.Summary, opts trainer.Options) {
	fmt.Fprintf(w, "Models trained (run %s) in %s\n", summary.RunID, summary.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Rows read: %d, dropped: %d, used: %d, vocabulary: %d\n\n",
		summary.RowsRead, summary.RowsDropped, summary.RowsUsed, summary.VocabularySize)

	table := newTable(w, []string{"Target", "Label", "Rows"})
	appendCounts(table, "category", summary.CategoryCounts)
	appendCounts(table, "priority", summary.PriorityCounts)
	table.Render()

	if summary.CategoryAccuracy != nil || summary.PriorityAccuracy != nil {
		fmt.Fprintf(w, "\nHoldout evaluation (%.0f%% of rows)\n", opts.Holdout*100)
		acc := newTable(w, []string{"Target", "Accuracy"})
		acc.Append([]string{"category", formatAccuracy(summary.CategoryAccuracy)})
		acc.Append([]string{"priority", formatAccuracy(summary.PriorityAccuracy)})
		acc.Render()
	}

	fmt.Fprintf(w, "\nArtifacts:\n- %s\n- %s\n", opts.CategoryPath, opts.PriorityPath)
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

func appendCounts(table *tablewriter.Table, target string, counts map[string]int) {
	labels := make([]string, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		table.Append([]string{target, label, strconv.Itoa(counts[label])})
	}
}

func formatAccuracy(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.3f", *v)
}
