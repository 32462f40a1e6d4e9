package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"crucible/internal/checkpoint"
	"crucible/internal/dataset"
	"crucible/internal/orchestrator"
	"crucible/internal/runstate"
)

func newStyledTable() table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	return tw
}

func renderRunListTable(runs []*checkpoint.RunInfo) string {
	tw := newStyledTable()
	tw.AppendHeader(table.Row{"Task", "Status", "Round", "Targets", "Updated"})
	for _, run := range runs {
		tw.AppendRow(table.Row{
			run.TaskID,
			run.Status,
			fmt.Sprintf("%d/%d", run.LastRound, run.MaxIterations),
			strings.Join(run.Targets, ", "),
			run.UpdatedAt.Local().Format(time.RFC3339),
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

// renderSampleTable shows the latest recorded value per target for every
// sample a task has touched. Samples with no recorded value for a target
// show a dash, which covers both failed rounds and never-attempted targets.
func renderSampleTable(state *runstate.State, colorize bool) string {
	tw := newStyledTable()
	header := table.Row{"Sample", "Status"}
	configs := []table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	}
	for i, target := range state.Targets {
		header = append(header, target)
		configs = append(configs, table.ColumnConfig{
			Number: i + 3, Align: text.AlignRight, AlignHeader: text.AlignLeft,
		})
	}
	tw.AppendHeader(header)

	for _, sample := range state.TouchedSamples() {
		row := table.Row{sample, colorizeSampleStatus(state.Status(sample), colorize)}
		series := state.Series(sample)
		for _, target := range state.Targets {
			values := series[target]
			if len(values) == 0 {
				row = append(row, "-")
				continue
			}
			row = append(row, dataset.FormatValue(values[len(values)-1]))
		}
		tw.AppendRow(row)
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

func renderSummaryTable(summary *orchestrator.Summary) string {
	tw := newStyledTable()
	tw.AppendHeader(table.Row{"Task", "Rounds", "Samples", "Converged", "Failed", "Pending"})
	tw.AppendRow(table.Row{
		summary.TaskID,
		summary.Rounds,
		summary.Total,
		summary.Converged,
		summary.Failed,
		summary.NotConverged,
	})
	configs := make([]table.ColumnConfig, 0, 5)
	for col := 2; col <= 6; col++ {
		configs = append(configs, table.ColumnConfig{
			Number: col, Align: text.AlignRight, AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}
