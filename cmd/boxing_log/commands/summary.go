// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/janpfeifer/must"
	"github.com/spf13/cobra"
	"github.com/xy548/oneflow/internal/plan"
	"github.com/xy548/oneflow/pkg/core/boxing"
	"github.com/xy548/oneflow/pkg/core/placement"
	"github.com/xy548/oneflow/pkg/support/xslices"
)

var summaryRecords bool

var summaryCmd = &cobra.Command{
	Use:   "summary PLAN_FILE",
	Short: "Summarize a boxing plan",
	Long: `Display the placements of a boxing plan, the number of records and bytes per builder and,
with --records, the log line of each record.`,
	Args: cobra.ExactArgs(1),
	RunE: runSummary,
}

func init() {
	summaryCmd.Flags().BoolVar(&summaryRecords, "records", false, "Also list every record")
	rootCmd.AddCommand(summaryCmd)
}

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)

	oddRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFF")).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#999")).
			PaddingLeft(1).PaddingRight(1)

	titleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 1, 4)
)

func newPlainTable(withHeader bool) *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			if withHeader && row == lgtable.HeaderRow {
				return headerRowStyle
			}
			if row%2 == 0 {
				s = evenRowStyle
			} else {
				s = oddRowStyle
			}
			if col == 0 {
				s = s.Align(lipgloss.Right)
			} else {
				s = s.Align(lipgloss.Left)
			}
			return
		})
}

type builderStats struct {
	numRecords int
	numBytes   uint64
}

func runSummary(cmd *cobra.Command, args []string) error {
	p, err := plan.Load(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	records := make([]*boxing.Record, p.NumRecords())
	stats := make(map[string]*builderStats)
	var totalBytes uint64
	for i := range records {
		r, err := p.Record(i)
		if err != nil {
			return err
		}
		records[i] = r
		s, found := stats[r.BuilderName]
		if !found {
			s = &builderStats{}
			stats[r.BuilderName] = s
		}
		s.numRecords++
		s.numBytes += uint64(r.BlobDesc.Memory())
		totalBytes += uint64(r.BlobDesc.Memory())
	}

	_, _ = fmt.Fprintln(out, titleStyle.Render("Summary"))
	table := newPlainTable(false)
	table.Row("plan", args[0])
	table.Row("# placements", humanize.Comma(int64(len(p.Placements))))
	table.Row("# records", humanize.Comma(int64(len(records))))
	table.Row("# bytes", humanize.Bytes(totalBytes))
	_, _ = fmt.Fprintln(out, table.Render())

	_, _ = fmt.Fprintln(out, titleStyle.Render("Placements"))
	table = newPlainTable(true)
	table.Headers("Name", "Placement", "# machines", "# devices", "Mesh")
	for _, name := range xslices.SortedKeys(p.Placements) {
		group := p.Placement(name)
		table.Row(name, placement.Format(group),
			humanize.Comma(int64(group.NumMachines())),
			humanize.Comma(int64(group.NumDevices())),
			meshDescription(group))
	}
	_, _ = fmt.Fprintln(out, table.Render())

	_, _ = fmt.Fprintln(out, titleStyle.Render("Builders"))
	table = newPlainTable(true)
	table.Headers("Builder", "# records", "# bytes")
	for _, builder := range xslices.SortedKeys(stats) {
		s := stats[builder]
		table.Row(builder, humanize.Comma(int64(s.numRecords)), humanize.Bytes(s.numBytes))
	}
	_, _ = fmt.Fprintln(out, table.Render())

	if summaryRecords {
		_, _ = fmt.Fprintln(out, titleStyle.Render("Records"))
		_, _ = fmt.Fprint(out, boxing.Header)
		for _, r := range records {
			_, _ = fmt.Fprint(out, boxing.FormatRecord(r))
		}
	}
	return nil
}

// meshDescription returns the mesh axes sizes, or "-" if the group is not a mesh.
func meshDescription(group *placement.Group) string {
	mesh, err := group.Mesh()
	if err != nil {
		return "-"
	}
	return strings.Join(xslices.Map(mesh.AxesNames(), func(name string) string {
		return fmt.Sprintf("%s=%d", name, must.M1(mesh.AxisSize(name)))
	}), " ")
}
