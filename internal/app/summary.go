package app

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/vk/stacgridgo/internal/dataset"
	"github.com/vk/stacgridgo/internal/parser"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#4ECDC4")).
			MarginBottom(1)

	keyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D")).
			Width(12)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#A8DADC"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFE66D"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4ECDC4")).
			Padding(0, 1)
)

func field(key, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, keyStyle.Render(key), value)
}

// table renders rows as left-aligned columns.
func table(header []string, rows [][]string) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, r := range rows {
		for i, c := range r {
			widths[i] = max(widths[i], lipgloss.Width(c))
		}
	}
	line := func(cells []string, style lipgloss.Style) string {
		parts := make([]string, len(cells))
		for i, c := range cells {
			parts[i] = style.Width(widths[i] + 2).Render(c)
		}
		return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
	}
	out := []string{line(header, headerStyle)}
	plain := lipgloss.NewStyle()
	for _, r := range rows {
		out = append(out, line(r, plain))
	}
	return lipgloss.JoinVertical(lipgloss.Left, out...)
}

func formatNodata(v float64) string {
	if math.IsNaN(v) {
		return "nan"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func timeLabel(ds *dataset.Dataset, i int) string {
	if i < len(ds.Labels) && ds.Labels[i] != "" {
		return ds.Labels[i]
	}
	return ds.Times[i].UTC().Format(time.RFC3339)
}

// renderSummary describes a computed dataset.
func renderSummary(ds *dataset.Dataset) string {
	gb := ds.GeoBox
	res := gb.Resolution()
	var sections []string
	sections = append(sections, titleStyle.Render("Load "+ds.ID))

	grid := []string{
		field("crs", gb.CRS.String()),
		field("shape", fmt.Sprintf("%d x %d (rows x cols)", gb.Height, gb.Width)),
		field("resolution", fmt.Sprintf("%g, %g", res.X, res.Y)),
		field("transform", gb.Transform.String()),
	}
	if n := len(ds.Times); n > 0 {
		grid = append(grid, field("time", fmt.Sprintf("%d steps, %s .. %s", n, timeLabel(ds, 0), timeLabel(ds, n-1))))
	} else {
		grid = append(grid, field("time", "0 steps"))
	}
	sections = append(sections, boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, grid...)))

	total := gb.Width * gb.Height * len(ds.Times)
	var rows [][]string
	for _, name := range ds.Bands {
		arr, _ := ds.Band(name)
		valid := 0
		for t := range ds.Times {
			valid += arr.Valid(t)
		}
		pct := 0.0
		if total > 0 {
			pct = 100 * float64(valid) / float64(total)
		}
		rows = append(rows, []string{name, arr.DataType, formatNodata(arr.Nodata), arr.Unit, strconv.Itoa(valid), fmt.Sprintf("%.1f%%", pct)})
	}
	sections = append(sections, table([]string{"band", "dtype", "nodata", "unit", "valid", "coverage"}, rows))

	if skipped := ds.Skipped(); len(skipped) > 0 {
		lines := []string{warningStyle.Render(fmt.Sprintf("%d skipped assets:", len(skipped)))}
		for _, s := range skipped {
			lines = append(lines, "  "+s.String())
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}
	if len(ds.Degenerate) > 0 {
		lines := []string{warningStyle.Render(fmt.Sprintf("%d footprints approximated:", len(ds.Degenerate)))}
		for _, d := range ds.Degenerate {
			lines = append(lines, "  "+d.Error())
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderMetadata describes parsed items without any pixel I/O.
func renderMetadata(res *parser.Result) string {
	sections := []string{titleStyle.Render(fmt.Sprintf("%d items", len(res.Items)))}
	for _, name := range slices.Sorted(maps.Keys(res.Collections)) {
		md := res.Collections[name]
		var rows [][]string
		for _, k := range md.Keys() {
			b := md.Band(k)
			nd := ""
			if b.Nodata != nil {
				nd = formatNodata(*b.Nodata)
			}
			rows = append(rows, []string{md.CanonicalName(k), k.String(), b.DataType, nd, b.Unit})
		}
		sections = append(sections, headerStyle.Render("collection "+name), table([]string{"name", "band", "dtype", "nodata", "unit"}, rows))
	}
	if len(res.Errors) > 0 {
		lines := []string{warningStyle.Render(fmt.Sprintf("%d items skipped:", len(res.Errors)))}
		for _, err := range res.Errors {
			lines = append(lines, "  "+err.Error())
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}
