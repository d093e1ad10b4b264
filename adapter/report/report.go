// Package report renders an HTML capture report with charts.
package report

import (
	"io"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"github.com/hollowlog/magpie/business/entity"
)

const (
	chartWidth  = "1200px"
	chartHeight = "600px"
)

// Render writes the protocol distribution and packet length charts of
// one parsed capture
func Render(w io.Writer, meta *entity.CaptureMetadata, profile *entity.CaptureProfile) error {
	page := components.NewPage()
	page.PageTitle = "Capture report: " + meta.Filename

	page.AddCharts(
		protocolChart(profile),
		lengthChart(profile),
	)

	return page.Render(w)
}

func protocolChart(profile *entity.CaptureProfile) *charts.Bar {
	labels := make([]string, 0, len(profile.Protocols))
	for label := range profile.Protocols {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	values := make([]opts.BarData, 0, len(labels))
	for _, label := range labels {
		values = append(values, opts.BarData{Value: profile.Protocols[label]})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:  types.ThemeWesteros,
			Width:  chartWidth,
			Height: chartHeight,
		}),
		charts.WithTitleOpts(opts.Title{
			Title: "Protocol distribution",
		}),
	)
	bar.SetXAxis(labels).AddSeries("packets", values)

	return bar
}

func lengthChart(profile *entity.CaptureProfile) *charts.Line {
	lengths := make([]opts.LineData, 0, len(profile.Lengths))
	for _, l := range profile.Lengths {
		lengths = append(lengths, opts.LineData{Value: l})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:  types.ThemeWesteros,
			Width:  chartWidth,
			Height: chartHeight,
		}),
		charts.WithTitleOpts(opts.Title{
			Title: "Captured packet lengths",
		}),
	)
	line.SetXAxis(profile.Times).
		AddSeries("bytes", lengths).
		SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{Smooth: true}))

	return line
}
