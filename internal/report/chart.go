package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/pothole.report/internal/pothole"
)

// echartsAssetsPrefix serves echarts JS from the public CDN.
const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

func histogramValues(r *Report) (plotter.Values, []string) {
	values := make(plotter.Values, 0, len(pothole.Severities))
	names := make([]string, 0, len(pothole.Severities))
	for _, s := range pothole.Severities {
		values = append(values, float64(r.Statistik.Get(s)))
		names = append(names, string(s))
	}
	return values, names
}

func newHistogramPlot(r *Report) (*plot.Plot, error) {
	values, names := histogramValues(r)

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s (%s): %d potholes", r.Street, r.Direction, r.Total)
	p.Y.Label.Text = "count"
	p.Y.Min = 0

	bars, err := plotter.NewBarChart(values, vg.Points(40))
	if err != nil {
		return nil, fmt.Errorf("failed to build bar chart: %w", err)
	}
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalX(names...)
	return p, nil
}

// WriteHistogramPNG renders the severity histogram as a PNG at path.
func WriteHistogramPNG(r *Report, path string) error {
	p, err := newHistogramPlot(r)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create chart dir: %w", err)
		}
	}
	if err := p.Save(5*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

// WriteHistogram renders the severity histogram as an image in the given
// format ("png", "svg", ...) to w.
func WriteHistogram(w io.Writer, r *Report, format string) error {
	p, err := newHistogramPlot(r)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(5*vg.Inch, 4*vg.Inch, format)
	if err != nil {
		return fmt.Errorf("failed to render %s: %w", format, err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// RenderHTML writes an echarts page with the severity histogram and a
// timeline of detections (timestamp vs area) for r.
func RenderHTML(w io.Writer, r *Report) error {
	sum := Summarize(r)
	subtitle := fmt.Sprintf("%s, %s | %.2f s video | %.2f potholes/min | mean area %.0f px²",
		r.City, r.ProcessedAt, r.Duration, r.PerMinute, sum.MeanArea)

	_, names := histogramValues(r)
	barData := make([]opts.BarData, 0, len(names))
	for _, s := range pothole.Severities {
		barData = append(barData, opts.BarData{Value: r.Statistik.Get(s)})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Pothole report " + r.Street, AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("%s (%s)", r.Street, r.Direction), Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(names).AddSeries("potholes", barData)

	points := make(map[pothole.Severity][]opts.ScatterData, len(pothole.Severities))
	for _, p := range r.Potholes {
		points[p.Severity] = append(points[p.Severity], opts.ScatterData{
			Name:  fmt.Sprintf("#%d frame %d", p.ID, p.Frame),
			Value: []interface{}{p.Timestamp, p.Area},
		})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Detections over time"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "t (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: "area (px²)"}),
	)
	for _, s := range pothole.Severities {
		scatter.AddSeries(string(s), points[s], charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))
	}

	page := components.NewPage()
	page.AddCharts(bar, scatter)
	return page.Render(w)
}
