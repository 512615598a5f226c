package report

import (
	"fmt"
	"image/color"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/crash-analysis/internal/kfunction"
	"github.com/banshee-data/crash-analysis/internal/netk"
)

// Series is one line of a K-function chart.
type Series struct {
	Name  string
	Bands []netk.DistanceBand
}

// ChartSeries returns the observed K-function followed by the lower and
// upper envelope of every confidence level, named like the summary rows.
func ChartSeries(r *kfunction.Report) []Series {
	out := []Series{{Name: kfunction.ObservedDescription, Bands: r.Observed.DistanceBands()}}
	for _, env := range r.Envelopes {
		out = append(out,
			Series{Name: kfunction.EnvelopeDescription(env.Confidence, false), Bands: env.Lower},
			Series{Name: kfunction.EnvelopeDescription(env.Confidence, true), Bands: env.Upper},
		)
	}
	return out
}

func title(r *kfunction.Report) string {
	return fmt.Sprintf("Network K-function (%s)", r.Run.AnalysisType.Description())
}

func subtitle(r *kfunction.Report) string {
	return fmt.Sprintf("network=%s permutations=%d bands=%d", r.Run.Network, r.Run.NumPermutations, r.Run.NumBands)
}

// WriteHTML renders an interactive line chart of the run to w.
func WriteHTML(w io.Writer, r *kfunction.Report) error {
	series := ChartSeries(r)

	x := make([]string, len(series[0].Bands))
	for i, b := range series[0].Bands {
		x[i] = strconv.FormatFloat(b.DistanceBand, 'f', -1, 64)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Network K-function", Width: "100%", Height: "640px"}),
		charts.WithTitleOpts(opts.Title{Title: title(r), Subtitle: subtitle(r)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Distance band", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "K", NameLocation: "middle", NameGap: 40}),
	)
	line.SetXAxis(x)
	for _, s := range series {
		data := make([]opts.LineData, len(s.Bands))
		for i, b := range s.Bands {
			data[i] = opts.LineData{Value: b.KFunction}
		}
		line.AddSeries(s.Name, data)
	}

	page := components.NewPage()
	page.AddCharts(line)
	return page.Render(w)
}

var seriesColors = []color.Color{
	color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff},
	color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff},
	color.RGBA{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff},
	color.RGBA{R: 0xff, G: 0x7f, B: 0x0e, A: 0xff},
	color.RGBA{R: 0x94, G: 0x67, B: 0xbd, A: 0xff},
}

// NewPlot builds a static plot of the run. Envelopes are dashed, with both
// bounds of one confidence level sharing a colour.
func NewPlot(r *kfunction.Report) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title(r)
	p.X.Label.Text = "Distance band"
	p.Y.Label.Text = "K"

	for i, s := range ChartSeries(r) {
		pts := make(plotter.XYs, len(s.Bands))
		for j, b := range s.Bands {
			pts[j] = plotter.XY{X: b.DistanceBand, Y: b.KFunction}
		}
		l, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("series %s: %w", s.Name, err)
		}
		colorIdx := (i + 1) / 2
		l.Color = seriesColors[colorIdx%len(seriesColors)]
		l.Width = vg.Points(1)
		if i > 0 {
			l.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		} else {
			l.Width = vg.Points(2)
		}
		p.Add(l)
		p.Legend.Add(s.Name, l)
	}
	p.Legend.Top = true
	p.Legend.Left = true
	p.Legend.XOffs = 10
	p.Legend.YOffs = -10
	return p, nil
}

// WritePNG renders the plot of the run as a PNG of the given size.
func WritePNG(w io.Writer, r *kfunction.Report, width, height vg.Length) error {
	p, err := NewPlot(r)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

// SavePNG writes the plot of the run to path at 10x6 inches.
func SavePNG(path string, r *kfunction.Report) error {
	p, err := NewPlot(r)
	if err != nil {
		return err
	}
	if err := p.Save(10*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
