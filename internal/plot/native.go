package plot

import (
	"context"
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	gplot "gonum.org/v1/plot"
	"gonum.org/v1/plot/font"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/signalnine/benchshard/internal/metrics"
)

const (
	CSVFile       = "metrics_selected_multi.csv"
	OverviewFile  = "multiplot_overview.png"
	overviewRows  = 2
	overviewCols  = 4
	figuresParent = "figures"
)

var (
	unsafeMetric     = regexp.MustCompile(`[^a-zA-Z0-9_\-]+`)
	unsafeExperiment = regexp.MustCompile(`[^a-zA-Z0-9_\-\s]+`)
)

// OutputDir is figures/<experiment> when an experiment is named, else outDir.
func OutputDir(outDir, experiment string) string {
	if experiment == "" {
		return outDir
	}
	return filepath.Join(figuresParent, strings.TrimSpace(unsafeExperiment.ReplaceAllString(experiment, "_")))
}

// Native renders the consolidated CSV and PNG charts in-process.
type Native struct {
	ResultsDir     string
	OutDir         string
	Experiment     string
	Filter         metrics.Filter
	LegendFormat   string
	LogX           bool
	OnlyP95        bool
	SkipIndividual bool
	Out            io.Writer
	Logger         *zap.Logger
}

func (n *Native) Plot(ctx context.Context) error {
	out := n.Out
	if out == nil {
		out = io.Discard
	}
	log := n.Logger
	if log == nil {
		log = zap.NewNop()
	}

	rows, err := metrics.LoadRoot(n.ResultsDir, n.Filter)
	if err != nil {
		return err
	}
	rows = metrics.SelectStats(rows, n.OnlyP95)
	format := n.LegendFormat
	if format == "" {
		format = "{platform}-{scenario}"
	}
	metrics.ApplyLabels(rows, format)

	if err := os.MkdirAll(n.OutDir, 0o755); err != nil {
		return fmt.Errorf("creating figures dir: %w", err)
	}
	csvPath := filepath.Join(n.OutDir, CSVFile)
	if err := writeCSVFile(csvPath, rows); err != nil {
		return err
	}
	fmt.Fprintf(out, "[OK] CSV: %s\n", csvPath)

	colors := colorMap(rows)
	byMetric := groupByMetric(rows)

	overviewPath := filepath.Join(n.OutDir, OverviewFile)
	written, err := n.renderOverview(byMetric, colors, overviewPath)
	if err != nil {
		return err
	}
	if written {
		fmt.Fprintf(out, "[OK] Overview: %s\n", overviewPath)
	} else {
		log.Warn("no overview metrics present", zap.String("results", n.ResultsDir))
	}

	if n.SkipIndividual {
		return nil
	}

	names := make([]string, 0, len(byMetric))
	for m := range byMetric {
		names = append(names, m)
	}
	sort.Strings(names)
	paths := make([]string, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, metric := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			mrows := byMetric[metric]
			stat := mrows[0].Stat
			p := n.metricPlot(metric, mrows, colors, true)
			p.Title.Text = chartTitle(n.Experiment, metric, stat)
			path := filepath.Join(n.OutDir, fmt.Sprintf("%s_%s.png",
				unsafeMetric.ReplaceAllString(metric, "_"), strings.ToLower(metrics.StatLabel(stat))))
			if err := p.Save(9.2*vg.Inch, 5.4*vg.Inch, path); err != nil {
				return fmt.Errorf("saving %s: %w", path, err)
			}
			paths[i] = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Fprintf(out, "[OK] Figure: %s\n", p)
	}
	return nil
}

func chartTitle(experiment, metric, stat string) string {
	title := metrics.PrettyTitle(metric) + " - " + metrics.StatLabel(stat)
	if experiment != "" {
		return experiment + " - " + title
	}
	return title
}

// metricPlot draws one line per label, sorted by concurrency, with the last
// value annotated.
func (n *Native) metricPlot(metric string, rows []metrics.Row, colors map[string]color.Color, legend bool) *gplot.Plot {
	p := gplot.New()
	p.X.Label.Text = "Concurrency"
	p.Y.Label.Text = metrics.PrettyTitle(metric)
	p.Add(plotter.NewGrid())

	byLabel := map[string]plotter.XYs{}
	var ticks []gplot.Tick
	seenX := map[int]bool{}
	for _, r := range rows {
		byLabel[r.Label] = append(byLabel[r.Label], plotter.XY{X: float64(r.Concurrency), Y: r.Value})
		if !seenX[r.Concurrency] {
			seenX[r.Concurrency] = true
			ticks = append(ticks, gplot.Tick{Value: float64(r.Concurrency), Label: fmt.Sprint(r.Concurrency)})
		}
	}
	sort.Slice(ticks, func(i, j int) bool { return ticks[i].Value < ticks[j].Value })

	labels := make([]string, 0, len(byLabel))
	for l := range byLabel {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	for _, label := range labels {
		pts := byLabel[label]
		sort.Slice(pts, func(i, j int) bool { return pts[i].X < pts[j].X })
		c := colors[label]

		line, err := plotter.NewLine(pts)
		if err != nil {
			continue
		}
		line.Color = c
		line.Width = vg.Points(2)
		marks, err := plotter.NewScatter(pts)
		if err != nil {
			continue
		}
		marks.GlyphStyle.Color = c
		marks.GlyphStyle.Shape = draw.CircleGlyph{}
		marks.GlyphStyle.Radius = vg.Points(3)
		p.Add(line, marks)

		last := pts[len(pts)-1]
		ann, err := plotter.NewLabels(plotter.XYLabels{
			XYs:    plotter.XYs{last},
			Labels: []string{metrics.HumanFormat(last.Y)},
		})
		if err == nil {
			for i := range ann.TextStyle {
				ann.TextStyle[i].Color = c
			}
			ann.Offset = vg.Point{X: vg.Points(4), Y: vg.Points(4)}
			p.Add(ann)
		}
		if legend {
			p.Legend.Add(label, line, marks)
		}
	}
	p.Legend.Top = true
	p.Legend.Left = true

	if n.LogX && allPositive(ticks) {
		p.X.Scale = gplot.LogScale{}
	}
	p.X.Tick.Marker = gplot.ConstantTicks(ticks)
	return p
}

func (n *Native) renderOverview(byMetric map[string][]metrics.Row, colors map[string]color.Color, path string) (bool, error) {
	var present []string
	for _, m := range metrics.OverviewMetrics {
		if len(byMetric[m]) > 0 {
			present = append(present, m)
		}
	}
	if len(present) == 0 {
		return false, nil
	}

	const width, height = 20 * vg.Inch, 10 * vg.Inch
	img := vgimg.New(width, height)
	dc := draw.New(img)

	title := "Performance Metrics Overview"
	if n.Experiment != "" {
		title = n.Experiment + " - " + title
	}
	titleStyle := text.Style{
		Color:   color.Black,
		Font:    font.From(gplot.DefaultFont, vg.Points(16)),
		XAlign:  draw.XCenter,
		YAlign:  draw.YTop,
		Handler: gplot.DefaultTextHandler,
	}
	dc.FillText(titleStyle, vg.Point{X: width / 2, Y: height - vg.Points(6)}, title)

	tiles := draw.Tiles{
		Rows:      overviewRows,
		Cols:      overviewCols,
		PadTop:    vg.Points(36),
		PadBottom: vg.Points(12),
		PadX:      vg.Points(24),
		PadY:      vg.Points(24),
		PadLeft:   vg.Points(12),
		PadRight:  vg.Points(12),
	}
	grid := make([][]*gplot.Plot, overviewRows)
	for j := range grid {
		grid[j] = make([]*gplot.Plot, overviewCols)
		for i := range grid[j] {
			idx := j*overviewCols + i
			if idx < len(present) {
				metric := present[idx]
				p := n.metricPlot(metric, byMetric[metric], colors, idx == 0)
				p.Title.Text = metrics.PrettyTitle(metric)
				grid[j][i] = p
				continue
			}
			blank := gplot.New()
			blank.HideAxes()
			grid[j][i] = blank
		}
	}
	canvases := gplot.Align(grid, tiles, dc)
	for j := range grid {
		for i := range grid[j] {
			grid[j][i].Draw(canvases[j][i])
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return false, fmt.Errorf("creating %s: %w", path, err)
	}
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(f); err != nil {
		f.Close()
		return false, fmt.Errorf("writing %s: %w", path, err)
	}
	return true, f.Close()
}

func writeCSVFile(path string, rows []metrics.Row) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := metrics.WriteCSV(f, rows); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

func groupByMetric(rows []metrics.Row) map[string][]metrics.Row {
	out := map[string][]metrics.Row{}
	for _, r := range rows {
		out[r.Metric] = append(out[r.Metric], r)
	}
	return out
}

// colorMap assigns a stable color per label so every chart agrees.
func colorMap(rows []metrics.Row) map[string]color.Color {
	set := map[string]bool{}
	for _, r := range rows {
		set[r.Label] = true
	}
	labels := make([]string, 0, len(set))
	for l := range set {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	colors := make(map[string]color.Color, len(labels))
	for i, l := range labels {
		colors[l] = plotutil.Color(i)
	}
	return colors
}

func allPositive(ticks []gplot.Tick) bool {
	for _, t := range ticks {
		if t.Value <= 0 {
			return false
		}
	}
	return len(ticks) > 0
}
