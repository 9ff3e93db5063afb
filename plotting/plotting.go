// Package plotting builds the EDA and result charts with gonum/plot.
package plotting

import (
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/font"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/churnscope/pkg/errors"
)

// Default figure sizes.
var (
	Wide   = Size{W: 20 * vg.Centimeter, H: 10 * vg.Centimeter}
	Square = Size{W: 20 * vg.Centimeter, H: 20 * vg.Centimeter}
)

// Size is a figure size.
type Size struct {
	W, H vg.Length
}

// Save writes p to path, creating the parent directory. The format follows the
// file extension.
func Save(p *plot.Plot, size Size, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create directory for %s", path)
	}
	if err := p.Save(size.W, size.H, path); err != nil {
		return errors.Wrapf(err, "save plot %s", path)
	}
	return nil
}

// Histogram plots values in bins. With density set the bar areas sum to one.
func Histogram(values []float64, bins int, density bool, title, xLabel string) (*plot.Plot, error) {
	if len(values) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "histogram "+title)
	}
	h, err := plotter.NewHist(plotter.Values(values), bins)
	if err != nil {
		return nil, errors.Wrapf(err, "histogram %s", title)
	}
	if density {
		h.Normalize(1)
	}
	h.FillColor = plotutil.Color(0)

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = "count"
	if density {
		p.Y.Label.Text = "density"
	}
	p.Add(h)
	return p, nil
}

// AddKDE overlays a Gaussian kernel density estimate of values on p, using
// Scott's rule for the bandwidth.
func AddKDE(p *plot.Plot, values []float64) {
	n := float64(len(values))
	if n < 2 {
		return
	}
	bw := 1.06 * stat.StdDev(values, nil) * math.Pow(n, -0.2)
	if bw <= 0 {
		return
	}
	norm := 1 / (n * bw * math.Sqrt(2*math.Pi))
	kde := plotter.NewFunction(func(x float64) float64 {
		var sum float64
		for _, v := range values {
			u := (x - v) / bw
			sum += math.Exp(-0.5 * u * u)
		}
		return sum * norm
	})
	kde.Color = plotutil.Color(1)
	kde.Width = vg.Points(2)
	kde.Samples = 200
	p.Add(kde)
	p.Legend.Add("kde", kde)
}

// BarChart plots one bar per label.
func BarChart(labels []string, values []float64, title, yLabel string) (*plot.Plot, error) {
	if len(labels) != len(values) {
		return nil, errors.NewDimensionError("BarChart", len(labels), len(values), 0)
	}
	bars, err := plotter.NewBarChart(plotter.Values(values), vg.Points(30))
	if err != nil {
		return nil, errors.Wrapf(err, "bar chart %s", title)
	}
	bars.Color = plotutil.Color(0)
	bars.LineStyle.Width = 0

	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = yLabel
	p.Add(bars)
	p.NominalX(labels...)
	return p, nil
}

// Series is a named polyline.
type Series struct {
	Name   string
	Points plotter.XYs
}

// Lines plots every series with its own colour and a legend entry.
func Lines(title, xLabel, yLabel string, series ...Series) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.Legend.Top = false
	p.Legend.Left = false

	args := make([]interface{}, 0, 2*len(series))
	for _, s := range series {
		args = append(args, s.Name, s.Points)
	}
	if err := plotutil.AddLines(p, args...); err != nil {
		return nil, errors.Wrapf(err, "lines %s", title)
	}
	return p, nil
}

// Diagonal adds the dashed y = x reference line used on ROC plots.
func Diagonal(p *plot.Plot) error {
	l, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, {X: 1, Y: 1}})
	if err != nil {
		return errors.Wrap(err, "diagonal")
	}
	l.Color = color.Gray{Y: 128}
	l.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	p.Add(l)
	return nil
}

// correlationGrid adapts a symmetric matrix to plotter.GridXYZ. Row 0 is drawn
// at the top so the layout reads like a table.
type correlationGrid struct {
	m *mat.SymDense
}

func (g correlationGrid) Dims() (c, r int)   { n := g.m.SymmetricDim(); return n, n }
func (g correlationGrid) Z(c, r int) float64 { n := g.m.SymmetricDim(); return g.m.At(n-1-r, c) }
func (g correlationGrid) X(c int) float64    { return float64(c) }
func (g correlationGrid) Y(r int) float64    { return float64(r) }

// Heatmap draws a correlation matrix in [-1, 1] with the value annotated in each cell.
func Heatmap(corr *mat.SymDense, labels []string, title string) (*plot.Plot, error) {
	n := corr.SymmetricDim()
	if n != len(labels) {
		return nil, errors.NewDimensionError("Heatmap", n, len(labels), 1)
	}

	hm := plotter.NewHeatMap(correlationGrid{m: corr}, palette.Heat(16, 1))
	hm.Min, hm.Max = -1, 1
	hm.NaN = color.White

	cells := plotter.XYLabels{
		XYs:    make(plotter.XYs, 0, n*n),
		Labels: make([]string, 0, n*n),
	}
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			cells.XYs = append(cells.XYs, plotter.XY{X: float64(c) - 0.3, Y: float64(n-1-r) - 0.1})
			cells.Labels = append(cells.Labels, formatCorr(corr.At(r, c)))
		}
	}
	annot, err := plotter.NewLabels(cells)
	if err != nil {
		return nil, errors.Wrap(err, "heatmap labels")
	}
	for i := range annot.TextStyle {
		annot.TextStyle[i].Font.Size = vg.Points(6)
	}

	reversed := make([]string, n)
	for i, l := range labels {
		reversed[n-1-i] = l
	}

	p := plot.New()
	p.Title.Text = title
	p.Add(hm, annot)
	p.NominalX(labels...)
	p.NominalY(reversed...)
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = -1
	p.X.Tick.Label.YAlign = -1
	return p, nil
}

// TextPanel renders lines of monospaced text on an axis-free canvas, the way a
// report table is shown as an image.
func TextPanel(title string, lines []string) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.HideAxes()
	if len(lines) == 0 {
		return p, nil
	}

	n := len(lines)
	rows := plotter.XYLabels{
		XYs:    make(plotter.XYs, n),
		Labels: make([]string, n),
	}
	for i, line := range lines {
		rows.XYs[i] = plotter.XY{X: 0, Y: float64(n - 1 - i)}
		rows.Labels[i] = line
	}
	labels, err := plotter.NewLabels(rows)
	if err != nil {
		return nil, errors.Wrap(err, "text panel")
	}
	mono := font.Font{Typeface: "Liberation", Variant: "Mono", Size: vg.Points(9)}
	for i := range labels.TextStyle {
		labels.TextStyle[i].Font = mono
	}
	p.Add(labels)
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = -1, float64(n)
	return p, nil
}

func formatCorr(v float64) string {
	if math.IsNaN(v) {
		return "nan"
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}
