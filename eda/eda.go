// Package eda writes the exploratory charts of the bank customer table.
package eda

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"

	"github.com/YuminosukeSato/churnscope/datasets"
	"github.com/YuminosukeSato/churnscope/pkg/errors"
	"github.com/YuminosukeSato/churnscope/pkg/log"
	"github.com/YuminosukeSato/churnscope/plotting"
)

// Image file names written by PerformEDA.
const (
	ChurnDist            = "churn_dist.png"
	CustomerAgeDist      = "customer_age_dist.png"
	DataFrameSummary     = "dataframe.png"
	Heatmap              = "heatmap.png"
	MaritalStatusDist    = "marital_status_dist.png"
	TotalTransactionDist = "total_transaction_dist.png"
)

// Images lists every file PerformEDA produces.
var Images = []string{
	ChurnDist,
	CustomerAgeDist,
	DataFrameSummary,
	Heatmap,
	MaritalStatusDist,
	TotalTransactionDist,
}

// PerformEDA derives the churn label when absent and writes the six EDA images
// into outDir, creating it if needed. A missing source column is reported as a
// *errors.ColumnNotFoundError before any file is written.
func PerformEDA(df dataframe.DataFrame, outDir string, logger log.Logger) (err error) {
	defer errors.Recover(&err, "eda.PerformEDA")
	if logger == nil {
		logger = log.Nop()
	}
	logger = logger.With(log.ComponentKey, "eda", log.OperationKey, log.OperationRender)

	if err := datasets.RequireColumns("PerformEDA", df,
		"Customer_Age", "Marital_Status", "Total_Trans_Ct"); err != nil {
		return err
	}
	if !datasets.HasColumn(df, datasets.ChurnColumn) {
		df, err = datasets.AddChurn(df, datasets.AttritionFlag, datasets.ChurnColumn)
		if err != nil {
			return err
		}
	}

	steps := []struct {
		file string
		size plotting.Size
		draw func() (*plot.Plot, error)
	}{
		{ChurnDist, plotting.Wide, func() (*plot.Plot, error) {
			return plotting.Histogram(df.Col(datasets.ChurnColumn).Float(), 10, false, "Churn", datasets.ChurnColumn)
		}},
		{CustomerAgeDist, plotting.Wide, func() (*plot.Plot, error) {
			return plotting.Histogram(df.Col("Customer_Age").Float(), 10, false, "Customer age", "Customer_Age")
		}},
		{MaritalStatusDist, plotting.Wide, func() (*plot.Plot, error) {
			labels, shares := valueCounts(df.Col("Marital_Status"))
			return plotting.BarChart(labels, shares, "Marital status", "share of customers")
		}},
		{TotalTransactionDist, plotting.Wide, func() (*plot.Plot, error) {
			values := df.Col("Total_Trans_Ct").Float()
			p, err := plotting.Histogram(values, 30, true, "Total transaction count", "Total_Trans_Ct")
			if err != nil {
				return nil, err
			}
			plotting.AddKDE(p, values)
			return p, nil
		}},
		{Heatmap, plotting.Square, func() (*plot.Plot, error) {
			names, corr := correlation(df)
			return plotting.Heatmap(corr, names, "Correlation")
		}},
		{DataFrameSummary, plotting.Size{W: plotting.Wide.W * 1.6, H: plotting.Wide.H * 1.4}, func() (*plot.Plot, error) {
			return plotting.TextPanel("Summary statistics", Describe(df))
		}},
	}

	for _, step := range steps {
		p, err := step.draw()
		if err != nil {
			return errors.Wrapf(err, "render %s", step.file)
		}
		path := filepath.Join(outDir, step.file)
		if err := plotting.Save(p, step.size, path); err != nil {
			return err
		}
		logger.Info("EDA image written", log.PathKey, path)
	}
	return nil
}

// NumericColumns returns the names of the int and float columns of df.
func NumericColumns(df dataframe.DataFrame) []string {
	var names []string
	types := df.Types()
	for i, name := range df.Names() {
		if types[i] == series.Int || types[i] == series.Float {
			names = append(names, name)
		}
	}
	return names
}

// Describe renders count, mean, std, min, quartiles and max of every numeric
// column as aligned text lines, one column per line.
func Describe(df dataframe.DataFrame) []string {
	names := NumericColumns(df)
	if len(names) == 0 {
		return nil
	}
	summary := df.Select(names).Describe()
	records := summary.Records()

	width := 0
	for _, n := range names {
		if len(n) > width {
			width = len(n)
		}
	}

	// records[0] is the header: "column", then one entry per feature;
	// each following row is one statistic.
	var header strings.Builder
	fmt.Fprintf(&header, "%-*s", width, "")
	for _, row := range records[1:] {
		fmt.Fprintf(&header, " %12s", row[0])
	}
	lines := []string{fmt.Sprintf("%-*s %12s", width, "rows", strconv.Itoa(df.Nrow())), header.String()}

	for j, name := range records[0][1:] {
		var line strings.Builder
		fmt.Fprintf(&line, "%-*s", width, name)
		for _, row := range records[1:] {
			cell := row[j+1]
			if v, err := strconv.ParseFloat(cell, 64); err == nil {
				cell = strconv.FormatFloat(v, 'f', 2, 64)
			}
			fmt.Fprintf(&line, " %12s", cell)
		}
		lines = append(lines, line.String())
	}
	return lines
}

// valueCounts returns the distinct values of s sorted by descending frequency
// and their share of the rows.
func valueCounts(s series.Series) ([]string, []float64) {
	counts := make(map[string]int)
	records := s.Records()
	for _, v := range records {
		counts[v]++
	}
	labels := make([]string, 0, len(counts))
	for v := range counts {
		labels = append(labels, v)
	}
	sort.Slice(labels, func(i, j int) bool {
		if counts[labels[i]] != counts[labels[j]] {
			return counts[labels[i]] > counts[labels[j]]
		}
		return labels[i] < labels[j]
	})
	shares := make([]float64, len(labels))
	for i, v := range labels {
		shares[i] = float64(counts[v]) / float64(len(records))
	}
	return labels, shares
}

// correlation computes the Pearson correlation matrix of the numeric columns.
func correlation(df dataframe.DataFrame) ([]string, *mat.SymDense) {
	names := NumericColumns(df)
	X := mat.NewDense(df.Nrow(), len(names), nil)
	for j, name := range names {
		X.SetCol(j, df.Col(name).Float())
	}
	corr := mat.NewSymDense(len(names), nil)
	stat.CorrelationMatrix(corr, X, nil)
	return names, corr
}
