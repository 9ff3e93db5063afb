// Package datasets loads, derives and synthesizes the bank customer table.
package datasets

import (
	"os"
	"path/filepath"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/YuminosukeSato/churnscope/pkg/errors"
)

// Column names of the bank churn table.
const (
	ClientNum        = "CLIENTNUM"
	AttritionFlag    = "Attrition_Flag"
	ChurnColumn      = "Churn"
	ExistingCustomer = "Existing Customer"
	AttritedCustomer = "Attrited Customer"
)

// DefaultCategories lists the categorical columns encoded by the pipeline.
var DefaultCategories = []string{
	"Gender",
	"Education_Level",
	"Marital_Status",
	"Income_Category",
	"Card_Category",
}

// QuantColumns lists the numeric columns used as model features.
var QuantColumns = []string{
	"Customer_Age",
	"Dependent_count",
	"Months_on_book",
	"Total_Relationship_Count",
	"Months_Inactive_12_mon",
	"Contacts_Count_12_mon",
	"Credit_Limit",
	"Total_Revolving_Bal",
	"Avg_Open_To_Buy",
	"Total_Amt_Chng_Q4_Q1",
	"Total_Trans_Amt",
	"Total_Trans_Ct",
	"Total_Ct_Chng_Q4_Q1",
	"Avg_Utilization_Ratio",
}

// ImportData reads a CSV file with a header row, detecting column types.
// A missing file yields an error matching fs.ErrNotExist; a file without data
// rows yields errors.ErrEmptyData.
func ImportData(path string) (dataframe.DataFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		return dataframe.DataFrame{}, errors.Wrapf(err, "import data")
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return dataframe.DataFrame{}, errors.Wrapf(err, "stat %s", path)
	}
	if info.Size() == 0 {
		return dataframe.DataFrame{}, errors.Wrapf(errors.ErrEmptyData, "import data %s", path)
	}

	df := dataframe.ReadCSV(f, dataframe.HasHeader(true), dataframe.DetectTypes(true))
	if df.Err != nil {
		return df, errors.Wrapf(df.Err, "parse %s", path)
	}
	if df.Nrow() == 0 || df.Ncol() == 0 {
		return df, errors.Wrapf(errors.ErrEmptyData, "import data %s", path)
	}
	return df, nil
}

// AddChurn returns a copy of df with an integer churnCol derived from flagCol:
// 0 for "Existing Customer", 1 for anything else.
func AddChurn(df dataframe.DataFrame, flagCol, churnCol string) (dataframe.DataFrame, error) {
	if !HasColumn(df, flagCol) {
		return df, errors.NewColumnNotFoundError("AddChurn", flagCol)
	}
	flags := df.Col(flagCol).Records()
	churn := make([]int, len(flags))
	for i, flag := range flags {
		if flag != ExistingCustomer {
			churn[i] = 1
		}
	}
	out := df.Mutate(series.New(churn, series.Int, churnCol))
	if out.Err != nil {
		return df, errors.Wrap(out.Err, "add churn column")
	}
	return out, nil
}

// WriteCSV writes df to path with a header row, creating parent directories.
func WriteCSV(df dataframe.DataFrame, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create directory for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := df.WriteCSV(f); err != nil {
		f.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	return f.Close()
}

// HasColumn reports whether df has a column called name.
func HasColumn(df dataframe.DataFrame, name string) bool {
	for _, n := range df.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// RequireColumns returns a ColumnNotFoundError for the first missing name.
func RequireColumns(op string, df dataframe.DataFrame, names ...string) error {
	for _, name := range names {
		if !HasColumn(df, name) {
			return errors.NewColumnNotFoundError(op, name)
		}
	}
	return nil
}
