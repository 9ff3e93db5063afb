package datasets

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/churnscope/pkg/errors"
)

func TestImportData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "bank_data.csv")
	require.NoError(t, WriteCSV(MakeBankChurn(50, 1), path))

	df, err := ImportData(path)
	require.NoError(t, err)
	assert.Equal(t, 50, df.Nrow())
	assert.Equal(t, 21, df.Ncol())
	assert.True(t, HasColumn(df, AttritionFlag))
	assert.NoError(t, RequireColumns("test", df, DefaultCategories...))
	assert.NoError(t, RequireColumns("test", df, QuantColumns...))
}

func TestImportDataNotFound(t *testing.T) {
	_, err := ImportData(filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestImportDataEmpty(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.csv")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err := ImportData(empty)
	assert.ErrorIs(t, err, errors.ErrEmptyData)

	headerOnly := filepath.Join(dir, "header.csv")
	require.NoError(t, os.WriteFile(headerOnly, []byte("a,b\n"), 0o644))
	_, err = ImportData(headerOnly)
	assert.Error(t, err)
}

func TestAddChurn(t *testing.T) {
	df := MakeBankChurn(200, 3)
	out, err := AddChurn(df, AttritionFlag, ChurnColumn)
	require.NoError(t, err)

	assert.Equal(t, df.Ncol()+1, out.Ncol())
	flags := out.Col(AttritionFlag).Records()
	churn := out.Col(ChurnColumn).Float()
	positives := 0
	for i, flag := range flags {
		if flag == ExistingCustomer {
			assert.Equal(t, 0.0, churn[i])
		} else {
			assert.Equal(t, 1.0, churn[i])
			positives++
		}
	}
	assert.Greater(t, positives, 0)
	assert.Less(t, positives, 200)

	_, err = AddChurn(df, "Status", ChurnColumn)
	var cnf *errors.ColumnNotFoundError
	require.True(t, errors.As(err, &cnf))
	assert.Equal(t, "Status", cnf.Column)
}

func TestMakeBankChurnDeterministic(t *testing.T) {
	a := MakeBankChurn(100, 42)
	b := MakeBankChurn(100, 42)
	assert.Equal(t, a.Records(), b.Records())

	c := MakeBankChurn(100, 43)
	assert.NotEqual(t, a.Records(), c.Records())

	ages := a.Col("Customer_Age").Float()
	for _, v := range ages {
		assert.GreaterOrEqual(t, v, 26.0)
		assert.LessOrEqual(t, v, 73.0)
	}
	limit := a.Col("Credit_Limit").Float()
	open := a.Col("Avg_Open_To_Buy").Float()
	rev := a.Col("Total_Revolving_Bal").Float()
	for i := range limit {
		assert.InDelta(t, limit[i]-rev[i], open[i], 0.011)
	}
}
