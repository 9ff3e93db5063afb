package model

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModel struct {
	State   *StateManager
	Weights []float64
	Bias    float64
}

func TestSaveLoadModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models", "fake.gob")

	m := &fakeModel{State: NewStateManager(), Weights: []float64{0.5, -1.25}, Bias: 3}
	m.State.SetFitted()
	m.State.SetDimensions(2, 10)

	require.NoError(t, SaveModel(m, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	var loaded fakeModel
	require.NoError(t, LoadModel(&loaded, path))
	assert.Equal(t, m.Weights, loaded.Weights)
	assert.Equal(t, m.Bias, loaded.Bias)
	assert.True(t, loaded.State.IsFitted())
	nFeatures, nSamples := loaded.State.GetDimensions()
	assert.Equal(t, 2, nFeatures)
	assert.Equal(t, 10, nSamples)
}

func TestSaveModelOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.gob")

	require.NoError(t, SaveModel(&fakeModel{Bias: 1}, path))
	require.NoError(t, SaveModel(&fakeModel{Bias: 2}, path))

	var loaded fakeModel
	require.NoError(t, LoadModel(&loaded, path))
	assert.Equal(t, 2.0, loaded.Bias)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestLoadModelMissingFile(t *testing.T) {
	var m fakeModel
	err := LoadModel(&m, filepath.Join(t.TempDir(), "missing.gob"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadModelFromReaderCorrupt(t *testing.T) {
	var m fakeModel
	err := LoadModelFromReader(&m, bytes.NewBufferString("not a gob stream"))
	assert.Error(t, err)
}

func TestStateManagerRequireFitted(t *testing.T) {
	s := NewStateManager()
	assert.Error(t, s.RequireFitted("LogisticRegression", "Predict"))
	s.SetFitted()
	s.SetDimensions(3, 5)
	assert.NoError(t, s.RequireFitted("LogisticRegression", "Predict"))
	assert.NoError(t, s.RequireFeatures("Predict", 3))
	assert.Error(t, s.RequireFeatures("Predict", 4))
	s.Reset()
	assert.False(t, s.IsFitted())
}
