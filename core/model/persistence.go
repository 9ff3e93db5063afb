package model

import (
	"encoding/gob"
	"io"
	"os"
	"path/filepath"

	"github.com/YuminosukeSato/churnscope/pkg/errors"
)

// SaveModel gob-encodes model into filename, creating parent directories.
// The file is written to a temporary name first and renamed, so a failed run
// never leaves a truncated model behind.
//
//	forest := ensemble.NewRandomForestClassifier()
//	// ... fit ...
//	err := model.SaveModel(forest, "./models/rfc_model.gob")
func SaveModel(model interface{}, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return errors.Wrapf(err, "create model directory for %s", filename)
	}

	tmp, err := os.CreateTemp(filepath.Dir(filename), filepath.Base(filename)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "failed to create file")
	}
	defer os.Remove(tmp.Name())

	if err := SaveModelToWriter(model, tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to close model file")
	}
	if err := os.Rename(tmp.Name(), filename); err != nil {
		return errors.Wrapf(err, "failed to move model into %s", filename)
	}
	return nil
}

// LoadModel decodes a model previously written by SaveModel into model (a pointer).
func LoadModel(model interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.Wrap(err, "failed to open file")
	}
	defer file.Close()

	return LoadModelFromReader(model, file)
}

// SaveModelToWriter gob-encodes model into w.
func SaveModelToWriter(model interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(model); err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	return nil
}

// LoadModelFromReader decodes a gob-encoded model from r.
func LoadModelFromReader(model interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(model); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}
