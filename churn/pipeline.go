package churn

import (
	"context"

	"github.com/YuminosukeSato/churnscope/config"
	"github.com/YuminosukeSato/churnscope/datasets"
	"github.com/YuminosukeSato/churnscope/eda"
	"github.com/YuminosukeSato/churnscope/pkg/errors"
	"github.com/YuminosukeSato/churnscope/pkg/log"
)

// Run executes the whole pipeline without verification: import, EDA,
// feature engineering and training.
func Run(ctx context.Context, cfg *config.Config, logger log.Logger) (*TrainResult, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = log.Nop()
	}

	df, err := datasets.ImportData(cfg.Paths.Data)
	if err != nil {
		return nil, err
	}
	rows, cols := df.Dims()
	logger.Info("data imported", log.PathKey, cfg.Paths.Data, log.SamplesKey, rows, log.FeaturesKey, cols)

	if err := eda.PerformEDA(df, cfg.Paths.EDA, logger); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !datasets.HasColumn(df, cfg.Response) {
		df, err = datasets.AddChurn(df, datasets.AttritionFlag, cfg.Response)
		if err != nil {
			return nil, err
		}
	}
	split, err := PerformFeatureEngineering(df, cfg.Response, FeatureOptions{
		Categories:  cfg.Categories,
		TestSize:    cfg.Split.TestSize,
		RandomState: cfg.Split.RandomState,
	})
	if err != nil {
		return nil, errors.Wrap(err, "feature engineering")
	}
	logger.Info("features engineered", log.OperationKey, log.OperationSplit,
		log.SamplesKey, split.YTrain.Len()+split.YTest.Len(), log.FeaturesKey, len(split.FeatureNames))

	return TrainModels(ctx, split, cfg, logger)
}
