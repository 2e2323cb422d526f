package main

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"digitmix/bundle"
	"digitmix/dataset"
	"digitmix/db"
	"digitmix/logging"
	"digitmix/mixture"
	"digitmix/pipeline"
)

type Config struct {
	Data struct {
		Train string `yaml:"train"`
		Test  string `yaml:"test"`
	} `yaml:"data"`
	Model struct {
		Path string `yaml:"path"`
	} `yaml:"model"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Log struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"log"`
	Pipeline struct {
		ReducedDims    int      `yaml:"reduced_dims"`
		ComponentsMin  int      `yaml:"components_min"`
		ComponentsMax  int      `yaml:"components_max"`
		Families       []string `yaml:"families"`
		EMMaxIter      int      `yaml:"em_max_iter"`
		EMTol          float64  `yaml:"em_tol"`
		RegCovar       float64  `yaml:"reg_covar"`
		Seed           uint64   `yaml:"seed"`
		AugmentCluster bool     `yaml:"augment_cluster"`
	} `yaml:"pipeline"`
}

func main() {
	config, err := loadConfig("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := logging.Init(config.Log.Level, config.Log.File); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.Sync()
	logger := logging.L()

	runLog, err := db.Open(config.Database.Path)
	if err != nil {
		logger.Fatalf("Failed to open run log: %v", err)
	}
	defer runLog.Close()

	families := make([]mixture.Family, 0, len(config.Pipeline.Families))
	for _, name := range config.Pipeline.Families {
		family, err := mixture.ParseFamily(name)
		if err != nil {
			logger.Fatalf("Bad config: %v", err)
		}
		families = append(families, family)
	}

	// Train phase: reduce -> select mixture -> classify -> store.
	xTrain, yTrain, err := dataset.LoadPair(config.Data.Train, dataset.KeyXTrain, dataset.KeyYTrain)
	if err != nil {
		logger.Fatalf("Failed to load training data: %v", err)
	}
	result, err := pipeline.Train(pipeline.TrainConfig{
		ReducedDims:    config.Pipeline.ReducedDims,
		Components:     [2]int{config.Pipeline.ComponentsMin, config.Pipeline.ComponentsMax},
		Families:       families,
		EMMaxIter:      config.Pipeline.EMMaxIter,
		EMTol:          config.Pipeline.EMTol,
		RegCovar:       config.Pipeline.RegCovar,
		Seed:           config.Pipeline.Seed,
		AugmentCluster: config.Pipeline.AugmentCluster,
		ModelPath:      config.Model.Path,
	}, xTrain, yTrain)
	if err != nil {
		logger.Fatalf("Training failed: %v", err)
	}

	// Predict phase: store -> reduce -> assign -> classify.
	store, err := bundle.NewStore(0)
	if err != nil {
		logger.Fatalf("Failed to create bundle store: %v", err)
	}
	defer store.Close()
	fitted, err := store.Load(config.Model.Path)
	if err != nil {
		logger.Fatalf("Failed to load bundle: %v", err)
	}

	xTest, yTest, err := dataset.LoadPair(config.Data.Test, dataset.KeyXTest, dataset.KeyYTest)
	if err != nil {
		logger.Fatalf("Failed to load test data: %v", err)
	}
	oneHot, logProbs, err := pipeline.NewPredictor(fitted).PredictBatch(xTest)
	if err != nil {
		logger.Fatalf("Prediction failed: %v", err)
	}
	metrics, err := pipeline.Score(yTest, oneHot, logProbs)
	if err != nil {
		logger.Fatalf("Evaluation failed: %v", err)
	}

	logger.Infow("evaluation complete",
		"accuracy", metrics.Accuracy,
		"mean_log_likelihood", metrics.MeanLogLikelihood,
		"rows", metrics.Rows,
		"defined_rows", metrics.DefinedRows,
	)
	if err := runLog.Record(db.TrainingRun{
		ModelPath:         config.Model.Path,
		Components:        result.Bundle.Mixture.K,
		Family:            result.Bundle.Mixture.Family.String(),
		BIC:               result.Bundle.Mixture.BIC,
		Rows:              result.Rows,
		Accuracy:          metrics.Accuracy,
		MeanLogLikelihood: metrics.MeanLogLikelihood,
		Evaluated:         true,
		Duration:          result.Duration,
		CreatedAt:         time.Now(),
	}); err != nil {
		logger.Errorf("Failed to record run: %v", err)
	}
}

func loadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, err
	}
	return &config, nil
}
