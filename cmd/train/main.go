package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"digitmix/dataset"
	"digitmix/db"
	"digitmix/logging"
	"digitmix/mixture"
	"digitmix/pipeline"
)

func main() {
	dataPath := flag.String("data", "", "training data container file")
	xKey := flag.String("xkey", dataset.KeyXTrain, "features entry key")
	yKey := flag.String("ykey", dataset.KeyYTrain, "labels entry key")
	modelPath := flag.String("model", "./models/digits.bundle", "bundle output path")
	dims := flag.Int("dims", 50, "reduced feature dimensions")
	kMin := flag.Int("kmin", 10, "minimum mixture components")
	kMax := flag.Int("kmax", 119, "maximum mixture components")
	familyList := flag.String("families", "spherical,tied,diag,full", "covariance families to search")
	maxIter := flag.Int("max_iter", 100, "EM iteration cap")
	seed := flag.Uint64("seed", 1, "random seed")
	augment := flag.Bool("augment", true, "append cluster id as a feature")
	dbPath := flag.String("db", "", "optional run log database")
	logLevel := flag.String("log_level", "info", "log level")
	flag.Parse()

	if *dataPath == "" {
		log.Fatal("data is required")
	}
	if err := logging.Init(*logLevel, ""); err != nil {
		log.Fatalf("failed to initialize logging: %v", err)
	}
	defer logging.Sync()
	logger := logging.L()

	var families []mixture.Family
	for _, name := range strings.Split(*familyList, ",") {
		family, err := mixture.ParseFamily(strings.TrimSpace(name))
		if err != nil {
			logger.Fatalf("%v", err)
		}
		families = append(families, family)
	}

	x, y, err := dataset.LoadPair(*dataPath, *xKey, *yKey)
	if err != nil {
		logger.Fatalf("failed to load training data: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(*modelPath), 0o755); err != nil {
		logger.Fatalf("failed to create model dir: %v", err)
	}

	result, err := pipeline.Train(pipeline.TrainConfig{
		ReducedDims:    *dims,
		Components:     [2]int{*kMin, *kMax},
		Families:       families,
		EMMaxIter:      *maxIter,
		Seed:           *seed,
		AugmentCluster: *augment,
		ModelPath:      *modelPath,
	}, x, y)
	if err != nil {
		logger.Fatalf("training failed: %v", err)
	}

	if *dbPath != "" {
		runLog, err := db.Open(*dbPath)
		if err != nil {
			logger.Fatalf("failed to open run log: %v", err)
		}
		defer runLog.Close()
		if err := runLog.Record(db.TrainingRun{
			ModelPath:  *modelPath,
			Components: result.Bundle.Mixture.K,
			Family:     result.Bundle.Mixture.Family.String(),
			BIC:        result.Bundle.Mixture.BIC,
			Rows:       result.Rows,
			Duration:   result.Duration,
			CreatedAt:  time.Now(),
		}); err != nil {
			logger.Errorf("failed to record run: %v", err)
		}
	}

	fmt.Printf("model saved to %s (k=%d, family=%s)\n",
		*modelPath, result.Bundle.Mixture.K, result.Bundle.Mixture.Family)
}
