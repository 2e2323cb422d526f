package main

import (
	"flag"
	"log"
	"os"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"digitmix/bundle"
	"digitmix/dataset"
	"digitmix/logging"
	"digitmix/pipeline"
)

func main() {
	dataPath := flag.String("data", "", "evaluation data container file")
	xKey := flag.String("xkey", dataset.KeyXTest, "features entry key")
	yKey := flag.String("ykey", dataset.KeyYTest, "labels entry key")
	modelPath := flag.String("model", "./models/digits.bundle", "bundle path")
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

	store, err := bundle.NewStore(0)
	if err != nil {
		logger.Fatalf("failed to create bundle store: %v", err)
	}
	defer store.Close()
	fitted, err := store.Load(*modelPath)
	if err != nil {
		logger.Fatalf("failed to load bundle: %v", err)
	}

	x, y, err := dataset.LoadPair(*dataPath, *xKey, *yKey)
	if err != nil {
		logger.Fatalf("failed to load evaluation data: %v", err)
	}
	oneHot, logProbs, err := pipeline.NewPredictor(fitted).PredictBatch(x)
	if err != nil {
		logger.Fatalf("prediction failed: %v", err)
	}
	metrics, err := pipeline.Score(y, oneHot, logProbs)
	if err != nil {
		logger.Fatalf("evaluation failed: %v", err)
	}

	p := message.NewPrinter(language.English)
	p.Printf("model:               %s (k=%d, family=%s)\n",
		*modelPath, fitted.Mixture.K, fitted.Mixture.Family)
	p.Printf("samples:             %d\n", metrics.Rows)
	p.Printf("accuracy:            %.4f\n", metrics.Accuracy)
	p.Printf("mean log-likelihood: %.4f (over %d defined rows)\n",
		metrics.MeanLogLikelihood, metrics.DefinedRows)

	if metrics.DefinedRows == 0 {
		os.Exit(1)
	}
}
