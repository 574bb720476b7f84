package main

import (
	"fmt"
	"os"

	"github.com/RyanBlaney/sonido-vibe/classifier"
	clsconfig "github.com/RyanBlaney/sonido-vibe/classifier/config"
	"github.com/RyanBlaney/sonido-vibe/config"
	"github.com/RyanBlaney/sonido-vibe/eventmodel"
	"github.com/RyanBlaney/sonido-vibe/logging"
	"github.com/RyanBlaney/sonido-vibe/recommend"
	"github.com/RyanBlaney/sonido-vibe/transcode"
	"github.com/spf13/cobra"
)

// loadConfig reads the --config flag, loads the configuration and installs
// the global logger
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logging.SetGlobalLogger(cfg.Log.NewLogger(os.Stderr))
	return cfg, nil
}

func newClassifier(cfg *config.Config) *classifier.Classifier {
	clsCfg := clsconfig.DefaultClassifierConfig()
	if cfg.Emotion != nil {
		clsCfg.Emotion = cfg.Emotion
	}

	var models *eventmodel.Handle
	if cfg.EventModel != nil && cfg.EventModel.URL != "" {
		models = eventmodel.NewHandle(eventmodel.HTTPLoader(cfg.EventModel))
	}
	return classifier.NewClassifier(clsCfg, transcode.NewDecoder(cfg.Decoder), models)
}

func newRecommender(cfg *config.Config) (*recommend.Recommender, error) {
	var (
		catalog *recommend.Catalog
		err     error
	)
	if cfg.Catalog.Path != "" {
		catalog, err = recommend.LoadCatalogFile(cfg.Catalog.Path)
	} else {
		catalog, err = recommend.DefaultCatalog()
	}
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	var gen recommend.TextGenerator
	if cfg.GeneratorEnabled() {
		gen = recommend.NewMessagesClient(cfg.Generator)
	} else {
		logging.Warn("No text generator API key configured, using default recommendation messages")
	}
	return recommend.NewRecommender(catalog, gen), nil
}
