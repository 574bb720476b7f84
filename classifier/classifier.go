package classifier

import (
	"context"
	"fmt"

	"github.com/RyanBlaney/sonido-vibe/algorithms/resample"
	"github.com/RyanBlaney/sonido-vibe/classifier/config"
	"github.com/RyanBlaney/sonido-vibe/classifier/extractors"
	"github.com/RyanBlaney/sonido-vibe/eventmodel"
	"github.com/RyanBlaney/sonido-vibe/external"
	"github.com/RyanBlaney/sonido-vibe/logging"
	"github.com/RyanBlaney/sonido-vibe/transcode"
	"golang.org/x/sync/errgroup"
)

// Path selects which classifications Analyze runs
type Path uint8

const (
	PathEnvironment Path = 1 << iota
	PathEmotion

	PathAll = PathEnvironment | PathEmotion
)

// Classifier runs the DSP environment path and the event-model emotion path
// on base64 encoded clips. Both paths degrade to their fallback result
// instead of returning errors.
type Classifier struct {
	config    *config.ClassifierConfig
	decoder   *transcode.Decoder
	extractor *extractors.Extractor
	resampler *resample.Resampler
	models    *eventmodel.Handle
	mapping   EmotionMapping
	logger    logging.Logger
}

// NewClassifier creates a classifier. A nil models handle disables the
// emotion path, which then always falls back.
func NewClassifier(cfg *config.ClassifierConfig, decoder *transcode.Decoder, models *eventmodel.Handle) *Classifier {
	if cfg == nil {
		cfg = config.DefaultClassifierConfig()
	}
	if cfg.Rules == nil {
		cfg.Rules = config.DefaultRuleSet()
	}
	if cfg.Emotion == nil {
		cfg.Emotion = config.DefaultEmotionConfig()
	}
	if decoder == nil {
		decoder = transcode.NewDecoder(nil)
	}

	return &Classifier{
		config:    cfg,
		decoder:   decoder,
		extractor: extractors.NewExtractor(),
		resampler: resample.NewResampler(cfg.Emotion.Resample),
		models:    models,
		mapping:   DefaultEmotionMapping(),
		logger: logging.WithFields(logging.Fields{
			"component": "classifier",
		}),
	}
}

// WithMapping replaces the label table used by the emotion path
func (c *Classifier) WithMapping(mapping EmotionMapping) *Classifier {
	c.mapping = mapping
	return c
}

// ClassifyEnvironment decodes the clip and classifies its acoustic environment
func (c *Classifier) ClassifyEnvironment(ctx context.Context, base64Audio string) CategoryResult {
	audio, err := c.decoder.DecodeBase64(ctx, base64Audio)
	if err != nil {
		c.logger.Error(err, "Environment analysis failed, using fallback", logging.Fields{
			"function": "ClassifyEnvironment",
		})
		return FallbackCategoryResult(err)
	}
	return c.classifyEnvironment(audio)
}

// ClassifyEmotion decodes the clip, runs the event model and aggregates its
// strongest events into an emotion
func (c *Classifier) ClassifyEmotion(ctx context.Context, base64Audio string) EmotionResult {
	audio, err := c.decoder.DecodeBase64(ctx, base64Audio)
	if err != nil {
		c.logger.Error(err, "Emotion analysis failed, using fallback", logging.Fields{
			"function": "ClassifyEmotion",
		})
		return FallbackEmotionResult(err)
	}
	return c.classifyEmotion(ctx, audio)
}

// Analyze decodes the clip once and runs the requested paths concurrently.
// The only error is the context's.
func (c *Classifier) Analyze(ctx context.Context, base64Audio string, paths Path) (*Analysis, error) {
	analysis := NewAnalysis()
	logger := c.logger.WithFields(logging.Fields{
		"function":    "Analyze",
		"analysis_id": analysis.ID,
	})

	audio, decodeErr := c.decoder.DecodeBase64(ctx, base64Audio)
	if decodeErr != nil {
		logger.Error(decodeErr, "Decode failed, using fallbacks")
	}

	var (
		environment CategoryResult
		emotion     EmotionResult
	)

	g, gctx := errgroup.WithContext(ctx)
	if paths&PathEnvironment != 0 {
		g.Go(func() error {
			if decodeErr != nil {
				environment = FallbackCategoryResult(decodeErr)
				return nil
			}
			environment = c.classifyEnvironment(audio)
			return nil
		})
	}
	if paths&PathEmotion != 0 {
		g.Go(func() error {
			if decodeErr != nil {
				emotion = FallbackEmotionResult(decodeErr)
				return nil
			}
			emotion = c.classifyEmotion(gctx, audio)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if paths&PathEnvironment != 0 {
		analysis.WithEnvironment(environment)
	}
	if paths&PathEmotion != 0 {
		analysis.WithEmotion(emotion)
	}

	logger.Debug("Analysis composed", logging.Fields{
		"paths": int(paths),
	})
	return analysis, nil
}

func (c *Classifier) classifyEnvironment(audio *transcode.AudioData) CategoryResult {
	features := c.extractor.Extract(audio.PCM, audio.SampleRate)
	result := ClassifyFeatures(features, c.config.Rules)

	c.logger.Info("Environment classified", logging.Fields{
		"function":   "classifyEnvironment",
		"category":   result.Category.String(),
		"confidence": result.Confidence,
	})
	return result
}

func (c *Classifier) classifyEmotion(ctx context.Context, audio *transcode.AudioData) EmotionResult {
	logger := c.logger.WithFields(logging.Fields{
		"function":    "classifyEmotion",
		"sample_rate": audio.SampleRate,
		"samples":     len(audio.PCM),
	})

	top, err := c.topEvents(ctx, audio)
	if err != nil {
		logger.Error(err, "Emotion analysis failed, using fallback")
		return FallbackEmotionResult(err)
	}

	result := NewEmotionResult(top, c.mapping, c.config.Emotion.EvidenceCount)

	labels := make([]string, 0, 3)
	for _, ev := range top[:min(3, len(top))] {
		labels = append(labels, ev.Label)
	}
	logger.Info("Emotion classified", logging.Fields{
		"emotion":    result.Emotion.String(),
		"confidence": result.Confidence,
		"top_events": labels,
	})
	return result
}

// topEvents resamples to the model rate, runs the model and ranks its classes
func (c *Classifier) topEvents(ctx context.Context, audio *transcode.AudioData) ([]eventmodel.EventScore, error) {
	if c.models == nil {
		return nil, fmt.Errorf("no event model configured")
	}

	waveform, err := c.resampler.Resample(audio.PCM, audio.SampleRate, c.config.Emotion.TargetSampleRate)
	if err != nil {
		return nil, err
	}

	model, err := c.models.Get(ctx)
	if err != nil {
		return nil, asServiceError("load", err)
	}

	prediction, err := model.Predict(ctx, waveform)
	if err != nil {
		return nil, asServiceError("predict", err)
	}

	top, err := eventmodel.TopK(prediction, c.config.Emotion.TopK)
	if err != nil {
		return nil, external.Wrap("event_model", "rank", err)
	}
	return top, nil
}

func asServiceError(op string, err error) error {
	if external.IsServiceError(err) {
		return err
	}
	return external.Wrap("event_model", op, err)
}
