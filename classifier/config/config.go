package config

import (
	"fmt"
	"strings"

	"github.com/RyanBlaney/sonido-vibe/algorithms/resample"
)

// Category is an acoustic environment label
type Category int

const (
	CategoryCalm Category = iota
	CategoryEnergetic
	CategoryUrban
	CategoryNature
	CategoryIndoor

	NumCategories = 5
)

var categoryNames = [NumCategories]string{"calm", "energetic", "urban", "nature", "indoor"}

// Categories lists every category in declaration order
func Categories() []Category {
	return []Category{CategoryCalm, CategoryEnergetic, CategoryUrban, CategoryNature, CategoryIndoor}
}

func (c Category) String() string {
	if c < 0 || int(c) >= NumCategories {
		return "unknown"
	}
	return categoryNames[c]
}

// ParseCategory maps a category name to its Category
func ParseCategory(s string) (Category, bool) {
	for i, name := range categoryNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return Category(i), true
		}
	}
	return CategoryCalm, false
}

func (c Category) MarshalText() ([]byte, error) {
	if c < 0 || int(c) >= NumCategories {
		return nil, fmt.Errorf("invalid category %d", int(c))
	}
	return []byte(c.String()), nil
}

func (c *Category) UnmarshalText(text []byte) error {
	parsed, ok := ParseCategory(string(text))
	if !ok {
		return fmt.Errorf("unknown category %q", string(text))
	}
	*c = parsed
	return nil
}

// Emotion is an affective label. The declaration order is the tie-break order.
type Emotion int

const (
	EmotionHappy Emotion = iota
	EmotionSad
	EmotionAngry
	EmotionCalm
	EmotionEnergetic
	EmotionAnxious

	NumEmotions = 6
)

var emotionNames = [NumEmotions]string{"happy", "sad", "angry", "calm", "energetic", "anxious"}

// Emotions lists every emotion in declaration order
func Emotions() []Emotion {
	return []Emotion{EmotionHappy, EmotionSad, EmotionAngry, EmotionCalm, EmotionEnergetic, EmotionAnxious}
}

func (e Emotion) String() string {
	if e < 0 || int(e) >= NumEmotions {
		return "unknown"
	}
	return emotionNames[e]
}

// ParseEmotion maps an emotion name to its Emotion
func ParseEmotion(s string) (Emotion, bool) {
	for i, name := range emotionNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return Emotion(i), true
		}
	}
	return EmotionCalm, false
}

func (e Emotion) MarshalText() ([]byte, error) {
	if e < 0 || int(e) >= NumEmotions {
		return nil, fmt.Errorf("invalid emotion %d", int(e))
	}
	return []byte(e.String()), nil
}

func (e *Emotion) UnmarshalText(text []byte) error {
	parsed, ok := ParseEmotion(string(text))
	if !ok {
		return fmt.Errorf("unknown emotion %q", string(text))
	}
	*e = parsed
	return nil
}

// Adjustment adds Delta to a category's score, creating the entry if absent
type Adjustment struct {
	Category Category
	Delta    float64
}

// RuleSet holds the thresholds and weights of the environment rules.
// Thresholds are strict: a value equal to a boundary falls into the upper band
// for energy and into neither adjustment for zcr and centroid.
type RuleSet struct {
	// Energy bands, evaluated in order
	QuietEnergy    float64 `json:"quiet_energy"`
	ModerateEnergy float64 `json:"moderate_energy"`
	BusyEnergy     float64 `json:"busy_energy"`
	// Inside the busy band, zcr below this reads as nature, otherwise urban
	NatureZCR float64 `json:"nature_zcr"`

	Quiet    Adjustment `json:"quiet"`
	Moderate Adjustment `json:"moderate"`
	Nature   Adjustment `json:"nature"`
	Urban    Adjustment `json:"urban"`
	Loud     Adjustment `json:"loud"`

	HighZCR        float64      `json:"high_zcr"`
	HighZCRBonus   []Adjustment `json:"high_zcr_bonus"`
	LowZCR         float64      `json:"low_zcr"`
	LowZCRBonus    []Adjustment `json:"low_zcr_bonus"`
	BrightCentroid float64      `json:"bright_centroid_hz"`
	BrightBonus    []Adjustment `json:"bright_bonus"`
	DarkCentroid   float64      `json:"dark_centroid_hz"`
	DarkBonus      []Adjustment `json:"dark_bonus"`

	// Result when no rule fired
	FallbackCategory Category `json:"fallback_category"`
	FallbackScore    float64  `json:"fallback_score"`
}

// DefaultRuleSet returns the production environment rules
func DefaultRuleSet() *RuleSet {
	return &RuleSet{
		QuietEnergy:    0.15,
		ModerateEnergy: 0.35,
		BusyEnergy:     0.6,
		NatureZCR:      0.08,

		Quiet:    Adjustment{CategoryIndoor, 0.8},
		Moderate: Adjustment{CategoryCalm, 0.7},
		Nature:   Adjustment{CategoryNature, 0.75},
		Urban:    Adjustment{CategoryUrban, 0.7},
		Loud:     Adjustment{CategoryEnergetic, 0.8},

		HighZCR:        0.15,
		HighZCRBonus:   []Adjustment{{CategoryEnergetic, 0.1}, {CategoryUrban, 0.05}},
		LowZCR:         0.05,
		LowZCRBonus:    []Adjustment{{CategoryCalm, 0.1}, {CategoryIndoor, 0.05}},
		BrightCentroid: 2000,
		BrightBonus:    []Adjustment{{CategoryEnergetic, 0.05}},
		DarkCentroid:   1000,
		DarkBonus:      []Adjustment{{CategoryCalm, 0.05}},

		FallbackCategory: CategoryCalm,
		FallbackScore:    0.5,
	}
}

// EmotionConfig controls the event-model path
type EmotionConfig struct {
	TargetSampleRate int              `json:"target_sample_rate" mapstructure:"target_sample_rate"`
	TopK             int              `json:"top_k" mapstructure:"top_k"`
	EvidenceCount    int              `json:"evidence_count" mapstructure:"evidence_count"`
	Resample         *resample.Config `json:"resample" mapstructure:"resample"`
}

// DefaultEmotionConfig returns the event-model defaults: 16 kHz input, top 10
// events aggregated, top 5 reported as evidence
func DefaultEmotionConfig() *EmotionConfig {
	return &EmotionConfig{
		TargetSampleRate: 16000,
		TopK:             10,
		EvidenceCount:    5,
		Resample:         resample.DefaultConfig(),
	}
}

// ClassifierConfig bundles both classification paths
type ClassifierConfig struct {
	Rules   *RuleSet       `json:"rules"`
	Emotion *EmotionConfig `json:"emotion"`
}

// DefaultClassifierConfig returns defaults for both paths
func DefaultClassifierConfig() *ClassifierConfig {
	return &ClassifierConfig{
		Rules:   DefaultRuleSet(),
		Emotion: DefaultEmotionConfig(),
	}
}
