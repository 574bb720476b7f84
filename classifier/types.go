package classifier

import (
	"github.com/RyanBlaney/sonido-vibe/classifier/config"
	"github.com/RyanBlaney/sonido-vibe/classifier/extractors"
)

// Category and Emotion are defined next to the rule configuration that
// refers to them
type (
	Category = config.Category
	Emotion  = config.Emotion
)

// CategoryInfo is the user-facing text for an environment category
type CategoryInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

var categoryInfo = [config.NumCategories]CategoryInfo{
	config.CategoryCalm: {
		Name:        "잔잔",
		Description: "조용하고 편안한 환경입니다. 잔잔한 음악을 추천합니다.",
	},
	config.CategoryEnergetic: {
		Name:        "활기찬",
		Description: "활기차고 에너지 넘치는 환경입니다. 신나는 음악을 추천합니다.",
	},
	config.CategoryUrban: {
		Name:        "도시",
		Description: "도시의 소음이 감지됩니다. 힙합이나 R&B를 추천합니다.",
	},
	config.CategoryNature: {
		Name:        "자연",
		Description: "자연의 소리가 감지됩니다. 어쿠스틱 음악을 추천합니다.",
	},
	config.CategoryIndoor: {
		Name:        "실내",
		Description: "실내 환경입니다. 집중할 수 있는 음악을 추천합니다.",
	},
}

// DescribeCategory returns display text for c, falling back to calm
func DescribeCategory(c Category) CategoryInfo {
	if c < 0 || int(c) >= config.NumCategories {
		return categoryInfo[config.CategoryCalm]
	}
	return categoryInfo[c]
}

const unknownEmotionDescription = "알 수 없는 감정 상태입니다"

var emotionDescriptions = [config.NumEmotions]string{
	config.EmotionHappy:     "행복하고 즐거운 기분입니다",
	config.EmotionSad:       "슬프거나 우울한 기분입니다",
	config.EmotionAngry:     "화나거나 짜증난 상태입니다",
	config.EmotionCalm:      "차분하고 평온한 상태입니다",
	config.EmotionEnergetic: "활기차고 에너지 넘치는 상태입니다",
	config.EmotionAnxious:   "불안하거나 긴장된 상태입니다",
}

// DescribeEmotion returns display text for e
func DescribeEmotion(e Emotion) string {
	if e < 0 || int(e) >= config.NumEmotions {
		return unknownEmotionDescription
	}
	return emotionDescriptions[e]
}

// CategoryResult is the output of the environment path
type CategoryResult struct {
	Category   Category                  `json:"category"`
	Confidence float64                   `json:"confidence"`
	Features   *extractors.FeatureVector `json:"features,omitempty"`
	Error      string                    `json:"error,omitempty"`
}
