// Package recommend picks tracks from a static catalog for a classified
// environment or emotion and, when a text generator is configured, writes a
// personal recommendation message for the emotion.
package recommend

import (
	"context"
	"fmt"
	"strings"

	"github.com/RyanBlaney/sonido-vibe/classifier"
	"github.com/RyanBlaney/sonido-vibe/classifier/config"
	"github.com/RyanBlaney/sonido-vibe/logging"
)

// DefaultMessage is used for emotions without a canned message
const DefaultMessage = "음악을 추천합니다."

// generatedCategories routes each emotion when the message is generated
var generatedCategories = [...]classifier.Category{
	config.EmotionHappy:     config.CategoryEnergetic,
	config.EmotionSad:       config.CategoryCalm,
	config.EmotionAngry:     config.CategoryEnergetic,
	config.EmotionCalm:      config.CategoryNature,
	config.EmotionEnergetic: config.CategoryUrban,
	config.EmotionAnxious:   config.CategoryIndoor,
}

// defaultCategories routes each emotion when the canned message is used
var defaultCategories = [...]classifier.Category{
	config.EmotionHappy:     config.CategoryEnergetic,
	config.EmotionSad:       config.CategoryCalm,
	config.EmotionAngry:     config.CategoryCalm,
	config.EmotionCalm:      config.CategoryCalm,
	config.EmotionEnergetic: config.CategoryEnergetic,
	config.EmotionAnxious:   config.CategoryCalm,
}

var defaultMessages = [...]string{
	config.EmotionHappy:     "행복한 기분이시군요! 이 즐거운 순간을 더욱 특별하게 만들어줄 신나는 음악을 추천합니다.",
	config.EmotionSad:       "힘든 시간을 보내고 계시는군요. 이 차분한 음악들이 마음을 위로해줄 거예요.",
	config.EmotionAngry:     "감정이 격해져 있으시네요. 이 음악들이 마음을 진정시키는데 도움이 될 거예요.",
	config.EmotionCalm:      "평온한 상태시군요. 이 분위기를 유지할 수 있는 음악을 추천합니다.",
	config.EmotionEnergetic: "활기찬 에너지가 느껴집니다! 이 기세를 이어갈 음악을 준비했어요.",
	config.EmotionAnxious:   "불안하신 것 같네요. 이 음악들이 긴장을 풀어주는데 도움이 될 거예요.",
}

// Recommendation is the outcome of an emotion based recommendation
type Recommendation struct {
	Emotion   classifier.Emotion  `json:"emotion"`
	Category  classifier.Category `json:"category"`
	Tracks    []Track             `json:"recommendations"`
	Message   string              `json:"recommendation_message"`
	Generated bool                `json:"generated"`
}

// Recommender selects tracks and recommendation messages
type Recommender struct {
	catalog   *Catalog
	generator TextGenerator
	tracks    int
	logger    logging.Logger
}

// NewRecommender creates a recommender over catalog. A nil generator means
// every emotion recommendation uses the canned messages.
func NewRecommender(catalog *Catalog, generator TextGenerator) *Recommender {
	return &Recommender{
		catalog:   catalog,
		generator: generator,
		tracks:    1,
		logger: logging.WithFields(logging.Fields{
			"component": "recommender",
		}),
	}
}

// ByCategory samples up to limit tracks for an environment category
func (r *Recommender) ByCategory(category classifier.Category, limit int) []Track {
	return r.catalog.Sample(category, limit)
}

// ByEmotion recommends tracks for a classified emotion. Generator failures
// are logged and answered with the canned recommendation.
func (r *Recommender) ByEmotion(ctx context.Context, result classifier.EmotionResult) Recommendation {
	logger := r.logger.WithFields(logging.Fields{
		"function": "ByEmotion",
		"emotion":  result.Emotion.String(),
	})

	if r.generator == nil {
		return r.defaultRecommendation(result.Emotion)
	}

	category := lookup(generatedCategories[:], result.Emotion)
	tracks := r.catalog.Sample(category, r.tracks)

	text, err := r.generator.Generate(ctx, buildPrompt(result, tracks))
	if err != nil {
		logger.Error(err, "Text generation failed, using default message")
		return r.defaultRecommendation(result.Emotion)
	}

	logger.Info("Recommendation generated", logging.Fields{
		"category": category.String(),
		"tracks":   len(tracks),
	})
	return Recommendation{
		Emotion:   result.Emotion,
		Category:  category,
		Tracks:    tracks,
		Message:   text,
		Generated: true,
	}
}

func (r *Recommender) defaultRecommendation(emotion classifier.Emotion) Recommendation {
	category := lookup(defaultCategories[:], emotion)
	msg := DefaultMessage
	if emotion >= 0 && int(emotion) < len(defaultMessages) {
		msg = defaultMessages[emotion]
	}
	return Recommendation{
		Emotion:  emotion,
		Category: category,
		Tracks:   r.catalog.Sample(category, r.tracks),
		Message:  msg,
	}
}

func lookup(table []classifier.Category, emotion classifier.Emotion) classifier.Category {
	if emotion < 0 || int(emotion) >= len(table) {
		return config.CategoryCalm
	}
	return table[emotion]
}

func buildPrompt(result classifier.EmotionResult, tracks []Track) string {
	sounds := make([]string, 0, 3)
	for _, ev := range result.Evidence.TopEvents {
		if len(sounds) == 3 {
			break
		}
		sounds = append(sounds, ev.Label)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "사용자의 현재 감정 상태: %s\n", result.Emotion)
	b.WriteString("감정 분석 상세 정보:\n")
	fmt.Fprintf(&b, "- 주요 감지된 소리: %s\n\n", strings.Join(sounds, ", "))
	b.WriteString("이 감정 상태의 사용자에게 다음 음악들을 추천합니다:\n")
	for _, t := range tracks {
		fmt.Fprintf(&b, "- %s by %s\n", t.Title, t.Artist)
	}
	b.WriteString("\n1. 이 감정 상태에 대한 공감 메시지 (2-3문장, 따뜻하고 친근하게)\n")
	b.WriteString("2. 왜 이 음악들이 현재 감정에 도움이 되는지 설명 (2-3문장)\n")
	b.WriteString("3. 음악을 들으면서 할 수 있는 간단한 활동 추천 (1-2문장)\n\n")
	b.WriteString("응답은 한국어로 작성해주세요. 각 섹션을 명확히 구분하되, 자연스럽게 연결해주세요.\n")
	return b.String()
}
