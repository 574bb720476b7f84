package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/RyanBlaney/sonido-vibe/classifier"
	"github.com/RyanBlaney/sonido-vibe/classifier/config"
	"github.com/RyanBlaney/sonido-vibe/logging"
	"github.com/RyanBlaney/sonido-vibe/publish"
	"github.com/RyanBlaney/sonido-vibe/recommend"
)

const (
	maxBodyBytes       = 32 << 20
	defaultRecommend   = 1
	maxRecommendTracks = 20
	serviceName        = "VIBE Music Recommendation API"

	// DefaultPublishTimeout bounds event publication on the request path
	DefaultPublishTimeout = 2 * time.Second
)

type audioRequest struct {
	AudioData *string `json:"audioData"`
	Limit     *int    `json:"limit,omitempty"`
}

type analyzeResponse struct {
	Category    config.Category `json:"category"`
	Confidence  float64         `json:"confidence"`
	Description string          `json:"description"`
}

type recommendResponse struct {
	Category        config.Category   `json:"category"`
	Description     string            `json:"description"`
	Recommendations []recommend.Track `json:"recommendations"`
}

type emotionResponse struct {
	Emotion               config.Emotion      `json:"emotion"`
	Confidence            float64             `json:"confidence"`
	EmotionDescription    string              `json:"emotion_description"`
	RecommendationMessage string              `json:"recommendation_message"`
	Recommendations       []recommend.Track   `json:"recommendations"`
	EmotionDetails        classifier.Evidence `json:"emotion_details"`
}

type emotionInfo struct {
	ID          config.Emotion `json:"id"`
	Description string         `json:"description"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) rootHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": serviceName})
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) analyzeHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeAudioRequest(w, r)
	if !ok {
		return
	}

	analysis, err := s.classifier.Analyze(r.Context(), *req.AudioData, classifier.PathEnvironment)
	if err != nil {
		s.abort(w, r, err)
		return
	}
	s.publish(r, analysis)

	env := analysis.Environment
	writeJSON(w, http.StatusOK, analyzeResponse{
		Category:    env.Category,
		Confidence:  env.Confidence,
		Description: env.Description,
	})
}

func (s *Server) recommendHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeAudioRequest(w, r)
	if !ok {
		return
	}

	limit := defaultRecommend
	if req.Limit != nil {
		limit = min(max(*req.Limit, 1), maxRecommendTracks)
	}

	analysis, err := s.classifier.Analyze(r.Context(), *req.AudioData, classifier.PathEnvironment)
	if err != nil {
		s.abort(w, r, err)
		return
	}
	s.publish(r, analysis)

	env := analysis.Environment
	writeJSON(w, http.StatusOK, recommendResponse{
		Category:        env.Category,
		Description:     env.Description,
		Recommendations: s.recommender.ByCategory(env.Category, limit),
	})
}

func (s *Server) analyzeEmotionHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeAudioRequest(w, r)
	if !ok {
		return
	}

	analysis, err := s.classifier.Analyze(r.Context(), *req.AudioData, classifier.PathEmotion)
	if err != nil {
		s.abort(w, r, err)
		return
	}
	s.publish(r, analysis)

	emo := analysis.Emotion
	rec := s.recommender.ByEmotion(r.Context(), emo.EmotionResult)

	s.logger.Info("Emotion recommendation ready", logging.Fields{
		"analysis_id": analysis.ID,
		"emotion":     emo.Emotion.String(),
		"tracks":      len(rec.Tracks),
		"generated":   rec.Generated,
	})

	writeJSON(w, http.StatusOK, emotionResponse{
		Emotion:               emo.Emotion,
		Confidence:            emo.Confidence,
		EmotionDescription:    emo.Description,
		RecommendationMessage: rec.Message,
		Recommendations:       rec.Tracks,
		EmotionDetails:        emo.Evidence,
	})
}

func (s *Server) emotionsHandler(w http.ResponseWriter, _ *http.Request) {
	emotions := make([]emotionInfo, 0, config.NumEmotions)
	for _, e := range config.Emotions() {
		emotions = append(emotions, emotionInfo{ID: e, Description: classifier.DescribeEmotion(e)})
	}
	writeJSON(w, http.StatusOK, map[string][]emotionInfo{"emotions": emotions})
}

// decodeAudioRequest writes the error response itself and reports whether
// the handler should continue
func (s *Server) decodeAudioRequest(w http.ResponseWriter, r *http.Request) (*audioRequest, bool) {
	var req audioRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Detail: "request body too large"})
			return nil, false
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "malformed JSON body: " + err.Error()})
		return nil, false
	}
	// an empty string is accepted and answered with the fallback result
	if req.AudioData == nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Detail: "audioData is required"})
		return nil, false
	}
	return &req, true
}

// publish sends the analysis events without letting a slow broker hold the
// response past publishTimeout. Client disconnects do not cancel it.
func (s *Server) publish(r *http.Request, analysis *classifier.Analysis) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.publishTimeout)
	defer cancel()
	publish.PublishAnalysis(ctx, s.publisher, analysis)
}

// abort answers a request whose context ended before analysis finished
func (s *Server) abort(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Warn("Request abandoned", logging.Fields{
		"path":  r.URL.Path,
		"error": err.Error(),
	})
	writeJSON(w, http.StatusServiceUnavailable, errorResponse{Detail: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
