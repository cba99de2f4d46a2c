package main

import (
	"encoding/json"
	"net/http"

	"precioverdadero/internal/metrics"
	"precioverdadero/internal/service"
	"precioverdadero/internal/tracing"
)

// boardSummary is the part of /metrics an operator looks at first.
type boardSummary struct {
	CommentsCreated    float64 `json:"comments_created"`
	CommentsDuplicated float64 `json:"comments_duplicated"`
	StreamClients      float64 `json:"stream_clients"`
	ChatAnswered       float64 `json:"chat_answered"`
	ChatFailed         float64 `json:"chat_failed"`
	SupportSent        float64 `json:"support_sent"`
	SupportFailed      float64 `json:"support_failed"`
}

func (s *Server) summarize() boardSummary {
	m := s.metrics
	ok := map[string]string{"status": "success"}
	failed := map[string]string{"status": "error"}
	clients, _ := m.GaugeValue(metrics.StreamClients, nil)
	return boardSummary{
		CommentsCreated:    m.CounterValue(metrics.CommentsCreated, nil),
		CommentsDuplicated: m.CounterValue(metrics.CommentsDuplicated, nil),
		StreamClients:      clients,
		ChatAnswered:       m.CounterValue(metrics.ChatRequests, ok),
		ChatFailed:         m.CounterValue(metrics.ChatRequests, failed),
		SupportSent:        m.CounterValue(metrics.SupportMessages, ok),
		SupportFailed:      m.CounterValue(metrics.SupportMessages, failed),
	}
}

func (s *Server) handleMetrics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot := s.metrics.GetAllMetrics()
		snapshot["board"] = s.summarize()

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")

		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(snapshot); err != nil {
			info := tracing.GetRequestInfo(r.Context())
			s.logger.WithError(err).WithField(service.LogFieldRequestID, info.RequestID).
				Error("Failed to encode metrics response")
		}
	}
}
