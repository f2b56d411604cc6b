package queries

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"polisense-backend/internal/rag"
	"polisense-backend/internal/shared/metrics"
	"polisense-backend/internal/shared/telemetry"
)

// Asker is the part of the retrieval client the query service needs.
type Asker interface {
	Query(ctx context.Context, question, userID string) (json.RawMessage, error)
}

// Service answers questions against an owner's indexed documents.
type Service struct {
	RAG Asker
}

// Fallback is returned whenever the retrieval service cannot produce an answer.
func Fallback() rag.Answer {
	return rag.Answer{
		Decision: rag.DecisionInformationOnly,
		Amount:   rag.AmountNotApplicable,
		Justification: rag.Justification{
			Summary: "Technical error occurred while processing your request. Please try again.",
			Clauses: []rag.Clause{{
				Reference: "System Error",
				Text:      "Unable to process request due to technical difficulties",
			}},
		},
		Answer:  "I'm experiencing technical difficulties. Please try your question again.",
		Sources: []string{},
	}
}

// Ask forwards the question and normalizes the reply. On any upstream or
// decoding failure it returns Fallback() together with the error.
func (s *Service) Ask(ctx context.Context, question, ownerID string) (rag.Answer, error) {
	question = strings.TrimSpace(question)
	ownerID = strings.TrimSpace(ownerID)
	if question == "" {
		return rag.Answer{}, fmt.Errorf("%w: question is required", ErrInvalidInput)
	}
	if ownerID == "" {
		return rag.Answer{}, fmt.Errorf("%w: userId is required", ErrInvalidInput)
	}

	metrics.IncQuery()
	start := time.Now()
	defer func() {
		metrics.ObserveQueryDurationMs(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	raw, err := s.RAG.Query(ctx, question, ownerID)
	if err != nil {
		return s.fallback(ownerID, err)
	}
	answer, err := rag.Normalize(raw)
	if err != nil {
		return s.fallback(ownerID, err)
	}

	telemetry.Info("query.answered", map[string]any{
		"user_id":  ownerID,
		"decision": answer.Decision,
		"clauses":  len(answer.Justification.Clauses),
	})
	return answer, nil
}

func (s *Service) fallback(ownerID string, err error) (rag.Answer, error) {
	metrics.IncQueryFallback()
	telemetry.Warn("query.fallback", map[string]any{
		"user_id": ownerID,
		"error":   err.Error(),
	})
	return Fallback(), err
}
