package service

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"ctf-event-service/internal/apperr"
	"ctf-event-service/internal/event"
	"ctf-event-service/internal/logger"
	"ctf-event-service/internal/models"
	"ctf-event-service/internal/repository"
	"ctf-event-service/internal/snapshot"
)

// propagationStore is the slice of the event store that propagation passes
// need: locate embedding events and replace their snapshots one at a time.
type propagationStore interface {
	FindByEmbeddedQuestion(ctx context.Context, questionID string) ([]models.Event, error)
	FindByQuestionSetRef(ctx context.Context, setID string) ([]models.Event, error)
	ReplaceSnapshot(ctx context.Context, id string, snap models.Snapshot) error
}

// PropagationResult reports a best-effort fan-out: how many embedding events
// were found, how many were updated, and how many failed and kept their
// stale snapshot. Safe to re-run; a failed event is picked up next pass.
type PropagationResult struct {
	Matched int `json:"matched"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

type QuestionUpdateInput struct {
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	Points      *int             `json:"points"`
	Difficulty  *string          `json:"difficulty"`
	Product     *string          `json:"product"`
	Answer      *string          `json:"answer"`
	Hint        *models.Hint     `json:"hint"`
	Solution    *models.Solution `json:"solution"`
	Active      *bool            `json:"active"`
}

type QuestionService struct {
	Repo      *repository.QuestionRepository
	events    propagationStore
	publisher *event.Publisher
}

func NewQuestionService(repo *repository.QuestionRepository, events propagationStore, publisher *event.Publisher) *QuestionService {
	return &QuestionService{Repo: repo, events: events, publisher: publisher}
}

func (s *QuestionService) ListQuestions(ctx context.Context) ([]models.Question, error) {
	return s.Repo.FindAll(ctx)
}

func (s *QuestionService) GetQuestion(ctx context.Context, id string) (*models.Question, error) {
	return s.Repo.FindByID(ctx, id)
}

func (s *QuestionService) CreateQuestion(ctx context.Context, question *models.Question) error {
	if question.Title == "" || question.Answer == "" {
		return apperr.Validation("title and answer are required", map[string]string{
			"title":  "required",
			"answer": "required",
		})
	}
	question.Active = true
	question.ApplyDefaults()
	if err := s.Repo.Create(ctx, question); err != nil {
		return err
	}
	s.publisher.Publish("question.created", map[string]any{"id": question.ID})
	return nil
}

// UpdateQuestion persists the edit and propagates the supplied fields into
// every event snapshot embedding this question. Note that the propagation
// overwrites the embedded answer field, replacing any per-event answer
// correction an admin made; question-level edits win over event-level ones.
func (s *QuestionService) UpdateQuestion(ctx context.Context, id string, input QuestionUpdateInput) (*PropagationResult, error) {
	update := bson.M{}
	upd := snapshot.QuestionUpdate{
		Title:       input.Title,
		Description: input.Description,
		Points:      input.Points,
		Difficulty:  input.Difficulty,
		Product:     input.Product,
		Answer:      input.Answer,
		Hint:        input.Hint,
		Solution:    input.Solution,
	}
	if input.Title != nil {
		update["title"] = *input.Title
	}
	if input.Description != nil {
		update["description"] = *input.Description
	}
	if input.Points != nil {
		update["points"] = *input.Points
	}
	if input.Difficulty != nil {
		update["difficulty"] = *input.Difficulty
	}
	if input.Product != nil {
		update["product"] = *input.Product
	}
	if input.Answer != nil {
		update["answer"] = *input.Answer
	}
	if input.Hint != nil {
		update["hint"] = *input.Hint
	}
	if input.Solution != nil {
		update["solution"] = *input.Solution
	}
	if input.Active != nil {
		update["active"] = *input.Active
	}
	if len(update) == 0 {
		return nil, apperr.Validation("no fields supplied", nil)
	}

	if err := s.Repo.Update(ctx, id, update); err != nil {
		return nil, err
	}

	result := s.propagateQuestionUpdate(ctx, id, upd)
	s.publisher.Publish("question.updated", map[string]any{
		"id": id, "events_matched": result.Matched, "events_updated": result.Updated,
	})
	return result, nil
}

// DeleteQuestion removes the question from every embedding event snapshot,
// then deletes it from the bank. Ledger rows for past submissions stay as
// history. Per-event removal failures do not block the deletion.
func (s *QuestionService) DeleteQuestion(ctx context.Context, id string) (*PropagationResult, error) {
	if _, err := s.Repo.FindByID(ctx, id); err != nil {
		return nil, err
	}

	result := &PropagationResult{}
	events, err := s.events.FindByEmbeddedQuestion(ctx, id)
	if err != nil {
		logger.Log.Error("failed to list events for question removal",
			zap.String("question_id", id), zap.Error(err))
	} else {
		result.Matched = len(events)
		for _, ev := range events {
			newSnap, changed := snapshot.RemoveQuestion(ev.Snapshot, id)
			if !changed {
				continue
			}
			if err := s.events.ReplaceSnapshot(ctx, ev.ID, newSnap); err != nil {
				result.Failed++
				logger.Log.Error("failed to remove question from event",
					zap.String("question_id", id),
					zap.String("event_id", ev.ID),
					zap.Error(err))
				continue
			}
			result.Updated++
		}
	}

	if err := s.Repo.Delete(ctx, id); err != nil {
		return nil, err
	}
	s.publisher.Publish("question.deleted", map[string]any{
		"id": id, "events_updated": result.Updated,
	})
	return result, nil
}

// propagateQuestionUpdate walks every embedding event and rewrites the
// matching embedded copies. Each event save is its own atomic unit; one
// failure never aborts the rest of the fan-out.
func (s *QuestionService) propagateQuestionUpdate(ctx context.Context, questionID string, upd snapshot.QuestionUpdate) *PropagationResult {
	result := &PropagationResult{}
	events, err := s.events.FindByEmbeddedQuestion(ctx, questionID)
	if err != nil {
		logger.Log.Error("failed to list events for question propagation",
			zap.String("question_id", questionID), zap.Error(err))
		return result
	}
	result.Matched = len(events)

	for _, ev := range events {
		newSnap, changed := snapshot.ApplyQuestionUpdate(ev.Snapshot, questionID, upd)
		if !changed {
			continue
		}
		if err := s.events.ReplaceSnapshot(ctx, ev.ID, newSnap); err != nil {
			result.Failed++
			logger.Log.Error("failed to propagate question update to event",
				zap.String("question_id", questionID),
				zap.String("event_id", ev.ID),
				zap.Error(err))
			continue
		}
		result.Updated++
		logger.Log.Info("propagated question update",
			zap.String("question_id", questionID),
			zap.String("event_id", ev.ID))
	}
	return result
}
