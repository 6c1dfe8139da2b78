package service

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"ctf-event-service/internal/apperr"
	"ctf-event-service/internal/event"
	"ctf-event-service/internal/logger"
	"ctf-event-service/internal/models"
	"ctf-event-service/internal/snapshot"
)

// CategoryInput is the wire shape for a category. Visibility is a pointer so
// an omitted field defaults to visible instead of decoding as hidden.
type CategoryInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	IsVisible   *bool    `json:"is_visible"`
	QuestionIDs []string `json:"question_ids"`
}

func (c CategoryInput) toModel() models.Category {
	visible := true
	if c.IsVisible != nil {
		visible = *c.IsVisible
	}
	return models.Category{
		Name:        c.Name,
		Description: c.Description,
		IsVisible:   visible,
		QuestionIDs: c.QuestionIDs,
	}
}

func categoriesToModel(in []CategoryInput) []models.Category {
	out := make([]models.Category, 0, len(in))
	for _, c := range in {
		out = append(out, c.toModel())
	}
	return out
}

type QuestionSetCreateInput struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Categories  []CategoryInput `json:"categories"`
}

type QuestionSetUpdateInput struct {
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	Categories  *[]CategoryInput `json:"categories"`
	Active      *bool            `json:"active"`
}

type setStore interface {
	FindAll(ctx context.Context) ([]models.QuestionSet, error)
	FindByID(ctx context.Context, id string) (*models.QuestionSet, error)
	Create(ctx context.Context, set *models.QuestionSet) error
	Update(ctx context.Context, id string, update bson.M) error
	Delete(ctx context.Context, id string) error
}

// eventSyncStore is the slice of the event store needed to resync snapshots
// after a set-level edit and to guard set deletion.
type eventSyncStore interface {
	FindByQuestionSetRef(ctx context.Context, setID string) ([]models.Event, error)
	ReplaceSnapshot(ctx context.Context, id string, snap models.Snapshot) error
	CountByQuestionSetRef(ctx context.Context, setID string) (int64, error)
}

type QuestionSetService struct {
	sets      setStore
	events    eventSyncStore
	builder   *snapshot.Builder
	publisher *event.Publisher
}

func NewQuestionSetService(sets setStore, events eventSyncStore, builder *snapshot.Builder, publisher *event.Publisher) *QuestionSetService {
	return &QuestionSetService{sets: sets, events: events, builder: builder, publisher: publisher}
}

func (s *QuestionSetService) ListQuestionSets(ctx context.Context) ([]models.QuestionSet, error) {
	return s.sets.FindAll(ctx)
}

func (s *QuestionSetService) GetQuestionSet(ctx context.Context, id string) (*models.QuestionSet, error) {
	return s.sets.FindByID(ctx, id)
}

func (s *QuestionSetService) CreateQuestionSet(ctx context.Context, input QuestionSetCreateInput, ident Identity) (*models.QuestionSet, error) {
	if input.Title == "" {
		return nil, apperr.Validation("title is required", map[string]string{"title": "required"})
	}
	set := &models.QuestionSet{
		Title:        input.Title,
		Description:  input.Description,
		Categories:   categoriesToModel(input.Categories),
		CreatedBy:    ident.UserID,
		CreatorEmail: ident.Email,
		Active:       true,
	}
	if err := s.sets.Create(ctx, set); err != nil {
		return nil, err
	}
	s.publisher.Publish("questionset.created", map[string]any{"id": set.ID})
	return set, nil
}

// UpdateQuestionSet persists the edit, then rebuilds and wholesale-replaces
// the snapshot of every event referencing this set. Event-level
// customizations (answer overrides, visibility toggles) are lost on this
// path: set-level edits win over event-level customization.
func (s *QuestionSetService) UpdateQuestionSet(ctx context.Context, id string, input QuestionSetUpdateInput) (*PropagationResult, error) {
	update := bson.M{}
	if input.Title != nil {
		update["title"] = *input.Title
	}
	if input.Description != nil {
		update["description"] = *input.Description
	}
	if input.Categories != nil {
		update["categories"] = categoriesToModel(*input.Categories)
	}
	if input.Active != nil {
		update["active"] = *input.Active
	}
	if len(update) == 0 {
		return nil, apperr.Validation("no fields supplied", nil)
	}

	if err := s.sets.Update(ctx, id, update); err != nil {
		return nil, err
	}

	result := s.resyncEvents(ctx, id)
	s.publisher.Publish("questionset.updated", map[string]any{
		"id": id, "events_matched": result.Matched, "events_updated": result.Updated,
	})
	return result, nil
}

// DeleteQuestionSet refuses while any event still references the set.
func (s *QuestionSetService) DeleteQuestionSet(ctx context.Context, id string) error {
	if _, err := s.sets.FindByID(ctx, id); err != nil {
		return err
	}
	n, err := s.events.CountByQuestionSetRef(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return apperr.Conflict("cannot delete question set: it is being used by %d event(s)", n)
	}
	if err := s.sets.Delete(ctx, id); err != nil {
		return err
	}
	s.publisher.Publish("questionset.deleted", map[string]any{"id": id})
	return nil
}

// resyncEvents rebuilds the snapshot once and replaces it in every
// referencing event. Best-effort fan-out: per-event failures are logged and
// counted, the pass is safe to re-run.
func (s *QuestionSetService) resyncEvents(ctx context.Context, setID string) *PropagationResult {
	result := &PropagationResult{}

	snap, err := s.builder.Build(ctx, setID)
	if err != nil {
		logger.Log.Error("failed to rebuild snapshot for question set",
			zap.String("question_set_id", setID), zap.Error(err))
		return result
	}

	events, err := s.events.FindByQuestionSetRef(ctx, setID)
	if err != nil {
		logger.Log.Error("failed to list events for question set resync",
			zap.String("question_set_id", setID), zap.Error(err))
		return result
	}
	result.Matched = len(events)

	for _, ev := range events {
		if err := s.events.ReplaceSnapshot(ctx, ev.ID, snap); err != nil {
			result.Failed++
			logger.Log.Error("failed to resync event snapshot",
				zap.String("question_set_id", setID),
				zap.String("event_id", ev.ID),
				zap.Error(err))
			continue
		}
		result.Updated++
		logger.Log.Info("resynced event snapshot",
			zap.String("question_set_id", setID),
			zap.String("event_id", ev.ID))
	}

	s.publisher.Publish("questionset.synced", map[string]any{
		"id": setID, "events_updated": result.Updated, "events_failed": result.Failed,
	})
	return result
}
