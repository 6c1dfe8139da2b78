package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"ctf-event-service/internal/apperr"
	"ctf-event-service/internal/cache"
	"ctf-event-service/internal/event"
	"ctf-event-service/internal/models"
	"ctf-event-service/internal/snapshot"
)

// Identity is the authenticated caller as supplied by the gateway. Auth
// itself happens upstream; this service only consumes identity and role.
type Identity struct {
	UserID       string
	Email        string
	DisplayName  string
	FirstName    string
	LastName     string
	Organization string
	Role         string
}

func (i Identity) IsAdmin() bool { return i.Role == "admin" }

type EventCreateInput struct {
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	QuestionSetID string    `json:"question_set"`
	EventCode     string    `json:"event_code"`
	EventDate     time.Time `json:"event_date"`
	Duration      int       `json:"duration"`
	Active        *bool     `json:"active"`
}

type EventUpdateInput struct {
	Name          *string    `json:"name"`
	Description   *string    `json:"description"`
	QuestionSetID *string    `json:"question_set"`
	EventCode     *string    `json:"event_code"`
	EventDate     *time.Time `json:"event_date"`
	Duration      *int       `json:"duration"`
	Active        *bool      `json:"active"`
}

// eventAdminStore is the slice of the event store the lifecycle operations
// need: lookups, code checks, writes, and the embedded-snapshot mutations.
type eventAdminStore interface {
	FindAll(ctx context.Context) ([]models.Event, error)
	FindActive(ctx context.Context) ([]models.Event, error)
	FindByParticipant(ctx context.Context, userID string) ([]models.Event, error)
	FindByID(ctx context.Context, id string) (*models.Event, error)
	FindActiveByCode(ctx context.Context, code string) (*models.Event, error)
	CodeInUse(ctx context.Context, code, excludeID string) (bool, error)
	Create(ctx context.Context, ev *models.Event) error
	Update(ctx context.Context, id string, update bson.M) error
	Delete(ctx context.Context, id string) error
	AddParticipant(ctx context.Context, eventID string, p models.Participant) error
	SetCategoryVisibility(ctx context.Context, eventID, categoryName string, visible bool) error
	OverrideAnswer(ctx context.Context, eventID, questionID, answer string) error
}

// ledgerPurge removes an event's dependent records on event deletion.
type ledgerPurge interface {
	DeleteByEvent(ctx context.Context, eventID string) error
}

type EventService struct {
	events    eventAdminStore
	answers   ledgerPurge
	hints     ledgerPurge
	builder   *snapshot.Builder
	board     *cache.Leaderboard
	publisher *event.Publisher
}

func NewEventService(events eventAdminStore, answers, hints ledgerPurge, builder *snapshot.Builder, board *cache.Leaderboard, publisher *event.Publisher) *EventService {
	return &EventService{events: events, answers: answers, hints: hints, builder: builder, board: board, publisher: publisher}
}

// ListEvents returns all events for admins, the caller's joined events
// otherwise.
func (s *EventService) ListEvents(ctx context.Context, ident Identity) ([]models.Event, error) {
	if ident.IsAdmin() {
		return s.events.FindAll(ctx)
	}
	return s.events.FindByParticipant(ctx, ident.UserID)
}

func (s *EventService) ActiveEvents(ctx context.Context) ([]models.Event, error) {
	return s.events.FindActive(ctx)
}

// GetEvent returns the full event for admins and participants only.
func (s *EventService) GetEvent(ctx context.Context, id string, ident Identity) (*models.Event, error) {
	ev, err := s.events.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ident.IsAdmin() && ev.ParticipantIndex(ident.UserID) == -1 {
		return nil, apperr.Forbidden("access denied")
	}
	return ev, nil
}

// ParticipantView returns the event with hidden categories filtered out and
// answers/solutions stripped, for rendering the play screen.
func (s *EventService) ParticipantView(ctx context.Context, id string, ident Identity) (*models.Event, error) {
	ev, err := s.GetEvent(ctx, id, ident)
	if err != nil {
		return nil, err
	}
	view := *ev
	view.Snapshot = ev.Snapshot.ParticipantView()
	return &view, nil
}

func (s *EventService) CreateEvent(ctx context.Context, input EventCreateInput, ident Identity) (*models.Event, error) {
	fields := map[string]string{}
	if input.Name == "" {
		fields["name"] = "required"
	}
	if input.QuestionSetID == "" {
		fields["question_set"] = "required"
	}
	if input.EventCode == "" {
		fields["event_code"] = "required"
	}
	if input.EventDate.IsZero() {
		fields["event_date"] = "required"
	}
	if len(fields) > 0 {
		return nil, apperr.Validation("missing required fields", fields)
	}

	inUse, err := s.events.CodeInUse(ctx, input.EventCode, "")
	if err != nil {
		return nil, err
	}
	if inUse {
		return nil, apperr.Conflict("event code already in use")
	}

	// A failed build aborts creation; a partial snapshot is never embedded.
	snap, err := s.builder.Build(ctx, input.QuestionSetID)
	if err != nil {
		return nil, err
	}

	ev := &models.Event{
		Name:           input.Name,
		Description:    input.Description,
		QuestionSetRef: input.QuestionSetID,
		Snapshot:       snap,
		EventCode:      input.EventCode,
		EventDate:      input.EventDate,
		Duration:       input.Duration,
		Active:         true,
		CreatedBy:      ident.UserID,
		CreatorEmail:   ident.Email,
	}
	if ev.Duration == 0 {
		ev.Duration = 60
	}
	if input.Active != nil {
		ev.Active = *input.Active
	}

	if err := s.events.Create(ctx, ev); err != nil {
		return nil, err
	}
	s.publisher.Publish("event.created", map[string]any{"id": ev.ID, "name": ev.Name})
	return ev, nil
}

func (s *EventService) UpdateEvent(ctx context.Context, id string, input EventUpdateInput) (*models.Event, error) {
	ev, err := s.events.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	update := bson.M{}
	if input.Name != nil {
		update["name"] = *input.Name
	}
	if input.Description != nil {
		update["description"] = *input.Description
	}
	if input.EventCode != nil && *input.EventCode != ev.EventCode {
		inUse, err := s.events.CodeInUse(ctx, *input.EventCode, id)
		if err != nil {
			return nil, err
		}
		if inUse {
			return nil, apperr.Conflict("event code already in use")
		}
		update["event_code"] = *input.EventCode
	}
	if input.EventDate != nil {
		update["event_date"] = *input.EventDate
	}
	if input.Duration != nil {
		update["duration"] = *input.Duration
	}
	if input.Active != nil {
		update["active"] = *input.Active
	}

	// Swapping the question set re-embeds a fresh snapshot wholesale.
	if input.QuestionSetID != nil && *input.QuestionSetID != ev.QuestionSetRef {
		snap, err := s.builder.Build(ctx, *input.QuestionSetID)
		if err != nil {
			return nil, err
		}
		update["question_set_ref"] = *input.QuestionSetID
		update["question_set"] = snap
	}

	if len(update) == 0 {
		return nil, apperr.Validation("no fields supplied", nil)
	}
	if err := s.events.Update(ctx, id, update); err != nil {
		return nil, err
	}
	s.publisher.Publish("event.updated", map[string]any{"id": id})
	return s.events.FindByID(ctx, id)
}

// DeleteEvent removes the event together with its answer ledger and hint log.
func (s *EventService) DeleteEvent(ctx context.Context, id string) error {
	if err := s.events.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.answers.DeleteByEvent(ctx, id); err != nil {
		return err
	}
	if err := s.hints.DeleteByEvent(ctx, id); err != nil {
		return err
	}
	s.board.Invalidate(ctx, id)
	s.publisher.Publish("event.deleted", map[string]any{"id": id})
	return nil
}

// JoinEvent adds the caller to the roster of the active event with the given
// code, denormalizing their profile so the roster reads without a user
// lookup.
func (s *EventService) JoinEvent(ctx context.Context, code string, ident Identity) (*models.Event, error) {
	if code == "" {
		return nil, apperr.Validation("event code is required", map[string]string{"event_code": "required"})
	}
	ev, err := s.events.FindActiveByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if ev.EventDate.Before(time.Now()) {
		return nil, apperr.Validation("this event has already ended", nil)
	}
	if ev.ParticipantIndex(ident.UserID) != -1 {
		return nil, apperr.Conflict("you have already joined this event")
	}

	p := models.Participant{
		UserID:            ident.UserID,
		DisplayName:       displayName(ident),
		Email:             ident.Email,
		FirstName:         ident.FirstName,
		LastName:          ident.LastName,
		Organization:      ident.Organization,
		JoinedAt:          time.Now(),
		Score:             0,
		AnsweredQuestions: []string{},
	}
	if err := s.events.AddParticipant(ctx, ev.ID, p); err != nil {
		return nil, err
	}
	s.board.Invalidate(ctx, ev.ID)
	s.publisher.Publish("event.joined", map[string]any{"event_id": ev.ID, "user_id": ident.UserID})
	return ev, nil
}

func (s *EventService) Participants(ctx context.Context, id string) ([]models.Participant, error) {
	ev, err := s.events.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return ev.Participants, nil
}

// Leaderboard returns the roster sorted by score, cached per event.
func (s *EventService) Leaderboard(ctx context.Context, id string, ident Identity) ([]cache.LeaderboardEntry, error) {
	if entries, ok := s.board.Get(ctx, id); ok {
		return entries, nil
	}

	ev, err := s.GetEvent(ctx, id, ident)
	if err != nil {
		return nil, err
	}

	entries := make([]cache.LeaderboardEntry, 0, len(ev.Participants))
	for _, p := range ev.Participants {
		entries = append(entries, cache.LeaderboardEntry{
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			Score:       p.Score,
			Answered:    len(p.AnsweredQuestions),
		})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Score > entries[j].Score })

	s.board.Set(ctx, id, entries)
	return entries, nil
}

func (s *EventService) SetCategoryVisibility(ctx context.Context, eventID, categoryName string, visible bool) error {
	if err := s.events.SetCategoryVisibility(ctx, eventID, categoryName, visible); err != nil {
		return err
	}
	s.publisher.Publish("event.category_visibility", map[string]any{
		"event_id": eventID, "category": categoryName, "visible": visible,
	})
	return nil
}

// OverrideAnswer corrects the embedded answer text for one event only. A
// later edit of the live question propagates over this field; the override
// does not survive set-level resyncs either.
func (s *EventService) OverrideAnswer(ctx context.Context, eventID, questionID, answer string) error {
	if answer == "" {
		return apperr.Validation("answer is required", map[string]string{"answer": "required"})
	}
	if err := s.events.OverrideAnswer(ctx, eventID, questionID, answer); err != nil {
		return err
	}
	s.publisher.Publish("event.answer_overridden", map[string]any{
		"event_id": eventID, "question_id": questionID,
	})
	return nil
}

// displayName mirrors the join-flow derivation: explicit display name, then
// "First Last", then the email local part.
func displayName(ident Identity) string {
	if ident.DisplayName != "" {
		return ident.DisplayName
	}
	if ident.FirstName != "" && ident.LastName != "" {
		return ident.FirstName + " " + ident.LastName
	}
	if at := strings.Index(ident.Email, "@"); at > 0 {
		return ident.Email[:at]
	}
	return ident.UserID
}
