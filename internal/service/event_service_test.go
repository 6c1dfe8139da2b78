package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"ctf-event-service/internal/apperr"
	"ctf-event-service/internal/models"
	"ctf-event-service/internal/snapshot"
)

type fakeEventAdmin struct {
	events  map[string]*models.Event
	updates map[string]bson.M
}

func (f *fakeEventAdmin) FindAll(_ context.Context) ([]models.Event, error) {
	var out []models.Event
	for _, ev := range f.events {
		out = append(out, *ev)
	}
	return out, nil
}

func (f *fakeEventAdmin) FindActive(_ context.Context) ([]models.Event, error) {
	var out []models.Event
	for _, ev := range f.events {
		if ev.Active {
			out = append(out, *ev)
		}
	}
	return out, nil
}

func (f *fakeEventAdmin) FindByParticipant(_ context.Context, userID string) ([]models.Event, error) {
	var out []models.Event
	for _, ev := range f.events {
		if ev.ParticipantIndex(userID) != -1 {
			out = append(out, *ev)
		}
	}
	return out, nil
}

func (f *fakeEventAdmin) FindByID(_ context.Context, id string) (*models.Event, error) {
	if ev, ok := f.events[id]; ok {
		clone := *ev
		return &clone, nil
	}
	return nil, apperr.NotFound("event %s not found", id)
}

func (f *fakeEventAdmin) FindActiveByCode(_ context.Context, code string) (*models.Event, error) {
	for _, ev := range f.events {
		if ev.EventCode == code && ev.Active {
			clone := *ev
			return &clone, nil
		}
	}
	return nil, apperr.NotFound("invalid event code or event is not active")
}

func (f *fakeEventAdmin) CodeInUse(_ context.Context, code, excludeID string) (bool, error) {
	for _, ev := range f.events {
		if ev.EventCode == code && ev.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeEventAdmin) Create(_ context.Context, ev *models.Event) error {
	if ev.ID == "" {
		ev.ID = "ev-new"
	}
	f.events[ev.ID] = ev
	return nil
}

func (f *fakeEventAdmin) Update(_ context.Context, id string, update bson.M) error {
	if _, ok := f.events[id]; !ok {
		return apperr.NotFound("event %s not found", id)
	}
	if f.updates == nil {
		f.updates = map[string]bson.M{}
	}
	f.updates[id] = update
	return nil
}

func (f *fakeEventAdmin) Delete(_ context.Context, id string) error {
	if _, ok := f.events[id]; !ok {
		return apperr.NotFound("event %s not found", id)
	}
	delete(f.events, id)
	return nil
}

func (f *fakeEventAdmin) AddParticipant(_ context.Context, eventID string, p models.Participant) error {
	ev, ok := f.events[eventID]
	if !ok {
		return apperr.NotFound("event %s not found", eventID)
	}
	ev.Participants = append(ev.Participants, p)
	return nil
}

func (f *fakeEventAdmin) SetCategoryVisibility(_ context.Context, eventID, categoryName string, visible bool) error {
	ev, ok := f.events[eventID]
	if !ok {
		return apperr.NotFound("event %s not found", eventID)
	}
	for i := range ev.Snapshot.Categories {
		if ev.Snapshot.Categories[i].Name == categoryName {
			ev.Snapshot.Categories[i].IsVisible = visible
			return nil
		}
	}
	return apperr.NotFound("category %s not found in event %s", categoryName, eventID)
}

func (f *fakeEventAdmin) OverrideAnswer(_ context.Context, eventID, questionID, answer string) error {
	ev, ok := f.events[eventID]
	if !ok {
		return apperr.NotFound("event %s not found", eventID)
	}
	q, _, found := ev.Snapshot.FindQuestion(questionID)
	if !found {
		return apperr.NotFound("question %s not found in event %s", questionID, eventID)
	}
	q.Answer = answer
	return nil
}

type fakePurge struct{ calls []string }

func (f *fakePurge) DeleteByEvent(_ context.Context, eventID string) error {
	f.calls = append(f.calls, eventID)
	return nil
}

func newTestEventService(store *fakeEventAdmin) (*EventService, *fakePurge, *fakePurge) {
	sets := staticSets{
		"set1": {ID: "set1", Title: "Cloud101", Categories: []models.Category{
			{Name: "Basics", IsVisible: true, QuestionIDs: []string{"q1"}},
		}},
	}
	questions := staticQuestions{
		"q1": {ID: "q1", Title: "Find it", Points: 100, Answer: "wiz"},
	}
	answers := &fakePurge{}
	hints := &fakePurge{}
	svc := NewEventService(store, answers, hints, snapshot.NewBuilder(sets, questions), nil, nil)
	return svc, answers, hints
}

func validCreateInput() EventCreateInput {
	return EventCreateInput{
		Name:          "Launch CTF",
		QuestionSetID: "set1",
		EventCode:     "ABC123",
		EventDate:     time.Now().Add(24 * time.Hour),
	}
}

func TestCreateEventValidation(t *testing.T) {
	svc, _, _ := newTestEventService(&fakeEventAdmin{events: map[string]*models.Event{}})

	_, err := svc.CreateEvent(context.Background(), EventCreateInput{}, Identity{UserID: "admin"})
	if apperr.Status(err) != 400 {
		t.Fatalf("expected validation error, got %v", err)
	}
	var e *apperr.Error
	if !errors.As(err, &e) {
		t.Fatal("expected *apperr.Error")
	}
	for _, field := range []string{"name", "question_set", "event_code", "event_date"} {
		if e.Fields[field] != "required" {
			t.Errorf("missing field detail for %q: %v", field, e.Fields)
		}
	}
}

func TestCreateEventDuplicateCode(t *testing.T) {
	store := &fakeEventAdmin{events: map[string]*models.Event{
		"ev1": {ID: "ev1", EventCode: "ABC123", Active: true},
	}}
	svc, _, _ := newTestEventService(store)

	_, err := svc.CreateEvent(context.Background(), validCreateInput(), Identity{UserID: "admin"})
	if apperr.Status(err) != 409 {
		t.Errorf("expected conflict for duplicate code, got %v", err)
	}
}

func TestCreateEventAbortsOnMissingSet(t *testing.T) {
	store := &fakeEventAdmin{events: map[string]*models.Event{}}
	svc, _, _ := newTestEventService(store)

	input := validCreateInput()
	input.QuestionSetID = "ghost"
	_, err := svc.CreateEvent(context.Background(), input, Identity{UserID: "admin"})
	if !apperr.IsNotFound(err) {
		t.Fatalf("expected NotFound from failed snapshot build, got %v", err)
	}
	if len(store.events) != 0 {
		t.Error("event created despite failed snapshot build")
	}
}

func TestCreateEventEmbedsSnapshot(t *testing.T) {
	store := &fakeEventAdmin{events: map[string]*models.Event{}}
	svc, _, _ := newTestEventService(store)

	ev, err := svc.CreateEvent(context.Background(), validCreateInput(), Identity{UserID: "admin", Email: "a@x.com"})
	if err != nil {
		t.Fatalf("CreateEvent failed: %v", err)
	}
	if q, _, ok := ev.Snapshot.FindQuestion("q1"); !ok || q.Answer != "wiz" {
		t.Errorf("snapshot not embedded: %+v", ev.Snapshot)
	}
	if ev.Duration != 60 {
		t.Errorf("expected default duration 60, got %d", ev.Duration)
	}
	if !ev.Active || ev.CreatedBy != "admin" || len(ev.Participants) != 0 {
		t.Errorf("unexpected event state: %+v", ev)
	}
}

func TestJoinEvent(t *testing.T) {
	baseEvent := func() *models.Event {
		return &models.Event{
			ID:        "ev1",
			EventCode: "ABC123",
			Active:    true,
			EventDate: time.Now().Add(24 * time.Hour),
			Participants: []models.Participant{
				{UserID: "p1", DisplayName: "Player One"},
			},
		}
	}

	testCases := []struct {
		name   string
		mutate func(*models.Event)
		code   string
		ident  Identity
		status int
	}{
		{"unknown code", nil, "NOPE", Identity{UserID: "p2"}, 404},
		{"empty code", nil, "", Identity{UserID: "p2"}, 400},
		{"inactive event", func(ev *models.Event) { ev.Active = false }, "ABC123", Identity{UserID: "p2"}, 404},
		{"event date passed", func(ev *models.Event) { ev.EventDate = time.Now().Add(-time.Hour) }, "ABC123", Identity{UserID: "p2"}, 400},
		{"already joined", nil, "ABC123", Identity{UserID: "p1"}, 409},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ev := baseEvent()
			if tc.mutate != nil {
				tc.mutate(ev)
			}
			store := &fakeEventAdmin{events: map[string]*models.Event{"ev1": ev}}
			svc, _, _ := newTestEventService(store)

			_, err := svc.JoinEvent(context.Background(), tc.code, tc.ident)
			if got := apperr.Status(err); got != tc.status {
				t.Errorf("expected status %d, got %d (%v)", tc.status, got, err)
			}
			if len(store.events["ev1"].Participants) != 1 {
				t.Error("roster changed on rejected join")
			}
		})
	}

	t.Run("success denormalizes profile", func(t *testing.T) {
		store := &fakeEventAdmin{events: map[string]*models.Event{"ev1": baseEvent()}}
		svc, _, _ := newTestEventService(store)

		_, err := svc.JoinEvent(context.Background(), "ABC123", Identity{
			UserID: "p2", Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace",
		})
		if err != nil {
			t.Fatalf("JoinEvent failed: %v", err)
		}
		roster := store.events["ev1"].Participants
		if len(roster) != 2 {
			t.Fatalf("expected 2 participants, got %d", len(roster))
		}
		joined := roster[1]
		if joined.UserID != "p2" || joined.DisplayName != "Ada Lovelace" || joined.Score != 0 {
			t.Errorf("unexpected roster row: %+v", joined)
		}
	})
}

func TestGetEventAccess(t *testing.T) {
	store := &fakeEventAdmin{events: map[string]*models.Event{
		"ev1": {ID: "ev1", Participants: []models.Participant{{UserID: "p1"}}},
	}}
	svc, _, _ := newTestEventService(store)
	ctx := context.Background()

	if _, err := svc.GetEvent(ctx, "ev1", Identity{UserID: "stranger"}); apperr.Status(err) != 403 {
		t.Errorf("expected forbidden for non-participant, got %v", err)
	}
	if _, err := svc.GetEvent(ctx, "ev1", Identity{UserID: "p1"}); err != nil {
		t.Errorf("participant should see the event: %v", err)
	}
	if _, err := svc.GetEvent(ctx, "ev1", Identity{UserID: "boss", Role: "admin"}); err != nil {
		t.Errorf("admin should see the event: %v", err)
	}
}

func TestUpdateEventCodeConflict(t *testing.T) {
	store := &fakeEventAdmin{events: map[string]*models.Event{
		"ev1": {ID: "ev1", EventCode: "AAA"},
		"ev2": {ID: "ev2", EventCode: "BBB"},
	}}
	svc, _, _ := newTestEventService(store)

	code := "BBB"
	_, err := svc.UpdateEvent(context.Background(), "ev1", EventUpdateInput{EventCode: &code})
	if apperr.Status(err) != 409 {
		t.Errorf("expected conflict for taken code, got %v", err)
	}

	// Re-submitting the event's own code is not a conflict.
	own := "AAA"
	name := "renamed"
	if _, err := svc.UpdateEvent(context.Background(), "ev1", EventUpdateInput{EventCode: &own, Name: &name}); err != nil {
		t.Errorf("own code should not conflict: %v", err)
	}
}

func TestUpdateEventSetSwapAbortsOnMissingSet(t *testing.T) {
	store := &fakeEventAdmin{events: map[string]*models.Event{
		"ev1": {ID: "ev1", EventCode: "AAA", QuestionSetRef: "set1"},
	}}
	svc, _, _ := newTestEventService(store)

	ghost := "ghost"
	_, err := svc.UpdateEvent(context.Background(), "ev1", EventUpdateInput{QuestionSetID: &ghost})
	if !apperr.IsNotFound(err) {
		t.Errorf("expected NotFound from failed rebuild, got %v", err)
	}
	if store.updates["ev1"] != nil {
		t.Error("event updated despite failed snapshot build")
	}
}

func TestDeleteEventCascades(t *testing.T) {
	store := &fakeEventAdmin{events: map[string]*models.Event{
		"ev1": {ID: "ev1"},
	}}
	svc, answers, hints := newTestEventService(store)

	if err := svc.DeleteEvent(context.Background(), "ev1"); err != nil {
		t.Fatalf("DeleteEvent failed: %v", err)
	}
	if _, ok := store.events["ev1"]; ok {
		t.Error("event not deleted")
	}
	if len(answers.calls) != 1 || answers.calls[0] != "ev1" {
		t.Errorf("answer ledger not purged: %v", answers.calls)
	}
	if len(hints.calls) != 1 || hints.calls[0] != "ev1" {
		t.Errorf("hint log not purged: %v", hints.calls)
	}
}

func TestOverrideAnswerRequiresText(t *testing.T) {
	store := &fakeEventAdmin{events: map[string]*models.Event{
		"ev1": {ID: "ev1", Snapshot: snapWith("q1", 100, "old")},
	}}
	svc, _, _ := newTestEventService(store)
	ctx := context.Background()

	if err := svc.OverrideAnswer(ctx, "ev1", "q1", ""); apperr.Status(err) != 400 {
		t.Errorf("expected validation error for empty answer, got %v", err)
	}
	if err := svc.OverrideAnswer(ctx, "ev1", "q1", "new"); err != nil {
		t.Fatalf("OverrideAnswer failed: %v", err)
	}
	if q, _, _ := store.events["ev1"].Snapshot.FindQuestion("q1"); q.Answer != "new" {
		t.Errorf("override not applied: %+v", q)
	}
}

func TestDisplayNameDerivation(t *testing.T) {
	testCases := []struct {
		name  string
		ident Identity
		want  string
	}{
		{"explicit display name", Identity{UserID: "u1", DisplayName: "hax0r", FirstName: "Ada"}, "hax0r"},
		{"first and last", Identity{UserID: "u1", FirstName: "Ada", LastName: "Lovelace"}, "Ada Lovelace"},
		{"email local part", Identity{UserID: "u1", Email: "ada@example.com"}, "ada"},
		{"user id fallback", Identity{UserID: "u1"}, "u1"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := displayName(tc.ident); got != tc.want {
				t.Errorf("displayName() = %q, want %q", got, tc.want)
			}
		})
	}
}
