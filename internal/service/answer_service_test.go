package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"ctf-event-service/internal/apperr"
	"ctf-event-service/internal/models"
	"ctf-event-service/internal/repository"
)

type fakeEventStore struct {
	events map[string]*models.Event
}

func (f *fakeEventStore) FindByID(_ context.Context, id string) (*models.Event, error) {
	ev, ok := f.events[id]
	if !ok {
		return nil, apperr.NotFound("event %s not found", id)
	}
	clone := *ev
	return &clone, nil
}

func (f *fakeEventStore) CreditAnswer(_ context.Context, eventID, userID, questionID string, points int) error {
	ev, ok := f.events[eventID]
	if !ok {
		return apperr.NotFound("event %s not found", eventID)
	}
	idx := ev.ParticipantIndex(userID)
	if idx == -1 {
		return apperr.NotFound("participant %s not found in event %s", userID, eventID)
	}
	ev.Participants[idx].AnsweredQuestions = append(ev.Participants[idx].AnsweredQuestions, questionID)
	ev.Participants[idx].Score += points
	return nil
}

type fakeLedger struct {
	records []models.AnswerRecord
	// when set, HasCredited lies so the atomic insert gate is exercised
	hideCredited bool
}

func creditKey(eventID, userID, questionID string) string {
	return eventID + "|" + userID + "|" + questionID
}

func (f *fakeLedger) creditedSet() map[string]bool {
	set := map[string]bool{}
	for _, r := range f.records {
		if r.Credited {
			set[creditKey(r.EventID, r.UserID, r.QuestionID)] = true
		}
	}
	return set
}

func (f *fakeLedger) Insert(_ context.Context, rec *models.AnswerRecord) error {
	f.records = append(f.records, *rec)
	return nil
}

func (f *fakeLedger) InsertCredited(_ context.Context, rec *models.AnswerRecord) error {
	if f.creditedSet()[creditKey(rec.EventID, rec.UserID, rec.QuestionID)] {
		return repository.ErrAlreadyCredited
	}
	rec.Credited = true
	f.records = append(f.records, *rec)
	return nil
}

func (f *fakeLedger) HasCredited(_ context.Context, eventID, userID, questionID string) (bool, error) {
	if f.hideCredited {
		return false, nil
	}
	return f.creditedSet()[creditKey(eventID, userID, questionID)], nil
}

func (f *fakeLedger) FindByEvent(_ context.Context, eventID string) ([]models.AnswerRecord, error) {
	var out []models.AnswerRecord
	for _, r := range f.records {
		if r.EventID == eventID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeLedger) FindByEventAndUser(_ context.Context, eventID, userID string) ([]models.AnswerRecord, error) {
	var out []models.AnswerRecord
	for _, r := range f.records {
		if r.EventID == eventID && r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeHintLog struct {
	disclosed map[string]bool
}

func (f *fakeHintLog) Record(_ context.Context, d *models.HintDisclosure) error {
	if f.disclosed == nil {
		f.disclosed = map[string]bool{}
	}
	f.disclosed[creditKey(d.EventID, d.UserID, d.QuestionID)] = true
	return nil
}

func (f *fakeHintLog) WasDisclosed(_ context.Context, eventID, userID, questionID string) (bool, error) {
	return f.disclosed[creditKey(eventID, userID, questionID)], nil
}

func demoEvent() *models.Event {
	return &models.Event{
		ID:        "ev1",
		Name:      "Demo",
		EventCode: "ABC123",
		Active:    true,
		EventDate: time.Now().Add(24 * time.Hour),
		Snapshot: models.Snapshot{
			Title: "Cloud101",
			Categories: []models.EmbeddedCategory{
				{Name: "Basics", IsVisible: true, Questions: []models.EmbeddedQuestion{
					{
						OriginalID: "q1", Title: "Find the flag", Points: 100, Answer: "wiz",
						Hint: models.Hint{Text: "think security", PointReduction: 10, ReductionType: models.ReductionPercentage},
					},
					{
						OriginalID: "q2", Title: "Static one", Points: 100, Answer: "flag{2}",
						Hint: models.Hint{Text: "count", PointReduction: 30, ReductionType: models.ReductionStatic},
					},
				}},
			},
		},
		Participants: []models.Participant{
			{UserID: "p1", DisplayName: "Player One", AnsweredQuestions: []string{}},
		},
	}
}

func newTestAnswerService(ev *models.Event) (*AnswerService, *fakeEventStore, *fakeLedger, *fakeHintLog) {
	events := &fakeEventStore{events: map[string]*models.Event{}}
	if ev != nil {
		events.events[ev.ID] = ev
	}
	ledger := &fakeLedger{}
	hints := &fakeHintLog{}
	return NewAnswerService(events, ledger, hints, nil, nil), events, ledger, hints
}

func TestSubmitAnswerEndToEnd(t *testing.T) {
	ev := demoEvent()
	svc, events, ledger, _ := newTestAnswerService(ev)
	ctx := context.Background()

	// Participant requests the hint first.
	hint, err := svc.RequestHint(ctx, "ev1", "p1", "q1")
	if err != nil {
		t.Fatalf("RequestHint failed: %v", err)
	}
	if hint != "think security" {
		t.Errorf("expected hint text, got %q", hint)
	}

	// Correct answer, case-insensitive, hint penalty applied server-side.
	res, err := svc.SubmitAnswer(ctx, "ev1", "p1", "q1", SubmitAnswerRequest{Answer: "Wiz"})
	if err != nil {
		t.Fatalf("SubmitAnswer failed: %v", err)
	}
	if !res.Correct || res.AlreadyAnswered || res.PointsAwarded != 90 || res.CategoryName != "Basics" {
		t.Errorf("unexpected result: %+v", res)
	}

	if got := events.events["ev1"].Participants[0].Score; got != 90 {
		t.Errorf("expected participant score 90, got %d", got)
	}

	// Resubmitting awards nothing but is still recorded.
	res, err = svc.SubmitAnswer(ctx, "ev1", "p1", "q1", SubmitAnswerRequest{Answer: "wiz"})
	if err != nil {
		t.Fatalf("repeat SubmitAnswer failed: %v", err)
	}
	if !res.Correct || !res.AlreadyAnswered || res.PointsAwarded != 0 {
		t.Errorf("unexpected repeat result: %+v", res)
	}
	if got := events.events["ev1"].Participants[0].Score; got != 90 {
		t.Errorf("score changed on repeat: %d", got)
	}

	records, _ := ledger.FindByEvent(ctx, "ev1")
	if len(records) != 2 {
		t.Fatalf("expected 2 ledger rows, got %d", len(records))
	}
	credited := 0
	for _, r := range records {
		if r.Credited {
			credited++
		}
		if !r.HintUsed {
			t.Errorf("expected hint usage recorded on row %+v", r)
		}
	}
	if credited != 1 {
		t.Errorf("expected exactly one credited row, got %d", credited)
	}
}

func TestSubmitAnswerScoring(t *testing.T) {
	testCases := []struct {
		name       string
		questionID string
		answer     string
		useHint    bool
		correct    bool
		points     int
	}{
		{"full points no hint", "q1", "wiz", false, true, 100},
		{"whitespace and case", "q1", "  WIZ ", false, true, 100},
		{"percentage hint penalty", "q1", "wiz", true, true, 90},
		{"static hint penalty", "q2", "flag{2}", true, true, 70},
		{"wrong answer", "q1", "nope", false, false, 0},
		{"wrong answer with hint", "q1", "nope", true, false, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _, ledger, hints := newTestAnswerService(demoEvent())
			ctx := context.Background()
			if tc.useHint {
				hints.Record(ctx, &models.HintDisclosure{EventID: "ev1", UserID: "p1", QuestionID: tc.questionID})
			}

			res, err := svc.SubmitAnswer(ctx, "ev1", "p1", tc.questionID, SubmitAnswerRequest{Answer: tc.answer})
			if err != nil {
				t.Fatalf("SubmitAnswer failed: %v", err)
			}
			if res.Correct != tc.correct || res.PointsAwarded != tc.points {
				t.Errorf("got correct=%v points=%d, want correct=%v points=%d",
					res.Correct, res.PointsAwarded, tc.correct, tc.points)
			}

			records, _ := ledger.FindByEvent(ctx, "ev1")
			if len(records) != 1 {
				t.Fatalf("expected 1 ledger row, got %d", len(records))
			}
			if records[0].HintUsed != tc.useHint {
				t.Errorf("ledger hint flag = %v, want %v", records[0].HintUsed, tc.useHint)
			}
		})
	}
}

func TestSubmitAnswerStaticPenaltyFloorsAtZero(t *testing.T) {
	ev := demoEvent()
	ev.Snapshot.Categories[0].Questions[1].Hint.PointReduction = 150
	svc, _, _, hints := newTestAnswerService(ev)
	ctx := context.Background()
	hints.Record(ctx, &models.HintDisclosure{EventID: "ev1", UserID: "p1", QuestionID: "q2"})

	res, err := svc.SubmitAnswer(ctx, "ev1", "p1", "q2", SubmitAnswerRequest{Answer: "flag{2}"})
	if err != nil {
		t.Fatalf("SubmitAnswer failed: %v", err)
	}
	if !res.Correct || res.PointsAwarded != 0 {
		t.Errorf("expected 0 points at floor, got %+v", res)
	}
}

func TestSubmitAnswerClientHintFlagOnly(t *testing.T) {
	// Self-reported hint usage penalizes even without a disclosure record.
	svc, _, _, _ := newTestAnswerService(demoEvent())

	res, err := svc.SubmitAnswer(context.Background(), "ev1", "p1", "q1", SubmitAnswerRequest{
		Answer: "wiz", HintUsed: true, HintReduction: 90, HintReductionType: models.ReductionStatic,
	})
	if err != nil {
		t.Fatalf("SubmitAnswer failed: %v", err)
	}
	// The stored config (10%) wins over the client-supplied 90 static.
	if res.PointsAwarded != 90 {
		t.Errorf("expected stored hint config to decide penalty, got %d points", res.PointsAwarded)
	}
}

func TestSubmitAnswerHintDisclosureOverridesClientDenial(t *testing.T) {
	svc, _, _, hints := newTestAnswerService(demoEvent())
	ctx := context.Background()
	hints.Record(ctx, &models.HintDisclosure{EventID: "ev1", UserID: "p1", QuestionID: "q1"})

	res, err := svc.SubmitAnswer(ctx, "ev1", "p1", "q1", SubmitAnswerRequest{Answer: "wiz", HintUsed: false})
	if err != nil {
		t.Fatalf("SubmitAnswer failed: %v", err)
	}
	if res.PointsAwarded != 90 {
		t.Errorf("expected penalty from disclosure log, got %d points", res.PointsAwarded)
	}
}

func TestSubmitAnswerRetryAfterIncorrect(t *testing.T) {
	svc, events, _, _ := newTestAnswerService(demoEvent())
	ctx := context.Background()

	for _, wrong := range []string{"a", "b", "c"} {
		res, err := svc.SubmitAnswer(ctx, "ev1", "p1", "q1", SubmitAnswerRequest{Answer: wrong})
		if err != nil || res.Correct {
			t.Fatalf("expected incorrect verdict for %q, got %+v err=%v", wrong, res, err)
		}
	}

	res, err := svc.SubmitAnswer(ctx, "ev1", "p1", "q1", SubmitAnswerRequest{Answer: "wiz"})
	if err != nil || !res.Correct || res.PointsAwarded != 100 {
		t.Fatalf("expected full credit after retries, got %+v err=%v", res, err)
	}
	if got := events.events["ev1"].Participants[0].Score; got != 100 {
		t.Errorf("expected score 100, got %d", got)
	}
}

func TestSubmitAnswerConcurrentGate(t *testing.T) {
	// Force the pre-check to miss so the unique-insert gate is what stops
	// the double credit, as it would under a concurrent race.
	ev := demoEvent()
	svc, events, ledger, _ := newTestAnswerService(ev)
	ledger.hideCredited = true
	ctx := context.Background()

	first, err := svc.SubmitAnswer(ctx, "ev1", "p1", "q1", SubmitAnswerRequest{Answer: "wiz"})
	if err != nil || !first.Correct || first.AlreadyAnswered {
		t.Fatalf("first submission: %+v err=%v", first, err)
	}

	second, err := svc.SubmitAnswer(ctx, "ev1", "p1", "q1", SubmitAnswerRequest{Answer: "wiz"})
	if err != nil {
		t.Fatalf("second submission errored: %v", err)
	}
	if !second.AlreadyAnswered || second.PointsAwarded != 0 {
		t.Errorf("gate did not stop double credit: %+v", second)
	}
	if got := events.events["ev1"].Participants[0].Score; got != 100 {
		t.Errorf("expected score 100 after race, got %d", got)
	}
}

func TestSubmitAnswerRepeatKeepsRealVerdict(t *testing.T) {
	svc, _, ledger, _ := newTestAnswerService(demoEvent())
	ctx := context.Background()

	if _, err := svc.SubmitAnswer(ctx, "ev1", "p1", "q1", SubmitAnswerRequest{Answer: "wiz"}); err != nil {
		t.Fatalf("first submission failed: %v", err)
	}

	// A wrong answer after credit: the response reports the question as
	// answered, but the ledger row must keep the real verdict.
	res, err := svc.SubmitAnswer(ctx, "ev1", "p1", "q1", SubmitAnswerRequest{Answer: "totally-wrong"})
	if err != nil {
		t.Fatalf("repeat submission failed: %v", err)
	}
	if !res.AlreadyAnswered || res.PointsAwarded != 0 {
		t.Errorf("unexpected repeat result: %+v", res)
	}

	records, _ := ledger.FindByEvent(ctx, "ev1")
	if len(records) != 2 {
		t.Fatalf("expected 2 ledger rows, got %d", len(records))
	}
	repeat := records[1]
	if repeat.UserAnswer != "totally-wrong" || repeat.IsCorrect {
		t.Errorf("repeat row falsifies verdict: %+v", repeat)
	}
	if repeat.Credited || repeat.PointsAwarded != 0 {
		t.Errorf("repeat row must not carry credit: %+v", repeat)
	}

	// A correct repeat keeps its correct verdict too.
	if _, err := svc.SubmitAnswer(ctx, "ev1", "p1", "q1", SubmitAnswerRequest{Answer: "WIZ"}); err != nil {
		t.Fatalf("correct repeat failed: %v", err)
	}
	records, _ = ledger.FindByEvent(ctx, "ev1")
	if !records[2].IsCorrect || records[2].Credited {
		t.Errorf("correct repeat row wrong: %+v", records[2])
	}
}

func TestSubmitAnswerErrors(t *testing.T) {
	svc, _, _, _ := newTestAnswerService(demoEvent())
	ctx := context.Background()

	testCases := []struct {
		name       string
		eventID    string
		userID     string
		questionID string
		answer     string
		status     int
	}{
		{"missing answer", "ev1", "p1", "q1", "", 400},
		{"unknown event", "nope", "p1", "q1", "wiz", 404},
		{"not a participant", "ev1", "stranger", "q1", "wiz", 403},
		{"unknown question", "ev1", "p1", "ghost", "wiz", 404},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.SubmitAnswer(ctx, tc.eventID, tc.userID, tc.questionID, SubmitAnswerRequest{Answer: tc.answer})
			if err == nil {
				t.Fatal("expected error")
			}
			if got := apperr.Status(err); got != tc.status {
				t.Errorf("expected status %d, got %d (%v)", tc.status, got, err)
			}
		})
	}
}

func TestListAnswers(t *testing.T) {
	svc, _, ledger, _ := newTestAnswerService(demoEvent())
	ctx := context.Background()

	for i, user := range []string{"p1", "p1", "p2"} {
		ledger.Insert(ctx, &models.AnswerRecord{
			EventID: "ev1", UserID: user, QuestionID: fmt.Sprintf("q%d", i),
		})
	}

	all, err := svc.ListAnswers(ctx, "ev1", "admin-user", true)
	if err != nil || len(all) != 3 {
		t.Errorf("admin should see all rows, got %d err=%v", len(all), err)
	}

	own, err := svc.ListAnswers(ctx, "ev1", "p1", false)
	if err != nil || len(own) != 2 {
		t.Errorf("participant should see own rows only, got %d err=%v", len(own), err)
	}

	if _, err := svc.ListAnswers(ctx, "ghost", "p1", false); !apperr.IsNotFound(err) {
		t.Errorf("expected NotFound for unknown event, got %v", err)
	}
}

func TestRequestHintErrors(t *testing.T) {
	svc, _, _, hints := newTestAnswerService(demoEvent())
	ctx := context.Background()

	if _, err := svc.RequestHint(ctx, "ev1", "stranger", "q1"); apperr.Status(err) != 403 {
		t.Errorf("expected Forbidden for non-participant, got %v", err)
	}
	if _, err := svc.RequestHint(ctx, "ev1", "p1", "ghost"); !apperr.IsNotFound(err) {
		t.Errorf("expected NotFound for unknown question, got %v", err)
	}

	if _, err := svc.RequestHint(ctx, "ev1", "p1", "q1"); err != nil {
		t.Fatalf("RequestHint failed: %v", err)
	}
	if ok, _ := hints.WasDisclosed(ctx, "ev1", "p1", "q1"); !ok {
		t.Error("expected disclosure to be recorded")
	}
}
