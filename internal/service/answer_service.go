package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"ctf-event-service/internal/apperr"
	"ctf-event-service/internal/cache"
	"ctf-event-service/internal/event"
	"ctf-event-service/internal/logger"
	"ctf-event-service/internal/models"
	"ctf-event-service/internal/repository"
)

type eventStore interface {
	FindByID(ctx context.Context, id string) (*models.Event, error)
	CreditAnswer(ctx context.Context, eventID, userID, questionID string, points int) error
}

type answerLedger interface {
	Insert(ctx context.Context, rec *models.AnswerRecord) error
	InsertCredited(ctx context.Context, rec *models.AnswerRecord) error
	HasCredited(ctx context.Context, eventID, userID, questionID string) (bool, error)
	FindByEvent(ctx context.Context, eventID string) ([]models.AnswerRecord, error)
	FindByEventAndUser(ctx context.Context, eventID, userID string) ([]models.AnswerRecord, error)
}

type hintLog interface {
	Record(ctx context.Context, d *models.HintDisclosure) error
	WasDisclosed(ctx context.Context, eventID, userID, questionID string) (bool, error)
}

type SubmitAnswerRequest struct {
	Answer string `json:"answer"`
	// Client-reported hint fields are advisory only. The stored hint config
	// and the disclosure log decide the actual penalty.
	HintUsed          bool   `json:"hint_used"`
	HintReduction     int    `json:"hint_reduction"`
	HintReductionType string `json:"hint_reduction_type"`
}

type SubmitResult struct {
	Correct         bool   `json:"correct"`
	AlreadyAnswered bool   `json:"already_answered"`
	PointsAwarded   int    `json:"points_awarded"`
	CategoryName    string `json:"category"`
}

// AnswerService scores submissions against an event's frozen snapshot and
// keeps the append-only answer ledger.
type AnswerService struct {
	events    eventStore
	ledger    answerLedger
	hints     hintLog
	board     *cache.Leaderboard
	publisher *event.Publisher
}

func NewAnswerService(events eventStore, ledger answerLedger, hints hintLog, board *cache.Leaderboard, publisher *event.Publisher) *AnswerService {
	return &AnswerService{events: events, ledger: ledger, hints: hints, board: board, publisher: publisher}
}

// SubmitAnswer evaluates one submission. Every attempt lands in the ledger;
// points are granted at most once per (event, participant, question), with
// the credited-row unique index closing the concurrent-submission race.
func (s *AnswerService) SubmitAnswer(ctx context.Context, eventID, userID, questionID string, req SubmitAnswerRequest) (*SubmitResult, error) {
	if req.Answer == "" {
		return nil, apperr.Validation("answer is required", map[string]string{"answer": "required"})
	}

	ev, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		return nil, err
	}

	if ev.ParticipantIndex(userID) == -1 {
		return nil, apperr.Forbidden("you must join this event before submitting answers")
	}

	question, category, ok := ev.Snapshot.FindQuestion(questionID)
	if !ok {
		return nil, apperr.NotFound("question %s not found in event %s", questionID, eventID)
	}

	hintUsed, err := s.resolveHintUsage(ctx, eventID, userID, questionID, question, req)
	if err != nil {
		return nil, err
	}

	correct := question.CheckAnswer(req.Answer)

	rec := &models.AnswerRecord{
		EventID:       eventID,
		UserID:        userID,
		QuestionID:    questionID,
		QuestionTitle: question.Title,
		CategoryName:  category.Name,
		UserAnswer:    req.Answer,
		IsCorrect:     correct,
		HintUsed:      hintUsed,
		Timestamp:     time.Now(),
	}

	credited, err := s.ledger.HasCredited(ctx, eventID, userID, questionID)
	if err != nil {
		return nil, err
	}
	if credited {
		return s.recordRepeat(ctx, rec, category.Name)
	}

	if !correct {
		if err := s.ledger.Insert(ctx, rec); err != nil {
			return nil, err
		}
		s.publisher.Publish("answer.submitted", map[string]any{
			"event_id": eventID, "user_id": userID, "question_id": questionID, "correct": false,
		})
		return &SubmitResult{Correct: false, PointsAwarded: 0, CategoryName: category.Name}, nil
	}

	awarded := question.AwardPoints(hintUsed)
	rec.PointsAwarded = awarded

	// The credited insert is the atomic idempotency gate: under concurrent
	// submissions only one writer passes, the rest see ErrAlreadyCredited.
	if err := s.ledger.InsertCredited(ctx, rec); err != nil {
		if errors.Is(err, repository.ErrAlreadyCredited) {
			repeat := *rec
			repeat.ID = ""
			repeat.Credited = false
			repeat.PointsAwarded = 0
			return s.recordRepeat(ctx, &repeat, category.Name)
		}
		return nil, err
	}

	if err := s.events.CreditAnswer(ctx, eventID, userID, questionID, awarded); err != nil {
		return nil, err
	}
	s.board.Invalidate(ctx, eventID)
	s.publisher.Publish("answer.submitted", map[string]any{
		"event_id": eventID, "user_id": userID, "question_id": questionID,
		"correct": true, "points_awarded": awarded,
	})

	return &SubmitResult{Correct: true, PointsAwarded: awarded, CategoryName: category.Name}, nil
}

// recordRepeat logs a zero-point audit row for a question the participant
// already got credit for. The row keeps the real verdict of the repeat text;
// only the response reports the question as answered.
func (s *AnswerService) recordRepeat(ctx context.Context, rec *models.AnswerRecord, categoryName string) (*SubmitResult, error) {
	rec.PointsAwarded = 0
	if err := s.ledger.Insert(ctx, rec); err != nil {
		return nil, err
	}
	return &SubmitResult{Correct: true, AlreadyAnswered: true, PointsAwarded: 0, CategoryName: categoryName}, nil
}

// resolveHintUsage derives hint usage server-side from the disclosure log,
// OR-ing in the client flag, and warns when client-supplied penalty values
// disagree with the stored hint config.
func (s *AnswerService) resolveHintUsage(ctx context.Context, eventID, userID, questionID string, question *models.EmbeddedQuestion, req SubmitAnswerRequest) (bool, error) {
	disclosed, err := s.hints.WasDisclosed(ctx, eventID, userID, questionID)
	if err != nil {
		return false, err
	}
	hintUsed := disclosed || req.HintUsed

	if req.HintUsed != disclosed {
		logger.Log.Warn("client hint flag disagrees with disclosure log",
			zap.String("event_id", eventID),
			zap.String("user_id", userID),
			zap.String("question_id", questionID),
			zap.Bool("client", req.HintUsed),
			zap.Bool("disclosed", disclosed))
	}
	if req.HintReduction != 0 && req.HintReduction != question.Hint.PointReduction {
		logger.Log.Warn("ignoring client-supplied hint reduction",
			zap.String("event_id", eventID),
			zap.String("question_id", questionID),
			zap.Int("client", req.HintReduction),
			zap.Int("stored", question.Hint.PointReduction))
	}
	if req.HintReductionType != "" && req.HintReductionType != question.Hint.ReductionType {
		logger.Log.Warn("ignoring client-supplied hint reduction type",
			zap.String("event_id", eventID),
			zap.String("question_id", questionID),
			zap.String("client", req.HintReductionType),
			zap.String("stored", question.Hint.ReductionType))
	}
	return hintUsed, nil
}

// RequestHint returns the question's hint text and records the disclosure.
// No check that the question is unanswered; asking after solving just logs
// another disclosure.
func (s *AnswerService) RequestHint(ctx context.Context, eventID, userID, questionID string) (string, error) {
	ev, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		return "", err
	}
	if ev.ParticipantIndex(userID) == -1 {
		return "", apperr.Forbidden("you must join this event before requesting hints")
	}
	question, _, ok := ev.Snapshot.FindQuestion(questionID)
	if !ok {
		return "", apperr.NotFound("question %s not found in event %s", questionID, eventID)
	}

	if err := s.hints.Record(ctx, &models.HintDisclosure{
		EventID:    eventID,
		UserID:     userID,
		QuestionID: questionID,
	}); err != nil {
		return "", err
	}
	s.publisher.Publish("hint.requested", map[string]any{
		"event_id": eventID, "user_id": userID, "question_id": questionID,
	})
	return question.Hint.Text, nil
}

// ListAnswers returns the event's ledger: all rows for admins, the caller's
// own rows otherwise.
func (s *AnswerService) ListAnswers(ctx context.Context, eventID, userID string, isAdmin bool) ([]models.AnswerRecord, error) {
	if _, err := s.events.FindByID(ctx, eventID); err != nil {
		return nil, err
	}
	if isAdmin {
		return s.ledger.FindByEvent(ctx, eventID)
	}
	return s.ledger.FindByEventAndUser(ctx, eventID, userID)
}
