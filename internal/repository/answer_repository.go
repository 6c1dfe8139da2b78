package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ctf-event-service/internal/models"
)

// ErrAlreadyCredited reports that a credited ledger row already exists for
// the (event, user, question) triple. It is the authoritative idempotency
// signal for concurrent correct submissions.
var ErrAlreadyCredited = errors.New("answer already credited")

type AnswerRepository struct {
	Col *mongo.Collection
}

func NewAnswerRepository(db *mongo.Database) *AnswerRepository {
	return &AnswerRepository{Col: db.Collection("answers")}
}

// EnsureIndexes creates the partial unique index that guarantees at most one
// credited row per participant per question per event. The credited insert
// acts as a check-and-set; losing racers get a duplicate key error.
func (r *AnswerRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.Col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "event_id", Value: 1},
				{Key: "user_id", Value: 1},
				{Key: "question_id", Value: 1},
			},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"credited": true}),
		},
		{
			Keys: bson.D{
				{Key: "event_id", Value: 1},
				{Key: "user_id", Value: 1},
				{Key: "ts", Value: 1},
			},
		},
	})
	return err
}

// Insert appends a non-credited ledger row (incorrect attempts, zero-point
// audit rows for repeats).
func (r *AnswerRepository) Insert(ctx context.Context, rec *models.AnswerRecord) error {
	if rec.ID == "" {
		rec.ID = primitive.NewObjectID().Hex()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	_, err := r.Col.InsertOne(ctx, rec)
	return err
}

// InsertCredited appends the single row that grants points for a question.
// Returns ErrAlreadyCredited when another credited row exists for the same
// (event, user, question), which callers treat as "already answered".
func (r *AnswerRepository) InsertCredited(ctx context.Context, rec *models.AnswerRecord) error {
	rec.Credited = true
	err := r.Insert(ctx, rec)
	if mongo.IsDuplicateKeyError(err) {
		return ErrAlreadyCredited
	}
	return err
}

// HasCredited reports whether the participant has already been credited for
// the question. A cheap pre-check; the unique index stays authoritative.
func (r *AnswerRepository) HasCredited(ctx context.Context, eventID, userID, questionID string) (bool, error) {
	n, err := r.Col.CountDocuments(ctx, bson.M{
		"event_id":    eventID,
		"user_id":     userID,
		"question_id": questionID,
		"credited":    true,
	})
	return n > 0, err
}

func (r *AnswerRepository) FindByEvent(ctx context.Context, eventID string) ([]models.AnswerRecord, error) {
	return r.findMany(ctx, bson.M{"event_id": eventID})
}

func (r *AnswerRepository) FindByEventAndUser(ctx context.Context, eventID, userID string) ([]models.AnswerRecord, error) {
	return r.findMany(ctx, bson.M{"event_id": eventID, "user_id": userID})
}

func (r *AnswerRepository) findMany(ctx context.Context, filter bson.M) ([]models.AnswerRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "ts", Value: 1}})
	cur, err := r.Col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var records []models.AnswerRecord
	for cur.Next(ctx) {
		var rec models.AnswerRecord
		if err := cur.Decode(&rec); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, cur.Err()
}

// DeleteByEvent removes the event's ledger; only event deletion does this.
func (r *AnswerRepository) DeleteByEvent(ctx context.Context, eventID string) error {
	_, err := r.Col.DeleteMany(ctx, bson.M{"event_id": eventID})
	return err
}
