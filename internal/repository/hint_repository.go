package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"ctf-event-service/internal/models"
)

// HintRepository records hint disclosures so answer scoring can determine
// hint usage server-side rather than trusting the client flag.
type HintRepository struct {
	Col *mongo.Collection
}

func NewHintRepository(db *mongo.Database) *HintRepository {
	return &HintRepository{Col: db.Collection("hint_disclosures")}
}

func (r *HintRepository) Record(ctx context.Context, d *models.HintDisclosure) error {
	if d.ID == "" {
		d.ID = primitive.NewObjectID().Hex()
	}
	if d.Timestamp.IsZero() {
		d.Timestamp = time.Now()
	}
	_, err := r.Col.InsertOne(ctx, d)
	return err
}

func (r *HintRepository) WasDisclosed(ctx context.Context, eventID, userID, questionID string) (bool, error) {
	n, err := r.Col.CountDocuments(ctx, bson.M{
		"event_id":    eventID,
		"user_id":     userID,
		"question_id": questionID,
	})
	return n > 0, err
}

func (r *HintRepository) DeleteByEvent(ctx context.Context, eventID string) error {
	_, err := r.Col.DeleteMany(ctx, bson.M{"event_id": eventID})
	return err
}
