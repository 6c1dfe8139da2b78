package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ctf-event-service/internal/apperr"
	"ctf-event-service/internal/models"
)

type QuestionSetRepository struct {
	Col *mongo.Collection
}

func NewQuestionSetRepository(db *mongo.Database) *QuestionSetRepository {
	return &QuestionSetRepository{Col: db.Collection("question_sets")}
}

func (r *QuestionSetRepository) FindAll(ctx context.Context) ([]models.QuestionSet, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := r.Col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var sets []models.QuestionSet
	for cur.Next(ctx) {
		var s models.QuestionSet
		if err := cur.Decode(&s); err != nil {
			return nil, err
		}
		sets = append(sets, s)
	}
	return sets, cur.Err()
}

func (r *QuestionSetRepository) FindByID(ctx context.Context, id string) (*models.QuestionSet, error) {
	var set models.QuestionSet
	err := r.Col.FindOne(ctx, bson.M{"_id": id}).Decode(&set)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.NotFound("question set %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &set, nil
}

func (r *QuestionSetRepository) Create(ctx context.Context, set *models.QuestionSet) error {
	if set.ID == "" {
		set.ID = primitive.NewObjectID().Hex()
	}
	now := time.Now()
	set.CreatedAt = now
	set.UpdatedAt = now
	_, err := r.Col.InsertOne(ctx, set)
	return err
}

func (r *QuestionSetRepository) Update(ctx context.Context, id string, update bson.M) error {
	update["updated_at"] = time.Now()
	res, err := r.Col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": update})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("question set %s not found", id)
	}
	return nil
}

func (r *QuestionSetRepository) Delete(ctx context.Context, id string) error {
	res, err := r.Col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return apperr.NotFound("question set %s not found", id)
	}
	return nil
}
