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

type EventRepository struct {
	Col *mongo.Collection
}

func NewEventRepository(db *mongo.Database) *EventRepository {
	return &EventRepository{Col: db.Collection("events")}
}

func (r *EventRepository) findMany(ctx context.Context, filter bson.M) ([]models.Event, error) {
	opts := options.Find().SetSort(bson.D{{Key: "event_date", Value: -1}})
	cur, err := r.Col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var events []models.Event
	for cur.Next(ctx) {
		var e models.Event
		if err := cur.Decode(&e); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, cur.Err()
}

func (r *EventRepository) FindAll(ctx context.Context) ([]models.Event, error) {
	return r.findMany(ctx, bson.M{})
}

func (r *EventRepository) FindActive(ctx context.Context) ([]models.Event, error) {
	return r.findMany(ctx, bson.M{"active": true})
}

func (r *EventRepository) FindByParticipant(ctx context.Context, userID string) ([]models.Event, error) {
	return r.findMany(ctx, bson.M{"participants.user_id": userID})
}

// FindByQuestionSetRef returns every event whose snapshot originates from the
// given set, for question-set level propagation.
func (r *EventRepository) FindByQuestionSetRef(ctx context.Context, setID string) ([]models.Event, error) {
	return r.findMany(ctx, bson.M{"question_set_ref": setID})
}

// FindByEmbeddedQuestion returns every event whose snapshot embeds the given
// question, matched by original id, for question-level propagation.
func (r *EventRepository) FindByEmbeddedQuestion(ctx context.Context, questionID string) ([]models.Event, error) {
	return r.findMany(ctx, bson.M{"question_set.categories.questions.original_id": questionID})
}

func (r *EventRepository) FindByID(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	err := r.Col.FindOne(ctx, bson.M{"_id": id}).Decode(&event)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.NotFound("event %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// FindActiveByCode looks up an active event by its join code.
func (r *EventRepository) FindActiveByCode(ctx context.Context, code string) (*models.Event, error) {
	var event models.Event
	err := r.Col.FindOne(ctx, bson.M{"event_code": code, "active": true}).Decode(&event)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.NotFound("invalid event code or event is not active")
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// CodeInUse reports whether another event already uses the join code.
func (r *EventRepository) CodeInUse(ctx context.Context, code, excludeID string) (bool, error) {
	filter := bson.M{"event_code": code}
	if excludeID != "" {
		filter["_id"] = bson.M{"$ne": excludeID}
	}
	n, err := r.Col.CountDocuments(ctx, filter)
	return n > 0, err
}

func (r *EventRepository) CountByQuestionSetRef(ctx context.Context, setID string) (int64, error) {
	return r.Col.CountDocuments(ctx, bson.M{"question_set_ref": setID})
}

func (r *EventRepository) Create(ctx context.Context, event *models.Event) error {
	if event.ID == "" {
		event.ID = primitive.NewObjectID().Hex()
	}
	now := time.Now()
	event.CreatedAt = now
	event.UpdatedAt = now
	if event.Participants == nil {
		event.Participants = []models.Participant{}
	}
	_, err := r.Col.InsertOne(ctx, event)
	return err
}

func (r *EventRepository) Update(ctx context.Context, id string, update bson.M) error {
	update["updated_at"] = time.Now()
	res, err := r.Col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": update})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("event %s not found", id)
	}
	return nil
}

func (r *EventRepository) Delete(ctx context.Context, id string) error {
	res, err := r.Col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return apperr.NotFound("event %s not found", id)
	}
	return nil
}

// ReplaceSnapshot overwrites the embedded snapshot wholesale. Used by event
// create/update re-embeds and by propagation passes; each call is its own
// atomic unit.
func (r *EventRepository) ReplaceSnapshot(ctx context.Context, id string, snap models.Snapshot) error {
	return r.Update(ctx, id, bson.M{"question_set": snap})
}

func (r *EventRepository) AddParticipant(ctx context.Context, eventID string, p models.Participant) error {
	res, err := r.Col.UpdateOne(ctx,
		bson.M{"_id": eventID},
		bson.M{
			"$push": bson.M{"participants": p},
			"$set":  bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("event %s not found", eventID)
	}
	return nil
}

// CreditAnswer adds the question to the participant's answered set and
// increments their score in a single update.
func (r *EventRepository) CreditAnswer(ctx context.Context, eventID, userID, questionID string, points int) error {
	res, err := r.Col.UpdateOne(ctx,
		bson.M{"_id": eventID, "participants.user_id": userID},
		bson.M{
			"$addToSet": bson.M{"participants.$.answered_questions": questionID},
			"$inc":      bson.M{"participants.$.score": points},
			"$set":      bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("participant %s not found in event %s", userID, eventID)
	}
	return nil
}

// SetCategoryVisibility flips the visibility flag on the first category with
// the given name inside the embedded snapshot.
func (r *EventRepository) SetCategoryVisibility(ctx context.Context, eventID, categoryName string, visible bool) error {
	res, err := r.Col.UpdateOne(ctx,
		bson.M{"_id": eventID, "question_set.categories.name": categoryName},
		bson.M{"$set": bson.M{
			"question_set.categories.$.is_visible": visible,
			"updated_at":                           time.Now(),
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("category %s not found in event %s", categoryName, eventID)
	}
	return nil
}

// OverrideAnswer rewrites the embedded answer text for a question directly on
// the event, independent of the originating live question. A later question
// edit propagation writes the same field and silently replaces the override;
// question-level edits win over event-level corrections.
func (r *EventRepository) OverrideAnswer(ctx context.Context, eventID, questionID, answer string) error {
	res, err := r.Col.UpdateOne(ctx,
		bson.M{"_id": eventID},
		bson.M{"$set": bson.M{
			"question_set.categories.$[].questions.$[q].answer": answer,
			"updated_at": time.Now(),
		}},
		options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: []interface{}{bson.M{"q.original_id": questionID}},
		}),
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("event %s not found", eventID)
	}
	if res.ModifiedCount == 0 {
		return apperr.NotFound("question %s not found in event %s", questionID, eventID)
	}
	return nil
}
