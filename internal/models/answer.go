package models

import "time"

// AnswerRecord is one row of the append-only answer ledger. Every submission
// attempt produces exactly one record, correct or not. Credited is true only
// on the single row that granted points for a question; a partial unique
// index on (event_id, user_id, question_id) where credited is true enforces
// at-most-once credit even under concurrent submissions.
type AnswerRecord struct {
	ID            string    `bson:"_id,omitempty" json:"id"`
	EventID       string    `bson:"event_id" json:"event_id"`
	UserID        string    `bson:"user_id" json:"user_id"`
	QuestionID    string    `bson:"question_id" json:"question_id"` // original question id
	QuestionTitle string    `bson:"question_title" json:"question_title"`
	CategoryName  string    `bson:"category_name" json:"category_name"`
	UserAnswer    string    `bson:"user_answer" json:"user_answer"`
	IsCorrect     bool      `bson:"is_correct" json:"is_correct"`
	HintUsed      bool      `bson:"hint_used" json:"hint_used"`
	PointsAwarded int       `bson:"points_awarded" json:"points_awarded"`
	Credited      bool      `bson:"credited" json:"credited"`
	Timestamp     time.Time `bson:"ts" json:"ts"`
}

// HintDisclosure records that a participant saw a question's hint. Later
// submissions use these records to decide hint usage server-side instead of
// trusting the client flag.
type HintDisclosure struct {
	ID         string    `bson:"_id,omitempty" json:"id"`
	EventID    string    `bson:"event_id" json:"event_id"`
	UserID     string    `bson:"user_id" json:"user_id"`
	QuestionID string    `bson:"question_id" json:"question_id"`
	Timestamp  time.Time `bson:"ts" json:"ts"`
}
