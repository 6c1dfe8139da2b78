package models

import "time"

// Category groups question references inside a set. Order is meaningful and
// preserved through snapshots.
type Category struct {
	Name        string   `bson:"name" json:"name"`
	Description string   `bson:"description" json:"description"`
	IsVisible   bool     `bson:"is_visible" json:"is_visible"`
	QuestionIDs []string `bson:"question_ids" json:"question_ids"`
}

type QuestionSet struct {
	ID           string     `bson:"_id,omitempty" json:"id"`
	Title        string     `bson:"title" json:"title"`
	Description  string     `bson:"description" json:"description"`
	Categories   []Category `bson:"categories" json:"categories"`
	CreatedBy    string     `bson:"created_by" json:"created_by"`
	CreatorEmail string     `bson:"creator_email" json:"creator_email"`
	Active       bool       `bson:"active" json:"active"`
	CreatedAt    time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `bson:"updated_at" json:"updated_at"`
}
