package models

import "time"

// Hint carries the optional hint for a question together with the point
// penalty applied when a participant uses it before answering correctly.
type Hint struct {
	Text           string `bson:"text" json:"text"`
	PointReduction int    `bson:"point_reduction" json:"point_reduction"`
	ReductionType  string `bson:"reduction_type" json:"reduction_type"` // "percentage" or "static"
}

type Solution struct {
	Description string `bson:"description" json:"description"`
	URL         string `bson:"url" json:"url"`
}

type Question struct {
	ID           string    `bson:"_id,omitempty" json:"id"`
	Title        string    `bson:"title" json:"title"`
	Description  string    `bson:"description" json:"description"`
	Points       int       `bson:"points" json:"points"`
	Difficulty   string    `bson:"difficulty" json:"difficulty"` // easy | medium | hard
	Product      string    `bson:"product" json:"product"`
	Answer       string    `bson:"answer" json:"answer"`
	Hint         Hint      `bson:"hint" json:"hint"`
	Solution     Solution  `bson:"solution" json:"solution"`
	CreatedBy    string    `bson:"created_by" json:"created_by"`
	CreatorEmail string    `bson:"creator_email" json:"creator_email"`
	Active       bool      `bson:"active" json:"active"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updated_at"`
}

const (
	ReductionPercentage = "percentage"
	ReductionStatic     = "static"

	DefaultHintReduction = 10
)

// DifficultyPoints maps each difficulty to its conventional point value,
// used when a question is created without an explicit score.
var DifficultyPoints = map[string]int{
	"easy":   100,
	"medium": 200,
	"hard":   300,
}

// ApplyDefaults fills in the conventional point value for the question's
// difficulty and normalizes the hint config before the first save.
func (q *Question) ApplyDefaults() {
	if q.Points == 0 {
		if pts, ok := DifficultyPoints[q.Difficulty]; ok {
			q.Points = pts
		}
	}
	if q.Hint.ReductionType == "" {
		q.Hint.ReductionType = ReductionPercentage
	}
	if q.Hint.PointReduction == 0 {
		q.Hint.PointReduction = DefaultHintReduction
	}
}
