package models

import (
	"strings"
	"time"
)

// EmbeddedQuestion is the frozen copy of a repository question inside an
// event snapshot. OriginalID always points back to the live question; it is
// stamped at snapshot-build time and is the only identity used for lookups.
type EmbeddedQuestion struct {
	OriginalID   string   `bson:"original_id" json:"original_id"`
	Title        string   `bson:"title" json:"title"`
	Description  string   `bson:"description" json:"description"`
	Points       int      `bson:"points" json:"points"`
	Difficulty   string   `bson:"difficulty" json:"difficulty"`
	Product      string   `bson:"product" json:"product"`
	Answer       string   `bson:"answer" json:"answer"`
	Hint         Hint     `bson:"hint" json:"hint"`
	Solution     Solution `bson:"solution" json:"solution"`
	CreatorEmail string   `bson:"creator_email" json:"creator_email"`
}

type EmbeddedCategory struct {
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description" json:"description"`
	IsVisible   bool               `bson:"is_visible" json:"is_visible"`
	Questions   []EmbeddedQuestion `bson:"questions" json:"questions"`
}

// Snapshot is the immutable embedded copy of a question set taken when an
// event is created or re-synced. Scoring reads only from here, never from
// the live question bank.
type Snapshot struct {
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description" json:"description"`
	Categories  []EmbeddedCategory `bson:"categories" json:"categories"`
}

type Participant struct {
	UserID            string    `bson:"user_id" json:"user_id"`
	DisplayName       string    `bson:"display_name" json:"display_name"`
	Email             string    `bson:"email" json:"email"`
	FirstName         string    `bson:"first_name" json:"first_name"`
	LastName          string    `bson:"last_name" json:"last_name"`
	Organization      string    `bson:"organization" json:"organization"`
	JoinedAt          time.Time `bson:"joined_at" json:"joined_at"`
	Score             int       `bson:"score" json:"score"`
	AnsweredQuestions []string  `bson:"answered_questions" json:"answered_questions"`
}

type Event struct {
	ID             string        `bson:"_id,omitempty" json:"id"`
	Name           string        `bson:"name" json:"name"`
	Description    string        `bson:"description" json:"description"`
	QuestionSetRef string        `bson:"question_set_ref" json:"question_set_ref"`
	Snapshot       Snapshot      `bson:"question_set" json:"question_set"`
	EventCode      string        `bson:"event_code" json:"event_code"`
	EventDate      time.Time     `bson:"event_date" json:"event_date"`
	Duration       int           `bson:"duration" json:"duration"` // minutes
	ImagePath      string        `bson:"image_path" json:"image_path"`
	Active         bool          `bson:"active" json:"active"`
	Participants   []Participant `bson:"participants" json:"participants"`
	CreatedBy      string        `bson:"created_by" json:"created_by"`
	CreatorEmail   string        `bson:"creator_email" json:"creator_email"`
	CreatedAt      time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `bson:"updated_at" json:"updated_at"`
}

// FindQuestion locates an embedded question by its original id, walking
// categories in order and returning the first match along with its category.
func (s *Snapshot) FindQuestion(questionID string) (*EmbeddedQuestion, *EmbeddedCategory, bool) {
	for ci := range s.Categories {
		cat := &s.Categories[ci]
		for qi := range cat.Questions {
			if cat.Questions[qi].OriginalID == questionID {
				return &cat.Questions[qi], cat, true
			}
		}
	}
	return nil, nil, false
}

// ParticipantView returns a copy of the snapshot suitable for serving to a
// participant: hidden categories are dropped and answers and solutions are
// blanked out. Visibility is a presentation filter only; it does not affect
// scoring eligibility.
func (s *Snapshot) ParticipantView() Snapshot {
	view := Snapshot{Title: s.Title, Description: s.Description}
	for _, cat := range s.Categories {
		if !cat.IsVisible {
			continue
		}
		vc := EmbeddedCategory{
			Name:        cat.Name,
			Description: cat.Description,
			IsVisible:   cat.IsVisible,
			Questions:   make([]EmbeddedQuestion, 0, len(cat.Questions)),
		}
		for _, q := range cat.Questions {
			q.Answer = ""
			q.Solution = Solution{}
			vc.Questions = append(vc.Questions, q)
		}
		view.Categories = append(view.Categories, vc)
	}
	return view
}

// NormalizeAnswer lowercases and trims answer text for comparison.
func NormalizeAnswer(answer string) string {
	return strings.ToLower(strings.TrimSpace(answer))
}

// CheckAnswer reports whether the submitted text matches the stored answer,
// case-insensitively and ignoring surrounding whitespace.
func (q *EmbeddedQuestion) CheckAnswer(submitted string) bool {
	return NormalizeAnswer(submitted) == NormalizeAnswer(q.Answer)
}

// AwardPoints computes the points for a correct submission. The hint penalty
// comes from the embedded question's own hint config, never from the caller.
func (q *EmbeddedQuestion) AwardPoints(hintUsed bool) int {
	if !hintUsed {
		return q.Points
	}
	switch q.Hint.ReductionType {
	case ReductionStatic:
		awarded := q.Points - q.Hint.PointReduction
		if awarded < 0 {
			return 0
		}
		return awarded
	default: // percentage
		reduction := float64(q.Points) * float64(q.Hint.PointReduction) / 100
		return int(float64(q.Points) - reduction)
	}
}

// ParticipantIndex returns the roster index for the user, or -1.
func (e *Event) ParticipantIndex(userID string) int {
	for i := range e.Participants {
		if e.Participants[i].UserID == userID {
			return i
		}
	}
	return -1
}

// HasAnswered reports whether the question has already been credited to the
// participant.
func (p *Participant) HasAnswered(questionID string) bool {
	for _, id := range p.AnsweredQuestions {
		if id == questionID {
			return true
		}
	}
	return false
}
