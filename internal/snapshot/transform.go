package snapshot

import "ctf-event-service/internal/models"

// QuestionUpdate carries the fields supplied in a question edit. Nil fields
// are left untouched on the embedded copies.
type QuestionUpdate struct {
	Title       *string
	Description *string
	Points      *int
	Difficulty  *string
	Product     *string
	Answer      *string
	Hint        *models.Hint
	Solution    *models.Solution
}

// ApplyQuestionUpdate returns a copy of the snapshot with the update applied
// to every embedded question whose original id matches. The input snapshot is
// never mutated, so a propagation pass is safe to re-run.
func ApplyQuestionUpdate(snap models.Snapshot, questionID string, upd QuestionUpdate) (models.Snapshot, bool) {
	changed := false
	out := cloneSnapshot(snap)
	for ci := range out.Categories {
		for qi := range out.Categories[ci].Questions {
			q := &out.Categories[ci].Questions[qi]
			if q.OriginalID != questionID {
				continue
			}
			if upd.Title != nil {
				q.Title = *upd.Title
			}
			if upd.Description != nil {
				q.Description = *upd.Description
			}
			if upd.Points != nil {
				q.Points = *upd.Points
			}
			if upd.Difficulty != nil {
				q.Difficulty = *upd.Difficulty
			}
			if upd.Product != nil {
				q.Product = *upd.Product
			}
			if upd.Answer != nil {
				q.Answer = *upd.Answer
			}
			if upd.Hint != nil {
				q.Hint = *upd.Hint
			}
			if upd.Solution != nil {
				q.Solution = *upd.Solution
			}
			changed = true
		}
	}
	return out, changed
}

// RemoveQuestion returns a copy of the snapshot with every embedded question
// matching the original id filtered out of its category.
func RemoveQuestion(snap models.Snapshot, questionID string) (models.Snapshot, bool) {
	changed := false
	out := models.Snapshot{Title: snap.Title, Description: snap.Description}
	out.Categories = make([]models.EmbeddedCategory, 0, len(snap.Categories))
	for _, cat := range snap.Categories {
		kept := make([]models.EmbeddedQuestion, 0, len(cat.Questions))
		for _, q := range cat.Questions {
			if q.OriginalID == questionID {
				changed = true
				continue
			}
			kept = append(kept, q)
		}
		cat.Questions = kept
		out.Categories = append(out.Categories, cat)
	}
	return out, changed
}

func cloneSnapshot(snap models.Snapshot) models.Snapshot {
	out := models.Snapshot{Title: snap.Title, Description: snap.Description}
	out.Categories = make([]models.EmbeddedCategory, len(snap.Categories))
	for i, cat := range snap.Categories {
		questions := make([]models.EmbeddedQuestion, len(cat.Questions))
		copy(questions, cat.Questions)
		cat.Questions = questions
		out.Categories[i] = cat
	}
	return out
}
