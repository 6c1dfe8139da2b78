package snapshot

import (
	"context"

	"ctf-event-service/internal/apperr"
	"ctf-event-service/internal/models"
)

type QuestionSetSource interface {
	FindByID(ctx context.Context, id string) (*models.QuestionSet, error)
}

type QuestionSource interface {
	FindByID(ctx context.Context, id string) (*models.Question, error)
}

// Builder materializes a self-contained snapshot from the live question set
// and question bank. The result shares no state with the live documents;
// each embedded question carries its original id for propagation matching.
type Builder struct {
	sets      QuestionSetSource
	questions QuestionSource
}

func NewBuilder(sets QuestionSetSource, questions QuestionSource) *Builder {
	return &Builder{sets: sets, questions: questions}
}

// Build resolves every category's question references and embeds full copies.
// It fails with NotFound if the set or any referenced question is missing;
// a partial snapshot is never produced.
func (b *Builder) Build(ctx context.Context, setID string) (models.Snapshot, error) {
	set, err := b.sets.FindByID(ctx, setID)
	if err != nil {
		return models.Snapshot{}, err
	}

	snap := models.Snapshot{
		Title:       set.Title,
		Description: set.Description,
		Categories:  make([]models.EmbeddedCategory, 0, len(set.Categories)),
	}

	for _, cat := range set.Categories {
		embedded := models.EmbeddedCategory{
			Name:        cat.Name,
			Description: cat.Description,
			IsVisible:   cat.IsVisible,
			Questions:   make([]models.EmbeddedQuestion, 0, len(cat.QuestionIDs)),
		}
		for _, qid := range cat.QuestionIDs {
			q, err := b.questions.FindByID(ctx, qid)
			if err != nil {
				if apperr.IsNotFound(err) {
					return models.Snapshot{}, apperr.NotFound("question %s referenced by set %s not found", qid, setID)
				}
				return models.Snapshot{}, err
			}
			embedded.Questions = append(embedded.Questions, EmbedQuestion(q))
		}
		snap.Categories = append(snap.Categories, embedded)
	}

	return snap, nil
}

// EmbedQuestion copies a live question into its embedded form, defaulting
// the hint and solution shapes and stamping the original id.
func EmbedQuestion(q *models.Question) models.EmbeddedQuestion {
	hint := q.Hint
	if hint.ReductionType == "" {
		hint.ReductionType = models.ReductionPercentage
	}
	if hint.PointReduction == 0 {
		hint.PointReduction = models.DefaultHintReduction
	}
	return models.EmbeddedQuestion{
		OriginalID:   q.ID,
		Title:        q.Title,
		Description:  q.Description,
		Points:       q.Points,
		Difficulty:   q.Difficulty,
		Product:      q.Product,
		Answer:       q.Answer,
		Hint:         hint,
		Solution:     q.Solution,
		CreatorEmail: q.CreatorEmail,
	}
}
