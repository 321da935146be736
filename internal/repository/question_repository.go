package repository

import (
	"context"

	"practice-service/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// QuestionFilter narrows the candidate pool fetched for selection.
type QuestionFilter struct {
	Subject    string
	Topics     []string
	Difficulty models.Tier
}

type QuestionRepository struct {
	Col *mongo.Collection
}

func NewQuestionRepository(db *mongo.Database) *QuestionRepository {
	return &QuestionRepository{Col: db.Collection("questions")}
}

// FindPublished returns published questions matching the filter.
func (r *QuestionRepository) FindPublished(ctx context.Context, f QuestionFilter) ([]models.Question, error) {
	query := bson.M{"published": true}
	if f.Subject != "" {
		query["subject"] = f.Subject
	}
	if len(f.Topics) > 0 {
		query["$or"] = bson.A{
			bson.M{"topic": bson.M{"$in": f.Topics}},
			bson.M{"subtopic": bson.M{"$in": f.Topics}},
		}
	}
	if f.Difficulty != "" {
		query["difficulty"] = f.Difficulty
	}

	cur, err := r.Col.Find(ctx, query)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var questions []models.Question
	for cur.Next(ctx) {
		var q models.Question
		if err := cur.Decode(&q); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, cur.Err()
}

// FindByIDs returns questions in the order of the given ids. Missing ids are
// skipped silently.
func (r *QuestionRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	cur, err := r.Col.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	byID := make(map[string]models.Question, len(ids))
	for cur.Next(ctx) {
		var q models.Question
		if err := cur.Decode(&q); err != nil {
			return nil, err
		}
		byID[q.ID] = q
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}

	ordered := make([]models.Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := byID[id]; ok {
			ordered = append(ordered, q)
		}
	}
	return ordered, nil
}
