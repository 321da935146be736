package repository

import (
	"context"
	"time"

	"practice-service/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type AttemptRepository struct {
	Col *mongo.Collection
}

func NewAttemptRepository(db *mongo.Database) *AttemptRepository {
	return &AttemptRepository{Col: db.Collection("question_attempts")}
}

func (r *AttemptRepository) Create(ctx context.Context, attempt *models.QuestionAttempt) error {
	_, err := r.Col.InsertOne(ctx, attempt)
	return err
}

// UpsertForSession reconciles the session's attempts at completion from the
// client-held answer map, replacing any rows the fire-and-forget path already
// wrote and filling in any it dropped.
func (r *AttemptRepository) UpsertForSession(ctx context.Context, attempts []models.QuestionAttempt) error {
	opts := options.Replace().SetUpsert(true)
	for i := range attempts {
		filter := bson.M{
			"session_id":  attempts[i].SessionID,
			"question_id": attempts[i].QuestionID,
		}
		if _, err := r.Col.ReplaceOne(ctx, filter, &attempts[i], opts); err != nil {
			return err
		}
	}
	return nil
}

// RecentQuestionIDs returns the distinct question ids the child answered
// since the given time. Used to exclude recent repeats from selection.
func (r *AttemptRepository) RecentQuestionIDs(ctx context.Context, childID string, since time.Time) ([]string, error) {
	raw, err := r.Col.Distinct(ctx, "question_id", bson.M{
		"child_id":   childID,
		"created_at": bson.M{"$gte": since},
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(raw))
	for _, v := range raw {
		if id, ok := v.(string); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// RecentAccuracy returns the child's accuracy (0-100) over attempts since the
// given time, or -1 when there is no history.
func (r *AttemptRepository) RecentAccuracy(ctx context.Context, childID string, since time.Time) (float64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"child_id":   childID,
			"created_at": bson.M{"$gte": since},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":      nil,
			"attempts": bson.M{"$sum": 1},
			"correct":  bson.M{"$sum": bson.M{"$cond": bson.A{"$is_correct", 1, 0}}},
		}}},
	}

	cur, err := r.Col.Aggregate(ctx, pipeline)
	if err != nil {
		return -1, err
	}
	defer cur.Close(ctx)

	var row struct {
		Attempts int `bson:"attempts"`
		Correct  int `bson:"correct"`
	}
	if !cur.Next(ctx) {
		return -1, cur.Err()
	}
	if err := cur.Decode(&row); err != nil {
		return -1, err
	}
	if row.Attempts == 0 {
		return -1, nil
	}
	return float64(row.Correct) / float64(row.Attempts) * 100, nil
}

// TopicPerformance is the weakness-heatmap aggregate: per-topic attempt
// counts, accuracy and last-practice time across the child's full history.
func (r *AttemptRepository) TopicPerformance(ctx context.Context, childID string) ([]models.TopicPerformance, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"child_id": childID}}},
		{{Key: "$group", Value: bson.M{
			"_id":            bson.M{"subject": "$subject", "topic": "$topic"},
			"attempts":       bson.M{"$sum": 1},
			"correct":        bson.M{"$sum": bson.M{"$cond": bson.A{"$is_correct", 1, 0}}},
			"last_practiced": bson.M{"$max": "$created_at"},
		}}},
		{{Key: "$project", Value: bson.M{
			"_id":            0,
			"subject":        "$_id.subject",
			"topic":          "$_id.topic",
			"attempts":       1,
			"correct":        1,
			"last_practiced": 1,
			"accuracy": bson.M{"$multiply": bson.A{
				bson.M{"$divide": bson.A{"$correct", "$attempts"}},
				100,
			}},
		}}},
		{{Key: "$sort", Value: bson.M{"subject": 1, "topic": 1}}},
	}

	cur, err := r.Col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []models.TopicPerformance
	for cur.Next(ctx) {
		var row models.TopicPerformance
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, cur.Err()
}
