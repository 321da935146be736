package repository

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type ChildRepository struct {
	Col *mongo.Collection
}

func NewChildRepository(db *mongo.Database) *ChildRepository {
	return &ChildRepository{Col: db.Collection("children")}
}

// Exists reports whether a child row exists. Account ownership checks stay
// upstream; this is only a sanity gate on child ids in requests.
func (r *ChildRepository) Exists(ctx context.Context, id string) (bool, error) {
	err := r.Col.FindOne(ctx, bson.M{"_id": id}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
