package db

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pollstake/pollstake/internal/db/model"
)

// UpsertOverallStats updates or inserts overall stats
func (db *Database) UpsertOverallStats(
	ctx context.Context,
	marketCount uint64,
	pendingSagas uint64,
) error {
	filter := bson.M{"_id": "overall_stats"}
	update := bson.M{
		"$set": bson.M{
			"market_count":  marketCount,
			"pending_sagas": pendingSagas,
			"last_updated":  time.Now().Unix(),
		},
	}
	opts := options.Update().SetUpsert(true)

	_, err := db.collection(model.OverallStatsCollection).UpdateOne(ctx, filter, update, opts)
	return err
}

func (db *Database) GetOverallStats(ctx context.Context) (*model.OverallStatsDocument, error) {
	filter := bson.M{"_id": "overall_stats"}

	res := db.collection(model.OverallStatsCollection).FindOne(ctx, filter)
	var stats model.OverallStatsDocument
	if err := res.Decode(&stats); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &NotFoundError{
				Key:     "overall_stats",
				Message: "overall stats not found",
			}
		}
		return nil, err
	}
	return &stats, nil
}
