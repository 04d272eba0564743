package model

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pollstake/pollstake/internal/config"
)

const setupTimeout = 30 * time.Second

// Setup connects to mongo and creates the collections and indexes the
// query index relies on. Safe to run repeatedly.
func Setup(ctx context.Context, cfg *config.DbConfig) error {
	ctx, cancel := context.WithTimeout(ctx, setupTimeout)
	defer cancel()

	credential := options.Credential{
		Username: cfg.Username,
		Password: cfg.Password,
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Address).SetAuth(credential))
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Disconnect(ctx)
	}()

	database := client.Database(cfg.DbName)

	indexes := map[string][]mongo.IndexModel{
		MarketCollection: {
			{
				Keys:    bson.D{{Key: "sequence", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{
				Keys: bson.D{{Key: "active", Value: 1}, {Key: "end_time", Value: 1}},
			},
		},
		OverallStatsCollection: nil,
	}

	for collection, models := range indexes {
		if err := database.CreateCollection(ctx, collection); err != nil {
			var cmdErr mongo.CommandError
			if !errors.As(err, &cmdErr) || cmdErr.Name != "NamespaceExists" {
				return err
			}
		}
		if len(models) == 0 {
			continue
		}
		if _, err := database.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return err
		}
	}

	return nil
}
