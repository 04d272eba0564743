package db

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pollstake/pollstake/internal/db/model"
)

func (db *Database) SaveNewMarket(
	ctx context.Context, marketDoc *model.MarketDocument,
) error {
	_, err := db.collection(model.MarketCollection).InsertOne(ctx, marketDoc)
	if err != nil {
		var writeErr mongo.WriteException
		if errors.As(err, &writeErr) {
			for _, e := range writeErr.WriteErrors {
				if mongo.IsDuplicateKeyError(e) {
					return &DuplicateKeyError{
						Key:     marketDoc.Address,
						Message: "market already exists",
					}
				}
			}
		}
		return err
	}
	return nil
}

func (db *Database) GetMarketByAddress(ctx context.Context, address string) (*model.MarketDocument, error) {
	filter := bson.M{"_id": address}

	res := db.collection(model.MarketCollection).FindOne(ctx, filter)
	var marketDoc model.MarketDocument
	if err := res.Decode(&marketDoc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &NotFoundError{
				Key:     address,
				Message: "market not found",
			}
		}
		return nil, err
	}
	return &marketDoc, nil
}

func (db *Database) GetMarketCount(ctx context.Context) (uint64, error) {
	count, err := db.collection(model.MarketCollection).CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, err
	}
	return uint64(count), nil
}

// FindActiveMarkets pages through active markets in sequence order. The
// pagination token is the sequence to resume from; an empty token starts
// from the beginning. Returns the page and the token for the next one, or
// an empty token on the last page.
func (db *Database) FindActiveMarkets(ctx context.Context, paginationToken string, limit int64) ([]*model.MarketDocument, string, error) {
	filter := bson.M{"active": true}
	if paginationToken != "" {
		seq, err := strconv.ParseUint(paginationToken, 10, 64)
		if err != nil {
			return nil, "", &InvalidPaginationTokenError{
				Message: fmt.Sprintf("invalid pagination token %q", paginationToken),
			}
		}
		filter["sequence"] = bson.M{"$gte": seq}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "sequence", Value: 1}}).
		SetLimit(limit + 1)

	cursor, err := db.collection(model.MarketCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, "", err
	}

	var markets []*model.MarketDocument
	if err := cursor.All(ctx, &markets); err != nil {
		return nil, "", err
	}

	nextToken := ""
	if int64(len(markets)) > limit {
		nextToken = strconv.FormatUint(markets[limit].Sequence, 10)
		markets = markets[:limit]
	}
	return markets, nextToken, nil
}

func (db *Database) CountActiveMarkets(ctx context.Context) (uint64, error) {
	count, err := db.collection(model.MarketCollection).CountDocuments(ctx, bson.M{"active": true})
	if err != nil {
		return 0, err
	}
	return uint64(count), nil
}

func (db *Database) MarkMarketEnded(ctx context.Context, address string) error {
	filter := bson.M{"_id": address}
	update := bson.M{"$set": bson.M{"active": false}}

	res := db.collection(model.MarketCollection).FindOneAndUpdate(ctx, filter, update)
	if res.Err() != nil {
		if errors.Is(res.Err(), mongo.ErrNoDocuments) {
			return &NotFoundError{
				Key:     address,
				Message: "market not found",
			}
		}
		return res.Err()
	}
	return nil
}

func (db *Database) UpdateMarketResolved(ctx context.Context, address string, winningSide string) error {
	filter := bson.M{"_id": address}
	update := bson.M{"$set": bson.M{
		"resolved":     true,
		"winning_side": winningSide,
		"active":       false,
	}}

	res := db.collection(model.MarketCollection).FindOneAndUpdate(ctx, filter, update)
	if res.Err() != nil {
		if errors.Is(res.Err(), mongo.ErrNoDocuments) {
			return &NotFoundError{
				Key:     address,
				Message: "market not found",
			}
		}
		return res.Err()
	}
	return nil
}

func (db *Database) UpdateMarketTotalStaked(ctx context.Context, address string, totalStaked string) error {
	filter := bson.M{"_id": address}
	update := bson.M{"$set": bson.M{"total_staked": totalStaked}}

	res := db.collection(model.MarketCollection).FindOneAndUpdate(ctx, filter, update)
	if res.Err() != nil {
		if errors.Is(res.Err(), mongo.ErrNoDocuments) {
			return &NotFoundError{
				Key:     address,
				Message: "market not found",
			}
		}
		return res.Err()
	}
	return nil
}

// FindEndedUnresolvedMarkets lists markets still flagged active whose end
// time has passed. The ended-market poller feeds on this.
func (db *Database) FindEndedUnresolvedMarkets(ctx context.Context, now int64, limit int64) ([]*model.MarketDocument, error) {
	filter := bson.M{
		"active":   true,
		"end_time": bson.M{"$lte": now},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "end_time", Value: 1}}).
		SetLimit(limit)

	cursor, err := db.collection(model.MarketCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	var markets []*model.MarketDocument
	if err := cursor.All(ctx, &markets); err != nil {
		return nil, err
	}
	return markets, nil
}
