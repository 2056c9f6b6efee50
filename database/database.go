package database

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DB wraps the Mongo client and the two collections the application owns.
// It is constructed once in main and passed to everything that needs it.
type DB struct {
	Client *mongo.Client
	Users  *mongo.Collection
	Posts  *mongo.Collection
}

func Connect(ctx context.Context, uri, dbName string) (*DB, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	db := client.Database(dbName)
	return &DB{
		Client: client,
		Users:  db.Collection("users"),
		Posts:  db.Collection("posts"),
	}, nil
}

func (db *DB) Disconnect() error {
	if db == nil || db.Client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return db.Client.Disconnect(ctx)
}

// EnsureIndexes creates the indexes the query paths rely on: the unique
// username constraint and the post listing indexes.
func (db *DB) EnsureIndexes(ctx context.Context) error {
	_, err := db.Users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return err
	}

	_, err = db.Posts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "category", Value: 1}, {Key: "generation", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "author", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "isFeatured", Value: 1}, {Key: "createdAt", Value: -1}}},
	})
	return err
}

// transactionsUnsupported reports whether the error means the deployment
// cannot run multi-document transactions (standalone server).
func transactionsUnsupported(err error) bool {
	if err == nil {
		return false
	}
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && cmdErr.Code == 20 { // IllegalOperation
		return true
	}
	return strings.Contains(err.Error(), "Transaction numbers")
}

// MirroredWrite applies a pair of writes that must land together, such as
// the following/followers updates of a follow. It runs both inside a
// session transaction when the deployment supports one; otherwise it falls
// back to sequential writes and compensates the first if the second fails,
// so a half-applied edge never survives.
func (db *DB) MirroredWrite(ctx context.Context, first, second, undoFirst func(ctx context.Context) error) error {
	session, err := db.Client.StartSession()
	if err == nil {
		defer session.EndSession(ctx)

		_, txErr := session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
			if err := first(sc); err != nil {
				return nil, err
			}
			if err := second(sc); err != nil {
				return nil, err
			}
			return nil, nil
		})
		if txErr == nil {
			return nil
		}
		if !transactionsUnsupported(txErr) {
			return txErr
		}
		log.Debug().Msg("transactions unavailable, using compensated writes")
	}

	if err := first(ctx); err != nil {
		return err
	}
	if err := second(ctx); err != nil {
		if undoErr := undoFirst(ctx); undoErr != nil {
			log.Error().Err(undoErr).Msg("compensating write failed, graph edge may be asymmetric")
			return errors.Join(err, undoErr)
		}
		return err
	}
	return nil
}
