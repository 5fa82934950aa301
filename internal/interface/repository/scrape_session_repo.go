package repository

import (
	"context"
	"errors"
	"time"

	"flightscout-service/internal/domain/entity"
	"flightscout-service/internal/domain/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoScrapeSessionRepository implements ScrapeSessionRepository
type MongoScrapeSessionRepository struct {
	collection *mongo.Collection
}

// NewMongoScrapeSessionRepository creates a new scrape session repository
func NewMongoScrapeSessionRepository(ctx context.Context, db *mongo.Database) (repository.ScrapeSessionRepository, error) {
	collection := db.Collection("scrape_sessions")

	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.M{"sessionId": 1},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "createdAt", Value: -1}},
		},
	})
	if err != nil {
		return nil, err
	}

	return &MongoScrapeSessionRepository{
		collection: collection,
	}, nil
}

// FindBySessionID finds a session by id
func (r *MongoScrapeSessionRepository) FindBySessionID(ctx context.Context, sessionID string) (*entity.ScrapeSession, error) {
	var session entity.ScrapeSession
	err := r.collection.FindOne(ctx, bson.M{"sessionId": sessionID}).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

// FindRecent lists the most recently created sessions
func (r *MongoScrapeSessionRepository) FindRecent(ctx context.Context, limit int) ([]*entity.ScrapeSession, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var sessions []*entity.ScrapeSession
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// Save creates or replaces a session record
func (r *MongoScrapeSessionRepository) Save(ctx context.Context, session *entity.ScrapeSession) error {
	session.UpdatedAt = time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = session.UpdatedAt
	}

	_, err := r.collection.ReplaceOne(
		ctx,
		bson.M{"sessionId": session.SessionID},
		session,
		options.Replace().SetUpsert(true),
	)
	return err
}

// MongoScrapeLogRepository implements ScrapeLogRepository
type MongoScrapeLogRepository struct {
	collection *mongo.Collection
}

// NewMongoScrapeLogRepository creates a new scraping log repository
func NewMongoScrapeLogRepository(ctx context.Context, db *mongo.Database) (repository.ScrapeLogRepository, error) {
	collection := db.Collection("scrape_logs")

	// Create index on sessionId for per-session listing
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "sessionId", Value: 1}, {Key: "createdAt", Value: 1}},
	})
	if err != nil {
		return nil, err
	}

	return &MongoScrapeLogRepository{
		collection: collection,
	}, nil
}

// Insert appends a log entry
func (r *MongoScrapeLogRepository) Insert(ctx context.Context, log *entity.ScrapeLog) error {
	if log.ID == "" {
		log.ID = primitive.NewObjectID().Hex()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	_, err := r.collection.InsertOne(ctx, log)
	return err
}

// FindBySessionID lists a session's log entries in order
func (r *MongoScrapeLogRepository) FindBySessionID(ctx context.Context, sessionID string) ([]*entity.ScrapeLog, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{"sessionId": sessionID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var logs []*entity.ScrapeLog
	if err := cursor.All(ctx, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}
