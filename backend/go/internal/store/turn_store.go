package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"AIAssistant/backend/go/internal/models"
)

// TurnStore 持久化对话轮次的执行记录。
type TurnStore interface {
	Create(ctx context.Context, rec *models.TurnRecord) error
	GetByID(ctx context.Context, id string) (*models.TurnRecord, error)
	GetByUserID(ctx context.Context, userID string, page, limit int) ([]*models.TurnRecord, error)
	Finish(ctx context.Context, rec *models.TurnRecord) error
}

// MongoTurnStore 是基于 MongoDB 的 TurnStore。
type MongoTurnStore struct {
	collection *mongo.Collection
}

func NewMongoTurnStore(db *mongo.Database, collectionName string) *MongoTurnStore {
	return &MongoTurnStore{collection: db.Collection(collectionName)}
}

// EnsureIndexes 创建按用户分页查询所需的索引，重复调用是幂等的。
func (s *MongoTurnStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "submitted_at", Value: -1}},
		Options: options.Index().SetName("user_submitted_at"),
	})
	return err
}

func (s *MongoTurnStore) Create(ctx context.Context, rec *models.TurnRecord) error {
	_, err := s.collection.InsertOne(ctx, rec)
	return err
}

func (s *MongoTurnStore) GetByID(ctx context.Context, id string) (*models.TurnRecord, error) {
	var rec models.TurnRecord
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetByUserID 按提交时间倒序分页，page 从 1 开始。
func (s *MongoTurnStore) GetByUserID(ctx context.Context, userID string, page, limit int) ([]*models.TurnRecord, error) {
	if page < 1 {
		page = 1
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "submitted_at", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cursor, err := s.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var recs []*models.TurnRecord
	if err := cursor.All(ctx, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// Finish 写入轮次的最终状态。
func (s *MongoTurnStore) Finish(ctx context.Context, rec *models.TurnRecord) error {
	if rec.CompletedAt.IsZero() {
		rec.CompletedAt = time.Now()
	}
	_, err := s.collection.UpdateOne(ctx, bson.M{"_id": rec.ID}, bson.M{
		"$set": bson.M{
			"handler":      rec.Handler,
			"status":       rec.Status,
			"event_count":  rec.EventCount,
			"file":         rec.File,
			"error":        rec.Error,
			"completed_at": rec.CompletedAt,
		},
	})
	return err
}
