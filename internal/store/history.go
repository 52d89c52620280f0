package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"izin-bot/internal/model"
)

const (
	historyCollection   = "leave_history"
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// HistoryStore keeps resolved leaves for reporting. It is write-only from
// the engine's point of view and is never used to restore active leaves.
type HistoryStore struct {
	coll *mongo.Collection
}

func NewHistoryStore(ctx context.Context, db *MongoDB) (*HistoryStore, error) {
	coll := db.Collection(historyCollection)

	if _, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "group_id", Value: 1}, {Key: "resolved_at", Value: -1}}},
		{Keys: bson.D{{Key: "member_id", Value: 1}, {Key: "resolved_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
	}); err != nil {
		return nil, fmt.Errorf("create leave_history indexes: %w", err)
	}

	return &HistoryStore{coll: coll}, nil
}

// Record upserts a resolved leave keyed by its request ID.
func (s *HistoryStore) Record(ctx context.Context, req model.LeaveRequest) error {
	if !req.Status.Terminal() {
		return fmt.Errorf("record leave %s: status %q is not terminal", req.ID, req.Status)
	}
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": req.ID}, req, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("record leave %s: %w", req.ID, err)
	}
	return nil
}

// ListByGroup returns the most recently resolved leaves of a group.
func (s *HistoryStore) ListByGroup(ctx context.Context, groupID string, limit int) ([]*model.LeaveRequest, error) {
	return s.find(ctx, bson.M{"group_id": groupID}, limit)
}

// ListByMember returns the most recently resolved leaves of one member in a group.
func (s *HistoryStore) ListByMember(ctx context.Context, groupID, memberID string, limit int) ([]*model.LeaveRequest, error) {
	return s.find(ctx, bson.M{"group_id": groupID, "member_id": memberID}, limit)
}

func (s *HistoryStore) find(ctx context.Context, filter bson.M, limit int) ([]*model.LeaveRequest, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "resolved_at", Value: -1}}).
		SetLimit(int64(ClampLimit(limit)))
	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find leave history: %w", err)
	}
	var results []*model.LeaveRequest
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("decode leave history: %w", err)
	}
	return results, nil
}

// ClampLimit maps a caller-supplied page size onto the allowed range.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultHistoryLimit
	case limit > maxHistoryLimit:
		return maxHistoryLimit
	default:
		return limit
	}
}
