package export

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Record is the metadata kept for an exported document version.
type Record struct {
	DocumentID string    `bson:"documentId" json:"documentId"`
	Version    int       `bson:"version" json:"version"`
	ObjectKey  string    `bson:"objectKey" json:"objectKey"`
	Size       int64     `bson:"size" json:"size"`
	SHA256     string    `bson:"sha256" json:"sha256"`
	ExportedBy string    `bson:"exportedBy" json:"exportedBy"`
	ExportedAt time.Time `bson:"exportedAt" json:"exportedAt"`
}

// Store persists export records keyed by (documentId, version).
// Load returns nil, nil when nothing was exported yet.
type Store interface {
	Save(ctx context.Context, r *Record) error
	Load(ctx context.Context, documentID string, version int) (*Record, error)
}

// MongoStore keeps records in the version_exports collection.
type MongoStore struct {
	col *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{col: db.Collection("version_exports")}
}

// Save upserts the record.
func (s *MongoStore) Save(ctx context.Context, r *Record) error {
	filter := bson.M{"documentId": r.DocumentID, "version": r.Version}
	opts := options.Update().SetUpsert(true)
	if _, err := s.col.UpdateOne(ctx, filter, bson.M{"$set": r}, opts); err != nil {
		return fmt.Errorf("save export record: %w", err)
	}
	return nil
}

func (s *MongoStore) Load(ctx context.Context, documentID string, version int) (*Record, error) {
	var r Record
	err := s.col.FindOne(ctx, bson.M{"documentId": documentID, "version": version}).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load export record: %w", err)
	}
	return &r, nil
}

// MemoryStore is used when MongoDB is not configured.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func memKey(documentID string, version int) string {
	return fmt.Sprintf("%s@%d", documentID, version)
}

func (s *MemoryStore) Save(_ context.Context, r *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[memKey(r.DocumentID, r.Version)] = *r
	return nil
}

func (s *MemoryStore) Load(_ context.Context, documentID string, version int) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[memKey(documentID, version)]
	if !ok {
		return nil, nil
	}
	return &r, nil
}
