package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gogotex/gogotex/backend/collab-service/internal/document"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const appendAttempts = 5

// MongoRepo implements Store on three collections: documents, changes and
// comments. The unique (documentId, version) index on changes is what keeps
// versions gap-free and duplicate-free across processes. CommitEdit runs in a
// multi-document transaction, so the deployment must be a replica set.
type MongoRepo struct {
	client   *mongo.Client
	docs     *mongo.Collection
	changes  *mongo.Collection
	comments *mongo.Collection
}

func NewMongoRepo(ctx context.Context, db *mongo.Database) (*MongoRepo, error) {
	m := &MongoRepo{
		client:   db.Client(),
		docs:     db.Collection("documents"),
		changes:  db.Collection("changes"),
		comments: db.Collection("comments"),
	}
	changeIdx := mongo.IndexModel{
		Keys:    bson.D{{Key: "documentId", Value: 1}, {Key: "version", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := m.changes.Indexes().CreateOne(ctx, changeIdx); err != nil {
		return nil, fmt.Errorf("create changes index: %w", err)
	}
	commentIdx := mongo.IndexModel{Keys: bson.D{{Key: "documentId", Value: 1}, {Key: "createdAt", Value: 1}}}
	if _, err := m.comments.Indexes().CreateOne(ctx, commentIdx); err != nil {
		return nil, fmt.Errorf("create comments index: %w", err)
	}
	return m, nil
}

func (m *MongoRepo) CreateDocument(ctx context.Context, d *document.Document) error {
	if d.Collaborators == nil {
		d.Collaborators = []string{}
	}
	if _, err := m.docs.InsertOne(ctx, d); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: document %s already exists", document.ErrInvalidInput, d.ID)
		}
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (m *MongoRepo) GetDocument(ctx context.Context, id string) (*document.Document, error) {
	return m.findDocument(ctx, id)
}

func (m *MongoRepo) findDocument(ctx context.Context, id string) (*document.Document, error) {
	var d document.Document
	if err := m.docs.FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, document.ErrNotFound
		}
		return nil, fmt.Errorf("find document: %w", err)
	}
	return &d, nil
}

func (m *MongoRepo) ListDocuments(ctx context.Context) ([]*document.Document, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := m.docs.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer cur.Close(ctx)
	out := []*document.Document{}
	for cur.Next(ctx) {
		var d document.Document
		if err := cur.Decode(&d); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		out = append(out, &d)
	}
	return out, cur.Err()
}

func (m *MongoRepo) DeleteDocument(ctx context.Context, id string) error {
	res, err := m.docs.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if res.DeletedCount == 0 {
		return document.ErrNotFound
	}
	return nil
}

func (m *MongoRepo) AddCollaborator(ctx context.Context, id, userID string, at time.Time) (*document.Document, error) {
	update := bson.M{
		"$addToSet": bson.M{"collaborators": userID},
		"$set":      bson.M{"updatedAt": at},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var d document.Document
	if err := m.docs.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, document.ErrNotFound
		}
		return nil, fmt.Errorf("add collaborator: %w", err)
	}
	return &d, nil
}

// lockFree matches documents nobody holds at now.
func lockFree(now time.Time) bson.A {
	return bson.A{
		bson.M{"isLocked": false},
		bson.M{"lockExpiresAt": bson.M{"$lte": now}},
	}
}

func (m *MongoRepo) AcquireLock(ctx context.Context, id, userID string, now time.Time, expiresAt *time.Time) (bool, error) {
	filter := bson.M{"_id": id, "$or": lockFree(now)}
	set := bson.M{"isLocked": true, "lockedBy": userID}
	update := bson.M{"$set": set}
	if expiresAt != nil {
		set["lockExpiresAt"] = *expiresAt
	} else {
		update["$unset"] = bson.M{"lockExpiresAt": ""}
	}
	res, err := m.docs.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("acquire lock: %w", err)
	}
	if res.MatchedCount == 1 {
		return true, nil
	}
	return false, m.mustExist(ctx, id)
}

func (m *MongoRepo) ReleaseLock(ctx context.Context, id, userID string) (bool, error) {
	filter := bson.M{"_id": id, "isLocked": true, "lockedBy": userID}
	update := bson.M{
		"$set":   bson.M{"isLocked": false, "lockedBy": ""},
		"$unset": bson.M{"lockExpiresAt": ""},
	}
	res, err := m.docs.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("release lock: %w", err)
	}
	if res.MatchedCount == 1 {
		return true, nil
	}
	return false, m.mustExist(ctx, id)
}

func (m *MongoRepo) mustExist(ctx context.Context, id string) error {
	n, err := m.docs.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("count documents: %w", err)
	}
	if n == 0 {
		return document.ErrNotFound
	}
	return nil
}

func (m *MongoRepo) CommitEdit(ctx context.Context, e Edit) (*document.ChangeRecord, error) {
	sess, err := m.client.StartSession()
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	out, err := sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		editable := append(lockFree(e.At), bson.M{"lockedBy": e.Editor})
		filter := bson.M{"_id": e.DocumentID, "version": e.PriorVersion, "$or": editable}
		update := bson.M{"$set": bson.M{
			"content":   e.Content,
			"version":   e.PriorVersion + 1,
			"updatedAt": e.At,
		}}
		res, err := m.docs.UpdateOne(sc, filter, update)
		if err != nil {
			return nil, fmt.Errorf("update document: %w", err)
		}
		if res.MatchedCount == 0 {
			return nil, m.explainRejectedEdit(sc, e)
		}
		rec := &document.ChangeRecord{
			ID:         e.RecordID,
			DocumentID: e.DocumentID,
			Author:     e.Editor,
			Timestamp:  e.At,
			Version:    e.PriorVersion + 1,
			Ops:        e.Ops,
		}
		if _, err := m.changes.InsertOne(sc, rec); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return nil, fmt.Errorf("%w: version %d already recorded", document.ErrStaleWrite, rec.Version)
			}
			return nil, fmt.Errorf("insert change: %w", err)
		}
		return rec, nil
	})
	if err != nil {
		return nil, err
	}
	return out.(*document.ChangeRecord), nil
}

func (m *MongoRepo) explainRejectedEdit(ctx context.Context, e Edit) error {
	d, err := m.findDocument(ctx, e.DocumentID)
	if err != nil {
		return err
	}
	if !d.CanEdit(e.Editor, e.At) {
		return document.ErrLockConflict
	}
	return fmt.Errorf("%w: expected version %d, found %d", document.ErrStaleWrite, e.PriorVersion, d.Version)
}

func (m *MongoRepo) AppendChange(ctx context.Context, rec *document.ChangeRecord) error {
	for attempt := 0; attempt < appendAttempts; attempt++ {
		latest, err := m.LatestVersion(ctx, rec.DocumentID)
		if err != nil {
			return err
		}
		rec.Version = latest + 1
		_, err = m.changes.InsertOne(ctx, rec)
		if err == nil {
			return nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("insert change: %w", err)
		}
	}
	return fmt.Errorf("%w: gave up appending to %s after %d attempts", document.ErrStaleWrite, rec.DocumentID, appendAttempts)
}

func (m *MongoRepo) History(ctx context.Context, documentID string) ([]document.ChangeRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "version", Value: 1}})
	cur, err := m.changes.Find(ctx, bson.M{"documentId": documentID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find changes: %w", err)
	}
	out := []document.ChangeRecord{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode changes: %w", err)
	}
	return out, nil
}

func (m *MongoRepo) LatestVersion(ctx context.Context, documentID string) (int, error) {
	opts := options.FindOne().
		SetSort(bson.D{{Key: "version", Value: -1}}).
		SetProjection(bson.M{"version": 1})
	var rec struct {
		Version int `bson:"version"`
	}
	if err := m.changes.FindOne(ctx, bson.M{"documentId": documentID}, opts).Decode(&rec); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, nil
		}
		return 0, fmt.Errorf("latest version: %w", err)
	}
	return rec.Version, nil
}

func (m *MongoRepo) InsertComment(ctx context.Context, c *document.Comment) error {
	if c.Replies == nil {
		c.Replies = []document.Reply{}
	}
	if _, err := m.comments.InsertOne(ctx, c); err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (m *MongoRepo) GetComment(ctx context.Context, id string) (*document.Comment, error) {
	var c document.Comment
	if err := m.comments.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, document.ErrNotFound
		}
		return nil, fmt.Errorf("find comment: %w", err)
	}
	return &c, nil
}

func (m *MongoRepo) ListComments(ctx context.Context, documentID string) ([]*document.Comment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cur, err := m.comments.Find(ctx, bson.M{"documentId": documentID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find comments: %w", err)
	}
	out := []*document.Comment{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode comments: %w", err)
	}
	return out, nil
}

func (m *MongoRepo) ResolveComment(ctx context.Context, id string, at time.Time) (*document.Comment, error) {
	filter := bson.M{"_id": id, "resolved": false}
	update := bson.M{"$set": bson.M{"resolved": true, "resolvedAt": at}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var c document.Comment
	err := m.comments.FindOneAndUpdate(ctx, filter, update, opts).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// already resolved, or missing
		return m.GetComment(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve comment: %w", err)
	}
	return &c, nil
}

func (m *MongoRepo) AppendReply(ctx context.Context, commentID string, r document.Reply) (*document.Comment, error) {
	update := bson.M{"$push": bson.M{"replies": r}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var c document.Comment
	if err := m.comments.FindOneAndUpdate(ctx, bson.M{"_id": commentID}, update, opts).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, document.ErrNotFound
		}
		return nil, fmt.Errorf("append reply: %w", err)
	}
	return &c, nil
}
