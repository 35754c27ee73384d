package document

import "time"

// DefaultName is used when a document is created without a name.
const DefaultName = "untitled.txt"

// Document is the persistent state of a shared plain-text document.
// Content always equals InitialContent with every change record up to Version
// applied in order.
type Document struct {
	ID             string     `json:"id" bson:"_id"`
	Name           string     `json:"name" bson:"name"`
	InitialContent string     `json:"initialContent" bson:"initialContent"`
	Content        string     `json:"content" bson:"content"`
	Version        int        `json:"version" bson:"version"`
	IsLocked       bool       `json:"isLocked" bson:"isLocked"`
	LockedBy       string     `json:"lockedBy,omitempty" bson:"lockedBy"`
	LockExpiresAt  *time.Time `json:"lockExpiresAt,omitempty" bson:"lockExpiresAt,omitempty"`
	Collaborators  []string   `json:"collaborators" bson:"collaborators"`
	CreatedBy      string     `json:"createdBy" bson:"createdBy"`
	CreatedAt      time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt" bson:"updatedAt"`
}

// LockHolder returns the user currently holding the lock, or "" when the
// document is unlocked or the lock lease ran out before now.
func (d *Document) LockHolder(now time.Time) string {
	if !d.IsLocked {
		return ""
	}
	if d.LockExpiresAt != nil && !now.Before(*d.LockExpiresAt) {
		return ""
	}
	return d.LockedBy
}

// CanEdit reports whether userID may apply changes at time now.
func (d *Document) CanEdit(userID string, now time.Time) bool {
	holder := d.LockHolder(now)
	return holder == "" || holder == userID
}

// HasCollaborator reports whether userID is in the collaborator set.
func (d *Document) HasCollaborator(userID string) bool {
	for _, c := range d.Collaborators {
		if c == userID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers never share slices with a store.
func (d *Document) Clone() *Document {
	cp := *d
	cp.Collaborators = append([]string(nil), d.Collaborators...)
	if d.LockExpiresAt != nil {
		t := *d.LockExpiresAt
		cp.LockExpiresAt = &t
	}
	return &cp
}

// ChangeRecord is one accepted edit. Records are never mutated or deleted.
type ChangeRecord struct {
	ID         string     `json:"id" bson:"_id"`
	DocumentID string     `json:"documentId" bson:"documentId"`
	Author     string     `json:"author" bson:"author"`
	Timestamp  time.Time  `json:"timestamp" bson:"timestamp"`
	Version    int        `json:"version" bson:"version"`
	Ops        []ChangeOp `json:"ops" bson:"ops"`
}

// Comment is an annotation on a document with a flat list of replies.
type Comment struct {
	ID         string     `json:"id" bson:"_id"`
	DocumentID string     `json:"documentId" bson:"documentId"`
	Author     string     `json:"author" bson:"author"`
	Content    string     `json:"content" bson:"content"`
	CreatedAt  time.Time  `json:"createdAt" bson:"createdAt"`
	Resolved   bool       `json:"resolved" bson:"resolved"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty" bson:"resolvedAt,omitempty"`
	Replies    []Reply    `json:"replies" bson:"replies"`
}

// Clone returns a deep copy of the comment and its replies.
func (c *Comment) Clone() *Comment {
	cp := *c
	cp.Replies = append([]Reply{}, c.Replies...)
	if c.ResolvedAt != nil {
		t := *c.ResolvedAt
		cp.ResolvedAt = &t
	}
	return &cp
}

// Reply belongs to exactly one comment.
type Reply struct {
	ID        string    `json:"id" bson:"id"`
	CommentID string    `json:"commentId" bson:"commentId"`
	Author    string    `json:"author" bson:"author"`
	Content   string    `json:"content" bson:"content"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}
