package document

import "fmt"

// OpKind tags the variant carried by a ChangeOp.
type OpKind string

const (
	OpInsert  OpKind = "insert"
	OpDelete  OpKind = "delete"
	OpReplace OpKind = "replace"
)

// ChangeOp is a single text transformation. Position and Length count Unicode
// code points of the text the op is applied to. Insert uses Position and
// Content, Delete uses Position and Length, Replace uses all three.
type ChangeOp struct {
	Kind     OpKind `json:"type" bson:"type"`
	Position int    `json:"position" bson:"position"`
	Length   int    `json:"length,omitempty" bson:"length,omitempty"`
	Content  string `json:"content,omitempty" bson:"content,omitempty"`
}

func Insert(position int, content string) ChangeOp {
	return ChangeOp{Kind: OpInsert, Position: position, Content: content}
}

func Delete(position, length int) ChangeOp {
	return ChangeOp{Kind: OpDelete, Position: position, Length: length}
}

func Replace(position, length int, content string) ChangeOp {
	return ChangeOp{Kind: OpReplace, Position: position, Length: length, Content: content}
}

// Apply returns text with the op applied. Out-of-range positions are rejected
// with ErrMalformedChange rather than clamped.
func (op ChangeOp) Apply(text string) (string, error) {
	runes := []rune(text)
	n := len(runes)
	switch op.Kind {
	case OpInsert:
		if op.Position < 0 || op.Position > n {
			return "", fmt.Errorf("%w: insert at %d outside text of length %d", ErrMalformedChange, op.Position, n)
		}
		out := make([]rune, 0, n+len(op.Content))
		out = append(out, runes[:op.Position]...)
		out = append(out, []rune(op.Content)...)
		out = append(out, runes[op.Position:]...)
		return string(out), nil
	case OpDelete, OpReplace:
		if op.Position < 0 || op.Position > n || op.Length < 0 || op.Length > n-op.Position {
			return "", fmt.Errorf("%w: %s of %d at %d outside text of length %d", ErrMalformedChange, op.Kind, op.Length, op.Position, n)
		}
		out := make([]rune, 0, n-op.Length+len(op.Content))
		out = append(out, runes[:op.Position]...)
		if op.Kind == OpReplace {
			out = append(out, []rune(op.Content)...)
		}
		out = append(out, runes[op.Position+op.Length:]...)
		return string(out), nil
	default:
		return "", fmt.Errorf("%w: unknown op type %q", ErrMalformedChange, op.Kind)
	}
}

// ApplyOps applies ops left to right, each to the result of the previous one.
// Nothing is returned on failure, so callers never see a partial result.
func ApplyOps(text string, ops []ChangeOp) (string, error) {
	out := text
	for i, op := range ops {
		next, err := op.Apply(out)
		if err != nil {
			return "", fmt.Errorf("op %d: %w", i, err)
		}
		out = next
	}
	return out, nil
}
