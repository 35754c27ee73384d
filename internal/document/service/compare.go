package service

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DiffSegment is one run of equal, inserted or deleted text.
type DiffSegment struct {
	Op   string `json:"op"`
	Text string `json:"text"`
}

// Comparison describes how version To differs from version From.
type Comparison struct {
	DocumentID string        `json:"documentId"`
	From       int           `json:"from"`
	To         int           `json:"to"`
	Inserted   int           `json:"inserted"`
	Deleted    int           `json:"deleted"`
	Distance   int           `json:"distance"`
	Segments   []DiffSegment `json:"segments"`
}

func (s *docService) Compare(ctx context.Context, id string, from, to int) (*Comparison, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	before, err := s.replay.Reconstruct(ctx, d, from)
	if err != nil {
		return nil, fmt.Errorf("compare %s: %w", id, err)
	}
	after, err := s.replay.Reconstruct(ctx, d, to)
	if err != nil {
		return nil, fmt.Errorf("compare %s: %w", id, err)
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(before, after, false))
	out := &Comparison{
		DocumentID: id,
		From:       from,
		To:         to,
		Distance:   dmp.DiffLevenshtein(diffs),
		Segments:   make([]DiffSegment, 0, len(diffs)),
	}
	for _, df := range diffs {
		seg := DiffSegment{Text: df.Text}
		switch df.Type {
		case diffmatchpatch.DiffInsert:
			seg.Op = "insert"
			out.Inserted += utf8.RuneCountInString(df.Text)
		case diffmatchpatch.DiffDelete:
			seg.Op = "delete"
			out.Deleted += utf8.RuneCountInString(df.Text)
		default:
			seg.Op = "equal"
		}
		out.Segments = append(out.Segments, seg)
	}
	return out, nil
}
