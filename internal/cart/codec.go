package cart

import (
	"encoding/json"
	"errors"
	"fmt"
)

const documentFormat = 1

// ErrInvalidDocument is returned by Decode for payloads that are not a cart
// document or that violate the cart invariants.
var ErrInvalidDocument = errors.New("invalid cart document")

type document struct {
	Format int    `json:"format"`
	Lines  []Line `json:"lines"`
}

// Encode serializes the lines of snap for storage outside the process.
// Derived totals are not stored; they are recomputed on restore.
func Encode(snap Snapshot) ([]byte, error) {
	lines := snap.Lines
	if lines == nil {
		lines = []Line{}
	}
	data, err := json.Marshal(document{Format: documentFormat, Lines: lines})
	if err != nil {
		return nil, fmt.Errorf("marshal cart: %w", err)
	}
	return data, nil
}

// Decode parses a document written by Encode and re-checks the invariants:
// positive quantities, ids derived from product ids, no duplicate lines.
func Decode(data []byte) ([]Line, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if doc.Format != documentFormat {
		return nil, fmt.Errorf("%w: unsupported format %d", ErrInvalidDocument, doc.Format)
	}

	seen := make(map[string]struct{}, len(doc.Lines))
	for _, l := range doc.Lines {
		if l.ProductID == "" {
			return nil, fmt.Errorf("%w: line without product id", ErrInvalidDocument)
		}
		if l.ID != LineID(l.ProductID) {
			return nil, fmt.Errorf("%w: line id %q does not match product %q", ErrInvalidDocument, l.ID, l.ProductID)
		}
		if l.Quantity < 1 {
			return nil, fmt.Errorf("%w: line %q has quantity %d", ErrInvalidDocument, l.ID, l.Quantity)
		}
		if _, dup := seen[l.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate line %q", ErrInvalidDocument, l.ID)
		}
		seen[l.ID] = struct{}{}
	}
	if doc.Lines == nil {
		doc.Lines = []Line{}
	}
	return doc.Lines, nil
}
