// Package model contains the records shared across SignDesk packages: documents,
// their signature fields, and uploaded intake files.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// Document is a single persisted document together with its field overlay.
// Persisting a Document always replaces the whole record; fields are never
// written independently of their parent.
type Document struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	Type            string           `json:"type"`
	Status          Status           `json:"status"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
	Content         string           `json:"content"`
	FormData        json.RawMessage  `json:"formData,omitempty"`
	SignatureFields []SignatureField `json:"signatureFields"`
	Recipients      []string         `json:"recipients,omitempty"`
}

var (
	// ErrDuplicateField is returned by Validate when two fields share an id.
	ErrDuplicateField = errors.New("duplicate signature field id")
	// ErrDocumentNotFound and ErrFieldNotFound are shared by every package
	// that looks records up, so the HTTP layer can map them with errors.Is.
	ErrDocumentNotFound = errors.New("document not found")
	ErrFieldNotFound    = errors.New("signature field not found")
)

// Clone returns a deep copy so callers can mutate the result without touching
// the original (stores hand out clones, never their internal values).
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := *d
	if d.FormData != nil {
		out.FormData = append(json.RawMessage(nil), d.FormData...)
	}
	if d.SignatureFields != nil {
		out.SignatureFields = append([]SignatureField(nil), d.SignatureFields...)
	}
	if d.Recipients != nil {
		out.Recipients = append([]string(nil), d.Recipients...)
	}
	return &out
}

// Validate checks the record-level invariants.
func (d *Document) Validate() error {
	if d.ID == "" {
		return errors.New("document id is required")
	}
	if !d.Status.Valid() {
		return fmt.Errorf("document %s: %w: %q", d.ID, ErrInvalidStatus, d.Status)
	}
	seen := make(map[int64]struct{}, len(d.SignatureFields))
	for i := range d.SignatureFields {
		f := &d.SignatureFields[i]
		if _, dup := seen[f.ID]; dup {
			return fmt.Errorf("document %s: %w: %d", d.ID, ErrDuplicateField, f.ID)
		}
		seen[f.ID] = struct{}{}
		if err := f.Validate(); err != nil {
			return fmt.Errorf("document %s: %w", d.ID, err)
		}
	}
	return nil
}

// FieldIndex returns the position of the field with id, or -1.
func (d *Document) FieldIndex(id int64) int {
	for i := range d.SignatureFields {
		if d.SignatureFields[i].ID == id {
			return i
		}
	}
	return -1
}

// Field returns a pointer into the field list so callers can mutate in place.
func (d *Document) Field(id int64) (*SignatureField, bool) {
	i := d.FieldIndex(id)
	if i < 0 {
		return nil, false
	}
	return &d.SignatureFields[i], true
}

// Touch refreshes UpdatedAt. The new value is strictly later than the previous
// one even when the clock has not advanced, so readers can order writes.
func (d *Document) Touch(now time.Time) {
	now = now.UTC()
	if !now.After(d.UpdatedAt) {
		now = d.UpdatedAt.Add(time.Millisecond)
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
}

// IDSource hands out time-derived identifiers. Document ids are decimal Unix
// milliseconds; field ids are the same value as an integer. Both are bumped
// past the last issued value so two calls within a millisecond never collide.
type IDSource struct {
	mu   sync.Mutex
	now  func() time.Time
	last int64
}

// NewIDSource returns an IDSource driven by now (time.Now when nil).
func NewIDSource(now func() time.Time) *IDSource {
	if now == nil {
		now = time.Now
	}
	return &IDSource{now: now}
}

// Next returns the next monotonic millisecond value.
func (s *IDSource) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.now().UnixMilli()
	if v <= s.last {
		v = s.last + 1
	}
	s.last = v
	return v
}

// DocumentID returns the next document id.
func (s *IDSource) DocumentID() string {
	return strconv.FormatInt(s.Next(), 10)
}
