package model

import (
	"errors"
	"fmt"
)

// FieldType is the kind of placeholder a field represents. It is fixed when
// the field is created.
type FieldType string

const (
	FieldSignature FieldType = "signature"
	FieldDate      FieldType = "date"
	FieldText      FieldType = "text"
	FieldInitial   FieldType = "initial"
)

// Signer is the party a field belongs to. It only drives color-coding.
type Signer string

const (
	SignerServiceProvider Signer = "Service Provider"
	SignerClient          Signer = "Client"
)

// Default position used when a field is added without a drop point.
const (
	DefaultFieldX = 50
	DefaultFieldY = 50
)

var (
	ErrInvalidFieldType = errors.New("invalid field type")
	ErrInvalidSigner    = errors.New("invalid signer")
	ErrFillMismatch     = errors.New("filled flag does not match signature data")
	ErrFieldSize        = errors.New("field size does not match its type")
)

type fieldSpec struct {
	width, height float64
	label         string
}

var fieldSpecs = map[FieldType]fieldSpec{
	FieldSignature: {width: 200, height: 60, label: "Signature"},
	FieldDate:      {width: 150, height: 30, label: "Date"},
	FieldInitial:   {width: 100, height: 30, label: "Initial"},
	FieldText:      {width: 100, height: 30, label: "Text"},
}

// FieldTypes lists the palette in display order.
func FieldTypes() []FieldType {
	return []FieldType{FieldSignature, FieldInitial, FieldDate, FieldText}
}

// Valid reports whether t is a known field type.
func (t FieldType) Valid() bool {
	_, ok := fieldSpecs[t]
	return ok
}

// Size returns the fixed width and height for fields of type t.
func (t FieldType) Size() (width, height float64) {
	s := fieldSpecs[t]
	return s.width, s.height
}

// DefaultLabel returns the label new fields of type t start with.
func (t FieldType) DefaultLabel() string {
	return fieldSpecs[t].label
}

// Capturable reports whether clicking a field of type t opens signature capture.
func (t FieldType) Capturable() bool {
	return t == FieldSignature || t == FieldDate || t == FieldInitial
}

// Graphic reports whether captured data for t is an image rather than text.
func (t FieldType) Graphic() bool {
	return t == FieldSignature || t == FieldInitial
}

// ParseFieldType converts s into a FieldType.
func ParseFieldType(s string) (FieldType, error) {
	t := FieldType(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidFieldType, s)
	}
	return t, nil
}

// Valid reports whether s is a known signer role.
func (s Signer) Valid() bool {
	return s == SignerServiceProvider || s == SignerClient
}

// ParseSigner converts s into a Signer.
func ParseSigner(s string) (Signer, error) {
	v := Signer(s)
	if !v.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidSigner, s)
	}
	return v, nil
}

// Point is a position in document-canvas coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// SignatureField is a positioned placeholder awaiting a signature, date, or text.
type SignatureField struct {
	ID            int64     `json:"id"`
	X             float64   `json:"x"`
	Y             float64   `json:"y"`
	Width         float64   `json:"width"`
	Height        float64   `json:"height"`
	Type          FieldType `json:"type"`
	Label         string    `json:"label"`
	Signer        Signer    `json:"signer"`
	SignatureData string    `json:"signatureData,omitempty"`
	Filled        bool      `json:"filled"`
}

// NewField builds a field of type t. With a drop point the field is centered on
// it; without one it lands at the default position. Coordinates are not clamped.
func NewField(id int64, t FieldType, drop *Point) (SignatureField, error) {
	if !t.Valid() {
		return SignatureField{}, fmt.Errorf("%w: %q", ErrInvalidFieldType, t)
	}
	w, h := t.Size()
	f := SignatureField{
		ID:     id,
		X:      DefaultFieldX,
		Y:      DefaultFieldY,
		Width:  w,
		Height: h,
		Type:   t,
		Label:  t.DefaultLabel(),
		Signer: SignerServiceProvider,
	}
	if drop != nil {
		f.X = drop.X - w/2
		f.Y = drop.Y - h/2
	}
	return f, nil
}

// Center returns the middle of the field box.
func (f *SignatureField) Center() Point {
	return Point{X: f.X + f.Width/2, Y: f.Y + f.Height/2}
}

// CenterOn moves the field so its center sits on p.
func (f *SignatureField) CenterOn(p Point) {
	f.X = p.X - f.Width/2
	f.Y = p.Y - f.Height/2
}

// Fill attaches captured data. Empty data clears the field.
func (f *SignatureField) Fill(data string) {
	f.SignatureData = data
	f.Filled = data != ""
}

// Validate checks the per-field invariants.
func (f *SignatureField) Validate() error {
	if !f.Type.Valid() {
		return fmt.Errorf("field %d: %w: %q", f.ID, ErrInvalidFieldType, f.Type)
	}
	if !f.Signer.Valid() {
		return fmt.Errorf("field %d: %w: %q", f.ID, ErrInvalidSigner, f.Signer)
	}
	if w, h := f.Type.Size(); f.Width != w || f.Height != h {
		return fmt.Errorf("field %d: %w", f.ID, ErrFieldSize)
	}
	if f.Filled != (f.SignatureData != "") {
		return fmt.Errorf("field %d: %w", f.ID, ErrFillMismatch)
	}
	return nil
}
