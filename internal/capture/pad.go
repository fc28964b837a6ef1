// Package capture renders drawn or typed signatures onto a small raster and
// attaches the result to a signature field.
package capture

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/gofont/gosmallcaps"
	"golang.org/x/image/font/opentype"

	"github.com/dharsanguruparan/SignDesk/internal/model"
)

// Raster geometry and pen settings.
const (
	Width       = 280
	Height      = 120
	FontSize    = 36
	StrokeWidth = 2
)

// Mode is the input method of a pad.
type Mode string

const (
	ModeDraw Mode = "draw"
	ModeType Mode = "type"
)

// Style is the display style for typed signatures.
type Style string

const (
	StyleCursive   Style = "cursive"
	StyleSerif     Style = "serif"
	StyleSansSerif Style = "sans-serif"
	StyleMonospace Style = "monospace"
)

var (
	ErrWrongMode    = errors.New("operation not available in current capture mode")
	ErrUnknownStyle = errors.New("unknown signature style")
	ErrUnknownMode  = errors.New("unknown capture mode")
	ErrEmptyCapture = errors.New("nothing has been captured")
)

var styleFonts = map[Style][]byte{
	StyleCursive:   goitalic.TTF,
	StyleSerif:     gosmallcaps.TTF,
	StyleSansSerif: goregular.TTF,
	StyleMonospace: gomono.TTF,
}

var (
	parseOnce sync.Once
	parsed    map[Style]*opentype.Font
	parseErr  error
)

// Styles lists the available typed styles.
func Styles() []Style {
	return []Style{StyleCursive, StyleSerif, StyleSansSerif, StyleMonospace}
}

// Valid reports whether s is a known style.
func (s Style) Valid() bool {
	_, ok := styleFonts[s]
	return ok
}

// newFace builds a fresh face; faces are not safe for concurrent use, parsed
// fonts are.
func newFace(s Style) (font.Face, error) {
	parseOnce.Do(func() {
		parsed = make(map[Style]*opentype.Font, len(styleFonts))
		for style, ttf := range styleFonts {
			f, err := opentype.Parse(ttf)
			if err != nil {
				parseErr = fmt.Errorf("parse %s font: %w", style, err)
				return
			}
			parsed[style] = f
		}
	})
	if parseErr != nil {
		return nil, parseErr
	}
	f, ok := parsed[s]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStyle, s)
	}
	return opentype.NewFace(f, &opentype.FaceOptions{Size: FontSize, DPI: 72, Hinting: font.HintingFull})
}

// Pad is one capture surface. Switching modes blanks it.
type Pad struct {
	mu    sync.Mutex
	mode  Mode
	dc    *gg.Context
	text  string
	style Style
}

// NewPad returns a blank pad in draw mode.
func NewPad() *Pad {
	return &Pad{mode: ModeDraw, dc: gg.NewContext(Width, Height), style: StyleCursive}
}

func (p *Pad) Mode() Mode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode
}

// SetMode switches input method. Content from the previous mode is dropped.
func (p *Pad) SetMode(m Mode) error {
	if m != ModeDraw && m != ModeType {
		return fmt.Errorf("%w: %q", ErrUnknownMode, m)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if m != p.mode {
		p.mode = m
		p.clear()
		p.text = ""
	}
	return nil
}

// Stroke draws one freehand polyline.
func (p *Pad) Stroke(points []model.Point) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mode != ModeDraw {
		return ErrWrongMode
	}
	if len(points) < 2 {
		return nil
	}
	dc := p.dc
	dc.SetRGB(0, 0, 0)
	dc.SetLineWidth(StrokeWidth)
	dc.SetLineCapRound()
	dc.SetLineJoinRound()
	dc.MoveTo(points[0].X, points[0].Y)
	for _, pt := range points[1:] {
		dc.LineTo(pt.X, pt.Y)
	}
	dc.Stroke()
	return nil
}

// Clear blanks the raster and forgets typed text.
func (p *Pad) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clear()
	p.text = ""
}

func (p *Pad) clear() {
	p.dc.SetRGBA(0, 0, 0, 0)
	p.dc.Clear()
}

// Type sets the typed name and style and renders it.
func (p *Pad) Type(text string, style Style) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mode != ModeType {
		return ErrWrongMode
	}
	if !style.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStyle, style)
	}
	p.text, p.style = text, style
	return p.render()
}

// Generate re-renders the current typed text.
func (p *Pad) Generate() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mode != ModeType {
		return ErrWrongMode
	}
	return p.render()
}

func (p *Pad) render() error {
	p.clear()
	if p.text == "" {
		return nil
	}
	face, err := newFace(p.style)
	if err != nil {
		return err
	}
	defer face.Close()
	p.dc.SetFontFace(face)
	p.dc.SetRGB(0, 0, 0)
	p.dc.DrawStringAnchored(p.text, Width/2, Height/2, 0.5, 0.5)
	return nil
}

// Text returns the typed text (empty in draw mode).
func (p *Pad) Text() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.text
}

// Empty reports whether no pixel has been inked.
func (p *Pad) Empty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return blank(p.dc.Image())
}

func blank(img image.Image) bool {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a != 0 {
				return false
			}
		}
	}
	return true
}

// PNG encodes the raster.
func (p *Pad) PNG() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var buf bytes.Buffer
	if err := p.dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// DataURI encodes the raster as a data:image/png URI.
func (p *Pad) DataURI() (string, error) {
	raw, err := p.PNG()
	if err != nil {
		return "", err
	}
	return PNGDataURI(raw), nil
}

const pngPrefix = "data:image/png;base64,"

// PNGDataURI wraps raw PNG bytes in a data URI.
func PNGDataURI(raw []byte) string {
	return pngPrefix + base64.StdEncoding.EncodeToString(raw)
}

// DecodePNGDataURI returns the PNG bytes of a data URI built by PNGDataURI.
func DecodePNGDataURI(uri string) ([]byte, bool) {
	if len(uri) <= len(pngPrefix) || uri[:len(pngPrefix)] != pngPrefix {
		return nil, false
	}
	raw, err := base64.StdEncoding.DecodeString(uri[len(pngPrefix):])
	if err != nil {
		return nil, false
	}
	return raw, true
}
