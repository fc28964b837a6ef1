// Package export renders a document and its field overlay as a PDF.
package export

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"math"
	"regexp"
	"sync"

	"github.com/go-pdf/fpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/dharsanguruparan/SignDesk/internal/capture"
	"github.com/dharsanguruparan/SignDesk/internal/model"
)

// Page geometry in points (A4).
const (
	pageWidth  = 595.28
	pageHeight = 841.89
	margin     = 40.0
	// canvasScale maps editor canvas pixels (96 dpi) onto PDF points.
	canvasScale = 0.75
)

// ContentType of rendered artifacts.
const ContentType = "application/pdf"

// fontFamily is the embedded TrueType family registered on every document so
// titles, bodies and field values keep characters outside cp1252.
const fontFamily = "GoText"

var whitespace = regexp.MustCompile(`\s`)

// FileName builds the download name: whitespace becomes "_" and ".pdf" is appended.
func FileName(title string) string {
	return whitespace.ReplaceAllString(title, "_") + ".pdf"
}

// Artifact is a rendered PDF.
type Artifact struct {
	FileName string
	Data     []byte
	Pages    int
}

// DataURI returns the artifact as a data:application/pdf URI.
func (a *Artifact) DataURI() string {
	return "data:" + ContentType + ";base64," + a.Base64()
}

// Base64 returns the bare base64 payload used for mail attachments.
func (a *Artifact) Base64() string {
	return base64.StdEncoding.EncodeToString(a.Data)
}

// Renderer builds PDFs. It is stateless and safe for concurrent use.
type Renderer struct{}

func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render lays out the title and wrapped body text, then draws each field box
// with its label and value at the field's canvas position.
func (r *Renderer) Render(title, content string, fields []model.SignatureField) (*Artifact, error) {
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	pdf.SetTitle(title, true)
	pdf.SetCreator("SignDesk", true)
	pdf.AddUTF8FontFromBytes(fontFamily, "", goregular.TTF)
	pdf.AddUTF8FontFromBytes(fontFamily, "B", gobold.TTF)

	pdf.AddPage()
	pdf.SetFont(fontFamily, "B", 18)
	pdf.MultiCell(0, 24, title, "", "L", false)
	pdf.Ln(8)
	pdf.SetFont(fontFamily, "", 11)
	pdf.MultiCell(0, 15, content, "", "L", false)

	// The overlay is positioned absolutely; nothing may trigger a page break.
	pdf.SetAutoPageBreak(false, 0)
	for i := range fields {
		if err := drawField(pdf, &fields[i]); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	pages, err := Validate(buf.Bytes())
	if err != nil {
		return nil, err
	}
	return &Artifact{FileName: FileName(title), Data: buf.Bytes(), Pages: pages}, nil
}

// signerColors mirrors the editor's color coding.
var signerColors = map[model.Signer][3]int{
	model.SignerServiceProvider: {37, 99, 235},
	model.SignerClient:          {22, 163, 74},
}

func drawField(pdf *fpdf.Fpdf, f *model.SignatureField) error {
	x := f.X * canvasScale
	y := math.Max(f.Y*canvasScale, 0)
	w := f.Width * canvasScale
	h := f.Height * canvasScale

	page := int(y / pageHeight)
	y -= float64(page) * pageHeight
	for pdf.PageCount() < page+1 {
		pdf.SetPage(pdf.PageCount())
		pdf.AddPage()
	}
	pdf.SetPage(page + 1)

	c := signerColors[f.Signer]
	pdf.SetDrawColor(c[0], c[1], c[2])
	pdf.SetLineWidth(0.75)
	if f.Filled {
		pdf.Rect(x, y, w, h, "D")
	} else {
		pdf.SetDashPattern([]float64{3, 2}, 0)
		pdf.Rect(x, y, w, h, "D")
		pdf.SetDashPattern([]float64{}, 0)
	}

	pdf.SetTextColor(c[0], c[1], c[2])
	pdf.SetFont(fontFamily, "", 7)
	pdf.Text(x, y-2, f.Label+" ("+string(f.Signer)+")")
	pdf.SetTextColor(0, 0, 0)

	if !f.Filled {
		return nil
	}
	if f.Type.Graphic() {
		raw, ok := capture.DecodePNGDataURI(f.SignatureData)
		if !ok {
			return fmt.Errorf("field %d: signature data is not a PNG data URI", f.ID)
		}
		name := fmt.Sprintf("field-%d", f.ID)
		opts := fpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(raw))
		pdf.ImageOptions(name, x, y, w, h, false, opts, 0, "")
		return pdf.Error()
	}
	pdf.SetFont(fontFamily, "", 10)
	pdf.SetXY(x, y)
	pdf.CellFormat(w, h, f.SignatureData, "", 0, "CM", false, 0, "")
	return nil
}

var disableConfigDir sync.Once

// Validate parses data with pdfcpu and returns its page count.
func Validate(data []byte) (int, error) {
	disableConfigDir.Do(api.DisableConfigDir)
	conf := pdfmodel.NewDefaultConfiguration()
	conf.ValidationMode = pdfmodel.ValidationRelaxed
	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("read pdf context: %w", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return 0, fmt.Errorf("ensure page count: %w", err)
	}
	return ctx.PageCount, nil
}
