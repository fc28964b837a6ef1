package intake

import (
	"archive/zip"
	"bytes"
	"compress/flate"
	"context"
	"errors"
	"hash/crc32"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/SignDesk/internal/artifacts"
	"github.com/dharsanguruparan/SignDesk/internal/export"
	"github.com/dharsanguruparan/SignDesk/internal/model"
)

func docxBytes(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body + `</w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestExtractText(t *testing.T) {
	text, err := ExtractText(model.MIMETXT, []byte("  hello terms \n"), 0)
	require.NoError(t, err)
	assert.Equal(t, "hello terms", text)

	docx := docxBytes(t, `<w:p><w:r><w:t>Scope of</w:t></w:r><w:r><w:t xml:space="preserve"> work</w:t></w:r></w:p>`+
		`<w:p><w:r><w:t>Fee</w:t><w:tab/><w:t>$500</w:t></w:r></w:p>`)
	text, err = ExtractText(model.MIMEDOCX, docx, 1<<20)
	require.NoError(t, err)
	assert.Equal(t, "Scope of work\nFee\t$500", text)

	art, err := export.NewRenderer().Render("Brief", "Deliverables are due monthly.", nil)
	require.NoError(t, err)
	text, err = ExtractText(model.MIMEPDF, art.Data, 0)
	require.NoError(t, err)
	assert.Contains(t, text, "Deliverables")
}

func TestExtractTextFailures(t *testing.T) {
	_, err := ExtractText(model.MIMEPDF, []byte("not a pdf"), 0)
	assert.ErrorIs(t, err, ErrUnreadable)
	_, err = ExtractText(model.MIMEDOCX, []byte("not a zip"), 0)
	assert.ErrorIs(t, err, ErrUnreadable)
	_, err = ExtractText(model.MIMETXT, []byte{0xff, 0xfe}, 0)
	assert.ErrorIs(t, err, ErrUnreadable)
	_, err = ExtractText("image/png", []byte("x"), 0)
	assert.ErrorIs(t, err, ErrUnreadable)
}

// docxWithDeclaredSize stores document.xml deflated with a header that
// declares declared bytes regardless of the real length.
func docxWithDeclaredSize(t *testing.T, xmlBody []byte, declared uint64) []byte {
	t.Helper()
	var deflated bytes.Buffer
	fw, err := flate.NewWriter(&deflated, flate.BestCompression)
	require.NoError(t, err)
	_, err = fw.Write(xmlBody)
	require.NoError(t, err)
	require.NoError(t, fw.Close())

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.CreateRaw(&zip.FileHeader{
		Name:               "word/document.xml",
		Method:             zip.Deflate,
		CRC32:              crc32.ChecksumIEEE(xmlBody),
		CompressedSize64:   uint64(deflated.Len()),
		UncompressedSize64: declared,
	})
	require.NoError(t, err)
	_, err = w.Write(deflated.Bytes())
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestExtractDOCXBoundsDecompressedSize(t *testing.T) {
	run := `<w:p><w:r><w:t>` + strings.Repeat("a", 64<<10) + `</w:t></w:r></w:p>`
	docx := docxBytes(t, run)
	require.Less(t, len(docx), 1<<10, "markup compresses below the upload limit")

	_, err := ExtractText(model.MIMEDOCX, docx, 1<<10)
	assert.ErrorIs(t, err, ErrUnreadable)
	assert.ErrorContains(t, err, "exceeds 1024 bytes")

	text, err := ExtractText(model.MIMEDOCX, docx, 1<<20)
	require.NoError(t, err)
	assert.Len(t, text, 64<<10)
}

func TestExtractDOCXRejectsUnderstatedHeader(t *testing.T) {
	xmlBody := []byte(`<?xml version="1.0" encoding="UTF-8"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		`<w:p><w:r><w:t>` + strings.Repeat("b", 32<<10) + `</w:t></w:r></w:p></w:body></w:document>`)
	docx := docxWithDeclaredSize(t, xmlBody, 100)

	_, err := ExtractText(model.MIMEDOCX, docx, 1<<10)
	assert.ErrorIs(t, err, ErrUnreadable)
}

func TestProcessRejectsExpandingDOCX(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	svc := NewService(NewMemoryFiles(), artifacts.NewMemory(), analyzer, testLimits, nil)
	docx := docxBytes(t, `<w:p><w:r><w:t>`+strings.Repeat("z", 64<<10)+`</w:t></w:r></w:p>`)

	recs, err := svc.Upload(context.Background(), []Upload{{Name: "expanding.docx", ContentType: model.MIMEDOCX, Data: docx}})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, model.FileError, recs[0].Status)
	assert.Contains(t, recs[0].Message, "exceeds 1024 bytes")
	assert.Empty(t, analyzer.calls)
}

type fakeAnalyzer struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeAnalyzer) AnalyzeDocument(_ context.Context, content, fileName string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fileName)
	if f.err != nil {
		return "", f.err
	}
	return "analysis of " + fileName + ": " + content, nil
}

var testLimits = Limits{
	MaxFileSize:  1 << 10,
	AllowedTypes: []string{model.MIMEPDF, model.MIMETXT, model.MIMEDOCX},
}

func TestUploadProcessesInline(t *testing.T) {
	ctx := context.Background()
	analyzer := &fakeAnalyzer{}
	svc := NewService(NewMemoryFiles(), artifacts.NewMemory(), analyzer, testLimits, nil)

	recs, err := svc.Upload(ctx, []Upload{
		{Name: "notes.txt", ContentType: "text/plain; charset=utf-8", Data: []byte("net 30")},
		{Name: "logo.png", ContentType: "image/png", Data: []byte("png")},
		{Name: "huge.txt", ContentType: "text/plain", Data: bytes.Repeat([]byte("a"), 2<<10)},
		{Name: "empty.txt", ContentType: "text/plain"},
	})
	require.NoError(t, err)
	require.Len(t, recs, 4)

	assert.Equal(t, model.FileCompleted, recs[0].Status)
	assert.Equal(t, model.KindTXT, recs[0].Kind)
	assert.Equal(t, "net 30", recs[0].Content)
	assert.Equal(t, "analysis of notes.txt: net 30", recs[0].Analysis)

	assert.Equal(t, model.FileError, recs[1].Status)
	assert.Contains(t, recs[1].Message, "unsupported file type")
	assert.Equal(t, model.FileError, recs[2].Status)
	assert.Contains(t, recs[2].Message, "file too large")
	assert.Equal(t, model.FileError, recs[3].Status)

	assert.Equal(t, []string{"notes.txt"}, analyzer.calls)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestUploadGuessesTypeFromExtension(t *testing.T) {
	svc := NewService(NewMemoryFiles(), artifacts.NewMemory(), &fakeAnalyzer{}, testLimits, nil)
	recs, err := svc.Upload(context.Background(), []Upload{
		{Name: "Brief.DOCX", ContentType: "application/octet-stream", Data: docxBytes(t, `<w:p><w:r><w:t>Hi</w:t></w:r></w:p>`)},
	})
	require.NoError(t, err)
	assert.Equal(t, model.KindDOCX, recs[0].Kind)
	assert.Equal(t, model.FileCompleted, recs[0].Status)
}

func TestAnalysisFailureOnlyMarksThatFile(t *testing.T) {
	ctx := context.Background()
	analyzer := &fakeAnalyzer{err: errors.New("agent offline")}
	svc := NewService(NewMemoryFiles(), artifacts.NewMemory(), analyzer, testLimits, nil)

	recs, err := svc.Upload(ctx, []Upload{
		{Name: "a.txt", ContentType: "text/plain", Data: []byte("first")},
		{Name: "b.pdf", ContentType: "application/pdf", Data: []byte("broken pdf")},
	})
	require.NoError(t, err)
	assert.Equal(t, model.FileError, recs[0].Status)
	assert.Contains(t, recs[0].Message, "agent offline")
	assert.Equal(t, "first", recs[0].Content, "extracted text survives a failed analysis")
	assert.Equal(t, model.FileError, recs[1].Status)
	assert.True(t, strings.Contains(recs[1].Message, "unreadable file"))

	analyzer.err = nil
	rec, err := svc.Reanalyze(ctx, recs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.FileCompleted, rec.Status)
	assert.Empty(t, rec.Message)

	_, err = svc.Reanalyze(ctx, recs[1].ID)
	assert.ErrorIs(t, err, ErrNotReady)
	_, err = svc.Reanalyze(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

type recordingDispatcher struct {
	ids []string
	err error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, id string) error {
	d.ids = append(d.ids, id)
	return d.err
}

func TestUploadDispatches(t *testing.T) {
	ctx := context.Background()
	d := &recordingDispatcher{}
	svc := NewService(NewMemoryFiles(), artifacts.NewMemory(), &fakeAnalyzer{}, testLimits, nil)
	svc.UseDispatcher(d)

	recs, err := svc.Upload(ctx, []Upload{{Name: "a.txt", ContentType: "text/plain", Data: []byte("x")}})
	require.NoError(t, err)
	assert.Equal(t, model.FileUploading, recs[0].Status)
	assert.Equal(t, []string{recs[0].ID}, d.ids)

	require.NoError(t, svc.Process(ctx, recs[0].ID))
	rec, err := svc.Get(ctx, recs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.FileCompleted, rec.Status)

	d.err = errors.New("queue down")
	recs, err = svc.Upload(ctx, []Upload{{Name: "b.txt", ContentType: "text/plain", Data: []byte("y")}})
	require.NoError(t, err)
	assert.Equal(t, model.FileError, recs[0].Status)
	assert.Equal(t, "queue down", recs[0].Message)
}
