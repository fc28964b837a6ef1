package model

import (
	"time"
)

// FileStatus describes the intake lifecycle of an uploaded reference file.
type FileStatus string

const (
	FileUploading  FileStatus = "uploading"
	FileExtracting FileStatus = "extracting"
	FileProcessing FileStatus = "processing"
	FileCompleted  FileStatus = "completed"
	FileError      FileStatus = "error"
)

// FileKind is the coarse type shown next to an uploaded file.
type FileKind string

const (
	KindPDF     FileKind = "PDF"
	KindDOCX    FileKind = "DOCX"
	KindTXT     FileKind = "TXT"
	KindUnknown FileKind = "Unknown"
)

// MIME types accepted by intake.
const (
	MIMEPDF  = "application/pdf"
	MIMEDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMETXT  = "text/plain"
)

// KindOf maps a MIME type onto its FileKind.
func KindOf(contentType string) FileKind {
	switch contentType {
	case MIMEPDF:
		return KindPDF
	case MIMEDOCX:
		return KindDOCX
	case MIMETXT:
		return KindTXT
	default:
		return KindUnknown
	}
}

// FileRecord holds metadata about a file uploaded for analysis. A failure on
// one file is recorded here and never affects sibling uploads.
type FileRecord struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Size        int64    `json:"size"`
	ContentType string   `json:"contentType"`
	Kind        FileKind `json:"type"`
	// ObjectKey locates the raw upload in artifact storage.
	ObjectKey string     `json:"-"`
	Status    FileStatus `json:"status"`
	Content   string     `json:"content,omitempty"`
	Analysis  string     `json:"analysis,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	Message   string     `json:"message,omitempty"`
}
