package domain

import (
	"path/filepath"
	"strings"
)

type DocumentKind string

const (
	KindPDF         DocumentKind = "pdf"
	KindImage       DocumentKind = "image"
	KindUnsupported DocumentKind = "unsupported"
)

// DetectKind resolves the declared content type of an upload. A ".pdf" filename
// is accepted as PDF even when the client sent a generic content type.
func DetectKind(mimeType, filename string) DocumentKind {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	switch {
	case mimeType == "application/pdf":
		return KindPDF
	case strings.EqualFold(filepath.Ext(filename), ".pdf"):
		return KindPDF
	case strings.HasPrefix(mimeType, "image/"):
		return KindImage
	default:
		return KindUnsupported
	}
}

// PageDocument is the text recovered from one PDF page or one image.
type PageDocument struct {
	Text   string       `json:"text"`
	Page   int          `json:"page"`
	Source DocumentKind `json:"source"`
}

type Extraction struct {
	Pages    []PageDocument `json:"pages"`
	Degraded bool           `json:"degraded"`
}

// Chunk is the unit of retrieval. Text is never empty.
type Chunk struct {
	Text   string       `json:"text"`
	Page   int          `json:"page"`
	Source DocumentKind `json:"source"`
}
