package extractor

import (
	"context"
	"fmt"

	"github.com/kirillkom/docqa/internal/core/domain"
)

// KindExtractor handles one document kind.
type KindExtractor interface {
	Extract(ctx context.Context, data []byte) (domain.Extraction, error)
}

// Router dispatches uploads to the extractor registered for their kind.
type Router struct {
	byKind map[domain.DocumentKind]KindExtractor
}

func NewRouter(pdf, image KindExtractor) *Router {
	return &Router{byKind: map[domain.DocumentKind]KindExtractor{
		domain.KindPDF:   pdf,
		domain.KindImage: image,
	}}
}

func (r *Router) Extract(ctx context.Context, kind domain.DocumentKind, data []byte) (domain.Extraction, error) {
	ex, ok := r.byKind[kind]
	if !ok || ex == nil {
		return domain.Extraction{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedDocumentType, kind)
	}
	return ex.Extract(ctx, data)
}
