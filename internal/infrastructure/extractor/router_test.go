package extractor

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/docqa/internal/core/domain"
)

type stubExtractor struct {
	calls int
	page  string
}

func (s *stubExtractor) Extract(context.Context, []byte) (domain.Extraction, error) {
	s.calls++
	return domain.Extraction{Pages: []domain.PageDocument{{Text: s.page, Page: 1}}}, nil
}

func TestRouterDispatchesByKind(t *testing.T) {
	pdf := &stubExtractor{page: "pdf text"}
	img := &stubExtractor{page: "image text"}
	r := NewRouter(pdf, img)

	out, err := r.Extract(context.Background(), domain.KindImage, nil)
	if err != nil || out.Pages[0].Text != "image text" {
		t.Fatalf("unexpected image extraction %+v %v", out, err)
	}
	if _, err := r.Extract(context.Background(), domain.KindPDF, nil); err != nil || pdf.calls != 1 {
		t.Fatalf("expected pdf extractor call, err=%v calls=%d", err, pdf.calls)
	}
}

func TestRouterRejectsUnsupportedKind(t *testing.T) {
	pdf := &stubExtractor{}
	r := NewRouter(pdf, nil)

	for _, kind := range []domain.DocumentKind{domain.KindUnsupported, domain.KindImage} {
		if _, err := r.Extract(context.Background(), kind, []byte("PK")); !errors.Is(err, domain.ErrUnsupportedDocumentType) {
			t.Fatalf("kind %q: expected unsupported error, got %v", kind, err)
		}
	}
	if pdf.calls != 0 {
		t.Fatalf("no extractor should run")
	}
}
