package pdf

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	pdflib "github.com/ledongthuc/pdf"
	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/docqa/internal/core/domain"
	"github.com/kirillkom/docqa/internal/core/ports"
)

const (
	minNativeChars = 20
	minOCRChars    = 10
	logTag         = "PDF"
)

type rawPage struct {
	Number int
	Native string
	Layout string
}

// Extractor produces one page document per PDF page. Pages with too little
// native text go to OCR, then to the page's row fragments, then to a fixed
// placeholder.
type Extractor struct {
	ocr    ports.OCR
	events ports.EventLog
}

// New builds an Extractor. A nil ocr disables the OCR step.
func New(ocr ports.OCR, events ports.EventLog) *Extractor {
	return &Extractor{ocr: ocr, events: events}
}

func (e *Extractor) Extract(ctx context.Context, data []byte) (domain.Extraction, error) {
	pages, err := readPages(data)
	if err != nil {
		e.events.Error(logTag, "FAIL "+err.Error())
		return domain.Extraction{}, domain.WrapError(domain.ErrInvalidInput, "parse pdf", err)
	}
	if len(pages) == 0 {
		return domain.Extraction{}, fmt.Errorf("%w: pdf has no pages", domain.ErrInvalidInput)
	}
	return e.resolve(ctx, data, pages), nil
}

func (e *Extractor) resolve(ctx context.Context, data []byte, pages []rawPage) domain.Extraction {
	recognized := e.recognizeShortPages(ctx, data, pages)

	out := domain.Extraction{Pages: make([]domain.PageDocument, 0, len(pages))}
	for i, page := range pages {
		text := page.Native
		if utf8.RuneCountInString(text) < minNativeChars {
			text = recognized[i]
		}
		if utf8.RuneCountInString(text) < minOCRChars {
			switch {
			case page.Layout != "":
				text = page.Layout
			case page.Native != "":
				text = page.Native
			default:
				text = ""
			}
		}
		if text == "" {
			text = fmt.Sprintf("[Page %d: image-only - no extractable text. Ask about visible content.]", page.Number)
			out.Degraded = true
			e.events.Warn(logTag, fmt.Sprintf("Page %d: no extractable text, placeholder used", page.Number))
		}
		out.Pages = append(out.Pages, domain.PageDocument{
			Text:   fmt.Sprintf("[PAGE %d]\n%s", page.Number, text),
			Page:   page.Number,
			Source: domain.KindPDF,
		})
	}
	e.events.Info(logTag, fmt.Sprintf("Extracted %d pages", len(out.Pages)))
	return out
}

// recognizeShortPages runs OCR concurrently for pages whose native text is
// too short. Failures leave the page's slot empty.
func (e *Extractor) recognizeShortPages(ctx context.Context, data []byte, pages []rawPage) []string {
	out := make([]string, len(pages))
	if e.ocr == nil {
		for _, page := range pages {
			if utf8.RuneCountInString(page.Native) < minNativeChars {
				e.events.Warn(logTag, fmt.Sprintf("Page %d: OCR unavailable, using layout blocks", page.Number))
			}
		}
		return out
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, page := range pages {
		if utf8.RuneCountInString(page.Native) >= minNativeChars {
			continue
		}
		g.Go(func() error {
			text, err := e.ocr.Recognize(gctx, data, page.Number)
			if err != nil {
				e.events.Warn("OCR", fmt.Sprintf("Page %d: OCR failed (%v), using layout blocks", page.Number, err))
				return nil
			}
			if text != "" {
				e.events.Info("OCR", fmt.Sprintf("Page %d: OCR extracted %d chars", page.Number, utf8.RuneCountInString(text)))
			}
			out[i] = text
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// readPages parses the document with the pure-Go reader. The reader panics on
// some malformed inputs, so panics become errors.
func readPages(data []byte) (pages []rawPage, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	total := reader.NumPage()
	pages = make([]rawPage, 0, total)
	for n := 1; n <= total; n++ {
		page := reader.Page(n)
		raw := rawPage{Number: n}
		if !page.V.IsNull() {
			if text, textErr := page.GetPlainText(nil); textErr == nil {
				raw.Native = strings.TrimSpace(text)
			}
			raw.Layout = layoutText(page)
		}
		pages = append(pages, raw)
	}
	return pages, nil
}

func layoutText(page pdflib.Page) string {
	rows, err := page.GetTextByRow()
	if err != nil {
		return ""
	}
	parts := make([]string, 0, len(rows))
	for _, row := range rows {
		var b strings.Builder
		for _, fragment := range row.Content {
			b.WriteString(fragment.S)
		}
		if text := strings.TrimSpace(b.String()); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}
