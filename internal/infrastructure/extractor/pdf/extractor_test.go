package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/kirillkom/docqa/internal/core/domain"
	"github.com/kirillkom/docqa/internal/observability/telemetry"
)

type fakeOCR struct {
	mu    sync.Mutex
	pages map[int]string
	err   error
	calls []int
}

func (f *fakeOCR) Recognize(_ context.Context, _ []byte, page int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, page)
	if f.err != nil {
		return "", f.err
	}
	return f.pages[page], nil
}

func newRing() *telemetry.Ring {
	return telemetry.NewRing(100, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestResolveKeepsNativeTextAndSkipsOCR(t *testing.T) {
	ocr := &fakeOCR{}
	e := New(ocr, newRing())

	out := e.resolve(context.Background(), nil, []rawPage{
		{Number: 1, Native: "Photosynthesis converts light into chemical energy."},
	})
	if out.Degraded || len(out.Pages) != 1 {
		t.Fatalf("unexpected extraction %+v", out)
	}
	if out.Pages[0].Text != "[PAGE 1]\nPhotosynthesis converts light into chemical energy." {
		t.Fatalf("unexpected page text %q", out.Pages[0].Text)
	}
	if out.Pages[0].Source != domain.KindPDF || out.Pages[0].Page != 1 {
		t.Fatalf("unexpected provenance %+v", out.Pages[0])
	}
	if len(ocr.calls) != 0 {
		t.Fatalf("OCR must not run for text pages, got %v", ocr.calls)
	}
}

func TestResolveUsesOCRForShortPages(t *testing.T) {
	ocr := &fakeOCR{pages: map[int]string{2: "Scanned page about the Calvin cycle"}}
	e := New(ocr, newRing())

	out := e.resolve(context.Background(), nil, []rawPage{
		{Number: 1, Native: "Chlorophyll absorbs red and blue light."},
		{Number: 2, Native: "fig. 2"},
	})
	if got := out.Pages[1].Text; got != "[PAGE 2]\nScanned page about the Calvin cycle" {
		t.Fatalf("expected OCR text, got %q", got)
	}
	if len(ocr.calls) != 1 || ocr.calls[0] != 2 {
		t.Fatalf("expected OCR for page 2 only, got %v", ocr.calls)
	}
}

func TestResolveFallsBackToLayoutThenNative(t *testing.T) {
	ocr := &fakeOCR{err: errors.New("engine down")}
	e := New(ocr, newRing())

	out := e.resolve(context.Background(), nil, []rawPage{
		{Number: 1, Native: "", Layout: "Figure 1 Leaf cross section"},
		{Number: 2, Native: "Short note"},
	})
	if got := out.Pages[0].Text; got != "[PAGE 1]\nFigure 1 Leaf cross section" {
		t.Fatalf("expected layout text, got %q", got)
	}
	if got := out.Pages[1].Text; got != "[PAGE 2]\nShort note" {
		t.Fatalf("expected short native text kept, got %q", got)
	}
	if out.Degraded {
		t.Fatalf("pages with recovered text are not degraded")
	}
}

func TestResolveEmitsPlaceholderForImageOnlyPage(t *testing.T) {
	events := newRing()
	e := New(nil, events)

	out := e.resolve(context.Background(), nil, []rawPage{{Number: 3}})
	want := "[PAGE 3]\n[Page 3: image-only - no extractable text. Ask about visible content.]"
	if len(out.Pages) != 1 || out.Pages[0].Text != want {
		t.Fatalf("unexpected placeholder %+v", out.Pages)
	}
	if !out.Degraded {
		t.Fatalf("expected degraded extraction")
	}
	found := false
	for _, entry := range events.Recent(0) {
		if entry.Tag == logTag && entry.Level == domain.LevelWarn {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a PDF warning in telemetry")
	}
}

func TestExtractRejectsGarbage(t *testing.T) {
	e := New(nil, newRing())
	_, err := e.Extract(context.Background(), []byte("definitely not a pdf"))
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if !strings.Contains(err.Error(), "parse pdf") {
		t.Fatalf("expected operation in error, got %v", err)
	}
}

// buildPDF writes a minimal document with one Helvetica text line per page.
func buildPDF(lines ...string) []byte {
	const font = "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>"
	fontID := 3 + 2*len(lines)

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
	}
	kids := make([]string, len(lines))
	for i := range lines {
		kids[i] = fmt.Sprintf("%d 0 R", 3+2*i)
	}
	objects = append(objects, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(lines)))
	for i, line := range lines {
		content := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", line)
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 %d 0 R >> >> /Contents %d 0 R >>", fontID, 4+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		)
	}
	objects = append(objects, font)

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestExtractReadsEveryPage(t *testing.T) {
	ocr := &fakeOCR{}
	e := New(ocr, newRing())

	out, err := e.Extract(context.Background(), buildPDF(
		"Photosynthesis converts light into chemical energy.",
		"The Calvin cycle fixes carbon dioxide into sugar.",
	))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if out.Degraded || len(out.Pages) != 2 {
		t.Fatalf("unexpected extraction %+v", out)
	}
	if !strings.HasPrefix(out.Pages[0].Text, "[PAGE 1]\nPhotosynthesis converts") {
		t.Fatalf("unexpected first page %q", out.Pages[0].Text)
	}
	if !strings.HasPrefix(out.Pages[1].Text, "[PAGE 2]\n") || !strings.Contains(out.Pages[1].Text, "Calvin cycle") {
		t.Fatalf("unexpected second page %q", out.Pages[1].Text)
	}
	if out.Pages[1].Page != 2 || out.Pages[1].Source != domain.KindPDF {
		t.Fatalf("unexpected provenance %+v", out.Pages[1])
	}
	if len(ocr.calls) != 0 {
		t.Fatalf("text pages must not reach OCR, got %v", ocr.calls)
	}
}

func TestReadPagesCollectsLayoutRows(t *testing.T) {
	pages, err := readPages(buildPDF("Stomata regulate gas exchange."))
	if err != nil {
		t.Fatalf("readPages() error = %v", err)
	}
	if len(pages) != 1 || pages[0].Number != 1 {
		t.Fatalf("unexpected pages %+v", pages)
	}
	if !strings.Contains(pages[0].Layout, "Stomata") {
		t.Fatalf("expected row text, got %q", pages[0].Layout)
	}
}
