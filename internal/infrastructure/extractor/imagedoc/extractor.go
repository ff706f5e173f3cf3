package imagedoc

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"unicode/utf8"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/kirillkom/docqa/internal/core/domain"
	"github.com/kirillkom/docqa/internal/core/ports"
)

const (
	maxSide     = 2048
	jpegQuality = 85
	logTag      = "VISION"

	visionPrompt = "Analyse this image comprehensively. Extract ALL visible text, labels, figures, charts, tables, diagrams, arrows, annotations and structural elements. Structure your analysis clearly."
	placeholder  = "[Image uploaded - vision extraction unavailable. Describe what's in the image to ask questions about it.]"
)

// Extractor turns an uploaded image into a single page document by asking a
// vision model to transcribe and describe it.
type Extractor struct {
	vision ports.VisionBackend
	events ports.EventLog
}

// New builds an Extractor. A nil vision backend always yields the placeholder.
func New(vision ports.VisionBackend, events ports.EventLog) *Extractor {
	return &Extractor{vision: vision, events: events}
}

func (e *Extractor) Extract(ctx context.Context, data []byte) (domain.Extraction, error) {
	text, err := e.describe(ctx, data)
	if err != nil {
		e.events.Error(logTag, "FAIL image vision error: "+err.Error())
		return domain.Extraction{
			Pages:    []domain.PageDocument{{Text: placeholder, Page: 1, Source: domain.KindImage}},
			Degraded: true,
		}, nil
	}
	return domain.Extraction{
		Pages: []domain.PageDocument{{Text: text, Page: 1, Source: domain.KindImage}},
	}, nil
}

func (e *Extractor) describe(ctx context.Context, data []byte) (string, error) {
	if e.vision == nil {
		return "", fmt.Errorf("no vision backend configured")
	}
	encoded, err := Normalize(data)
	if err != nil {
		return "", err
	}
	text, elapsed, err := e.vision.Describe(ctx, visionPrompt, encoded, "image/jpeg")
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", fmt.Errorf("%w: vision backend returned no text", domain.ErrMalformedOutput)
	}
	e.events.Info(logTag, fmt.Sprintf("OK %s %.2fs - %d chars", e.vision.Name(), elapsed.Seconds(), utf8.RuneCountInString(text)))
	return text, nil
}

// Normalize decodes an image, flattens it onto white, shrinks it to fit
// within 2048x2048 keeping the aspect ratio, and re-encodes it as JPEG.
func Normalize(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := src.Bounds()
	w, h := fitWithin(bounds.Dx(), bounds.Dy(), maxSide)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	if w == bounds.Dx() && h == bounds.Dy() {
		draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// fitWithin never upscales.
func fitWithin(w, h, limit int) (int, int) {
	if w <= limit && h <= limit {
		return w, h
	}
	if w >= h {
		nh := h * limit / w
		if nh < 1 {
			nh = 1
		}
		return limit, nh
	}
	nw := w * limit / h
	if nw < 1 {
		nw = 1
	}
	return nw, limit
}
