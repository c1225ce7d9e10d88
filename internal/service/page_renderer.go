package service

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"
)

// ErrUnsupportedFile is returned for uploads that are neither images nor PDFs.
var ErrUnsupportedFile = errors.New("unsupported file type")

// maxPDFPages bounds how many pages of a PDF are sent to the model.
const maxPDFPages = 10

// PageRenderer turns an uploaded file into images the models can read.
type PageRenderer struct {
	logger *zap.Logger
}

func NewPageRenderer(logger *zap.Logger) *PageRenderer {
	return &PageRenderer{logger: logger}
}

// Render returns one image per PDF page, or the upload itself for images.
func (r *PageRenderer) Render(fileName string, data []byte) ([]Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrUnsupportedFile)
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	contentType := http.DetectContentType(data)

	if ext == ".pdf" || contentType == "application/pdf" {
		return r.renderPDF(fileName, data)
	}

	// Decoding the header rejects files that only claim to be images.
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, fileName)
	}
	return []Image{{MIMEType: "image/" + format, Data: data}}, nil
}

func (r *PageRenderer) renderPDF(fileName string, data []byte) ([]Image, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open PDF: %v", ErrUnsupportedFile, err)
	}
	defer doc.Close()

	pages := doc.NumPage()
	if pages > maxPDFPages {
		r.logger.Warn("PDF has more pages than supported, truncating",
			zap.String("file", fileName),
			zap.Int("pages", pages),
		)
		pages = maxPDFPages
	}

	images := make([]Image, 0, pages)
	for i := 0; i < pages; i++ {
		img, err := doc.Image(i)
		if err != nil {
			r.logger.Warn("Failed to render PDF page",
				zap.Int("page", i+1),
				zap.String("file", fileName),
				zap.Error(err),
			)
			continue
		}

		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("failed to encode page %d: %w", i+1, err)
		}
		images = append(images, Image{MIMEType: "image/png", Data: buf.Bytes()})
	}

	if len(images) == 0 {
		return nil, fmt.Errorf("%w: no renderable pages in %s", ErrUnsupportedFile, fileName)
	}

	r.logger.Info("PDF rendered using go-fitz",
		zap.String("file", fileName),
		zap.Int("pages", len(images)),
	)
	return images, nil
}
