package extractor

import (
	"EdubotKing-Backend/internal/apperr"
	"bytes"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
)

const PDFMimeType = "application/pdf"

// IsPDF reports whether data starts like a PDF file, regardless of what the
// client declared as content type.
func IsPDF(data []byte) bool {
	return mimetype.Detect(data).Is(PDFMimeType)
}

// ExtractPDFText returns the plain text of every page, pages separated by a
// space so words at page boundaries do not run together.
func ExtractPDFText(data []byte) (text string, err error) {
	// ledongthuc/pdf panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			err = apperr.Wrap(apperr.KindExtraction, "Fallo la extracción del texto del PDF.", fmt.Errorf("pdf reader panic: %v", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", apperr.Wrap(apperr.KindExtraction, "Fallo la extracción del texto del PDF.", err)
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(content)
		sb.WriteString(" ")
	}
	return sb.String(), nil
}
