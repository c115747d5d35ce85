package http

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"smartspend/internal/core"
)

// Receipt uploads are capped well below typical phone photos after
// compression; anything larger is almost certainly not a receipt.
const maxReceiptBytes = 10 << 20

func (s *Server) handleScanReceipt(w http.ResponseWriter, r *http.Request) {
	if s.scanner == nil {
		writeError(w, r, fmt.Errorf("%w: receipt scanning is not configured", core.ErrExternalService))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxReceiptBytes)
	if err := r.ParseMultipartForm(maxReceiptBytes); err != nil {
		writeError(w, r, fmt.Errorf("%w: invalid multipart body", core.ErrValidation))
		return
	}

	file, header, err := r.FormFile("receipt")
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: missing receipt file", core.ErrValidation))
		return
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(mimeType, "image/") {
		writeError(w, r, fmt.Errorf("%w: receipt must be an image, got %q", core.ErrValidation, mimeType))
		return
	}

	image, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, fmt.Errorf("read receipt upload: %w", err))
		return
	}

	data, err := s.scanner.ScanReceipt(r.Context(), image, mimeType)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toReceiptJSON(data))
}
