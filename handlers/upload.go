package handlers

import (
	"net/http"

	"github.com/ozanbudak/ikmesaj/pkg"
	"github.com/ozanbudak/ikmesaj/services"
)

// UploadHandler, sesli mesaj blob yükleme endpoint'ini yöneten struct.
type UploadHandler struct {
	uploadService services.UploadService
	maxUploadSize int64
}

// NewUploadHandler, constructor.
func NewUploadHandler(uploadService services.UploadService, maxUploadSize int64) *UploadHandler {
	return &UploadHandler{
		uploadService: uploadService,
		maxUploadSize: maxUploadSize,
	}
}

// Upload godoc
// POST /api/uploads
// Sesli mesaj blob'unu yükler. multipart/form-data, "file" field'ı.
//
// Yanıt: { "url": "/api/uploads/{name}" }
// Client bu URL'i content olarak type=audio mesajıyla gönderir.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if _, ok := principalFrom(r); !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "principal not found in context")
		return
	}

	// MaxBytesReader: limit aşılırsa body okuma hatası üretir —
	// devasa upload'ların belleği şişirmesini en baştan keser.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)

	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "file field required")
		return
	}
	defer file.Close()

	url, err := h.uploadService.SaveAudio(file, header)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusCreated, map[string]string{"url": url})
}
