// UploadService — sesli mesaj dosyalarının disk'e kaydı.
//
// Sesli mesajlar iki adımda gönderilir: önce blob buraya yüklenir ve bir
// URL alınır, sonra o URL content olarak type=audio mesajıyla gönderilir.
// Bu servis yalnızca blob'u saklar; mesaj kaydı MessageService'in işidir.
package services

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/ozanbudak/ikmesaj/pkg"
)

// UploadService, sesli mesaj blob yükleme iş mantığı interface'i.
type UploadService interface {
	// SaveAudio, blob'u doğrular ve diske kaydeder. Dönen değer mesaj
	// content'i olarak kullanılacak URL path'tir (/api/uploads/{name}).
	SaveAudio(file multipart.File, header *multipart.FileHeader) (string, error)
}

type uploadService struct {
	uploadDir string
	maxSize   int64
}

// NewUploadService, constructor.
func NewUploadService(uploadDir string, maxSize int64) UploadService {
	return &uploadService{
		uploadDir: uploadDir,
		maxSize:   maxSize,
	}
}

// allowedAudioMimeTypes, yüklemeye izin verilen ses formatları.
// Tarayıcıların MediaRecorder çıktıları + yaygın codec'ler.
var allowedAudioMimeTypes = map[string]bool{
	"audio/webm": true,
	"audio/ogg":  true,
	"audio/mpeg": true,
	"audio/mp4":  true,
	"audio/wav":  true,
	"audio/aac":  true,
}

// audioExtensions, MIME type → disk uzantısı.
var audioExtensions = map[string]string{
	"audio/webm": ".webm",
	"audio/ogg":  ".ogg",
	"audio/mpeg": ".mp3",
	"audio/mp4":  ".m4a",
	"audio/wav":  ".wav",
	"audio/aac":  ".aac",
}

func (s *uploadService) SaveAudio(file multipart.File, header *multipart.FileHeader) (string, error) {
	// Boyut kontrolü
	if header.Size > s.maxSize {
		return "", fmt.Errorf("%w: file too large (max %dMB)", pkg.ErrBadRequest, s.maxSize/(1024*1024))
	}

	contentType := header.Header.Get("Content-Type")
	// Sadece base MIME type'ı al (charset vb. parametre olabilir)
	mimeBase := strings.TrimSpace(strings.Split(contentType, ";")[0])

	if !allowedAudioMimeTypes[mimeBase] {
		return "", fmt.Errorf("%w: audio type not allowed: %s", pkg.ErrBadRequest, mimeBase)
	}

	// Disk adı tamamen server tarafında üretilir — client'tan gelen dosya
	// adı path olarak hiç kullanılmaz, traversal riski kalmaz.
	diskFilename := uuid.NewString() + audioExtensions[mimeBase]

	destPath := filepath.Join(s.uploadDir, diskFilename)
	destFile, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, file); err != nil {
		// Hata durumunda yarım dosyayı temizle
		os.Remove(destPath)
		return "", fmt.Errorf("failed to save file: %w", err)
	}

	return "/api/uploads/" + diskFilename, nil
}
