// Package config, uygulamanın tüm konfigürasyonunu merkezi olarak yönetir.
// Environment variable'lardan okur, .env dosyasını da destekler.
//
// Her yerde ayrı ayrı os.Getenv() çağırmak yerine tek bir Config nesnesi
// oluşturulup wire-up sırasında ilgili katmanlara dağıtılır.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config, uygulamanın tüm konfigürasyon değerlerini taşır.
// Her alt bölüm ayrı bir struct — her struct tek bir concern'ü temsil eder.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Upload   UploadConfig
	Email    EmailConfig
	Chat     ChatConfig
}

// ServerConfig, HTTP server ayarları.
type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string // CORS için izinli origin listesi
}

// DatabaseConfig, SQLite database ayarları.
type DatabaseConfig struct {
	Path string // SQLite dosya yolu (ör: ./data/ikmesaj.db)
}

// JWTConfig, katılımcı token doğrulama ayarları.
// Token'lar dış auth sistemi tarafından imzalanır — buradaki secret
// sadece doğrulama içindir, bu servis token üretmez.
type JWTConfig struct {
	Secret string
}

// UploadConfig, sesli mesaj blob'ları için dosya yükleme ayarları.
type UploadConfig struct {
	Dir     string // Blob'ların kaydedileceği dizin
	MaxSize int64  // Byte cinsinden max dosya boyutu (varsayılan: 10MB)
}

// EmailConfig, offline okunmamış mesaj bildirimi ayarları.
// ResendAPIKey boşsa e-posta bildirimi tamamen kapalıdır.
type EmailConfig struct {
	ResendAPIKey string
	FromEmail    string
	AppURL       string // Bildirim mailindeki konuşma linki için taban URL
}

// ChatConfig, mesajlaşma çekirdeğinin zamanlayıcı ayarları.
type ChatConfig struct {
	TypingExpiry   time.Duration // Typing göstergesinin otomatik sönme süresi
	NotifyThrottle time.Duration // Aynı konuşma için iki e-posta arası minimum süre
}

// Load, environment variable'lardan Config oluşturur.
// .env dosyası varsa önce onu yükler (development kolaylığı için);
// production'da gerçek env variable'lar kullanılır.
func Load() (*Config, error) {
	_ = godotenv.Load()

	port, err := strconv.Atoi(getEnv("SERVER_PORT", "9090"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	maxSize, err := strconv.ParseInt(getEnv("UPLOAD_MAX_SIZE", "10485760"), 10, 64) // 10MB
	if err != nil {
		return nil, fmt.Errorf("invalid UPLOAD_MAX_SIZE: %w", err)
	}

	typingExpiry, err := strconv.Atoi(getEnv("CHAT_TYPING_EXPIRY_SECONDS", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid CHAT_TYPING_EXPIRY_SECONDS: %w", err)
	}

	notifyThrottle, err := strconv.Atoi(getEnv("CHAT_NOTIFY_THROTTLE_MINUTES", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid CHAT_NOTIFY_THROTTLE_MINUTES: %w", err)
	}

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           port,
			AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:3000"), ","),
		},
		Database: DatabaseConfig{
			Path: getEnv("DATABASE_PATH", "./data/ikmesaj.db"),
		},
		JWT: JWTConfig{
			Secret: jwtSecret,
		},
		Upload: UploadConfig{
			Dir:     getEnv("UPLOAD_DIR", "./data/uploads"),
			MaxSize: maxSize,
		},
		Email: EmailConfig{
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
			FromEmail:    getEnv("EMAIL_FROM", ""),
			AppURL:       getEnv("APP_URL", ""),
		},
		Chat: ChatConfig{
			TypingExpiry:   time.Duration(typingExpiry) * time.Second,
			NotifyThrottle: time.Duration(notifyThrottle) * time.Minute,
		},
	}

	return cfg, nil
}

// Addr, HTTP server'ın dinleyeceği adresi döner (ör: "0.0.0.0:9090").
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// getEnv, environment variable'ı okur, yoksa fallback değeri döner.
func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}
