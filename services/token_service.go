// TokenService — Dış sistemin imzaladığı erişim token'larının doğrulanması.
//
// Bu servis token ÜRETMEZ. Aday ve işveren kimlikleri ana İK platformunda
// yönetilir; platform login sonrasında HS256 ile imzalı bir token verir ve
// mesajlaşma servisi yalnızca bu token'ı doğrular. Paylaşılan secret
// (JWT_SECRET) iki sistemde aynıdır.
package services

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ozanbudak/ikmesaj/models"
	"github.com/ozanbudak/ikmesaj/pkg"
)

// TokenService, erişim token'larını doğrular.
type TokenService interface {
	// ValidateAccessToken, token string'ini doğrular ve claim'leri döner.
	// Geçersiz imza, süresi dolmuş token veya bozuk claim'ler ErrUnauthorized döner.
	ValidateAccessToken(tokenString string) (*models.TokenClaims, error)
}

type tokenService struct {
	jwtSecret []byte
}

// NewTokenService, paylaşılan secret ile token doğrulayıcı oluşturur.
func NewTokenService(jwtSecret string) TokenService {
	return &tokenService{jwtSecret: []byte(jwtSecret)}
}

func (s *tokenService) ValidateAccessToken(tokenString string) (*models.TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.TokenClaims{}, func(token *jwt.Token) (any, error) {
		// alg=none ve RS256 karmaşası saldırılarına karşı: sadece HMAC kabul edilir
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})

	if err != nil {
		return nil, fmt.Errorf("%w: invalid token", pkg.ErrUnauthorized)
	}

	claims, ok := token.Claims.(*models.TokenClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid token claims", pkg.ErrUnauthorized)
	}

	if claims.ParticipantID == "" || !claims.Role.Valid() {
		return nil, fmt.Errorf("%w: missing participant identity", pkg.ErrUnauthorized)
	}

	return claims, nil
}
