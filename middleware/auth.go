// Package middleware, HTTP request pipeline'ına eklenen ara katmanları barındırır.
//
// Middleware'lar zincir şeklinde çalışır: Auth → Conversation → Handler
//
// Go'da middleware bir fonksiyondur:
//
//	func(next http.Handler) http.Handler
//
// "next" parametresi zincirdeki bir sonraki handler'dır. Middleware kendi
// işini yapar (ör: token doğrula), sonra next'i çağırır. Hata varsa next
// çağrılmaz → request burada durur.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/ozanbudak/ikmesaj/handlers"
	"github.com/ozanbudak/ikmesaj/models"
	"github.com/ozanbudak/ikmesaj/pkg"
	"github.com/ozanbudak/ikmesaj/services"
)

// AuthMiddleware, erişim token'ı doğrulama middleware'ı.
//
// Kimlikler dış İK platformunda yaşar — burada user tablosu yoktur.
// Token claim'lerindeki (participantID, role, displayName) üçlüsü
// Principal olarak context'e konur, downstream katmanlar onu kullanır.
type AuthMiddleware struct {
	tokenService services.TokenService
}

// NewAuthMiddleware, constructor.
func NewAuthMiddleware(tokenService services.TokenService) *AuthMiddleware {
	return &AuthMiddleware{tokenService: tokenService}
}

// Require, geçerli token zorunlu kılan middleware.
// Token yoksa veya geçersizse → 401 Unauthorized.
//
// HTTP header formatı: Authorization: Bearer <token>
func (m *AuthMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			pkg.ErrorWithMessage(w, http.StatusUnauthorized, "authorization header required")
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			pkg.ErrorWithMessage(w, http.StatusUnauthorized, "invalid authorization format, use: Bearer <token>")
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		claims, err := m.tokenService.ValidateAccessToken(tokenString)
		if err != nil {
			pkg.Error(w, err)
			return
		}

		principal := models.Principal{
			ParticipantID: claims.ParticipantID,
			DisplayName:   claims.DisplayName,
			Role:          claims.Role,
		}

		ctx := context.WithValue(r.Context(), handlers.PrincipalContextKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
