package models

import "github.com/golang-jwt/jwt/v5"

// TokenClaims, dış auth sistemi tarafından imzalanmış katılımcı token'ının
// payload'ı. Login/register bu sistemde yoktur — core, kimliği doğrulanmış
// (participantID, role, displayName) tuple'ını bu claim'lerden alır.
type TokenClaims struct {
	ParticipantID string `json:"participant_id"`
	DisplayName   string `json:"display_name"`
	Role          Role   `json:"role"`
	jwt.RegisteredClaims
}

// Principal, request context'inde taşınan doğrulanmış katılımcı kimliği.
// Token claim'lerinden türetilir; handler ve service katmanı bunu kullanır.
type Principal struct {
	ParticipantID string `json:"participant_id"`
	DisplayName   string `json:"display_name"`
	Role          Role   `json:"role"`
}
