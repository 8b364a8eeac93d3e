package security

import (
	"errors"
	"time"

	"codearena/internal/platform/config"

	"github.com/go-chi/jwtauth/v5"
	"github.com/golang-jwt/jwt/v5"
)

var TokenAuth *jwtauth.JWTAuth

func InitJWT() {
	TokenAuth = jwtauth.New("HS256", config.AppConfig.JWTKey, nil)
}

// GenerateToken mints the bearer credential carried on every collaborator
// call. Email is a first-class claim because registrations and submissions
// are keyed by participant email.
func GenerateToken(userID, email, role string) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"email":   email,
		"role":    role,
		"exp":     time.Now().Add(config.AppConfig.JWTExp).Unix(),
		"iat":     time.Now().Unix(),
	}
	_, tokenString, err := TokenAuth.Encode(claims)
	return tokenString, err
}

func stringClaim(claims map[string]interface{}, key string) (string, error) {
	value, ok := claims[key].(string)
	if !ok || value == "" {
		return "", errors.New(key + " claim is missing or not a string")
	}
	return value, nil
}

func GetUserIDFromClaims(claims map[string]interface{}) (string, error) {
	return stringClaim(claims, "user_id")
}

func GetEmailFromClaims(claims map[string]interface{}) (string, error) {
	return stringClaim(claims, "email")
}

func GetUserRoleFromClaims(claims map[string]interface{}) (string, error) {
	return stringClaim(claims, "role")
}
