package wsgateway

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultOwnerID is the owner assigned to unauthenticated connections
const DefaultOwnerID = "default"

// AuthManager handles JWT authentication for WebSocket connections
type AuthManager struct {
	jwtSecret []byte
}

// NewAuthManager creates a new auth manager
func NewAuthManager(jwtSecret string) *AuthManager {
	return &AuthManager{
		jwtSecret: []byte(jwtSecret),
	}
}

// ValidateToken validates a JWT token and returns the owner ID
func (a *AuthManager) ValidateToken(tokenString string) (string, error) {
	if len(a.jwtSecret) == 0 {
		// No JWT secret configured: single-owner deployment, everyone is the
		// default owner
		return DefaultOwnerID, nil
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.jwtSecret, nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}

	if ownerID, ok := claims["owner_id"].(string); ok {
		return ownerID, nil
	}
	if sub, ok := claims["sub"].(string); ok {
		return sub, nil
	}

	return "", fmt.Errorf("owner_id not found in token")
}

// ExtractTokenFromHeader extracts a JWT token from an Authorization header
func (a *AuthManager) ExtractTokenFromHeader(authHeader string) (string, error) {
	if authHeader == "" {
		return "", fmt.Errorf("authorization header is empty")
	}

	// Support both "Bearer <token>" and just "<token>"
	parts := strings.Split(authHeader, " ")
	if len(parts) == 2 {
		if strings.ToLower(parts[0]) != "bearer" {
			return "", fmt.Errorf("invalid authorization header format")
		}
		return parts[1], nil
	} else if len(parts) == 1 {
		return parts[0], nil
	}

	return "", fmt.Errorf("invalid authorization header format")
}
