package wsgateway

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return signed
}

func TestAuthManager_ValidToken(t *testing.T) {
	auth := NewAuthManager("test-secret")

	tokenString := signToken(t, "test-secret", jwt.MapClaims{
		"owner_id": "user-1",
		"exp":      time.Now().Add(time.Hour).Unix(),
	})

	ownerID, err := auth.ValidateToken(tokenString)
	if err != nil {
		t.Fatalf("Failed to validate token: %v", err)
	}
	if ownerID != "user-1" {
		t.Errorf("Expected owner user-1, got %s", ownerID)
	}
}

func TestAuthManager_SubFallback(t *testing.T) {
	auth := NewAuthManager("test-secret")

	tokenString := signToken(t, "test-secret", jwt.MapClaims{
		"sub": "user-2",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	ownerID, err := auth.ValidateToken(tokenString)
	if err != nil {
		t.Fatalf("Failed to validate token: %v", err)
	}
	if ownerID != "user-2" {
		t.Errorf("Expected owner user-2, got %s", ownerID)
	}
}

func TestAuthManager_WrongSecretRejected(t *testing.T) {
	auth := NewAuthManager("test-secret")

	tokenString := signToken(t, "other-secret", jwt.MapClaims{
		"owner_id": "user-1",
		"exp":      time.Now().Add(time.Hour).Unix(),
	})

	if _, err := auth.ValidateToken(tokenString); err == nil {
		t.Error("Expected error for token signed with wrong secret")
	}
}

func TestAuthManager_ExpiredTokenRejected(t *testing.T) {
	auth := NewAuthManager("test-secret")

	tokenString := signToken(t, "test-secret", jwt.MapClaims{
		"owner_id": "user-1",
		"exp":      time.Now().Add(-time.Hour).Unix(),
	})

	if _, err := auth.ValidateToken(tokenString); err == nil {
		t.Error("Expected error for expired token")
	}
}

func TestAuthManager_MissingOwnerClaimRejected(t *testing.T) {
	auth := NewAuthManager("test-secret")

	tokenString := signToken(t, "test-secret", jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	if _, err := auth.ValidateToken(tokenString); err == nil {
		t.Error("Expected error for token without owner_id or sub")
	}
}

func TestAuthManager_NoSecretMeansDefaultOwner(t *testing.T) {
	auth := NewAuthManager("")

	ownerID, err := auth.ValidateToken("anything")
	if err != nil {
		t.Fatalf("Expected no error without a configured secret, got %v", err)
	}
	if ownerID != DefaultOwnerID {
		t.Errorf("Expected default owner, got %s", ownerID)
	}
}

func TestAuthManager_ExtractTokenFromHeader(t *testing.T) {
	auth := NewAuthManager("test-secret")

	cases := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{"bearer token", "Bearer abc123", "abc123", false},
		{"lowercase bearer", "bearer abc123", "abc123", false},
		{"bare token", "abc123", "abc123", false},
		{"empty header", "", "", true},
		{"wrong scheme", "Basic abc123", "", true},
		{"too many parts", "Bearer abc 123", "", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := auth.ExtractTokenFromHeader(tc.header)
			if tc.wantErr {
				if err == nil {
					t.Errorf("Expected error for header %q", tc.header)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("Expected token %q, got %q", tc.want, got)
			}
		})
	}
}
