package auth

import (
	"fmt"
	"time"

	"github.com/BradenHooton/adminguard/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TabTokenManager issues and verifies the signed tab identity token
type TabTokenManager struct {
	secret []byte
	now    func() time.Time
}

// NewTabTokenManager creates a new TabTokenManager
func NewTabTokenManager(secret string) *TabTokenManager {
	return &TabTokenManager{
		secret: []byte(secret),
		now:    time.Now,
	}
}

// Issue creates a token for a new tab and returns it with the tab id
func (tm *TabTokenManager) Issue() (token, tabID string, err error) {
	tabID = uuid.New().String()
	token, err = tm.Sign(tabID)
	if err != nil {
		return "", "", err
	}
	return token, tabID, nil
}

// Sign creates a token for an existing tab id
func (tm *TabTokenManager) Sign(tabID string) (string, error) {
	claims := &models.TabClaims{
		TabID: tabID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(tm.now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign tab token: %w", err)
	}
	return signed, nil
}

// Validate verifies a token and returns its tab id
func (tm *TabTokenManager) Validate(tokenString string) (string, error) {
	claims := &models.TabClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrInvalidTabToken, err)
	}

	if !token.Valid {
		return "", models.ErrInvalidTabToken
	}

	if _, err := uuid.Parse(claims.TabID); err != nil {
		return "", fmt.Errorf("%w: malformed tab id", models.ErrInvalidTabToken)
	}

	return claims.TabID, nil
}
