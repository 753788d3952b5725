package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// TabClaims identify one browser tab's console
type TabClaims struct {
	TabID string `json:"tab_id"`
	jwt.RegisteredClaims
}
