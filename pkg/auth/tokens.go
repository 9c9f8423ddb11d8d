package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/quantdesk/tradedesk/pkg/apperrors"
	"github.com/quantdesk/tradedesk/pkg/models"
)

// Claims carries the authenticated user's identity inside the signed
// token, so /auth/me never needs a DB round trip to answer (§6).
type Claims struct {
	jwt.RegisteredClaims
	UserID   string `json:"uid"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
}

const refreshTypeClaim = "typ"

func (s *Service) issueTokens(user *models.User) (access string, refresh string, err error) {
	now := time.Now().UTC()

	access, err = s.sign(Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
		UserID:   user.ID,
		Username: user.Username,
		IsAdmin:  user.IsAdmin,
	}, "access")
	if err != nil {
		return "", "", err
	}

	refresh, err = s.sign(Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.refreshTTL)),
		},
		UserID:   user.ID,
		Username: user.Username,
		IsAdmin:  user.IsAdmin,
	}, "refresh")
	if err != nil {
		return "", "", err
	}

	return access, refresh, nil
}

func (s *Service) sign(claims Claims, typ string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iat":            claims.IssuedAt.Unix(),
		"exp":            claims.ExpiresAt.Unix(),
		"uid":            claims.UserID,
		"username":       claims.Username,
		"is_admin":       claims.IsAdmin,
		refreshTypeClaim: typ,
	})
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("signing %s token: %w", typ, err)
	}
	return signed, nil
}

// ParseAccessToken validates signature and expiry and rejects a
// refresh token presented where an access token is required.
func (s *Service) ParseAccessToken(raw string) (*Claims, error) {
	return s.parse(raw, "access")
}

// ParseRefreshToken validates a refresh token for the (not yet
// spec-required, but natural) token-renewal path.
func (s *Service) ParseRefreshToken(raw string) (*Claims, error) {
	return s.parse(raw, "refresh")
}

func (s *Service) parse(raw, wantType string) (*Claims, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, apperrors.New(apperrors.KindUnauthenticated, "invalid or expired token")
	}

	claimsMap, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, apperrors.New(apperrors.KindUnauthenticated, "invalid token claims")
	}

	if typ, _ := claimsMap[refreshTypeClaim].(string); typ != wantType {
		return nil, apperrors.New(apperrors.KindUnauthenticated, "wrong token type")
	}

	uid, _ := claimsMap["uid"].(string)
	username, _ := claimsMap["username"].(string)
	isAdmin, _ := claimsMap["is_admin"].(bool)
	if uid == "" || username == "" {
		return nil, apperrors.New(apperrors.KindUnauthenticated, "malformed token claims")
	}

	return &Claims{UserID: uid, Username: username, IsAdmin: isAdmin}, nil
}
