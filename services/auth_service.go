package services

import (
	"time"

	"garabingo/errs"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the player credential issued on invite redemption. It is
// scoped to one (game, participant, card) triple.
type SessionClaims struct {
	UserID      uint   `json:"user_id"`
	GameID      uint   `json:"game_id"`
	CardID      uint   `json:"card_id"`
	DisplayName string `json:"display_name"`
	jwt.RegisteredClaims
}

type AuthService struct {
	secret []byte
	ttl    time.Duration
}

func NewAuthService(secret string) *AuthService {
	return &AuthService{secret: []byte(secret), ttl: 24 * time.Hour}
}

func (s *AuthService) IssueSession(userID, gameID, cardID uint, displayName string) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		UserID:      userID,
		GameID:      gameID,
		CardID:      cardID,
		DisplayName: displayName,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", errs.Internalf("failed to sign session token: %v", err)
	}
	return signed, nil
}

func (s *AuthService) VerifySession(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errs.Validationf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, errs.Validationf("invalid or expired session token")
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, errs.Validationf("invalid session token")
	}
	return claims, nil
}
