package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"tenauth/internal/platform/config"
)

const (
	SubjectKindAdmin = "admin"
	SubjectKindUser  = "user"
)

type Claims struct {
	SubjectID   string `json:"sid"`
	SubjectKind string `json:"knd"`
	AppID       string `json:"app,omitempty"`
	Email       string `json:"email"`
	jwt.RegisteredClaims
}

type TokenService struct {
	config config.SessionsConfig
}

func NewTokenService(cfg config.SessionsConfig) *TokenService {
	return &TokenService{config: cfg}
}

func (s *TokenService) IssueAdminSession(adminID, email string) (string, error) {
	return s.issue(adminID, SubjectKindAdmin, "", email, s.config.AdminTTL)
}

// IssueUserSession binds the session to the app that authenticated the user.
// The app id travels in the token and is cross-checked against the API key on
// every request.
func (s *TokenService) IssueUserSession(userID, appID, email string) (string, error) {
	return s.issue(userID, SubjectKindUser, appID, email, s.config.UserTTL)
}

func (s *TokenService) issue(subjectID, kind, appID, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		SubjectID:   subjectID,
		SubjectKind: kind,
		AppID:       appID,
		Email:       email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subjectID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.config.Issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.Secret))
}

func (s *TokenService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(s.config.Secret), nil
	})

	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	if claims.SubjectKind != SubjectKindAdmin && claims.SubjectKind != SubjectKindUser {
		return nil, errors.New("unknown subject kind")
	}
	if claims.SubjectKind == SubjectKindUser && claims.AppID == "" {
		return nil, errors.New("user session missing app binding")
	}

	return claims, nil
}
