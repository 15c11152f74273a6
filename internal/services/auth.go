package services

import (
	"context"
	"fmt"
	"time"

	"lumina-backend/internal/models"
	"lumina-backend/internal/storage"

	"github.com/golang-jwt/jwt/v5"
)

const tokenTTL = 30 * 24 * time.Hour

// AuthService handles signup, login and session tokens. The token is a
// signed HS256 JWT carrying the user id; middleware resolves it back to
// a full user through the storage facade.
type AuthService struct {
	store     storage.Store
	jwtSecret string
}

// NewAuthService creates a new auth service
func NewAuthService(store storage.Store, jwtSecret string) *AuthService {
	return &AuthService{store: store, jwtSecret: jwtSecret}
}

// Signup creates the account and mints a session token. Returns
// storage.ErrUsernameTaken when the username exists.
func (s *AuthService) Signup(ctx context.Context, username, password string) (*models.User, string, error) {
	user, err := s.store.CreateUser(ctx, username, password)
	if err != nil {
		return nil, "", err
	}
	token, err := s.GenerateToken(user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Login verifies credentials and mints a session token. Returns
// (nil, "", nil) on bad credentials, with no hint whether the username
// or the password was wrong.
func (s *AuthService) Login(ctx context.Context, username, password string) (*models.User, string, error) {
	user, err := s.store.Authenticate(ctx, username, password)
	if err != nil {
		return nil, "", err
	}
	if user == nil {
		return nil, "", nil
	}
	token, err := s.GenerateToken(user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// GenerateToken generates a JWT session token for a user
func (s *AuthService) GenerateToken(userID int64) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     now.Add(tokenTTL).Unix(),
		"iat":     now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken validates a session token and returns the user ID
func (s *AuthService) ValidateToken(tokenString string) (int64, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return 0, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, fmt.Errorf("invalid token claims")
	}
	raw, ok := claims["user_id"].(float64)
	if !ok {
		return 0, fmt.Errorf("user_id not found in token")
	}
	return int64(raw), nil
}

// ResolveUser turns a session token into the full user record, or nil
// when the token is invalid or the account no longer resolves.
func (s *AuthService) ResolveUser(ctx context.Context, tokenString string) (*models.User, error) {
	userID, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, nil
	}
	return s.store.GetUserByID(ctx, userID)
}
