package services

import (
	"crypto/subtle"
	"fmt"
	"time"

	"sportstore/internal/apperrors"

	"github.com/dgrijalva/jwt-go"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// DefaultTokenTTL is how long an issued token stays valid.
const DefaultTokenTTL = time.Hour

// CredentialVerifier decides whether a username/password pair may log in.
type CredentialVerifier interface {
	Verify(username, password string) bool
}

// StaticCredentials accepts exactly one configured username and password.
type StaticCredentials struct {
	username string
	hash     []byte
}

// NewStaticCredentials hashes password so the plain text is not kept around.
func NewStaticCredentials(username, password string) (*StaticCredentials, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	return &StaticCredentials{username: username, hash: hash}, nil
}

// Verify implements CredentialVerifier.
func (c *StaticCredentials) Verify(username, password string) bool {
	if subtle.ConstantTimeCompare([]byte(username), []byte(c.username)) != 1 {
		return false
	}
	return bcrypt.CompareHashAndPassword(c.hash, []byte(password)) == nil
}

// Claims are the contents of an issued token.
type Claims struct {
	Username string `json:"username"`
	jwt.StandardClaims
}

// AuthService issues and verifies stateless bearer tokens.
type AuthService struct {
	verifier  CredentialVerifier
	jwtSecret []byte
	tokenTTL  time.Duration
}

// NewAuthService creates a new AuthService. A non-positive ttl falls back to
// DefaultTokenTTL.
func NewAuthService(verifier CredentialVerifier, jwtSecret string, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &AuthService{
		verifier:  verifier,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  ttl,
	}
}

// Login checks the credentials and returns a signed token on success.
func (s *AuthService) Login(username, password string) (string, error) {
	if !s.verifier.Verify(username, password) {
		return "", apperrors.ErrInvalidCredentials
	}

	now := jwt.TimeFunc()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Username: username,
		StandardClaims: jwt.StandardClaims{
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(s.tokenTTL).Unix(),
		},
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken parses and validates a token, returning its claims if valid.
func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		log.Debug().Err(err).Msg("token validation failed")
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidToken, err)
	}
	if !token.Valid || claims.Username == "" {
		return nil, apperrors.ErrInvalidToken
	}
	// jwt-go treats a missing exp as valid; issued tokens always carry one.
	if !claims.VerifyExpiresAt(jwt.TimeFunc().Unix(), true) {
		return nil, apperrors.ErrInvalidToken
	}
	return claims, nil
}
