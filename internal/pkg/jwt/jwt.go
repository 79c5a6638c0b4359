package jwt

import (
	"fmt"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Claims are the identity claims carried by school access tokens.
type Claims struct {
	UserID    string
	SchoolID  string
	Role      string
	ExpiresAt time.Time
}

// Expired reports whether the token is past its expiry at now.
// Tokens without an exp claim never expire client-side.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// Inspect reads claims without verifying the signature. The client cannot
// verify server tokens; it only uses the claims as hints (expiry, identity).
func Inspect(tokenString string) (Claims, error) {
	token, err := jwt.ParseString(tokenString, jwt.WithVerify(false), jwt.WithValidate(false))
	if err != nil {
		return Claims{}, fmt.Errorf("failed to parse token: %w", err)
	}
	return claimsFromToken(token), nil
}

func claimsFromToken(token jwt.Token) Claims {
	c := Claims{ExpiresAt: token.Expiration()}
	if v, ok := token.Get("user_id"); ok {
		c.UserID, _ = v.(string)
	}
	if v, ok := token.Get("school_id"); ok {
		c.SchoolID, _ = v.(string)
	}
	if v, ok := token.Get("role"); ok {
		c.Role, _ = v.(string)
	}
	return c
}

type Service interface {
	GenerateAccessToken(userID string, schoolID string, role string) (token string, expiresAt int64, err error)
	ValidateAccessToken(tokenString string) (Claims, error)
	JWTAuth() *jwtauth.JWTAuth
}

type JWTService struct {
	accessTokenExpirationTime time.Duration
	tokenAuth                 *jwtauth.JWTAuth
}

func NewJWTService(secretKey string, accessTokenExpirationTime time.Duration) Service {
	return &JWTService{
		accessTokenExpirationTime: accessTokenExpirationTime,
		tokenAuth:                 jwtauth.New("HS256", []byte(secretKey), nil, jwt.WithAcceptableSkew(30*time.Second)),
	}
}

func (j *JWTService) JWTAuth() *jwtauth.JWTAuth {
	return j.tokenAuth
}

func (j *JWTService) GenerateAccessToken(userID string, schoolID string, role string) (token string, expiresAt int64, err error) {
	expiresAt = time.Now().Add(j.accessTokenExpirationTime).Unix()

	claims := map[string]interface{}{
		"user_id":   userID,
		"school_id": schoolID,
		"role":      role,
		"type":      "access",
		"exp":       expiresAt,
	}

	_, tokenString, err := j.tokenAuth.Encode(claims)
	return tokenString, expiresAt, err
}

// ValidateAccessToken verifies signature and expiry and returns the claims
func (j *JWTService) ValidateAccessToken(tokenString string) (Claims, error) {
	token, err := j.tokenAuth.Decode(tokenString)
	if err != nil {
		return Claims{}, err
	}
	if err := jwt.Validate(token, jwt.WithAcceptableSkew(30*time.Second)); err != nil {
		return Claims{}, err
	}

	tokenType, ok := token.Get("type")
	if !ok || tokenType != "access" {
		return Claims{}, jwt.ErrInvalidJWT()
	}

	return claimsFromToken(token), nil
}
