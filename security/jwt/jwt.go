package jwt

import (
	"errors"
	"fmt"
	"time"

	jwtstd "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenError represents JWT token related errors
type TokenError string

func (e TokenError) Error() string {
	return string(e)
}

const (
	DefaultAccessTokenExpire = time.Hour * 24

	ErrNeedTokenProvider = TokenError("cannot sign token without token provider")
	ErrInvalidToken      = TokenError("invalid token")
	ErrTokenParsing      = TokenError("token parsing error")
)

// Token represents the token body
type Token struct {
	JTI     string         `json:"jti"`
	Payload map[string]any `json:"payload"`
	Subject string         `json:"sub"`
	Expire  int64          `json:"exp"`
}

// TokenManager handles JWT token operations
type TokenManager struct {
	key    string
	expire time.Duration
}

// NewTokenManager creates a new TokenManager instance. A zero expire falls
// back to DefaultAccessTokenExpire.
func NewTokenManager(key string, expire ...time.Duration) *TokenManager {
	tm := &TokenManager{key: key, expire: DefaultAccessTokenExpire}
	if len(expire) > 0 && expire[0] > 0 {
		tm.expire = expire[0]
	}
	return tm
}

// validateKey validates the token key
func (jtm *TokenManager) validateKey() error {
	if jtm.key == "" {
		return ErrNeedTokenProvider
	}
	return nil
}

// generateToken generates a JWT token
func (jtm *TokenManager) generateToken(token *Token) (string, error) {
	if err := jtm.validateKey(); err != nil {
		return "", err
	}

	claims := jwtstd.MapClaims{
		"jti":     token.JTI,
		"sub":     token.Subject,
		"payload": token.Payload,
		"exp":     time.Now().Add(time.Millisecond * time.Duration(token.Expire)).Unix(),
	}

	t := jwtstd.NewWithClaims(jwtstd.SigningMethodHS256, claims)
	return t.SignedString([]byte(jtm.key))
}

// GenerateAccessToken signs an access token for the caller. An empty jti is
// replaced by a random one.
func (jtm *TokenManager) GenerateAccessToken(jti string, payload map[string]any, subject ...string) (string, error) {
	return jtm.GenerateAccessTokenWithExpiry(jti, payload, jtm.expire, subject...)
}

// GenerateAccessTokenWithExpiry generates an access token with a custom expiration duration.
func (jtm *TokenManager) GenerateAccessTokenWithExpiry(jti string, payload map[string]any, expiry time.Duration, subject ...string) (string, error) {
	if jti == "" {
		jti = uuid.NewString()
	}
	if payload == nil {
		payload = map[string]any{}
	}
	return jtm.generateToken(&Token{
		JTI:     jti,
		Payload: payload,
		Subject: getSubject(subject, "access"),
		Expire:  expiry.Milliseconds(),
	})
}

// ValidateToken validates a JWT token
func (jtm *TokenManager) ValidateToken(tokenString string) (*jwtstd.Token, error) {
	if err := jtm.validateKey(); err != nil {
		return nil, err
	}

	return jwtstd.Parse(tokenString, func(token *jwtstd.Token) (any, error) {
		if _, ok := token.Method.(*jwtstd.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(jtm.key), nil
	}, jwtstd.WithValidMethods([]string{jwtstd.SigningMethodHS256.Alg()}))
}

// DecodeToken decodes a JWT token into its claims
func (jtm *TokenManager) DecodeToken(tokenString string) (map[string]any, error) {
	token, err := jtm.ValidateToken(tokenString)
	if err != nil {
		if errors.Is(err, ErrNeedTokenProvider) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(jwtstd.MapClaims)
	if !ok {
		return nil, ErrTokenParsing
	}
	return claims, nil
}

// GetTokenExpiryTime extracts the expiration time from a token
func (jtm *TokenManager) GetTokenExpiryTime(tokenString string) (time.Time, error) {
	claims, err := jtm.DecodeToken(tokenString)
	if err != nil {
		return time.Time{}, err
	}

	exp, ok := claims["exp"].(float64)
	if !ok {
		return time.Time{}, ErrTokenParsing
	}

	return time.Unix(int64(exp), 0), nil
}

// getSubject returns the subject if provided, otherwise returns the default subject
func getSubject(subject []string, defaultSubject string) string {
	if len(subject) > 0 && subject[0] != "" {
		return subject[0]
	}
	return defaultSubject
}
