package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	jwt "github.com/golang-jwt/jwt/v5"
)

const userIDKey = "user_id"

var errMissingToken = errors.New("authorization token missing")

// Authenticator issues and verifies HS256 tokens whose subject is the user id.
type Authenticator struct {
	secret []byte
	issuer string
}

func NewAuthenticator(secret, issuer string) *Authenticator {
	return &Authenticator{secret: []byte(secret), issuer: issuer}
}

// IssueToken signs a token for userID valid for ttl.
func (a *Authenticator) IssueToken(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    a.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// ParseToken validates the token and returns its subject.
func (a *Authenticator) ParseToken(tokenString string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims,
		func(*jwt.Token) (interface{}, error) { return a.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(a.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return authHeader[7:]
	}
	return ""
}

// authenticate reads the token from the Authorization header, or from the
// token query parameter when allowQuery is set (browsers cannot set headers on
// websocket upgrades).
func (a *Authenticator) authenticate(c *gin.Context, allowQuery bool) (string, error) {
	token := bearerToken(c)
	if token == "" && allowQuery {
		token = c.Query("token")
	}
	if token == "" {
		return "", errMissingToken
	}
	return a.ParseToken(token)
}

// RequireAuth rejects requests without a valid token and stores the caller's
// id in the context.
func (a *Authenticator) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := a.authenticate(c, false)
		if err != nil {
			abortUnauthorized(c, err)
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, err error) {
	message := "Invalid token or expired"
	if errors.Is(err, errMissingToken) {
		message = "Authorization token missing"
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "INVALID_TOKEN",
			"message": message,
		},
	})
}

// GetUserID returns the authenticated caller set by RequireAuth.
func GetUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
