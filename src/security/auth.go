package security

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Verification failures are distinguished so handlers can return a specific
// message for expired tokens versus tampered/garbage ones.
var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

type Claims struct {
	UserID int64
	Email  string
}

type AuthService struct {
	jwtSecret   string
	bcryptCost  int
	tokenExpiry time.Duration
}

func NewAuthService(secret string, bcryptCost int, tokenExpiry time.Duration) *AuthService {
	return &AuthService{
		jwtSecret:   secret,
		bcryptCost:  bcryptCost,
		tokenExpiry: tokenExpiry,
	}
}

func (a *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (a *AuthService) CompareHashAndPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// GenerateToken signs {sub: userID, email} with the shared secret.
func (a *AuthService) GenerateToken(userID int64, email string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   strconv.FormatInt(userID, 10),
		"email": email,
		"exp":   now.Add(a.tokenExpiry).Unix(),
		"iat":   now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(a.jwtSecret))
}

// GenerateRefreshToken produces an opaque random token (not a JWT); sessions
// store it and rotation happens at refresh time.
func (a *AuthService) GenerateRefreshToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// ValidateToken verifies the signature and expiry and extracts the claims.
// Expiry surfaces as ErrTokenExpired; every other failure as ErrTokenInvalid.
func (a *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(a.jwtSecret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: 'sub' claim missing or not a string", ErrTokenInvalid)
	}
	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: 'sub' claim is not a user ID", ErrTokenInvalid)
	}
	email, _ := claims["email"].(string)
	return &Claims{UserID: userID, Email: email}, nil
}

// GenerateRandomToken returns a URL-safe random token for email verification
// and password reset links.
func GenerateRandomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
