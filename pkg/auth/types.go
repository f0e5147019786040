package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nasa-explorer/explorer/pkg/storage"
)

// TokenUser is the identity embedded in every bearer token under "user".
type TokenUser struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

// Claims is the JWT payload issued at login.
type Claims struct {
	User TokenUser `json:"user"`
	jwt.RegisteredClaims
}

// RegisterInput carries the untrusted registration fields.
type RegisterInput struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// LoginInput carries the untrusted login fields.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	User      *storage.User
	Token     string
	ExpiresAt time.Time
}

func tokenUserFrom(u *storage.User) TokenUser {
	return TokenUser{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
	}
}
