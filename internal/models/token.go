package models

import (
	"time"
)

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims carried by every issued token
// The token is self-contained: only revocation status needs a lookup
type TokenClaims struct {
	ID        string // jti
	Type      TokenType
	UserID    int64
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type IssuedToken struct {
	Value  string
	Claims TokenClaims
}

// Token pair issued on login or renew
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}
