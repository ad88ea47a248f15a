package jwttoken

import (
	authmw "ftledger/pkg/platform/middleware/auth"
)

// ToMiddlewareClaims converts validated claims into the shape the auth
// middleware consumes.
func ToMiddlewareClaims(claims *Claims) (*authmw.JWTClaims, error) {
	caller, err := claims.Caller()
	if err != nil {
		return nil, err
	}
	return &authmw.JWTClaims{Caller: caller, JTI: claims.ID}, nil
}

type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*authmw.JWTClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return ToMiddlewareClaims(claims)
}
