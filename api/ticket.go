package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// wsTicketTTL keeps websocket tickets single-purpose: mint one, open the
// socket, done. Browsers cannot set the Authorization header on a websocket
// handshake, so the ticket carries the identity instead.
const wsTicketTTL = time.Minute

// NewWSTicket mints a short-lived signed ticket for the chat websocket
// handshake.
func NewWSTicket(secret, identity, role string) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is not set")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  identity,
		"role": role,
		"typ":  "ws",
		"iat":  now.Unix(),
		"exp":  now.Add(wsTicketTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseWSTicket validates a websocket ticket and returns the identity it
// was minted for.
func ParseWSTicket(secret, ticket string) (Identity, error) {
	if secret == "" {
		return Identity{}, errors.New("jwt secret is not set")
	}
	token, err := jwt.Parse(ticket, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return Identity{}, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Identity{}, errors.New("invalid ticket")
	}
	if typ, _ := claims["typ"].(string); typ != "ws" {
		return Identity{}, errors.New("not a websocket ticket")
	}
	sub, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	if sub == "" || role == "" {
		return Identity{}, errors.New("ticket is missing identity claims")
	}
	return Identity{ID: sub, Role: role}, nil
}
