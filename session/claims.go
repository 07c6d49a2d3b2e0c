package session

import (
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// decodeIdentity extracts the identity claims from an access token without
// a network call. The signature is deliberately not verified: the token is
// only used for display identity here, and the backend verifies it on
// every request it receives.
func decodeIdentity(rawToken string) (*User, error) {
	token, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return nil, errors.Wrap(err, "[decodeIdentity] parse access token")
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, errors.New("[decodeIdentity] error extracting claims")
	}

	username, _ := claims["username"].(string)
	email, _ := claims["email"].(string)
	id, _ := claims["user_id"].(float64)

	if username == "" {
		return nil, errors.New("[decodeIdentity] token missing identity claims")
	}

	return &User{ID: int64(id), Username: username, Email: email}, nil
}
