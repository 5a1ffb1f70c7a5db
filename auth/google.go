package auth

import (
	"context"
	"errors"

	"google.golang.org/api/idtoken"
)

func VerifyIDToken(ctx context.Context, token, clientID string) (Identity, error) {
	payload, err := idtoken.Validate(ctx, token, clientID)
	if err != nil {
		return Identity{}, err
	}

	sub, ok := payload.Claims["sub"].(string)
	if !ok || sub == "" {
		return Identity{}, errors.New("invalid sub")
	}

	name, _ := payload.Claims["name"].(string)
	email, _ := payload.Claims["email"].(string)

	return Identity{UserID: sub, Name: name, Email: email}, nil
}
