package core

import (
	"context"

	"github.com/aria-chat/backend/go/internal/v1/auth"
)

// GenerateUserID hands out a fresh pseudonymous user id and its eternal
// identity token.
func (c *Core) GenerateUserID(ctx context.Context) (userID int64, token string, err error) {
	userID, err = c.st.GenerateUserID(ctx)
	if err != nil {
		return 0, "", err
	}
	token, err = c.authSvc.GenerateUserToken(userID)
	if err != nil {
		return 0, "", err
	}
	return userID, token, nil
}

// CreateRefreshToken mints an opaque refresh token standing in for claims.
func (c *Core) CreateRefreshToken(ctx context.Context, claims *auth.Claims) (string, error) {
	blob, err := auth.MarshalClaims(claims)
	if err != nil {
		return "", err
	}
	return c.st.CreateRefreshToken(ctx, blob)
}

// RefreshRefreshToken atomically rotates token and returns the claims it
// represented alongside the new token.
func (c *Core) RefreshRefreshToken(ctx context.Context, token string) (newToken string, claims *auth.Claims, err error) {
	res, err := c.st.RefreshRefreshToken(ctx, token)
	if err != nil {
		return "", nil, err
	}
	claims, err = auth.UnmarshalClaims(res.Claims)
	if err != nil {
		return "", nil, err
	}
	return res.Token, claims, nil
}
