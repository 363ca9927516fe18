package service

import "context"

// IdentityVerifier resolves a session token issued by the identity provider
// to the id of the authenticated user
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}
