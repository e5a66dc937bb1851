package interfaces

import "context"

// IdentityResolver maps an authenticated principal onto its account number.
type IdentityResolver interface {
	ResolveAccountNumber(ctx context.Context, principal string) (string, error)
}

// AccountDirectory looks up display names for history output.
type AccountDirectory interface {
	DisplayName(ctx context.Context, accountNumber string) (string, error)
}
