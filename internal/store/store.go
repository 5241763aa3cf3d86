package store

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("not found")

// KeyBaseURL is the fixed key the API base URL is saved under.
const KeyBaseURL = "apiBaseUrl"

// OwnerCLI is the owner used by command-line invocations.
const OwnerCLI = "cli"

// Settings is a small persisted key-value store scoped by owner, standing in
// for a browser's local storage.
type Settings interface {
	GetSetting(ctx context.Context, owner, key string) (string, error)
	PutSetting(ctx context.Context, owner, key, value string) error
	Close() error
}
