package entity

import (
	"context"

	"github.com/rotisserie/eris"
)

// ErrNotResolved is logged when a query names nobody the directory knows.
// Resolution never fails the pipeline; the current user is used instead.
var ErrNotResolved = eris.New("entity not resolved")

// Directory port (users, stores, markets)
type Directory interface {
	UserByID(ctx context.Context, id string) (*User, error)
	// FindActiveUsersByName matches first+last exactly, in either order.
	FindActiveUsersByName(ctx context.Context, first, last string) ([]User, error)
	// FindActiveUsersByPrefix returns active users whose first or last name
	// starts with one of the given prefixes.
	FindActiveUsersByPrefix(ctx context.Context, firstPrefix, lastPrefix string, limit int) ([]User, error)
	FindUnitByName(ctx context.Context, kind Kind, name string) (*Unit, error)
	UnitByID(ctx context.Context, kind Kind, id string) (*Unit, error)
}
