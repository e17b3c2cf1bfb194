package narrative

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("communication not found")
	ErrVersionConflict = errors.New("communication was modified concurrently")
)

// CommunicationRepository stores assembled communications. Update succeeds
// only when the stored version equals expectedVersion; it then bumps the
// version held by c.
type CommunicationRepository interface {
	Create(ctx context.Context, c *Communication) error
	GetByID(ctx context.Context, id uuid.UUID) (*Communication, error)
	Update(ctx context.Context, c *Communication, expectedVersion int) error
	List(ctx context.Context, limit, offset int) ([]*Communication, int, error)
}
