// Package messages is the durable repository for sent and received
// plaintexts. The networking core only touches it through this interface;
// the status machine and resend schedule live in the stored fields.
package messages

import (
	"context"

	"github.com/google/uuid"

	"github.com/bitmessage-network/bmnode/model"
)

type Store interface {
	// Save upserts a plaintext keyed by its id.
	Save(ctx context.Context, p *model.Plaintext) error

	// Get returns the plaintext with the given id, or errors.ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (*model.Plaintext, error)

	// GetByAckData finds the sent message waiting for this ack token, or
	// errors.ErrNotFound.
	GetByAckData(ctx context.Context, ackData []byte) (*model.Plaintext, error)

	// UpdateStatus moves a message through its lifecycle.
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.Status) error

	// FindRetriable returns sent messages whose next_try has passed and
	// that still have retries left within their ttl.
	FindRetriable(ctx context.Context, now int64) ([]*model.Plaintext, error)

	Close(ctx context.Context) error
}
