package messages

import (
	"context"
	"net/url"

	"github.com/bitmessage-network/bmnode/errors"
	"github.com/bitmessage-network/bmnode/stores/messages/sql"
	"github.com/bitmessage-network/bmnode/ulogger"
)

// NewStore creates a message repository from a URL. Supported schemes are
// sqlite, sqlitememory and postgres.
func NewStore(ctx context.Context, logger ulogger.Logger, storeURL *url.URL) (Store, error) {
	switch storeURL.Scheme {
	case "sqlite", "sqlitememory", "postgres":
		return sql.New(ctx, logger, storeURL)
	default:
		return nil, errors.NewConfigurationError("unknown message store scheme [%s]", storeURL.Scheme)
	}
}
