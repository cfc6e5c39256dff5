package inventory

import (
	"context"
	"net/url"

	"github.com/bitmessage-network/bmnode/errors"
	"github.com/bitmessage-network/bmnode/stores/inventory/memory"
	"github.com/bitmessage-network/bmnode/stores/inventory/sql"
	"github.com/bitmessage-network/bmnode/ulogger"
)

// NewStore creates an inventory store from a URL. Supported schemes are
// memory, sqlite, sqlitememory and postgres.
func NewStore(ctx context.Context, logger ulogger.Logger, storeURL *url.URL) (Store, error) {
	switch storeURL.Scheme {
	case "memory":
		return memory.New(ctx, logger), nil
	case "sqlite", "sqlitememory", "postgres":
		return sql.New(ctx, logger, storeURL)
	default:
		return nil, errors.NewConfigurationError("unknown inventory store scheme [%s]", storeURL.Scheme)
	}
}
