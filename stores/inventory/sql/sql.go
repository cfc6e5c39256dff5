// Package sql is the durable inventory backend, speaking postgres or
// sqlite depending on the store URL.
package sql

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/labstack/gommon/random"
	_ "github.com/lib/pq"
	"github.com/ordishs/gocore"
	_ "modernc.org/sqlite"

	"github.com/bitmessage-network/bmnode/errors"
	"github.com/bitmessage-network/bmnode/ulogger"
	"github.com/bitmessage-network/bmnode/util"
	"github.com/bitmessage-network/bmnode/wire"
)

const expiryGraceSeconds = 300

type SQL struct {
	logger ulogger.Logger
	db     *sql.DB
	engine string
}

func New(_ context.Context, logger ulogger.Logger, storeURL *url.URL) (*SQL, error) {
	var (
		db  *sql.DB
		err error
	)

	switch storeURL.Scheme {
	case "postgres":
		dbHost := storeURL.Hostname()
		dbPort, _ := strconv.Atoi(storeURL.Port())
		dbName := strings.TrimPrefix(storeURL.Path, "/")

		dbUser := ""
		dbPassword := ""

		if storeURL.User != nil {
			dbUser = storeURL.User.Username()
			dbPassword, _ = storeURL.User.Password()
		}

		dbInfo := fmt.Sprintf("user=%s password=%s dbname=%s sslmode=disable host=%s port=%d",
			dbUser, dbPassword, dbName, dbHost, dbPort)

		db, err = sql.Open("postgres", dbInfo)
		if err != nil {
			return nil, errors.NewStorageError("failed to open postgres DB", err)
		}

	case "sqlite", "sqlitememory":
		var filename string

		if storeURL.Scheme == "sqlitememory" {
			filename = fmt.Sprintf("file:%s?mode=memory&cache=shared", random.String(16))
		} else {
			folder, _ := gocore.Config().Get("dataFolder", "data")
			if err = os.MkdirAll(folder, 0755); err != nil {
				return nil, errors.NewStorageError("failed to create data folder %s", folder, err)
			}

			dbName := strings.TrimPrefix(storeURL.Path, "/")

			filename, err = filepath.Abs(path.Join(folder, fmt.Sprintf("%s.db", dbName)))
			if err != nil {
				return nil, errors.NewStorageError("failed to get absolute path for sqlite DB", err)
			}

			filename = fmt.Sprintf("%s?cache=shared&_pragma=busy_timeout=10000&_pragma=journal_mode=WAL", filename)
		}

		db, err = sql.Open("sqlite", filename)
		if err != nil {
			return nil, errors.NewStorageError("failed to open sqlite DB", err)
		}

	default:
		return nil, errors.NewConfigurationError("unknown database engine [%s]", storeURL.Scheme)
	}

	s := &SQL{
		logger: logger,
		db:     db,
		engine: storeURL.Scheme,
	}

	if err := s.createSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *SQL) createSchema() error {
	blobType := "BYTEA"
	if s.engine != "postgres" {
		blobType = "BLOB"
	}

	q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS inventory (
	     hash %s PRIMARY KEY
	    ,stream BIGINT NOT NULL
	    ,expires BIGINT NOT NULL
	    ,type BIGINT NOT NULL
	    ,version BIGINT NOT NULL
	    ,data %s NOT NULL
	  )`, blobType, blobType)

	if _, err := s.db.Exec(q); err != nil {
		return errors.NewStorageError("failed to create inventory schema", err)
	}

	if _, err := s.db.Exec(`CREATE INDEX IF NOT EXISTS ix_inventory_stream_expires ON inventory (stream, expires)`); err != nil {
		return errors.NewStorageError("failed to create inventory index", err)
	}

	return nil
}

// placeholders renders $1,$2,... or ?,?,... depending on the engine.
func (s *SQL) placeholders(n, from int) string {
	parts := make([]string, n)

	for i := 0; i < n; i++ {
		if s.engine == "postgres" {
			parts[i] = fmt.Sprintf("$%d", from+i)
		} else {
			parts[i] = "?"
		}
	}

	return strings.Join(parts, ",")
}

func (s *SQL) GetInventory(ctx context.Context, streams ...uint64) ([]wire.InventoryVector, error) {
	q := "SELECT hash FROM inventory WHERE expires > " + strconv.FormatInt(util.Now(), 10)

	args := make([]interface{}, 0, len(streams))

	if len(streams) > 0 {
		q += " AND stream IN (" + s.placeholders(len(streams), 1) + ")"
		for _, stream := range streams {
			args = append(args, int64(stream))
		}
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.NewStorageError("failed to query inventory", err)
	}
	defer rows.Close()

	var result []wire.InventoryVector

	for rows.Next() {
		var hash []byte
		if err := rows.Scan(&hash); err != nil {
			return nil, errors.NewStorageError("failed to scan inventory row", err)
		}

		iv, err := wire.NewInventoryVector(hash)
		if err != nil {
			return nil, err
		}

		result = append(result, iv)
	}

	return result, rows.Err()
}

func (s *SQL) GetMissing(ctx context.Context, offer []wire.InventoryVector, streams ...uint64) ([]wire.InventoryVector, error) {
	known, err := s.GetInventory(ctx, streams...)
	if err != nil {
		return nil, err
	}

	knownSet := make(map[wire.InventoryVector]struct{}, len(known))
	for _, iv := range known {
		knownSet[iv] = struct{}{}
	}

	missing := make([]wire.InventoryVector, 0, len(offer))

	for _, iv := range offer {
		if _, ok := knownSet[iv]; !ok {
			missing = append(missing, iv)
		}
	}

	return missing, nil
}

func (s *SQL) GetObject(ctx context.Context, iv wire.InventoryVector) (*wire.MsgObject, error) {
	q := "SELECT data FROM inventory WHERE hash = " + s.placeholders(1, 1)

	var data []byte
	if err := s.db.QueryRowContext(ctx, q, iv.Bytes()).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError("object %s not in inventory", iv)
		}

		return nil, errors.NewStorageError("failed to query object", err)
	}

	return decodeObject(data)
}

func (s *SQL) GetObjects(ctx context.Context, stream, version, objectType int64) ([]*wire.MsgObject, error) {
	q := "SELECT data FROM inventory WHERE 1=1"

	var args []interface{}

	next := 1

	if stream >= 0 {
		q += " AND stream = " + s.placeholders(1, next)
		args = append(args, stream)
		next++
	}

	if version >= 0 {
		q += " AND version = " + s.placeholders(1, next)
		args = append(args, version)
		next++
	}

	if objectType >= 0 {
		q += " AND type = " + s.placeholders(1, next)
		args = append(args, objectType)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.NewStorageError("failed to query objects", err)
	}
	defer rows.Close()

	var result []*wire.MsgObject

	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, errors.NewStorageError("failed to scan object row", err)
		}

		obj, err := decodeObject(data)
		if err != nil {
			return nil, err
		}

		result = append(result, obj)
	}

	return result, rows.Err()
}

func (s *SQL) StoreObject(ctx context.Context, obj *wire.MsgObject) error {
	iv := obj.InventoryVector()

	data := make([]byte, 0, 8+len(obj.Payload)+32)
	data = append(data, obj.Nonce[:]...)
	data = append(data, obj.PayloadBytesWithoutNonce()...)

	q := "INSERT INTO inventory (hash, stream, expires, type, version, data) VALUES (" +
		s.placeholders(6, 1) + ") ON CONFLICT DO NOTHING"

	_, err := s.db.ExecContext(ctx, q,
		iv.Bytes(), int64(obj.Stream), obj.ExpiresTime, int64(obj.ObjectType), int64(obj.Version), data)
	if err != nil {
		return errors.NewStorageError("failed to store object %s", iv, err)
	}

	return nil
}

func (s *SQL) Contains(ctx context.Context, iv wire.InventoryVector) (bool, error) {
	q := "SELECT 1 FROM inventory WHERE hash = " + s.placeholders(1, 1)

	var one int
	if err := s.db.QueryRowContext(ctx, q, iv.Bytes()).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}

		return false, errors.NewStorageError("failed to query inventory", err)
	}

	return true, nil
}

func (s *SQL) Cleanup(ctx context.Context) error {
	cutoff := util.NowShifted(-expiryGraceSeconds)

	if _, err := s.db.ExecContext(ctx, "DELETE FROM inventory WHERE expires < "+strconv.FormatInt(cutoff, 10)); err != nil {
		return errors.NewStorageError("failed to clean up inventory", err)
	}

	return nil
}

func (s *SQL) Close(_ context.Context) error {
	return s.db.Close()
}

func decodeObject(data []byte) (*wire.MsgObject, error) {
	obj := &wire.MsgObject{}
	if err := obj.Decode(bytes.NewReader(data)); err != nil {
		return nil, err
	}

	return obj, nil
}
