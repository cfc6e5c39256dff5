// Package sql is the database backend for the message repository.
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

	"github.com/google/uuid"
	"github.com/labstack/gommon/random"
	_ "github.com/lib/pq"
	"github.com/ordishs/gocore"
	_ "modernc.org/sqlite"

	"github.com/bitmessage-network/bmnode/errors"
	"github.com/bitmessage-network/bmnode/model"
	"github.com/bitmessage-network/bmnode/ulogger"
)

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

	q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS messages (
	     id VARCHAR(36) PRIMARY KEY
	    ,status INT NOT NULL
	    ,sent BIGINT
	    ,received BIGINT
	    ,labels TEXT NOT NULL DEFAULT ''
	    ,data %s NOT NULL
	  )`, blobType)

	if _, err := s.db.Exec(q); err != nil {
		return errors.NewStorageError("failed to create messages schema", err)
	}

	// additive migration: the ack/retry columns arrived after the base
	// schema, so older databases pick them up here
	migrations := []string{
		fmt.Sprintf("ALTER TABLE messages ADD COLUMN ack_data %s", blobType),
		"ALTER TABLE messages ADD COLUMN ttl BIGINT NOT NULL DEFAULT 0",
		"ALTER TABLE messages ADD COLUMN retries INT NOT NULL DEFAULT 0",
		"ALTER TABLE messages ADD COLUMN next_try BIGINT",
	}

	for _, m := range migrations {
		// a failure just means the column is already there
		if _, err := s.db.Exec(m); err != nil {
			s.logger.Debugf("skipping migration [%s]: %v", m, err)
		}
	}

	return nil
}

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

func (s *SQL) Save(ctx context.Context, p *model.Plaintext) error {
	var data bytes.Buffer
	if err := p.Encode(&data, true); err != nil {
		return errors.NewApplicationError("failed to serialize plaintext", err)
	}

	q := "INSERT INTO messages (id, status, sent, received, labels, data, ack_data, ttl, retries, next_try) VALUES (" +
		s.placeholders(10, 1) + ") ON CONFLICT (id) DO UPDATE SET " +
		"status = excluded.status, sent = excluded.sent, received = excluded.received, " +
		"labels = excluded.labels, data = excluded.data, ack_data = excluded.ack_data, " +
		"ttl = excluded.ttl, retries = excluded.retries, next_try = excluded.next_try"

	_, err := s.db.ExecContext(ctx, q,
		p.ID.String(), int(p.Status), p.Sent, p.Received, strings.Join(p.Labels, ","),
		data.Bytes(), p.AckData, p.TTL, p.Retries, p.NextTry)
	if err != nil {
		return errors.NewStorageError("failed to save message %s", p.ID, err)
	}

	return nil
}

func (s *SQL) Get(ctx context.Context, id uuid.UUID) (*model.Plaintext, error) {
	q := "SELECT id, status, sent, received, labels, data, ack_data, ttl, retries, next_try FROM messages WHERE id = " +
		s.placeholders(1, 1)

	return s.scanOne(s.db.QueryRowContext(ctx, q, id.String()))
}

func (s *SQL) GetByAckData(ctx context.Context, ackData []byte) (*model.Plaintext, error) {
	q := "SELECT id, status, sent, received, labels, data, ack_data, ttl, retries, next_try FROM messages WHERE ack_data = " +
		s.placeholders(1, 1)

	return s.scanOne(s.db.QueryRowContext(ctx, q, ackData))
}

func (s *SQL) UpdateStatus(ctx context.Context, id uuid.UUID, status model.Status) error {
	q := "UPDATE messages SET status = " + s.placeholders(1, 1) + " WHERE id = " + s.placeholders(1, 2)

	res, err := s.db.ExecContext(ctx, q, int(status), id.String())
	if err != nil {
		return errors.NewStorageError("failed to update status of %s", id, err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.NewNotFoundError("message %s not in repository", id)
	}

	return nil
}

func (s *SQL) FindRetriable(ctx context.Context, now int64) ([]*model.Plaintext, error) {
	q := "SELECT id, status, sent, received, labels, data, ack_data, ttl, retries, next_try FROM messages " +
		"WHERE status = " + s.placeholders(1, 1) +
		" AND next_try IS NOT NULL AND next_try > 0 AND next_try <= " + s.placeholders(1, 2)

	rows, err := s.db.QueryContext(ctx, q, int(model.StatusSent), now)
	if err != nil {
		return nil, errors.NewStorageError("failed to query retriable messages", err)
	}
	defer rows.Close()

	var result []*model.Plaintext

	for rows.Next() {
		p, err := scanPlaintext(rows)
		if err != nil {
			return nil, err
		}

		result = append(result, p)
	}

	return result, rows.Err()
}

func (s *SQL) Close(_ context.Context) error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *SQL) scanOne(row *sql.Row) (*model.Plaintext, error) {
	p, err := scanPlaintext(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError("message not in repository", err)
		}

		return nil, err
	}

	return p, nil
}

func scanPlaintext(row rowScanner) (*model.Plaintext, error) {
	var (
		idStr    string
		status   int
		sent     sql.NullInt64
		received sql.NullInt64
		labels   string
		data     []byte
		ackData  []byte
		ttl      int64
		retries  int
		nextTry  sql.NullInt64
	)

	if err := row.Scan(&idStr, &status, &sent, &received, &labels, &data, &ackData, &ttl, &retries, &nextTry); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		return nil, errors.NewStorageError("failed to scan message row", err)
	}

	p, err := model.DecodePlaintext(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, errors.NewStorageError("invalid message id [%s]", idStr, err)
	}

	p.ID = id
	p.Status = model.Status(status)
	p.Sent = sent.Int64
	p.Received = received.Int64
	p.AckData = ackData
	p.TTL = ttl
	p.Retries = retries
	p.NextTry = nextTry.Int64

	if labels != "" {
		p.Labels = strings.Split(labels, ",")
	}

	return p, nil
}
