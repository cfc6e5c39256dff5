package sql

import (
	"context"
	"net/url"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitmessage-network/bmnode/crypto"
	"github.com/bitmessage-network/bmnode/errors"
	"github.com/bitmessage-network/bmnode/model"
	"github.com/bitmessage-network/bmnode/ulogger"
	"github.com/bitmessage-network/bmnode/util"
)

func testStore(t *testing.T) *SQL {
	t.Helper()

	storeURL, err := url.Parse("sqlitememory:///messages")
	require.NoError(t, err)

	s, err := New(context.Background(), ulogger.TestLogger{}, storeURL)
	require.NoError(t, err)

	t.Cleanup(func() { _ = s.Close(context.Background()) })

	return s
}

func testPlaintext(t *testing.T) *model.Plaintext {
	t.Helper()

	c := crypto.NewDefault()

	privSigning, err := c.RandomBytes(32)
	require.NoError(t, err)
	signingKey, err := crypto.PublicKeyBytes(privSigning)
	require.NoError(t, err)

	privEnc, err := c.RandomBytes(32)
	require.NoError(t, err)
	encryptionKey, err := crypto.PublicKeyBytes(privEnc)
	require.NoError(t, err)

	from := model.NewAddress(c, 4, 1, &model.PubkeyInfo{
		SigningKey:         signingKey,
		EncryptionKey:      encryptionKey,
		NonceTrialsPerByte: 1000,
		ExtraBytes:         1000,
	})

	to, err := model.NewPlaceholderAddress(make([]byte, model.RipeSize))
	require.NoError(t, err)

	p, err := model.NewPlaintext(from, to, model.EncodingSimple, model.SimpleMessage("s", "b"), []byte("ack"))
	require.NoError(t, err)
	p.SetSignature([]byte{0x30})

	return p
}

func TestSaveAndGet(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	p := testPlaintext(t)
	p.AckData = []byte("ack-token-32-bytes..............")
	p.TTL = 4 * util.Day
	p.AddLabel("sent")

	require.NoError(t, s.Save(ctx, p))

	got, err := s.Get(ctx, p.ID)
	require.NoError(t, err)

	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, p.Message, got.Message)
	assert.Equal(t, p.AckData, got.AckData)
	assert.Equal(t, p.TTL, got.TTL)
	assert.Equal(t, []string{"sent"}, got.Labels)
}

func TestSaveIsUpsert(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	p := testPlaintext(t)
	require.NoError(t, s.Save(ctx, p))

	p.Status = model.StatusSent
	p.Retries = 2
	require.NoError(t, s.Save(ctx, p))

	got, err := s.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSent, got.Status)
	assert.Equal(t, 2, got.Retries)
}

func TestGetByAckData(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	p := testPlaintext(t)
	p.AckData = []byte("unique-ack-data")
	require.NoError(t, s.Save(ctx, p))

	got, err := s.GetByAckData(ctx, p.AckData)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	_, err = s.GetByAckData(ctx, []byte("no such ack"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	p := testPlaintext(t)
	require.NoError(t, s.Save(ctx, p))

	require.NoError(t, s.UpdateStatus(ctx, p.ID, model.StatusAcknowledged))

	got, err := s.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAcknowledged, got.Status)

	err = s.UpdateStatus(ctx, uuid.New(), model.StatusSent)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestFindRetriable(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	now := util.Now()

	due := testPlaintext(t)
	due.Status = model.StatusSent
	due.NextTry = now - 10
	require.NoError(t, s.Save(ctx, due))

	notDue := testPlaintext(t)
	notDue.Status = model.StatusSent
	notDue.NextTry = now + util.Hour
	require.NoError(t, s.Save(ctx, notDue))

	acked := testPlaintext(t)
	acked.Status = model.StatusAcknowledged
	acked.NextTry = now - 10
	require.NoError(t, s.Save(ctx, acked))

	retriable, err := s.FindRetriable(ctx, now)
	require.NoError(t, err)
	require.Len(t, retriable, 1)
	assert.Equal(t, due.ID, retriable[0].ID)
}
