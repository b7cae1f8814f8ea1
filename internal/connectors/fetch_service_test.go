package connectors

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brewsync/internal"
	"brewsync/internal/storage"
)

type fakeConnector struct {
	messages []internal.FetchedMailMessage
	err      error
}

func (f fakeConnector) FetchInbox(_ context.Context, _ string, max int) ([]internal.FetchedMailMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	if max < len(f.messages) {
		return f.messages[:max], nil
	}
	return f.messages, nil
}

func message(id, from string) internal.FetchedMailMessage {
	return internal.FetchedMailMessage{
		Provider:   "imap",
		MessageID:  id,
		Subject:    "Invoice " + id,
		From:       from,
		ReceivedAt: "2024-03-12T10:00:00Z",
		Raw:        []byte("Subject: Invoice " + id + "\r\n\r\nbody " + id),
	}
}

func openDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestFetchAndStoreFiltersSender(t *testing.T) {
	db := openDB(t)
	rawDir := filepath.Join(t.TempDir(), "raw")
	conn := fakeConnector{messages: []internal.FetchedMailMessage{
		message("1", "The Malt Miller <orders@themaltmiller.co.uk>"),
		message("2", "Newsletter <news@example.com>"),
		message("3", "ORDERS@THEMALTMILLER.CO.UK"),
	}}

	svc := NewFetchService(db, rawDir, "themaltmiller.co.uk", conn, nil)
	res, err := svc.FetchAndStore(context.Background(), "INBOX", 10)
	require.NoError(t, err)
	assert.Equal(t, FetchResult{Fetched: 3, Stored: 2, Filtered: 1}, res)

	pending, err := db.ListEmailsByStatus(storage.EmailStatusFetched, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	for _, row := range pending {
		_, err := os.Stat(row.RawRef)
		assert.NoError(t, err)
		assert.Equal(t, filepath.Join(rawDir, row.Hash+".eml"), row.RawRef)
	}
}

func TestFetchAndStoreWithoutFilter(t *testing.T) {
	db := openDB(t)
	conn := fakeConnector{messages: []internal.FetchedMailMessage{message("1", "a@example.com"), message("2", "b@example.com")}}

	svc := NewFetchService(db, t.TempDir(), "", conn, nil)
	res, err := svc.FetchAndStore(context.Background(), "INBOX", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stored)
}

func TestFetchAndStorePropagatesErrors(t *testing.T) {
	svc := NewFetchService(openDB(t), t.TempDir(), "", fakeConnector{err: errors.New("auth failed")}, nil)
	_, err := svc.FetchAndStore(context.Background(), "INBOX", 10)
	assert.EqualError(t, err, "auth failed")
}

func TestStoreKeepsStatusOfKnownMessage(t *testing.T) {
	db := openDB(t)
	store := NewMailStoreService(db, t.TempDir())

	row, err := store.Store(message("1", "a@example.com"))
	require.NoError(t, err)
	require.NoError(t, db.UpdateEmailStatus(row.ID, storage.EmailStatusProcessed))

	again, err := store.Store(message("1", "a@example.com"))
	require.NoError(t, err)
	assert.Equal(t, row.ID, again.ID)
	assert.Equal(t, storage.EmailStatusProcessed, again.Status)
}
