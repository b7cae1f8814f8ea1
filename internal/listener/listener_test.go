package listener

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brewsync/internal"
	"brewsync/internal/catalog"
	"brewsync/internal/config"
	"brewsync/internal/logger"
	"brewsync/internal/storage"
)

type fakeConnector struct {
	messages []internal.FetchedMailMessage
	err      error
}

func (f fakeConnector) FetchInbox(_ context.Context, _ string, _ int) ([]internal.FetchedMailMessage, error) {
	return f.messages, f.err
}

type fakeInventory struct {
	adjusted []string
}

func (f *fakeInventory) ListInventory(_ context.Context, t internal.IngredientType) ([]internal.CatalogEntry, error) {
	if t == internal.TypeFermentable {
		return []internal.CatalogEntry{{ID: "f1", Name: "Maris Otter", CurrentAmount: 5, Unit: internal.UnitKg}}, nil
	}
	return []internal.CatalogEntry{}, nil
}

func (f *fakeInventory) AdjustInventory(_ context.Context, _ internal.IngredientType, id string, _ catalog.Adjustment) (string, error) {
	f.adjusted = append(f.adjusted, id)
	return "Updated", nil
}

func rawMessage(id, subject, body string) internal.FetchedMailMessage {
	raw := strings.Join([]string{
		"From: The Malt Miller <orders@example.com>",
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")
	return internal.FetchedMailMessage{
		Provider:   "imap",
		MessageID:  id,
		Subject:    subject,
		From:       "orders@example.com",
		ReceivedAt: "2024-03-12T10:00:00Z",
		Raw:        []byte(raw),
	}
}

func newTestService(t *testing.T, cfg config.Config, conn fakeConnector) (*Service, *storage.DB) {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.Open(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg.MailListenerProvider = "imap"
	cfg.MailListenerLabel = "INBOX"
	cfg.MailListenerFetchMax = 10
	cfg.MailListenerProcessBatch = 10
	cfg.RawMailDir = filepath.Join(dir, "raw")
	cfg.OutputDir = filepath.Join(dir, "out")
	cfg.InvoiceSupplier = "Malt Miller"
	cfg.InvoiceCurrency = "GBP"

	svc := NewService(db, cfg, logger.Nop()).WithConnector(conn)
	svc.now = func() time.Time { return time.Date(2024, 3, 12, 9, 0, 0, 0, time.UTC) }
	return svc, db
}

const invoiceBody = "Thanks for your order.\r\nInvoice Number: 555\r\nChinook Hop Pellets 100g £6.00\r\nMaris Otter 25kg £21.00\r\nTotal £27.00"

func TestRunCycleProcessesAndExports(t *testing.T) {
	conn := fakeConnector{messages: []internal.FetchedMailMessage{
		rawMessage("m1", "Your order invoice", invoiceBody),
		rawMessage("m2", "Brew day", "See you on Saturday."),
	}}
	svc, db := newTestService(t, config.Config{MailListenerAutoExport: true}, conn)

	res, err := svc.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Fetched)
	assert.Equal(t, 2, res.Stored)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Invoices, 1)
	require.Len(t, res.Exported, 4)
	for _, path := range res.Exported {
		_, err := os.Stat(path)
		assert.NoError(t, err, path)
	}
	assert.Zero(t, res.Synced)

	rows, err := db.GetExportRows(res.Invoices[0])
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Nil(t, rows[0].SyncAction)

	again, err := svc.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Zero(t, again.Processed)
	assert.Empty(t, again.Invoices)
}

func TestRunCycleAutoSync(t *testing.T) {
	conn := fakeConnector{messages: []internal.FetchedMailMessage{rawMessage("m1", "Your order invoice", invoiceBody)}}
	svc, db := newTestService(t, config.Config{MailListenerAutoSync: true}, conn)
	inv := &fakeInventory{}
	svc.WithInventory(inv)

	res, err := svc.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Invoices, 1)
	assert.Empty(t, res.Exported)

	rows, err := db.GetExportRows(res.Invoices[0])
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		require.NotNil(t, row.SyncAction, row.Name)
	}
	assert.Equal(t, len(inv.adjusted), res.Synced)
}

func TestRunCycleAutoSyncNeedsCredentials(t *testing.T) {
	conn := fakeConnector{messages: []internal.FetchedMailMessage{rawMessage("m1", "Your order invoice", invoiceBody)}}
	svc, _ := newTestService(t, config.Config{MailListenerAutoSync: true}, conn)

	_, err := svc.RunCycle(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BREWFATHER_USER_ID")
}

func TestRunCycleFetchError(t *testing.T) {
	svc, _ := newTestService(t, config.Config{}, fakeConnector{err: errors.New("mailbox down")})
	_, err := svc.RunCycle(context.Background())
	assert.EqualError(t, err, "mailbox down")
}

func TestRunStopsOnCancel(t *testing.T) {
	svc, _ := newTestService(t, config.Config{MailListenerIntervalSec: 3600}, fakeConnector{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not stop")
	}
}

func TestNewConnectorRejectsUnknownProvider(t *testing.T) {
	_, err := NewConnector(context.Background(), config.Config{}, "pop3")
	assert.EqualError(t, err, "unsupported mail provider: pop3")
}

func TestRunCycleSkipsPastUnreadableEmail(t *testing.T) {
	conn := fakeConnector{messages: []internal.FetchedMailMessage{rawMessage("m1", "Your order invoice", invoiceBody)}}
	svc, db := newTestService(t, config.Config{}, conn)
	_, err := db.UpsertEmail("imap", "lost", "Invoice 9", "orders@example.com", "2024-03-01T10:00:00Z", "lost", filepath.Join(t.TempDir(), "lost.eml"), storage.EmailStatusFetched)
	require.NoError(t, err)

	res, err := svc.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Invoices, 1)

	again, err := svc.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Zero(t, again.Processed)
}
