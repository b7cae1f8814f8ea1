package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brewsync/internal"
	"brewsync/internal/util"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "data", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestUpsertEmailIsIdempotent(t *testing.T) {
	db := openTestDB(t)

	first, err := db.UpsertEmail("imap", "<1@example.com>", "Invoice 1", "shop@example.com", "2024-03-12T10:00:00Z", "abc", "/tmp/a.eml", "fetched")
	require.NoError(t, err)
	require.NoError(t, db.UpdateEmailStatus(first.ID, "processed"))

	second, err := db.UpsertEmail("imap", "<1@example.com>", "Invoice 1 (resent)", "shop@example.com", "2024-03-12T10:00:00Z", "def", "/tmp/b.eml", "fetched")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "processed", second.Status)
	assert.Equal(t, "Invoice 1 (resent)", second.Subject)

	pending, err := db.ListEmailsByStatus("fetched", 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = db.MustEmailByProviderMessageID("imap", "<missing>")
	assert.Error(t, err)
}

func sampleIngredients() []internal.CanonicalIngredient {
	return []internal.CanonicalIngredient{
		{Type: internal.TypeFermentable, Name: "Maris Otter", SubType: "Base", Attrs: internal.FermentableAttrs{Color: 2}, Amount: 25, Unit: internal.UnitKg, Cost: 0.84, Supplier: "Malt Miller", Origin: "UK", RawLine: "Maris Otter 25kg"},
		{Type: internal.TypeHop, Name: "Citra", SubType: "Aroma", Attrs: internal.HopAttrs{Form: "Pellet", Alpha: 12.5}, Amount: 100, Unit: internal.UnitG, Cost: 0.08, Supplier: "Malt Miller", Origin: "USA", RawLine: "Citra 100g"},
		{Type: internal.TypeMisc, Name: "Grain Bag", SubType: "Other", Attrs: internal.MiscAttrs{Use: "Boil"}, Amount: 1, Unit: internal.UnitEach, Cost: 12, Supplier: "Malt Miller", RawLine: "Grain Bag"},
	}
}

func TestInvoiceIngredientsRoundTrip(t *testing.T) {
	db := openTestDB(t)

	doc := internal.InvoiceDocument{InvoiceNumber: util.StringPtr("123456"), Date: util.StringPtr("12 March 2024"), Total: util.FloatPtr(56), Strategy: "tabular", Items: make([]internal.RawLineItem, 3)}
	invoiceID, err := db.InsertInvoice(nil, "file:invoice.pdf", "Malt Miller", doc)
	require.NoError(t, err)
	require.NoError(t, db.InsertIngredients(invoiceID, sampleIngredients()))

	inv, err := db.GetInvoice(invoiceID)
	require.NoError(t, err)
	require.NotNil(t, inv)
	assert.Nil(t, inv.EmailID)
	assert.Equal(t, "123456", *inv.InvoiceNumber)
	assert.Equal(t, 56.0, *inv.Total)
	assert.Equal(t, 3, inv.ItemCount)

	stored, err := db.ListIngredients(invoiceID)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	assert.Equal(t, 1, stored[0].LineNo)
	assert.Equal(t, internal.FermentableAttrs{Color: 2}, stored[0].Ingredient.Attrs)
	assert.Equal(t, internal.HopAttrs{Form: "Pellet", Alpha: 12.5}, stored[1].Ingredient.Attrs)
	assert.Equal(t, internal.UnitEach, stored[2].Ingredient.Unit)

	missing, err := db.GetInvoice(invoiceID + 100)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCatalogSnapshotKeepsOrder(t *testing.T) {
	db := openTestDB(t)

	entries := []internal.CatalogEntry{
		{ID: "z1", Name: "Maris Otter", CurrentAmount: 5, Unit: internal.UnitKg},
		{ID: "a2", Name: "Crystal 150", CurrentAmount: 1.5, Unit: internal.UnitKg},
	}
	require.NoError(t, db.ReplaceCatalogEntries(internal.TypeFermentable, entries))
	require.NoError(t, db.ReplaceCatalogEntries(internal.TypeHop, []internal.CatalogEntry{{ID: "h1", Name: "Citra", CurrentAmount: 50, Unit: internal.UnitG}}))

	got, err := db.ListCatalogEntries(internal.TypeFermentable)
	require.NoError(t, err)
	assert.Equal(t, entries, got)

	require.NoError(t, db.ReplaceCatalogEntries(internal.TypeFermentable, entries[1:]))
	got, err = db.ListCatalogEntries(internal.TypeFermentable)
	require.NoError(t, err)
	assert.Equal(t, entries[1:], got)

	hops, err := db.ListCatalogEntries(internal.TypeHop)
	require.NoError(t, err)
	assert.Len(t, hops, 1)

	yeasts, err := db.ListCatalogEntries(internal.TypeYeast)
	require.NoError(t, err)
	assert.Empty(t, yeasts)
}

func TestExportRowsUseLatestSyncResult(t *testing.T) {
	db := openTestDB(t)

	invoiceID, err := db.InsertInvoice(nil, "file:invoice.pdf", "Malt Miller", internal.InvoiceDocument{Strategy: "tabular"})
	require.NoError(t, err)
	require.NoError(t, db.InsertIngredients(invoiceID, sampleIngredients()))

	require.NoError(t, db.InsertSyncResults(invoiceID, "trace-1", []internal.CategorySyncResult{
		{Type: internal.TypeFermentable, Items: []internal.SyncItemResult{{Name: "Maris Otter", Success: false, Action: internal.ActionError, Error: "boom"}}},
	}))
	require.NoError(t, db.InsertSyncResults(invoiceID, "trace-2", []internal.CategorySyncResult{
		{Type: internal.TypeFermentable, Items: []internal.SyncItemResult{{Name: "Maris Otter", Success: true, Action: internal.ActionAdjusted, ID: "f1", CurrentAmount: 5, AdjustedBy: 25, NewAmount: 30, Unit: internal.UnitKg}}},
		{Type: internal.TypeHop, Items: []internal.SyncItemResult{{Name: "Citra", Success: false, Action: internal.ActionNotFound, Error: "Item not found"}}},
	}))

	rows, err := db.GetExportRows(invoiceID)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	malt := rows[0]
	require.NotNil(t, malt.SyncAction)
	assert.Equal(t, "adjusted", *malt.SyncAction)
	require.NotNil(t, malt.SyncSuccess)
	assert.True(t, *malt.SyncSuccess)
	assert.Nil(t, malt.SyncError)
	assert.Equal(t, "f1", *malt.CatalogID)
	assert.Equal(t, 30.0, *malt.NewAmount)

	hop := rows[1]
	assert.Equal(t, "not_found", *hop.SyncAction)
	assert.False(t, *hop.SyncSuccess)
	assert.Nil(t, hop.CatalogID)

	bag := rows[2]
	assert.Nil(t, bag.SyncAction)
	assert.Nil(t, bag.SyncSuccess)
}

func TestClearEmailProcessing(t *testing.T) {
	db := openTestDB(t)

	email, err := db.UpsertEmail("gmail", "m1", "Invoice", "shop@example.com", "2024-03-12T10:00:00Z", "h", "/tmp/m1.eml", "fetched")
	require.NoError(t, err)

	invoiceID, err := db.InsertInvoice(&email.ID, "email:invoice.pdf", "Malt Miller", internal.InvoiceDocument{Strategy: "tabular"})
	require.NoError(t, err)
	require.NoError(t, db.InsertIngredients(invoiceID, sampleIngredients()))

	invoices, err := db.ListInvoicesByEmail(email.ID)
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	require.NotNil(t, invoices[0].EmailID)
	assert.Equal(t, email.ID, *invoices[0].EmailID)

	require.NoError(t, db.ClearEmailProcessing(email.ID))

	invoices, err = db.ListInvoicesByEmail(email.ID)
	require.NoError(t, err)
	assert.Empty(t, invoices)
	stored, err := db.ListIngredients(invoiceID)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestRunsAndMetadata(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.InsertRun("trace-x", nil, map[string]float64{"totalMs": 12}, map[string]int{"items": 3}))
	n, err := db.CountRuns("trace-x")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	v, err := db.GetMetadata("catalog_snapshot_at")
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, db.SetMetadata("catalog_snapshot_at", "2024-03-12T10:00:00Z"))
	require.NoError(t, db.SetMetadata("catalog_snapshot_at", "2024-03-13T10:00:00Z"))
	v, err = db.GetMetadata("catalog_snapshot_at")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "2024-03-13T10:00:00Z", *v)
}
