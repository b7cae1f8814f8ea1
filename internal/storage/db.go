package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"brewsync/internal"
)

const (
	EmailStatusFetched   = "fetched"
	EmailStatusProcessed = "processed"
	EmailStatusSkipped   = "skipped"
	EmailStatusFailed    = "failed"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS emails (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  provider TEXT NOT NULL,
  messageId TEXT NOT NULL,
  subject TEXT,
  sender TEXT,
  receivedAt TEXT,
  hash TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'fetched',
  rawRef TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(provider, messageId)
);

CREATE TABLE IF NOT EXISTS invoices (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  emailId INTEGER,
  source TEXT NOT NULL,
  supplier TEXT NOT NULL,
  invoiceNumber TEXT,
  invoiceDate TEXT,
  total REAL,
  strategy TEXT NOT NULL,
  itemCount INTEGER NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(emailId) REFERENCES emails(id)
);
CREATE INDEX IF NOT EXISTS idx_invoices_emailId ON invoices(emailId);

CREATE TABLE IF NOT EXISTS ingredients (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  invoiceId INTEGER NOT NULL,
  lineNo INTEGER NOT NULL,
  type TEXT NOT NULL,
  name TEXT NOT NULL,
  subType TEXT NOT NULL,
  attrsJson TEXT NOT NULL,
  amount REAL NOT NULL,
  unit TEXT NOT NULL,
  cost REAL NOT NULL,
  supplier TEXT NOT NULL,
  origin TEXT NOT NULL,
  notes TEXT NOT NULL,
  rawLine TEXT NOT NULL,
  UNIQUE(invoiceId, lineNo),
  FOREIGN KEY(invoiceId) REFERENCES invoices(id)
);

CREATE TABLE IF NOT EXISTS catalog_entries (
  type TEXT NOT NULL,
  id TEXT NOT NULL,
  position INTEGER NOT NULL,
  name TEXT NOT NULL,
  currentAmount REAL NOT NULL,
  unit TEXT NOT NULL,
  lastSeenAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  PRIMARY KEY(type, id)
);

CREATE TABLE IF NOT EXISTS sync_results (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  invoiceId INTEGER NOT NULL,
  traceId TEXT NOT NULL,
  type TEXT NOT NULL,
  name TEXT NOT NULL,
  action TEXT NOT NULL,
  success INTEGER NOT NULL,
  catalogId TEXT,
  currentAmount REAL,
  adjustedBy REAL,
  newAmount REAL,
  unit TEXT,
  error TEXT,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(invoiceId) REFERENCES invoices(id)
);
CREATE INDEX IF NOT EXISTS idx_sync_results_item ON sync_results(invoiceId, type, name);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  emailId INTEGER,
  timingsJson TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(emailId) REFERENCES emails(id)
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

func (d *DB) UpsertEmail(provider, messageID, subject, sender, receivedAt, hash, rawRef, status string) (internal.EmailRow, error) {
	_, err := d.conn.Exec(`
INSERT INTO emails (provider, messageId, subject, sender, receivedAt, hash, status, rawRef)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(provider, messageId) DO UPDATE SET
  subject=excluded.subject,
  sender=excluded.sender,
  receivedAt=excluded.receivedAt,
  hash=excluded.hash,
  rawRef=excluded.rawRef,
  updatedAt=CURRENT_TIMESTAMP
`, provider, messageID, subject, sender, receivedAt, hash, status, rawRef)
	if err != nil {
		return internal.EmailRow{}, err
	}

	row, err := d.GetEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.EmailRow{}, err
	}
	if row == nil {
		return internal.EmailRow{}, errors.New("failed to upsert email")
	}
	return *row, nil
}

const emailColumns = `id, provider, messageId, subject, sender, receivedAt, hash, status, rawRef`

func scanEmail(s interface{ Scan(...any) error }) (internal.EmailRow, error) {
	var row internal.EmailRow
	err := s.Scan(&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef)
	return row, err
}

func (d *DB) GetEmailByProviderMessageID(provider, messageID string) (*internal.EmailRow, error) {
	row, err := scanEmail(d.conn.QueryRow(`SELECT `+emailColumns+` FROM emails WHERE provider = ? AND messageId = ?`, provider, messageID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) GetEmailByID(id int) (*internal.EmailRow, error) {
	row, err := scanEmail(d.conn.QueryRow(`SELECT `+emailColumns+` FROM emails WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) MustEmailByProviderMessageID(provider, messageID string) (internal.EmailRow, error) {
	row, err := d.GetEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.EmailRow{}, err
	}
	if row == nil {
		return internal.EmailRow{}, fmt.Errorf("email not found: provider=%s messageId=%s", provider, messageID)
	}
	return *row, nil
}

func (d *DB) ListEmailsByStatus(status string, limit int) ([]internal.EmailRow, error) {
	rows, err := d.conn.Query(`SELECT `+emailColumns+` FROM emails WHERE status = ? ORDER BY receivedAt ASC, id ASC LIMIT ?`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.EmailRow
	for rows.Next() {
		row, err := scanEmail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) UpdateEmailStatus(emailID int, status string) error {
	_, err := d.conn.Exec(`UPDATE emails SET status = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, status, emailID)
	return err
}

// ClearEmailProcessing drops invoices previously derived from an email so it
// can be processed again.
func (d *DB) ClearEmailProcessing(emailID int) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, q := range []string{
		`DELETE FROM sync_results WHERE invoiceId IN (SELECT id FROM invoices WHERE emailId = ?)`,
		`DELETE FROM ingredients WHERE invoiceId IN (SELECT id FROM invoices WHERE emailId = ?)`,
		`DELETE FROM invoices WHERE emailId = ?`,
	} {
		if _, err := tx.Exec(q, emailID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// InsertInvoice stores the invoice header. emailID is nil for invoices read
// from a file.
func (d *DB) InsertInvoice(emailID *int, source, supplier string, doc internal.InvoiceDocument) (int64, error) {
	result, err := d.conn.Exec(`
INSERT INTO invoices (emailId, source, supplier, invoiceNumber, invoiceDate, total, strategy, itemCount)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`, emailID, source, supplier, doc.InvoiceNumber, doc.Date, doc.Total, doc.Strategy, len(doc.Items))
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

const invoiceColumns = `id, emailId, source, supplier, invoiceNumber, invoiceDate, total, strategy, itemCount, createdAt`

func scanInvoice(s interface{ Scan(...any) error }) (internal.InvoiceRow, error) {
	var row internal.InvoiceRow
	err := s.Scan(&row.ID, &row.EmailID, &row.Source, &row.Supplier, &row.InvoiceNumber, &row.InvoiceDate, &row.Total, &row.Strategy, &row.ItemCount, &row.CreatedAt)
	return row, err
}

func (d *DB) GetInvoice(id int64) (*internal.InvoiceRow, error) {
	row, err := scanInvoice(d.conn.QueryRow(`SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) ListInvoicesByEmail(emailID int) ([]internal.InvoiceRow, error) {
	rows, err := d.conn.Query(`SELECT `+invoiceColumns+` FROM invoices WHERE emailId = ? ORDER BY id ASC`, emailID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.InvoiceRow
	for rows.Next() {
		row, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// InsertIngredients stores the normalized items of an invoice in order,
// numbering lines from 1.
func (d *DB) InsertIngredients(invoiceID int64, ings []internal.CanonicalIngredient) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
INSERT INTO ingredients (invoiceId, lineNo, type, name, subType, attrsJson, amount, unit, cost, supplier, origin, notes, rawLine)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, ing := range ings {
		attrsJSON := []byte("{}")
		if ing.Attrs != nil {
			if attrsJSON, err = json.Marshal(ing.Attrs); err != nil {
				return err
			}
		}
		if _, err := stmt.Exec(
			invoiceID, i+1, string(ing.Type), ing.Name, ing.SubType, string(attrsJSON),
			ing.Amount, string(ing.Unit), ing.Cost, ing.Supplier, ing.Origin, ing.Notes, ing.RawLine,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) ListIngredients(invoiceID int64) ([]internal.StoredIngredient, error) {
	rows, err := d.conn.Query(`
SELECT id, invoiceId, lineNo, type, name, subType, attrsJson, amount, unit, cost, supplier, origin, notes, rawLine
FROM ingredients WHERE invoiceId = ? ORDER BY lineNo ASC
`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.StoredIngredient
	for rows.Next() {
		var rec internal.StoredIngredient
		var typ, unit, attrsJSON string
		ing := &rec.Ingredient
		if err := rows.Scan(
			&rec.ID, &rec.InvoiceID, &rec.LineNo, &typ, &ing.Name, &ing.SubType, &attrsJSON,
			&ing.Amount, &unit, &ing.Cost, &ing.Supplier, &ing.Origin, &ing.Notes, &ing.RawLine,
		); err != nil {
			return nil, err
		}
		ing.Type = internal.IngredientType(typ)
		ing.Unit = internal.Unit(unit)
		attrs, err := internal.DecodeAttrs(ing.Type, []byte(attrsJSON))
		if err != nil {
			return nil, fmt.Errorf("ingredient %d: %w", rec.ID, err)
		}
		ing.Attrs = attrs
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ReplaceCatalogEntries swaps the cached snapshot of one inventory category,
// keeping the order the entries were listed in.
func (d *DB) ReplaceCatalogEntries(t internal.IngredientType, entries []internal.CatalogEntry) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM catalog_entries WHERE type = ?`, string(t)); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
INSERT INTO catalog_entries (type, id, position, name, currentAmount, unit, lastSeenAt)
VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(type, id) DO UPDATE SET
  name=excluded.name,
  currentAmount=excluded.currentAmount,
  unit=excluded.unit,
  lastSeenAt=CURRENT_TIMESTAMP
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, e := range entries {
		if _, err := stmt.Exec(string(t), e.ID, i, e.Name, e.CurrentAmount, string(e.Unit)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) ListCatalogEntries(t internal.IngredientType) ([]internal.CatalogEntry, error) {
	rows, err := d.conn.Query(`
SELECT id, name, currentAmount, unit FROM catalog_entries WHERE type = ? ORDER BY position ASC
`, string(t))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []internal.CatalogEntry{}
	for rows.Next() {
		var e internal.CatalogEntry
		var unit string
		if err := rows.Scan(&e.ID, &e.Name, &e.CurrentAmount, &unit); err != nil {
			return nil, err
		}
		e.Unit = internal.Unit(unit)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (d *DB) InsertSyncResults(invoiceID int64, traceID string, results []internal.CategorySyncResult) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
INSERT INTO sync_results (invoiceId, traceId, type, name, action, success, catalogId, currentAmount, adjustedBy, newAmount, unit, error)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, cat := range results {
		for _, item := range cat.Items {
			if _, err := stmt.Exec(
				invoiceID, traceID, string(cat.Type), item.Name, string(item.Action), item.Success,
				nullString(item.ID), item.CurrentAmount, item.AdjustedBy, item.NewAmount, nullString(string(item.Unit)), nullString(item.Error),
			); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

func (d *DB) InsertRun(traceID string, emailID *int, timings map[string]float64, counts map[string]int) error {
	timingsJSON, _ := json.Marshal(timings)
	countsJSON, _ := json.Marshal(counts)
	_, err := d.conn.Exec(`INSERT INTO runs (traceId, emailId, timingsJson, countsJson) VALUES (?, ?, ?, ?)`, traceID, emailID, string(timingsJSON), string(countsJSON))
	return err
}

func (d *DB) CountRuns(traceID string) (int, error) {
	var n int
	err := d.conn.QueryRow(`SELECT COUNT(*) FROM runs WHERE traceId = ?`, traceID).Scan(&n)
	return n, err
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}

// GetExportRows lists the ingredients of an invoice joined with the latest
// sync outcome recorded for each.
func (d *DB) GetExportRows(invoiceID int64) ([]internal.IngredientExportRow, error) {
	rows, err := d.conn.Query(`
SELECT
  i.lineNo,
  i.type,
  i.name,
  i.subType,
  i.amount,
  i.unit,
  i.cost,
  i.origin,
  i.supplier,
  i.rawLine,
  s.action,
  s.success,
  s.error,
  s.catalogId,
  s.newAmount
FROM ingredients i
LEFT JOIN sync_results s ON s.id = (
  SELECT s2.id FROM sync_results s2
  WHERE s2.invoiceId = i.invoiceId AND s2.type = i.type AND s2.name = i.name
  ORDER BY s2.id DESC LIMIT 1
)
WHERE i.invoiceId = ?
ORDER BY i.lineNo ASC
`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.IngredientExportRow
	for rows.Next() {
		var row internal.IngredientExportRow
		if err := rows.Scan(
			&row.LineNo,
			&row.Type,
			&row.Name,
			&row.SubType,
			&row.Amount,
			&row.Unit,
			&row.Cost,
			&row.Origin,
			&row.Supplier,
			&row.RawLine,
			&row.SyncAction,
			&row.SyncSuccess,
			&row.SyncError,
			&row.CatalogID,
			&row.NewAmount,
		); err != nil {
			return nil, err
		}
		out = append(out, row)
	}

	return out, rows.Err()
}

func nullString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
