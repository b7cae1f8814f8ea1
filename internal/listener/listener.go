package listener

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"brewsync/internal"
	"brewsync/internal/catalog"
	"brewsync/internal/config"
	"brewsync/internal/connectors"
	gmailconnector "brewsync/internal/connectors/gmail"
	imapconnector "brewsync/internal/connectors/imap"
	"brewsync/internal/logger"
	"brewsync/internal/pipeline"
	"brewsync/internal/storage"
)

type Service struct {
	db  *storage.DB
	cfg config.Config
	log *logger.Logger

	connector connectors.MailConnector
	inventory catalog.InventoryAPI
	now       func() time.Time
}

func NewService(db *storage.DB, cfg config.Config, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{db: db, cfg: cfg, log: log, now: time.Now}
}

// WithConnector replaces the provider connector built from config.
func (s *Service) WithConnector(c connectors.MailConnector) *Service {
	s.connector = c
	return s
}

// WithInventory replaces the Brewfather client used for auto-sync.
func (s *Service) WithInventory(api catalog.InventoryAPI) *Service {
	s.inventory = api
	return s
}

type CycleResult struct {
	Fetched   int
	Stored    int
	Processed int
	Skipped   int
	Failed    int
	Invoices  []int64
	Exported  []string
	Synced    int
}

// Run polls the mailbox every MailListenerIntervalSec until ctx is done.
// A failed cycle is logged and the loop carries on.
func (s *Service) Run(ctx context.Context) error {
	interval := time.Duration(s.cfg.MailListenerIntervalSec) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	s.log.Info().Str("provider", s.provider()).Dur("interval", interval).Msg("listener started")

	for {
		if _, err := s.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.log.Error().Err(err).Msg("listener cycle failed")
		}

		select {
		case <-ctx.Done():
			s.log.Info().Msg("listener stopped")
			return nil
		case <-time.After(interval):
		}
	}
}

func (s *Service) RunCycle(ctx context.Context) (CycleResult, error) {
	var res CycleResult
	provider := s.provider()
	mailConnector, err := s.mailConnector(ctx, provider)
	if err != nil {
		return res, err
	}

	fetchService := connectors.NewFetchService(s.db, s.cfg.RawMailDir, s.cfg.InvoiceSenderFilter, mailConnector, s.log)
	fetched, err := fetchService.FetchAndStore(ctx, s.cfg.MailListenerLabel, s.cfg.MailListenerFetchMax)
	if err != nil {
		return res, err
	}
	res.Fetched, res.Stored = fetched.Fetched, fetched.Stored

	processor := pipeline.NewProcessingService(s.db, s.cfg, s.log)
	processed, err := processor.ProcessPending(s.cfg.MailListenerProcessBatch, provider)
	if err != nil {
		return res, err
	}
	for _, p := range processed {
		res.Processed++
		switch {
		case p.Failed:
			res.Failed++
			continue
		case p.Skipped:
			res.Skipped++
			continue
		}
		res.Invoices = append(res.Invoices, p.InvoiceIDs...)
	}

	for _, invoiceID := range res.Invoices {
		if s.cfg.MailListenerAutoSync {
			synced, err := s.syncInvoice(ctx, invoiceID)
			if err != nil {
				return res, err
			}
			res.Synced += synced
		}
		if s.cfg.MailListenerAutoExport {
			paths, err := s.exportInvoice(invoiceID)
			if err != nil {
				return res, err
			}
			res.Exported = append(res.Exported, paths...)
		}
	}

	s.log.Info().
		Str("provider", provider).
		Int("fetched", res.Fetched).
		Int("stored", res.Stored).
		Int("processed", res.Processed).
		Int("skipped", res.Skipped).
		Int("failed", res.Failed).
		Int("invoices", len(res.Invoices)).
		Int("synced", res.Synced).
		Msg("listener cycle done")
	return res, nil
}

func (s *Service) syncInvoice(ctx context.Context, invoiceID int64) (int, error) {
	stored, err := s.db.ListIngredients(invoiceID)
	if err != nil {
		return 0, err
	}
	ings := make([]internal.CanonicalIngredient, 0, len(stored))
	for _, si := range stored {
		ings = append(ings, si.Ingredient)
	}

	api := s.inventory
	if api == nil {
		if err := s.cfg.RequireBrewfather(); err != nil {
			return 0, err
		}
		api = catalog.NewClient(s.cfg)
	}
	results := catalog.NewSyncService(api, s.cfg.InvoiceCurrency, s.log).Apply(ctx, ings)
	if err := s.db.InsertSyncResults(invoiceID, uuid.NewString(), results); err != nil {
		return 0, err
	}

	adjusted := 0
	for _, summary := range catalog.Summarize(results) {
		adjusted += summary.Successful
	}
	return adjusted, nil
}

// exportInvoice writes the reports and the XLSX sheet for one stored invoice
// under OutputDir/listener.
func (s *Service) exportInvoice(invoiceID int64) ([]string, error) {
	inv, err := s.db.GetInvoice(invoiceID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, fmt.Errorf("invoice %d not found", invoiceID)
	}
	stored, err := s.db.ListIngredients(invoiceID)
	if err != nil {
		return nil, err
	}
	ings := make([]internal.CanonicalIngredient, 0, len(stored))
	for _, si := range stored {
		ings = append(ings, si.Ingredient)
	}

	dir := filepath.Join(s.cfg.OutputDir, "listener")
	doc := internal.InvoiceDocument{InvoiceNumber: inv.InvoiceNumber, Date: inv.InvoiceDate, Total: inv.Total}
	now := s.now()
	paths, err := pipeline.SaveReports(dir, pipeline.BuildReport(doc, ings, inv.Supplier, now), s.cfg.InvoiceCurrency, now)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.GetExportRows(invoiceID)
	if err != nil {
		return nil, err
	}
	xlsxPath := filepath.Join(dir, fmt.Sprintf("invoice_%d.xlsx", invoiceID))
	if err := pipeline.ExportRowsToXLSX(rows, xlsxPath); err != nil {
		return nil, err
	}

	s.log.Debug().Int64("invoiceId", invoiceID).Str("xlsx", xlsxPath).Msg("invoice exported")
	return []string{paths.JSON, paths.CSV, paths.CatalogImport, xlsxPath}, nil
}

func (s *Service) provider() string {
	return strings.ToLower(strings.TrimSpace(s.cfg.MailListenerProvider))
}

func (s *Service) mailConnector(ctx context.Context, provider string) (connectors.MailConnector, error) {
	if s.connector != nil {
		return s.connector, nil
	}
	return NewConnector(ctx, s.cfg, provider)
}

// NewConnector builds the mailbox connector for the named provider.
func NewConnector(ctx context.Context, cfg config.Config, provider string) (connectors.MailConnector, error) {
	switch provider {
	case "gmail":
		return gmailconnector.NewConnector(ctx, cfg)
	case "imap":
		return imapconnector.NewConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported mail provider: %s", provider)
	}
}
