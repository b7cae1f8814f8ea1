package pipeline

import (
	"errors"
	"os"
	"time"

	"github.com/google/uuid"

	"brewsync/internal"
	"brewsync/internal/config"
	"brewsync/internal/logger"
	"brewsync/internal/storage"
	"brewsync/internal/util"
)

type ProcessingService struct {
	db       *storage.DB
	cfg      config.Config
	log      *logger.Logger
	parser   *Parser
	normOpts NormalizeOptions
}

func NewProcessingService(db *storage.DB, cfg config.Config, log *logger.Logger) *ProcessingService {
	if log == nil {
		log = logger.Nop()
	}
	return &ProcessingService{
		db:       db,
		cfg:      cfg,
		log:      log,
		parser:   NewParser(TemplateFromConfig(cfg)),
		normOpts: NormalizeOptionsFromConfig(cfg),
	}
}

type ProcessResult struct {
	EmailID    int
	InvoiceIDs []int64
	Items      int
	Skipped    bool
	Failed     bool
}

// invoiceSource is one candidate invoice text found in an email. PDF
// attachments come first; the body is only parsed when none of them held
// line items.
type invoiceSource struct {
	name string
	text string
}

func (s *ProcessingService) ProcessByProviderMessageID(provider, messageID string) (ProcessResult, error) {
	email, err := s.db.MustEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return ProcessResult{}, err
	}
	return s.ProcessEmail(email)
}

// ProcessPending works through fetched emails oldest first. An email that
// cannot be processed is marked failed and the batch carries on.
func (s *ProcessingService) ProcessPending(limit int, provider string) ([]ProcessResult, error) {
	pending, err := s.db.ListEmailsByStatus(storage.EmailStatusFetched, limit)
	if err != nil {
		return nil, err
	}
	out := []ProcessResult{}
	for _, email := range pending {
		if provider != "" && email.Provider != provider {
			continue
		}
		res, err := s.ProcessEmail(email)
		if err != nil {
			s.log.Error().Err(err).Int("emailId", email.ID).Str("rawRef", email.RawRef).Msg("email processing failed")
			if err := s.db.UpdateEmailStatus(email.ID, storage.EmailStatusFailed); err != nil {
				return out, err
			}
			out = append(out, ProcessResult{EmailID: email.ID, InvoiceIDs: []int64{}, Failed: true})
			continue
		}
		out = append(out, res)
	}
	return out, nil
}

func (s *ProcessingService) ProcessEmail(email internal.EmailRow) (ProcessResult, error) {
	start := time.Now()
	trace := uuid.NewString()
	log := s.log.With("traceId", trace)

	raw, err := os.ReadFile(email.RawRef)
	if err != nil {
		return ProcessResult{}, err
	}
	msg, err := ReadInvoiceEmail(raw)
	if err != nil {
		return ProcessResult{}, err
	}

	bodyText := util.FirstNonEmpty(ExtractHTMLText(msg.HTML), msg.Text)
	detect := DetectInvoiceEmail(util.FirstNonEmpty(msg.Subject, email.Subject), bodyText, msg.AttachmentNames())
	if err := s.db.ClearEmailProcessing(email.ID); err != nil {
		return ProcessResult{}, err
	}

	if !detect.IsInvoice {
		log.Info().Int("emailId", email.ID).Float64("score", detect.Score).Str("subject", email.Subject).Msg("email skipped")
		if err := s.db.UpdateEmailStatus(email.ID, storage.EmailStatusSkipped); err != nil {
			return ProcessResult{}, err
		}
		s.recordRun(trace, email.ID, start, map[string]int{"invoices": 0, "items": 0})
		return ProcessResult{EmailID: email.ID, InvoiceIDs: []int64{}, Skipped: true}, nil
	}

	res := ProcessResult{EmailID: email.ID, InvoiceIDs: []int64{}}
	sources := s.pdfSources(msg, log)
	if bodyText != "" {
		sources = append(sources, invoiceSource{name: "email:body", text: bodyText})
	}
	for _, src := range sources {
		if src.name == "email:body" && len(res.InvoiceIDs) > 0 {
			break
		}
		doc := s.parser.Parse(src.text)
		if len(doc.Items) == 0 {
			log.Warn().Int("emailId", email.ID).Str("source", src.name).Msg("no line items recognised")
			continue
		}
		ings := NormalizeAll(doc.Items, s.normOpts)

		invoiceID, err := s.db.InsertInvoice(&email.ID, src.name, s.normOpts.Supplier, doc)
		if err != nil {
			return ProcessResult{}, err
		}
		if err := s.db.InsertIngredients(invoiceID, ings); err != nil {
			return ProcessResult{}, err
		}
		log.Info().
			Int("emailId", email.ID).
			Int64("invoiceId", invoiceID).
			Str("source", src.name).
			Str("strategy", doc.Strategy).
			Int("items", len(ings)).
			Msg("invoice stored")

		res.InvoiceIDs = append(res.InvoiceIDs, invoiceID)
		res.Items += len(ings)
	}

	if err := s.db.UpdateEmailStatus(email.ID, storage.EmailStatusProcessed); err != nil {
		return ProcessResult{}, err
	}
	s.recordRun(trace, email.ID, start, map[string]int{"invoices": len(res.InvoiceIDs), "items": res.Items})
	return res, nil
}

func (s *ProcessingService) pdfSources(msg InvoiceEmail, log *logger.Logger) []invoiceSource {
	out := []invoiceSource{}
	for _, att := range msg.PDFs() {
		text, err := ExtractPDFText(att.Content)
		if err != nil {
			var ee *ExtractionError
			if errors.As(err, &ee) {
				ee.Source = att.FileName
			}
			log.Warn().Err(err).Str("attachment", att.FileName).Msg("pdf extraction failed")
			continue
		}
		out = append(out, invoiceSource{name: "email:" + att.FileName, text: text})
	}
	return out
}

func (s *ProcessingService) recordRun(trace string, emailID int, start time.Time, counts map[string]int) {
	timings := map[string]float64{"totalMs": float64(time.Since(start).Milliseconds())}
	if err := s.db.InsertRun(trace, &emailID, timings, counts); err != nil {
		s.log.Warn().Err(err).Str("traceId", trace).Msg("record run")
	}
}
