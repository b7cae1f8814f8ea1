package connectors

import (
	"context"
	"strings"

	"brewsync/internal/logger"
	"brewsync/internal/storage"
)

type FetchService struct {
	db           *storage.DB
	connector    MailConnector
	store        *MailStoreService
	senderFilter string
	log          *logger.Logger
}

type FetchResult struct {
	Fetched  int
	Stored   int
	Filtered int
}

// NewFetchService stores every fetched message whose From header contains
// senderFilter (case-insensitive). An empty filter keeps everything.
func NewFetchService(db *storage.DB, rawMailDir, senderFilter string, connector MailConnector, log *logger.Logger) *FetchService {
	if log == nil {
		log = logger.Nop()
	}
	return &FetchService{
		db:           db,
		connector:    connector,
		store:        NewMailStoreService(db, rawMailDir),
		senderFilter: strings.ToLower(strings.TrimSpace(senderFilter)),
		log:          log,
	}
}

func (s *FetchService) FetchAndStore(ctx context.Context, label string, max int) (FetchResult, error) {
	messages, err := s.connector.FetchInbox(ctx, label, max)
	if err != nil {
		return FetchResult{}, err
	}

	res := FetchResult{Fetched: len(messages)}
	for _, msg := range messages {
		if s.senderFilter != "" && !strings.Contains(strings.ToLower(msg.From), s.senderFilter) {
			res.Filtered++
			continue
		}
		row, err := s.store.Store(msg)
		if err != nil {
			return FetchResult{}, err
		}
		s.log.Debug().Int("emailId", row.ID).Str("provider", msg.Provider).Str("subject", msg.Subject).Msg("email stored")
		res.Stored++
	}

	s.log.Info().Int("fetched", res.Fetched).Int("stored", res.Stored).Int("filtered", res.Filtered).Str("label", label).Msg("mailbox fetched")
	return res, nil
}
