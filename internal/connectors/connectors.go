package connectors

import (
	"context"

	"brewsync/internal"
)

// MailConnector pulls recent messages from one mailbox provider.
type MailConnector interface {
	FetchInbox(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error)
}
