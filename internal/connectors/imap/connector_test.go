package imap

import (
	"context"
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brewsync/internal/config"
)

func TestNewConnectorRequiresCredentials(t *testing.T) {
	_, err := NewConnector(config.Config{IMAPHost: "imap.example.com", IMAPUser: "brewer"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IMAP_PASSWORD")
}

func TestSearchCriteriaAddsSender(t *testing.T) {
	c, err := NewConnector(config.Config{IMAPHost: "h", IMAPUser: "u", IMAPPassword: "p", InvoiceSenderFilter: " orders@themaltmiller.co.uk "})
	require.NoError(t, err)

	criteria := c.searchCriteria()
	assert.Equal(t, []string{imap.SeenFlag}, criteria.WithoutFlags)
	assert.Equal(t, "orders@themaltmiller.co.uk", criteria.Header.Get("From"))

	c.senderFilter = ""
	assert.Empty(t, c.searchCriteria().Header.Get("From"))
}

func TestNewest(t *testing.T) {
	assert.Equal(t, []uint32{4, 5}, newest([]uint32{1, 2, 3, 4, 5}, 2))
	assert.Equal(t, []uint32{1, 2}, newest([]uint32{1, 2}, 5))
	assert.Equal(t, []uint32{1, 2}, newest([]uint32{1, 2}, 0))
}

func TestToFetched(t *testing.T) {
	when := time.Date(2024, 3, 12, 10, 0, 0, 0, time.FixedZone("BST", 3600))
	msg := &imap.Message{
		Uid:          42,
		InternalDate: when,
		Envelope: &imap.Envelope{
			Subject: "Invoice 1001",
			From:    []*imap.Address{{PersonalName: "The Malt Miller", MailboxName: "orders", HostName: "themaltmiller.co.uk"}},
		},
	}

	got := toFetched(msg, []byte("raw"))
	assert.Equal(t, "imap", got.Provider)
	assert.Equal(t, "imap-42", got.MessageID)
	assert.Equal(t, "Invoice 1001", got.Subject)
	assert.Equal(t, "The Malt Miller <orders@themaltmiller.co.uk>", got.From)
	assert.Equal(t, "2024-03-12T09:00:00Z", got.ReceivedAt)
}

func TestFetchInboxHonoursCancelledContext(t *testing.T) {
	c, err := NewConnector(config.Config{IMAPHost: "h", IMAPUser: "u", IMAPPassword: "p"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.FetchInbox(ctx, "INBOX", 10)
	assert.ErrorIs(t, err, context.Canceled)
}
