package outbox

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestClaimIsConditionalOnPending(t *testing.T) {
	require.Contains(t, claimSQL, "WHERE id = $1 AND status = 'PENDING'")
	require.Contains(t, claimSQL, "RETURNING "+notificationColumns)
}

func TestExpiryCountsFromLastQueueTime(t *testing.T) {
	require.Contains(t, expireStaleSQL, "status = 'PENDING' AND updated_at < $1")
	require.NotContains(t, expireStaleSQL, "created_at")
	require.Contains(t, requeueSQL, "updated_at = now()")
	require.Contains(t, requeueSQL, "retry_count = 0")
}

func TestDecodeTemplateDataReportsMalformedDocuments(t *testing.T) {
	td, err := DecodeTemplateData(nil)
	require.NoError(t, err)
	require.Nil(t, td)

	tplID := uuid.New()
	td, err = DecodeTemplateData([]byte(`{"template_id":"` + tplID.String() + `","variables":{"ticket":{"number":7}}}`))
	require.NoError(t, err)
	require.Equal(t, tplID, *td.TemplateID)

	for _, raw := range []string{`{"template_id":"not-a-uuid"}`, `{"variables":[1,2]}`} {
		td, err = DecodeTemplateData([]byte(raw))
		require.Error(t, err, raw)
		require.Nil(t, td)
	}
}

func TestListDueSelectsOnlyDuePendingRowsOldestFirst(t *testing.T) {
	require.Contains(t, listDueSQL, "status = 'PENDING'")
	require.Contains(t, listDueSQL, "next_retry_at IS NULL OR next_retry_at <= $1")
	require.True(t, strings.Contains(listDueSQL, "ORDER BY created_at ASC"))
}

func TestValidateInsert(t *testing.T) {
	email := InsertParams{
		OrganizationID: uuid.New(),
		Channel:        ChannelEmail,
		EventType:      "TICKET_CREATED",
		RecipientEmail: "a@example.com",
	}
	require.NoError(t, validateInsert(email))

	noRecipient := email
	noRecipient.RecipientEmail = ""
	require.Error(t, validateInsert(noRecipient))

	badChannel := email
	badChannel.Channel = "PIGEON"
	require.Error(t, validateInsert(badChannel))

	noOrg := email
	noOrg.OrganizationID = uuid.Nil
	require.Error(t, validateInsert(noOrg))
}

func TestInsertArgsDefaultsMaxRetries(t *testing.T) {
	args, err := insertArgs(uuid.New(), InsertParams{OrganizationID: uuid.New(), Channel: ChannelSMS})
	require.NoError(t, err)
	require.Equal(t, DefaultMaxRetries, args[len(args)-1])
	require.Nil(t, args[4])
}

func TestNilRepositoryReturnsError(t *testing.T) {
	var repo *Repository
	_, _, err := repo.Claim(context.Background(), uuid.New())
	require.EqualError(t, err, errRepoNotConfigured)
}

func TestStatusTerminal(t *testing.T) {
	require.False(t, StatusPending.Terminal())
	require.False(t, StatusProcessing.Terminal())
	for _, s := range []Status{StatusSent, StatusFailed, StatusCancelled, StatusExpired} {
		require.True(t, s.Terminal(), s)
	}
}
