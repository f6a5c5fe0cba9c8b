package integrations

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// Chatwoot settings: baseUrl, apiAccessToken, accountId, inboxId.
// A run creates a contact, opens a conversation for it and posts the ticket
// summary as the first message.
type chatwootAdapter struct{}

type chatwootContactResponse struct {
	Payload struct {
		Contact struct {
			ID int64 `json:"id"`
		} `json:"contact"`
		ContactInbox struct {
			SourceID string `json:"source_id"`
		} `json:"contact_inbox"`
	} `json:"payload"`
}

type chatwootIDResponse struct {
	ID int64 `json:"id"`
}

func (chatwootAdapter) Provider() Provider { return ProviderChatwoot }

func (chatwootAdapter) Execute(ctx context.Context, c *Client, cfg Config, req Request) (Outcome, error) {
	baseURL, token, accountID := cfg.Setting("baseUrl"), cfg.Setting("apiAccessToken"), cfg.Setting("accountId")
	inboxID := req.pick(cfg, "inboxId")
	required := [][2]string{{"baseUrl", baseURL}, {"apiAccessToken", token}, {"accountId", accountID}, {"inboxId", inboxID}}
	for _, kv := range required {
		if kv[1] == "" {
			return Outcome{}, missingSetting(ProviderChatwoot, kv[0])
		}
	}
	inbox, err := strconv.ParseInt(inboxID, 10, 64)
	if err != nil {
		return Outcome{}, fmt.Errorf("chatwoot inboxId %q is not numeric", inboxID)
	}

	headers := map[string]string{"api_access_token": token}
	accountURL := joinURL(baseURL, "api/v1/accounts", url.PathEscape(accountID))

	contactBody := map[string]any{
		"inbox_id":   inbox,
		"name":       fmt.Sprintf("Ticket #%d requester", req.Ticket.Number),
		"identifier": req.Ticket.ID.String(),
	}
	if req.Requester != nil {
		if req.Requester.Name != "" {
			contactBody["name"] = req.Requester.Name
		}
		if req.Requester.Email != "" {
			contactBody["email"] = req.Requester.Email
		}
	}
	outcome := Outcome{Request: map[string]any{"contact": contactBody}, Response: map[string]any{}}

	var contact chatwootContactResponse
	resp, err := c.PostJSON(ctx, joinURL(accountURL, "contacts"), headers, contactBody, &contact)
	outcome.Response["contact"] = resp
	if err != nil {
		return outcome, fmt.Errorf("create contact: %w", err)
	}

	conversationBody := map[string]any{
		"inbox_id":   inbox,
		"contact_id": contact.Payload.Contact.ID,
		"source_id":  contact.Payload.ContactInbox.SourceID,
	}
	outcome.Request["conversation"] = conversationBody
	var conversation chatwootIDResponse
	resp, err = c.PostJSON(ctx, joinURL(accountURL, "conversations"), headers, conversationBody, &conversation)
	outcome.Response["conversation"] = resp
	if err != nil {
		return outcome, fmt.Errorf("create conversation: %w", err)
	}
	if conversation.ID == 0 {
		return outcome, fmt.Errorf("chatwoot response has no conversation id")
	}

	messageBody := map[string]any{
		"content":      ticketSummary(req.Ticket),
		"message_type": "outgoing",
		"private":      false,
	}
	outcome.Request["message"] = messageBody
	conversationID := strconv.FormatInt(conversation.ID, 10)
	resp, err = c.PostJSON(ctx, joinURL(accountURL, "conversations", conversationID, "messages"), headers, messageBody, nil)
	outcome.Response["message"] = resp
	if err != nil {
		return outcome, fmt.Errorf("post message: %w", err)
	}
	outcome.ExternalID = conversationID
	return outcome, nil
}
