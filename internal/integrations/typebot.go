package integrations

import (
	"context"
	"fmt"
	"net/url"
)

const defaultTypebotURL = "https://typebot.io"

// Typebot settings: apiToken, typebotId (public id) and optional baseUrl.
type typebotAdapter struct{}

type typebotStartResponse struct {
	SessionID string `json:"sessionId"`
}

func (typebotAdapter) Provider() Provider { return ProviderTypebot }

func (typebotAdapter) Execute(ctx context.Context, c *Client, cfg Config, req Request) (Outcome, error) {
	token := cfg.Setting("apiToken")
	if token == "" {
		return Outcome{}, missingSetting(ProviderTypebot, "apiToken")
	}
	typebotID := req.pick(cfg, "typebotId")
	if typebotID == "" {
		return Outcome{}, missingSetting(ProviderTypebot, "typebotId")
	}
	baseURL := cfg.Setting("baseUrl")
	if baseURL == "" {
		baseURL = defaultTypebotURL
	}

	variables := map[string]any{
		"ticketId":       req.Ticket.ID.String(),
		"ticketNumber":   req.Ticket.Number,
		"ticketTitle":    req.Ticket.Title,
		"ticketPriority": req.Ticket.Priority,
		"ticketStatus":   req.Ticket.Status,
	}
	if req.Requester != nil && req.Requester.Email != "" {
		variables["email"] = req.Requester.Email
	}
	body := map[string]any{"prefilledVariables": variables}

	var out typebotStartResponse
	resp, err := c.PostJSON(ctx,
		joinURL(baseURL, "api/v1/typebots", url.PathEscape(typebotID), "startChat"),
		map[string]string{"Authorization": "Bearer " + token},
		body, &out,
	)
	outcome := Outcome{Request: body, Response: resp}
	if err != nil {
		return outcome, err
	}
	if out.SessionID == "" {
		return outcome, fmt.Errorf("typebot response has no session id")
	}
	outcome.ExternalID = out.SessionID
	return outcome, nil
}
