package integrations

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Planka settings: baseUrl, apiToken, listId (default list for cards) and
// optionally subtaskListId.
type plankaAdapter struct{}

type plankaCardResponse struct {
	Item struct {
		ID string `json:"id"`
	} `json:"item"`
}

func (plankaAdapter) Provider() Provider { return ProviderPlanka }

func (plankaAdapter) Execute(ctx context.Context, c *Client, cfg Config, req Request) (Outcome, error) {
	baseURL, token := cfg.Setting("baseUrl"), cfg.Setting("apiToken")
	if baseURL == "" {
		return Outcome{}, missingSetting(ProviderPlanka, "baseUrl")
	}
	if token == "" {
		return Outcome{}, missingSetting(ProviderPlanka, "apiToken")
	}

	listID := req.pick(cfg, "listId")
	name := fmt.Sprintf("#%d %s", req.Ticket.Number, req.Ticket.Title)
	description := ticketSummary(req.Ticket)
	if req.Action == ActionSubtask {
		if sub := req.pick(cfg, "subtaskListId"); sub != "" {
			listID = sub
		}
		taskName := strings.TrimSpace(req.TaskName)
		if taskName == "" {
			taskName = req.Ticket.Title
		}
		name = fmt.Sprintf("[Subtask] %s", taskName)
		description = fmt.Sprintf("Subtask of ticket #%d: %s", req.Ticket.Number, req.Ticket.Title)
	}
	if listID == "" {
		return Outcome{}, missingSetting(ProviderPlanka, "listId")
	}

	body := map[string]any{
		"name":        name,
		"description": description,
		"position":    65535,
		"type":        "project",
	}
	var card plankaCardResponse
	resp, err := c.PostJSON(ctx,
		joinURL(baseURL, "api/lists", url.PathEscape(listID), "cards"),
		map[string]string{"Authorization": "Bearer " + token},
		body, &card,
	)
	outcome := Outcome{Request: map[string]any{"listId": listID, "card": body}, Response: resp}
	if err != nil {
		return outcome, err
	}
	if card.Item.ID == "" {
		return outcome, fmt.Errorf("planka response has no card id")
	}
	outcome.ExternalID = card.Item.ID
	return outcome, nil
}
