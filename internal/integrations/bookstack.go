package integrations

import (
	"context"
	"fmt"
	"strconv"
)

// BookStack settings: baseUrl, tokenId, tokenSecret, bookId and optionally chapterId.
type bookStackAdapter struct{}

type bookStackPageResponse struct {
	ID int64 `json:"id"`
}

func (bookStackAdapter) Provider() Provider { return ProviderBookStack }

func (bookStackAdapter) Execute(ctx context.Context, c *Client, cfg Config, req Request) (Outcome, error) {
	baseURL := cfg.Setting("baseUrl")
	tokenID, tokenSecret := cfg.Setting("tokenId"), cfg.Setting("tokenSecret")
	switch {
	case baseURL == "":
		return Outcome{}, missingSetting(ProviderBookStack, "baseUrl")
	case tokenID == "" || tokenSecret == "":
		return Outcome{}, missingSetting(ProviderBookStack, "tokenId/tokenSecret")
	}

	body := map[string]any{
		"name":     fmt.Sprintf("Ticket #%d: %s", req.Ticket.Number, req.Ticket.Title),
		"markdown": ticketSummary(req.Ticket),
	}
	if chapterID := req.pick(cfg, "chapterId"); chapterID != "" {
		id, err := strconv.ParseInt(chapterID, 10, 64)
		if err != nil {
			return Outcome{}, fmt.Errorf("bookstack chapterId %q is not numeric", chapterID)
		}
		body["chapter_id"] = id
	} else {
		bookID := req.pick(cfg, "bookId")
		if bookID == "" {
			return Outcome{}, missingSetting(ProviderBookStack, "bookId")
		}
		id, err := strconv.ParseInt(bookID, 10, 64)
		if err != nil {
			return Outcome{}, fmt.Errorf("bookstack bookId %q is not numeric", bookID)
		}
		body["book_id"] = id
	}

	var page bookStackPageResponse
	resp, err := c.PostJSON(ctx,
		joinURL(baseURL, "api/pages"),
		map[string]string{"Authorization": "Token " + tokenID + ":" + tokenSecret},
		body, &page,
	)
	outcome := Outcome{Request: body, Response: resp}
	if err != nil {
		return outcome, err
	}
	if page.ID == 0 {
		return outcome, fmt.Errorf("bookstack response has no page id")
	}
	outcome.ExternalID = strconv.FormatInt(page.ID, 10)
	return outcome, nil
}
