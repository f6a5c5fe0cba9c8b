package integrations

import (
	"context"
	"fmt"
	"strings"
)

const defaultZohoAPIDomain = "https://www.zohoapis.com"

// Zoho CRM settings: accessToken, optional apiDomain and leadSource.
type zohoAdapter struct{}

type zohoLeadResponse struct {
	Data []struct {
		Code    string `json:"code"`
		Status  string `json:"status"`
		Message string `json:"message"`
		Details struct {
			ID string `json:"id"`
		} `json:"details"`
	} `json:"data"`
}

func (zohoAdapter) Provider() Provider { return ProviderZohoCRM }

func (zohoAdapter) Execute(ctx context.Context, c *Client, cfg Config, req Request) (Outcome, error) {
	token := cfg.Setting("accessToken")
	if token == "" {
		return Outcome{}, missingSetting(ProviderZohoCRM, "accessToken")
	}
	domain := cfg.Setting("apiDomain")
	if domain == "" {
		domain = defaultZohoAPIDomain
	}
	source := req.pick(cfg, "leadSource")
	if source == "" {
		source = "Helpdesk"
	}

	lastName, email := "Unknown", ""
	if req.Requester != nil {
		email = req.Requester.Email
		if name := strings.TrimSpace(req.Requester.Name); name != "" {
			lastName = name
		} else if email != "" {
			lastName = email
		}
	}
	lead := map[string]any{
		"Last_Name":   lastName,
		"Company":     firstNonEmpty(req.pick(cfg, "company"), lastName),
		"Lead_Source": source,
		"Description": ticketSummary(req.Ticket),
	}
	if email != "" {
		lead["Email"] = email
	}
	body := map[string]any{"data": []any{lead}}

	var out zohoLeadResponse
	resp, err := c.PostJSON(ctx,
		joinURL(domain, "crm/v2/Leads"),
		map[string]string{"Authorization": "Zoho-oauthtoken " + token},
		body, &out,
	)
	outcome := Outcome{Request: body, Response: resp}
	if err != nil {
		return outcome, err
	}
	if len(out.Data) == 0 {
		return outcome, fmt.Errorf("zoho response has no data")
	}
	if !strings.EqualFold(out.Data[0].Status, "success") {
		return outcome, fmt.Errorf("zoho rejected lead: %s %s", out.Data[0].Code, out.Data[0].Message)
	}
	outcome.ExternalID = out.Data[0].Details.ID
	return outcome, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
