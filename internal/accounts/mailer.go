package accounts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Mailer delivers mail through the email service. A nil Mailer silently
// drops messages, which keeps local setups working without the service.
type Mailer struct {
	baseURL string
	from    string
	client  *http.Client
}

func NewMailer(baseURL, from string, client *http.Client) *Mailer {
	return &Mailer{
		baseURL: baseURL,
		from:    from,
		client:  client,
	}
}

func (m *Mailer) Send(ctx context.Context, to, subject, body string) error {
	if m == nil {
		return nil
	}

	payload := map[string]string{
		"from":    m.from,
		"to":      to,
		"subject": subject,
		"body":    body,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	}

	return nil
}
