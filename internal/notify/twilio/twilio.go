package twilio

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mohammad-safakhou/sift/internal/notify"
)

const apiBase = "https://api.twilio.com/2010-04-01"

// Notifier sends digest messages over Twilio's WhatsApp API.
type Notifier struct {
	accountSID string
	authToken  string
	fromNumber string
	baseURL    string
	client     *http.Client
}

var _ notify.Transport = (*Notifier)(nil)

// NewNotifier registers account credentials and the sending number.
func NewNotifier(accountSID, authToken, fromNumber string) *Notifier {
	return &Notifier{
		accountSID: accountSID,
		authToken:  authToken,
		fromNumber: fromNumber,
		baseURL:    apiBase,
		client:     &http.Client{Timeout: 15 * time.Second},
	}
}

// Send posts one message to a recipient's WhatsApp number.
func (n *Notifier) Send(ctx context.Context, body string, recipient string) error {
	if n.accountSID == "" || n.authToken == "" || n.fromNumber == "" {
		return fmt.Errorf("twilio notifier misconfigured")
	}

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", n.baseURL, n.accountSID)
	form := url.Values{}
	form.Set("From", "whatsapp:"+n.fromNumber)
	form.Set("To", "whatsapp:"+recipient)
	form.Set("Body", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(n.accountSID, n.authToken)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("twilio error: %s", resp.Status)
	}
	return nil
}
