package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	defaultSendTimeout = 10 * time.Second
	sendPath           = "/emails"
)

// ResendMailerConfig configures the Resend-backed mailer.
type ResendMailerConfig struct {
	APIKey     string
	BaseURL    string
	FromEmail  string
	OwnerEmail string
	HTTPClient *http.Client
}

// ResendMailer delivers transactional e-mail through the Resend HTTP API.
type ResendMailer struct {
	apiKey     string
	baseURL    string
	fromEmail  string
	ownerEmail string
	client     *http.Client
}

// NewResendMailer constructs a ResendMailer, validating required settings.
func NewResendMailer(cfg ResendMailerConfig) (*ResendMailer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("mailer: api key is required")
	}
	if strings.TrimSpace(cfg.FromEmail) == "" {
		return nil, errors.New("mailer: from address is required")
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultSendTimeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.resend.com"
	}
	return &ResendMailer{
		apiKey:     strings.TrimSpace(cfg.APIKey),
		baseURL:    baseURL,
		fromEmail:  strings.TrimSpace(cfg.FromEmail),
		ownerEmail: strings.TrimSpace(cfg.OwnerEmail),
		client:     client,
	}, nil
}

type emailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// SendOrderConfirmation e-mails the customer their receipt.
func (m *ResendMailer) SendOrderConfirmation(ctx context.Context, msg OrderConfirmation) error {
	if strings.TrimSpace(msg.CustomerEmail) == "" {
		return errors.New("mailer: customer email is required")
	}

	var lines strings.Builder
	for _, item := range msg.Items {
		name := item.ProductName
		if item.VariantName != "" {
			name = fmt.Sprintf("%s (%s)", name, item.VariantName)
		}
		fmt.Fprintf(&lines, "<li>%s &times; %d — %s</li>", name, item.Quantity, formatCents(item.UnitPriceCents*int64(item.Quantity)))
	}

	body := fmt.Sprintf(
		"<h2>Thanks for your order%s!</h2><p>Order <strong>%s</strong> from %s.</p><ul>%s</ul><p>Subtotal: %s<br>Discount: -%s<br><strong>Total: %s</strong></p>",
		salutation(msg.CustomerName), msg.OrderID, msg.StoreName, lines.String(),
		formatCents(msg.SubtotalCents), formatCents(msg.DiscountCents), formatCents(msg.TotalCents),
	)

	return m.send(ctx, emailRequest{
		From:    m.fromEmail,
		To:      []string{msg.CustomerEmail},
		Subject: fmt.Sprintf("Your %s order %s", msg.StoreName, msg.OrderID),
		HTML:    body,
	})
}

// SendNewOrderAlert e-mails the store owner about a new order.
func (m *ResendMailer) SendNewOrderAlert(ctx context.Context, msg NewOrderAlert) error {
	if m.ownerEmail == "" {
		return errors.New("mailer: owner email is not configured")
	}
	body := fmt.Sprintf(
		"<h2>New order %s</h2><p>%d item(s), %s, placed by %s.</p>",
		msg.OrderID, msg.ItemCount, formatCents(msg.TotalCents), msg.CustomerEmail,
	)
	return m.send(ctx, emailRequest{
		From:    m.fromEmail,
		To:      []string{m.ownerEmail},
		Subject: fmt.Sprintf("[%s] New order %s", msg.StoreName, msg.OrderID),
		HTML:    body,
	})
}

// SendLowStockAlert e-mails the store owner about a low-stock crossing.
func (m *ResendMailer) SendLowStockAlert(ctx context.Context, msg LowStockAlert) error {
	if m.ownerEmail == "" {
		return errors.New("mailer: owner email is not configured")
	}
	name := msg.ProductName
	if msg.VariantName != "" {
		name = fmt.Sprintf("%s (%s)", name, msg.VariantName)
	}
	body := fmt.Sprintf(
		"<h2>Low stock</h2><p>%s is down to %d unit(s) (threshold %d).</p>",
		name, msg.Remaining, msg.Threshold,
	)
	return m.send(ctx, emailRequest{
		From:    m.fromEmail,
		To:      []string{m.ownerEmail},
		Subject: fmt.Sprintf("[%s] Low stock: %s", msg.StoreName, name),
		HTML:    body,
	})
}

func (m *ResendMailer) send(ctx context.Context, email emailRequest) error {
	payload, err := json.Marshal(email)
	if err != nil {
		return fmt.Errorf("mailer: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+sendPath, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("mailer: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("mailer: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("mailer: send: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func salutation(name string) string {
	if strings.TrimSpace(name) == "" {
		return ""
	}
	return ", " + strings.TrimSpace(name)
}

func formatCents(cents int64) string {
	if cents < 0 {
		cents = 0
	}
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}
