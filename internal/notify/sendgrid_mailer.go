package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
	"golang.org/x/text/currency"

	"github.com/Abu-doc/Cart/internal/domain"
)

type sender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// ReceiptMailer emails the receipt to the customer who checked out.
type ReceiptMailer struct {
	client sender
	from   *mail.Email
	unit   currency.Unit
	logger *zap.Logger
}

func NewReceiptMailer(apiKey, from string, unit currency.Unit, logger *zap.Logger) *ReceiptMailer {
	return newReceiptMailer(sendgrid.NewSendClient(apiKey), from, unit, logger)
}

func newReceiptMailer(client sender, from string, unit currency.Unit, logger *zap.Logger) *ReceiptMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReceiptMailer{
		client: client,
		from:   mail.NewEmail("Vibe Cart", from),
		unit:   unit,
		logger: logger,
	}
}

func (m *ReceiptMailer) SendReceipt(ctx context.Context, event domain.CheckoutCompleted) error {
	if event.CustomerEmail == "" {
		return fmt.Errorf("to address is empty")
	}

	subject := fmt.Sprintf("Your Vibe Cart receipt %s", event.Receipt.ReceiptID)
	body := m.renderBody(event)
	message := mail.NewSingleEmail(
		m.from,
		subject,
		mail.NewEmail(event.CustomerName, event.CustomerEmail),
		body,
		fmt.Sprintf("<pre>%s</pre>", body),
	)

	response, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send error: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid send failed: status=%d, body=%s", response.StatusCode, response.Body)
	}

	m.logger.Info("receipt mailed",
		zap.String("receipt_id", event.Receipt.ReceiptID),
		zap.Int("status", response.StatusCode))
	return nil
}

func (m *ReceiptMailer) renderBody(event domain.CheckoutCompleted) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", event.CustomerName)
	fmt.Fprintf(&b, "Thanks for shopping with us.\n\n")
	fmt.Fprintf(&b, "Receipt: %s\n", event.Receipt.ReceiptID)
	fmt.Fprintf(&b, "Date:    %s\n", event.Receipt.Timestamp.UTC().Format(time.RFC1123))
	fmt.Fprintf(&b, "Total:   %s\n", event.Receipt.Total.Format(m.unit))
	return b.String()
}
