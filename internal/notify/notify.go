// Package notify sends the per-run anomaly notice to the load operators.
// At most one message per run, and none when there is nothing to report.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/wneessen/go-mail"
)

// Subject is the fixed subject line of the anomaly notice.
const Subject = "New department codes found in the patron load"

// Notice is the set of flagged anomalies from one run.
type Notice struct {
	NewDepartmentCodes []string
	NameCollisions     []string
}

// Empty reports whether there is anything worth mailing. Name collisions
// alone do not trigger a message; they only ride along when new department
// codes were found.
func (n Notice) Empty() bool {
	return len(n.NewDepartmentCodes) == 0
}

// Body renders the plain-text message.
func (n Notice) Body() string {
	var b strings.Builder
	b.WriteString("New department codes were found in the patron load\n\n")
	for _, code := range n.NewDepartmentCodes {
		b.WriteString("\n" + code)
	}
	if len(n.NameCollisions) > 0 {
		b.WriteString("\n\nRecords with identical first and last name:\n")
		for _, barcode := range n.NameCollisions {
			b.WriteString("\n" + barcode)
		}
	}
	return b.String()
}

// Mailer delivers notices over plain SMTP, the way the relay host on the
// library network expects.
type Mailer struct {
	Host       string
	From       string
	Recipients []string
}

// Send delivers the notice to all recipients as one message. No-op when
// the notice is empty.
func (m Mailer) Send(ctx context.Context, n Notice) error {
	if n.Empty() {
		return nil
	}
	if len(m.Recipients) == 0 {
		return fmt.Errorf("notify: no recipients configured")
	}

	msg := mail.NewMsg()
	if err := msg.From(m.From); err != nil {
		return fmt.Errorf("notify: invalid return address %q: %w", m.From, err)
	}
	if err := msg.To(m.Recipients...); err != nil {
		return fmt.Errorf("notify: invalid recipients: %w", err)
	}
	msg.Subject(Subject)
	msg.SetBodyString(mail.TypeTextPlain, n.Body())

	client, err := mail.NewClient(m.Host,
		mail.WithPort(25),
		mail.WithTLSPolicy(mail.NoTLS),
		mail.WithHELO("patronload"),
	)
	if err != nil {
		return fmt.Errorf("notify: smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("notify: send: %w", err)
	}
	return nil
}
