package builtin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aios/autonomy-core/internal/logging"
	"github.com/aios/autonomy-core/internal/toolregistry"
)

// EmailSender abstracts outbound mail delivery. No repo in the retrieved
// corpus imports an SMTP client library, so this is deliberately left as an
// injectable interface — the default NoopEmailSender only logs.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// NoopEmailSender logs the message and returns success without contacting
// any mail transport.
type NoopEmailSender struct{}

func (NoopEmailSender) Send(_ context.Context, to, subject, _ string) error {
	logging.For("email").Info().Str("to", to).Str("subject", subject).Msg("email.send (noop sender)")
	return nil
}

// RegisterEmail wires email.send against sender.
func RegisterEmail(reg *toolregistry.Registry, sender EmailSender) {
	reg.Register(toolregistry.Definition{Name: "email.send", Reversible: false, Handler: emailSend(sender)})
}

func emailSend(sender EmailSender) toolregistry.Handler {
	return func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
		var a struct {
			To      string `json:"to"`
			Subject string `json:"subject"`
			Body    string `json:"body"`
		}
		if err := json.Unmarshal(input, &a); err != nil {
			return nil, fmt.Errorf("invalid input: %w", err)
		}
		if a.To == "" {
			return nil, fmt.Errorf("to is required")
		}
		if err := sender.Send(ctx, a.To, a.Subject, a.Body); err != nil {
			return nil, err
		}
		return json.Marshal(map[string]string{"to": a.To, "result": "sent"})
	}
}
