// Package mailer delivers transactional email over SMTP. Delivery is
// fire-and-forget from the core's perspective: a failed send never rolls
// back the operation that triggered it.
package mailer

import (
	"crypto/tls"
	"fmt"
	"net/mail"
	"net/url"

	"github.com/dajohi/goemail"
	"github.com/rs/zerolog"

	"civicvote/api/internal/config"
)

type Mailer struct {
	client   *goemail.SMTP
	name     string
	address  string
	disabled bool
	log      zerolog.Logger
}

// New returns a Mailer. When host or credentials are unset, email is
// disabled and every send becomes a logged no-op, so local setups run
// without a mail server.
func New(cfg config.MailConfig, log zerolog.Logger) (*Mailer, error) {
	if cfg.Host == "" || cfg.User == "" || cfg.Password == "" {
		log.Warn().Msg("smtp not configured, email disabled")
		return &Mailer{disabled: true, log: log}, nil
	}

	u, err := url.Parse(fmt.Sprintf("smtps://%s:%s@%s", cfg.User, cfg.Password, cfg.Host))
	if err != nil {
		return nil, fmt.Errorf("parse smtp host: %w", err)
	}

	addr, err := mail.ParseAddress(cfg.From)
	if err != nil {
		return nil, fmt.Errorf("parse from address: %w", err)
	}

	client, err := goemail.NewSMTP(u.String(), &tls.Config{
		InsecureSkipVerify: cfg.SkipVerify,
	})
	if err != nil {
		return nil, fmt.Errorf("init smtp client: %w", err)
	}

	return &Mailer{
		client:  client,
		name:    addr.Name,
		address: addr.Address,
		log:     log,
	}, nil
}

const invitationBody = `Hello %s %s,

You have been added as a voter. To participate in voting sessions you
need to complete your registration by setting a password and connecting
your wallet:

%s

This registration link will expire in 7 days. If you did not expect this
email, please contact the administrator.
`

// SendInvitation emails the registration link to an invited voter.
func (m *Mailer) SendInvitation(email, firstName, lastName, registrationURL string) error {
	subject := "Complete Your Voter Registration"
	body := fmt.Sprintf(invitationBody, firstName, lastName, registrationURL)
	return m.send(email, subject, body)
}

func (m *Mailer) send(to, subject, body string) error {
	if m.disabled {
		m.log.Debug().Str("to", to).Str("subject", subject).Msg("email disabled, skipping send")
		return nil
	}

	msg := goemail.NewMessage(m.address, subject, body)
	msg.AddTo(to)
	msg.SetName(m.name)
	return m.client.Send(msg)
}
