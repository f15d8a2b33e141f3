package mail

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"sort"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/rendeza/rendeza/internal/pkg/config"
)

// Message is one outgoing email. Text and HTML are sent as alternatives when
// both are set.
type Message struct {
	To      string
	ReplyTo string
	Subject string
	Text    string
	HTML    string
	Headers map[string]string
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPMailer sends emails via SMTP
type SMTPMailer struct {
	addr string
	host string
	from string
	auth smtp.Auth
}

// NewSMTPMailer creates a mailer for the configured SMTP server.
func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	var auth smtp.Auth
	if cfg.Username != "" && cfg.Password != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPMailer{
		addr: fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		host: cfg.Host,
		from: cfg.From,
		auth: auth,
	}
}

// Send delivers msg. net/smtp has no context support, so ctx is only checked
// before dialing.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if m.host == "" {
		return fmt.Errorf("smtp host is not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := buildMessage(m.from, msg, time.Now())
	if err != nil {
		return err
	}
	if err := smtp.SendMail(m.addr, m.auth, m.from, []string{msg.To}, body); err != nil {
		log.Errorf("[Mail] SMTP send error: %v", err)
		return err
	}
	log.Infof("[Mail] Email sent to %s via %s", msg.To, m.addr)
	return nil
}

func buildMessage(from string, msg Message, now time.Time) ([]byte, error) {
	var buf bytes.Buffer

	headers := map[string]string{
		"From":         from,
		"To":           msg.To,
		"Subject":      mime.QEncoding.Encode("utf-8", msg.Subject),
		"Date":         now.Format(time.RFC1123Z),
		"MIME-Version": "1.0",
	}
	if msg.ReplyTo != "" {
		headers["Reply-To"] = msg.ReplyTo
	}
	for k, v := range msg.Headers {
		headers[k] = v
	}

	var mw *multipart.Writer
	switch {
	case msg.Text != "" && msg.HTML != "":
		mw = multipart.NewWriter(&buf)
		headers["Content-Type"] = "multipart/alternative; boundary=" + mw.Boundary()
	case msg.HTML != "":
		headers["Content-Type"] = "text/html; charset=UTF-8"
	default:
		headers["Content-Type"] = "text/plain; charset=UTF-8"
	}

	var head bytes.Buffer
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&head, "%s: %s\r\n", k, strings.NewReplacer("\r", "", "\n", "").Replace(headers[k]))
	}
	head.WriteString("\r\n")

	if mw == nil {
		if msg.HTML != "" {
			head.WriteString(msg.HTML)
		} else {
			head.WriteString(msg.Text)
		}
		return head.Bytes(), nil
	}

	for _, part := range []struct{ contentType, body string }{
		{"text/plain; charset=UTF-8", msg.Text},
		{"text/html; charset=UTF-8", msg.HTML},
	} {
		w, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {part.contentType}})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(part.body)); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	head.Write(buf.Bytes())
	return head.Bytes(), nil
}
