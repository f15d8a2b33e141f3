package onboarding

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"

	"github.com/rendeza/rendeza/internal/pkg/mail"
)

var ErrContactFieldsMissing = errors.New("all fields are required")

// ContactMessage is a general inquiry from the contact form.
type ContactMessage struct {
	FirstName   string `json:"firstName" validate:"required,max=100"`
	LastName    string `json:"lastName" validate:"required,max=100"`
	Email       string `json:"email" validate:"required,email,max=200"`
	PhoneNumber string `json:"phoneNumber" validate:"required,max=50"`
	Message     string `json:"message" validate:"required,max=5000"`
}

func (m *ContactMessage) Normalize() {
	for _, f := range []*string{&m.FirstName, &m.LastName, &m.Email, &m.PhoneNumber} {
		*f = strings.TrimSpace(*f)
	}
	m.Message = strings.TrimRight(m.Message, " \t\r\n")
}

func (m *ContactMessage) Validate() error {
	if err := validator.New().Struct(m); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s", ErrContactFieldsMissing, verrs[0].Field())
		}
		return fmt.Errorf("%w: %v", ErrContactFieldsMissing, err)
	}
	return nil
}

// preview shortens the message for log lines.
func (m *ContactMessage) preview() string {
	r := []rune(m.Message)
	if len(r) <= 50 {
		return m.Message
	}
	return string(r[:50]) + "..."
}

// ContactSubject is the subject of the inquiry email.
func ContactSubject(m *ContactMessage) string {
	return "New Inquiry from " + m.FirstName + " " + m.LastName + " - Rendeza"
}

const contactTextEmail = `New Contact Form Submission

Name: {{.FirstName}} {{.LastName}}
Email: {{.Email}}
Phone: {{.PhoneNumber}}

Message:
{{.Message}}
`

const contactHTMLEmail = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h2 style="color: #543A14;">New Contact Form Submission</h2>
  <p><strong>Name:</strong> {{.FirstName}} {{.LastName}}</p>
  <p><strong>Email:</strong> <a href="mailto:{{.Email}}">{{.Email}}</a></p>
  <p><strong>Phone:</strong> {{.PhoneNumber}}</p>
  <h3 style="color: #543A14;">Message:</h3>
  <div style="white-space: pre-wrap; line-height: 1.8;">{{.Message}}</div>
</body>
</html>
`

var (
	contactTextTmpl = texttemplate.Must(texttemplate.New("contact.txt").Parse(contactTextEmail))
	contactHTMLTmpl = htmltemplate.Must(htmltemplate.New("contact.html").Parse(contactHTMLEmail))
)

// RenderContactEmail returns the plain text and HTML bodies of an inquiry.
func RenderContactEmail(m *ContactMessage) (string, string, error) {
	var text, html bytes.Buffer
	if err := contactTextTmpl.Execute(&text, m); err != nil {
		return "", "", err
	}
	if err := contactHTMLTmpl.Execute(&html, m); err != nil {
		return "", "", err
	}
	return text.String(), html.String(), nil
}

// Contact validates m and forwards it to the team. The returned reference is
// the X-Entity-Ref-ID of the sent email.
func (svc *Service) Contact(ctx context.Context, m *ContactMessage) (string, error) {
	if svc.mailer == nil {
		return "", ErrMailerNotConfigured
	}

	m.Normalize()
	if err := m.Validate(); err != nil {
		return "", err
	}
	log.Infof("[Contact] Inquiry from %s %s <%s>: %q", m.FirstName, m.LastName, m.Email, m.preview())

	text, html, err := RenderContactEmail(m)
	if err != nil {
		return "", fmt.Errorf("render contact email: %w", err)
	}
	ref := fmt.Sprintf("inquiry-%d", svc.now().UnixMilli())
	err = svc.mailer.Send(ctx, mail.Message{
		To:      svc.notifyTo,
		ReplyTo: m.Email,
		Subject: ContactSubject(m),
		Text:    text,
		HTML:    html,
		Headers: map[string]string{"X-Entity-Ref-ID": ref},
	})
	if err != nil {
		return "", fmt.Errorf("send contact email: %w", err)
	}

	log.Infof("[Contact] Inquiry %s sent", ref)
	return ref, nil
}
