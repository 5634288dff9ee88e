package mailer

import (
	"bytes"
	"embed"
	"html/template"
	"time"

	"github.com/go-mail/mail/v2"
)

//go:embed "templates"
var templateFS embed.FS

type Attachment struct {
	Name string
	Data []byte
}

type Mailer struct {
	dialer *mail.Dialer
	sender string
}

func New(host string, port int, username, password, sender string) Mailer {
	dialer := mail.NewDialer(host, port, username, password)
	dialer.Timeout = 5 * time.Second

	return Mailer{
		dialer: dialer,
		sender: sender,
	}
}

func (m Mailer) Send(recipient, templateFile string, data any, attachments ...Attachment) error {
	subject, plainBody, htmlBody, err := render(templateFile, data)
	if err != nil {
		return err
	}

	msg := mail.NewMessage()
	msg.SetHeader("To", recipient)
	msg.SetHeader("From", m.sender)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", plainBody)
	msg.AddAlternative("text/html", htmlBody)

	for _, a := range attachments {
		msg.AttachReader(a.Name, bytes.NewReader(a.Data))
	}

	for i := 1; i <= 3; i++ {
		err = m.dialer.DialAndSend(msg)
		if nil == err {
			return nil
		}

		time.Sleep(500 * time.Millisecond)
	}

	return err
}

func render(templateFile string, data any) (subject, plainBody, htmlBody string, err error) {
	tmpl, err := template.New("email").ParseFS(templateFS, "templates/"+templateFile)
	if err != nil {
		return "", "", "", err
	}

	var buf bytes.Buffer

	if err = tmpl.ExecuteTemplate(&buf, "subject", data); err != nil {
		return "", "", "", err
	}
	subject = buf.String()

	buf.Reset()
	if err = tmpl.ExecuteTemplate(&buf, "plainBody", data); err != nil {
		return "", "", "", err
	}
	plainBody = buf.String()

	buf.Reset()
	if err = tmpl.ExecuteTemplate(&buf, "htmlBody", data); err != nil {
		return "", "", "", err
	}
	htmlBody = buf.String()

	return subject, plainBody, htmlBody, nil
}
