// Package notify sends ticket notifications over WhatsApp.
package notify

import (
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
	"museum.zuyanh.net/internal/jsonlog"
)

type Message struct {
	To       string
	Body     string
	MediaURL string
}

type Sender interface {
	Send(msg Message) error
}

type messageCreator interface {
	CreateMessage(params *twilioapi.CreateMessageParams) (*twilioapi.ApiV2010Message, error)
}

// WhatsApp delivers messages through Twilio's WhatsApp channel.
type WhatsApp struct {
	api  messageCreator
	from string
}

func NewWhatsApp(accountSID, authToken, from string) *WhatsApp {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})

	return &WhatsApp{api: client.Api, from: from}
}

func (w *WhatsApp) Send(msg Message) error {
	params := &twilioapi.CreateMessageParams{}
	params.SetFrom(whatsappAddress(w.from))
	params.SetTo(whatsappAddress(msg.To))
	params.SetBody(msg.Body)
	if msg.MediaURL != "" {
		params.SetMediaUrl([]string{msg.MediaURL})
	}

	_, err := w.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("notify: whatsapp to %s: %w", msg.To, err)
	}

	return nil
}

func whatsappAddress(number string) string {
	if strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	return "whatsapp:" + number
}

// LogSender stands in for WhatsApp when no Twilio account is configured.
type LogSender struct {
	Logger *jsonlog.Logger
}

func (s LogSender) Send(msg Message) error {
	s.Logger.PrintInfo("whatsapp message not sent, sender not configured", map[string]string{
		"to":   msg.To,
		"body": msg.Body,
	})
	return nil
}

// New returns a Twilio sender, or a LogSender when credentials are missing.
func New(accountSID, authToken, from string, logger *jsonlog.Logger) Sender {
	if accountSID == "" || authToken == "" || from == "" {
		return LogSender{Logger: logger}
	}
	return NewWhatsApp(accountSID, authToken, from)
}
