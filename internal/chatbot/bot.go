// Package chatbot answers visitor questions and walks them through booking
// a museum visit one question at a time.
package chatbot

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"museum.zuyanh.net/internal/entity"
	"museum.zuyanh.net/internal/jsonlog"
	"museum.zuyanh.net/internal/validator"
)

var (
	bookingIntentRX = regexp.MustCompile(`(?i)\b(book|booking|tickets?|reserve|reservation)\b`)
	resetRX         = regexp.MustCompile(`(?i)^\s*(cancel|reset|stop|start over)\s*[.!]?\s*$`)
	declineRX       = regexp.MustCompile(`(?i)^\s*(no|nope|abort|never ?mind)\b`)
	numberRX        = regexp.MustCompile(`\b(\d{1,3})\b`)
	dateRX          = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)
	emailFindRX     = regexp.MustCompile(`[^\s@<>]+@[^\s@<>]+\.[^\s@<>.]+`)
	bookPromptRX    = regexp.MustCompile(`(?i)(would you like to book|shall i book|book (a |your )?tickets?|make a booking)`)
)

const (
	maxChatTickets   = 20
	bookingHorizon   = 365
	suggestBook      = "Book tickets"
	defaultTicketKey = "adult"
)

var ErrEmptyMessage = errors.New("chatbot: empty message")

// Backend is what the bot needs from the rest of the API.
type Backend interface {
	Museums(ctx context.Context) ([]*entity.Museum, error)
	Book(ctx context.Context, booking *entity.Booking) error
}

type Reply struct {
	SessionID   string          `json:"session_id"`
	Message     string          `json:"message"`
	Step        Step            `json:"step,omitempty"`
	Suggestions []string        `json:"suggestions,omitempty"`
	Booking     *entity.Booking `json:"booking,omitempty"`
}

type Bot struct {
	store   SessionStore
	backend Backend
	llm     LLM
	logger  *jsonlog.Logger
	now     func() time.Time
}

// New builds a bot. llm may be nil, in which case free-form questions get a
// canned answer.
func New(store SessionStore, backend Backend, llm LLM, logger *jsonlog.Logger) *Bot {
	return &Bot{
		store:   store,
		backend: backend,
		llm:     llm,
		logger:  logger,
		now:     time.Now,
	}
}

func (b *Bot) Reply(ctx context.Context, sessionID, text string) (*Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	sess, err := b.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var reply *Reply

	if sess.Step != StepIdle && resetRX.MatchString(text) {
		sess.reset()
		reply = &Reply{Message: "Okay, I've cancelled that booking. What else can I help you with?"}
	} else {
		switch sess.Step {
		case StepMuseum:
			reply, err = b.chooseMuseum(ctx, sess, text)
		case StepDate:
			reply = b.chooseDate(sess, text)
		case StepTickets:
			reply, err = b.chooseTickets(ctx, sess, text)
		case StepConfirm:
			reply, err = b.confirm(ctx, sess, text)
		default:
			reply, err = b.idle(ctx, sess, text)
		}
		if err != nil {
			return nil, err
		}
	}

	sess.remember("user", text)
	sess.remember("assistant", reply.Message)

	if err := b.store.Save(ctx, sessionID, sess); err != nil {
		return nil, err
	}

	reply.SessionID = sessionID
	reply.Step = sess.Step
	return reply, nil
}

func (b *Bot) idle(ctx context.Context, sess *Session, text string) (*Reply, error) {
	museums, err := b.backend.Museums(ctx)
	if err != nil {
		return nil, err
	}

	if bookingIntentRX.MatchString(text) {
		if m := matchMuseum(museums, text); m != nil {
			sess.Step = StepDate
			sess.MuseumID = m.ID
			sess.MuseumName = m.Name
			return &Reply{Message: fmt.Sprintf("Let's book %s. %s", m.Name, datePrompt)}, nil
		}

		sess.Step = StepMuseum
		return &Reply{Message: "Which museum would you like to visit?\n" + museumList(museums)}, nil
	}

	answer := b.ask(ctx, sess, museums, text)

	reply := &Reply{Message: answer}
	for _, m := range museums {
		if containsFold(answer, m.Name) {
			reply.Suggestions = append(reply.Suggestions, m.Name)
		}
	}
	if bookPromptRX.MatchString(answer) || len(reply.Suggestions) > 0 {
		reply.Suggestions = append(reply.Suggestions, suggestBook)
	}

	return reply, nil
}

// ask forwards free-form text to the language model. Any failure degrades to
// a canned answer.
func (b *Bot) ask(ctx context.Context, sess *Session, museums []*entity.Museum, text string) string {
	if b.llm == nil {
		return cannedAnswer(museums, text)
	}

	messages := make([]Turn, 0, len(sess.History)+2)
	messages = append(messages, Turn{Role: "system", Content: systemPrompt(museums, b.now())})
	messages = append(messages, sess.History...)
	messages = append(messages, Turn{Role: "user", Content: text})

	answer, err := b.llm.Complete(ctx, messages)
	if err != nil {
		b.logger.PrintError(err, map[string]string{"component": "chatbot"})
		return cannedAnswer(museums, text)
	}

	return answer
}

func (b *Bot) chooseMuseum(ctx context.Context, sess *Session, text string) (*Reply, error) {
	museums, err := b.backend.Museums(ctx)
	if err != nil {
		return nil, err
	}

	var picked *entity.Museum

	if n, ok := firstNumber(text); ok && n >= 1 && n <= len(museums) {
		picked = museums[n-1]
	} else {
		picked = matchMuseum(museums, text)
	}

	if picked == nil {
		return &Reply{Message: "I couldn't find that museum. Reply with a number from the list:\n" + museumList(museums)}, nil
	}

	sess.Step = StepDate
	sess.MuseumID = picked.ID
	sess.MuseumName = picked.Name

	return &Reply{Message: fmt.Sprintf("Great, %s. %s", picked.Name, datePrompt)}, nil
}

const datePrompt = "Which date would you like to visit? Reply with YYYY-MM-DD, \"today\" or \"tomorrow\"."

func (b *Bot) chooseDate(sess *Session, text string) *Reply {
	now := b.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	date, ok := parseDate(text, today)
	if !ok {
		return &Reply{Message: "I didn't catch that date. " + datePrompt}
	}

	if date.Before(today) {
		return &Reply{Message: "That date is in the past. " + datePrompt}
	}

	if date.After(today.AddDate(0, 0, bookingHorizon)) {
		return &Reply{Message: "Bookings open up to a year ahead. " + datePrompt}
	}

	sess.Step = StepTickets
	sess.VisitDate = date.Format(time.DateOnly)

	return &Reply{Message: fmt.Sprintf("%s it is. How many tickets do you need? (1-%d)", date.Format("Monday, 2 January"), maxChatTickets)}
}

func (b *Bot) chooseTickets(ctx context.Context, sess *Session, text string) (*Reply, error) {
	n, ok := firstNumber(text)
	if !ok || n < 1 || n > maxChatTickets {
		return &Reply{Message: fmt.Sprintf("Please reply with a number of tickets between 1 and %d.", maxChatTickets)}, nil
	}

	museum, err := b.museum(ctx, sess.MuseumID)
	if err != nil {
		return nil, err
	}
	if museum == nil || len(museum.TicketTypes) == 0 {
		sess.reset()
		return &Reply{Message: "Sorry, that museum is no longer taking bookings. Say \"book\" to pick another one."}, nil
	}

	sess.Step = StepConfirm
	sess.Quantity = int32(n)

	tt := defaultTicketType(museum)
	total := tt.Price.Mul(decimal.NewFromInt(int64(n)))

	return &Reply{Message: fmt.Sprintf(
		"That's %d x %s ticket(s) for %s on %s, %s in total, paid at the desk. Reply with your email address to confirm, or \"no\" to cancel.",
		n, tt.Name, sess.MuseumName, sess.VisitDate, total.StringFixed(2),
	)}, nil
}

func (b *Bot) confirm(ctx context.Context, sess *Session, text string) (*Reply, error) {
	if declineRX.MatchString(text) {
		sess.reset()
		return &Reply{Message: "No problem, nothing was booked. Anything else?"}, nil
	}

	email := emailFindRX.FindString(text)
	if email == "" || !validator.Matches(email, validator.EmailRX) {
		return &Reply{Message: "Please reply with a valid email address to confirm, or \"no\" to cancel."}, nil
	}

	museum, err := b.museum(ctx, sess.MuseumID)
	if err != nil {
		return nil, err
	}
	if museum == nil || len(museum.TicketTypes) == 0 {
		sess.reset()
		return &Reply{Message: "Sorry, that museum is no longer taking bookings."}, nil
	}

	visitDate, err := time.Parse(time.DateOnly, sess.VisitDate)
	if err != nil {
		sess.reset()
		return &Reply{Message: "Something went wrong with the date. Say \"book\" to start again."}, nil
	}

	name, _, _ := strings.Cut(email, "@")

	booking := &entity.Booking{
		MuseumID:      museum.ID,
		MuseumName:    museum.Name,
		VisitDate:     visitDate,
		Tickets:       []entity.TicketLine{{Type: defaultTicketType(museum).Name, Quantity: sess.Quantity}},
		VisitorName:   name,
		Email:         email,
		PaymentMethod: entity.PaymentCash,
	}

	sess.reset()

	if err := b.backend.Book(ctx, booking); err != nil {
		b.logger.PrintError(err, map[string]string{"component": "chatbot", "email": email})
		return &Reply{Message: "Sorry, I couldn't complete that booking. Please try again or book on the website."}, nil
	}

	return &Reply{
		Message: fmt.Sprintf("Booked! Your reference is %s, total %s. Your ticket is on its way to %s.",
			booking.Reference, booking.TotalAmount.StringFixed(2), email),
		Booking: booking,
	}, nil
}

func (b *Bot) museum(ctx context.Context, id int64) (*entity.Museum, error) {
	museums, err := b.backend.Museums(ctx)
	if err != nil {
		return nil, err
	}
	for _, m := range museums {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, nil
}

func defaultTicketType(m *entity.Museum) entity.TicketType {
	if tt, ok := m.TicketType(defaultTicketKey); ok {
		return tt
	}
	return m.TicketTypes[0]
}

func matchMuseum(museums []*entity.Museum, text string) *entity.Museum {
	for _, m := range museums {
		if containsFold(text, m.Name) {
			return m
		}
	}

	trimmed := strings.TrimSpace(text)
	if len(trimmed) < 4 {
		return nil
	}
	for _, m := range museums {
		if containsFold(m.Name, trimmed) {
			return m
		}
	}

	return nil
}

func museumList(museums []*entity.Museum) string {
	var sb strings.Builder
	for i, m := range museums {
		fmt.Fprintf(&sb, "%d. %s (%s)\n", i+1, m.Name, m.City)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func parseDate(text string, today time.Time) (time.Time, bool) {
	lower := strings.ToLower(text)

	switch {
	case strings.Contains(lower, "today"):
		return today, true
	case strings.Contains(lower, "tomorrow"):
		return today.AddDate(0, 0, 1), true
	}

	match := dateRX.FindString(text)
	if match == "" {
		return time.Time{}, false
	}

	date, err := time.Parse(time.DateOnly, match)
	if err != nil {
		return time.Time{}, false
	}

	return date, true
}

func firstNumber(text string) (int, bool) {
	match := numberRX.FindString(text)
	if match == "" {
		return 0, false
	}

	n, err := strconv.Atoi(match)
	return n, err == nil
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func systemPrompt(museums []*entity.Museum, now time.Time) string {
	names := make([]string, len(museums))
	for i, m := range museums {
		names[i] = fmt.Sprintf("%s in %s (%s)", m.Name, m.City, m.OpeningHours)
	}

	return fmt.Sprintf(`You are a friendly assistant for a museum ticket booking service.

Current date: %s

Museums:
%s

Answer questions about the museums, opening hours, and visiting. Keep answers short.
Refer to museums by their exact names. When the visitor seems ready to visit, ask
"Would you like to book tickets?" and they can reply "book" to start a booking.`,
		now.Format(time.DateOnly), strings.Join(names, "\n"))
}

func cannedAnswer(museums []*entity.Museum, text string) string {
	if m := matchMuseum(museums, text); m != nil {
		return fmt.Sprintf("%s is in %s and is open %s. Would you like to book tickets?", m.Name, m.City, m.OpeningHours)
	}
	return "I can help you find a museum and book tickets. Say \"book tickets\" to start."
}
