package chatbot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"museum.zuyanh.net/internal/entity"
	"museum.zuyanh.net/internal/jsonlog"
)

type fakeBackend struct {
	museums []*entity.Museum
	booked  []*entity.Booking
	err     error
}

func (f *fakeBackend) Museums(context.Context) ([]*entity.Museum, error) {
	return f.museums, nil
}

func (f *fakeBackend) Book(_ context.Context, b *entity.Booking) error {
	if f.err != nil {
		return f.err
	}
	b.Reference = "MUSEUM-000001-1234"
	b.TotalAmount = decimal.NewFromInt(int64(b.Tickets[0].Quantity) * 20)
	f.booked = append(f.booked, b)
	return nil
}

type llmFunc func(ctx context.Context, messages []Turn) (string, error)

func (f llmFunc) Complete(ctx context.Context, messages []Turn) (string, error) {
	return f(ctx, messages)
}

func newTestBot(t *testing.T, llm LLM) (*Bot, *fakeBackend, *observer.ObservedLogs) {
	t.Helper()

	backend := &fakeBackend{museums: []*entity.Museum{
		{ID: 1, Name: "National Museum", City: "New Delhi", OpeningHours: "10:00-18:00",
			TicketTypes: []entity.TicketType{{Name: "child", Price: decimal.NewFromInt(10)}, {Name: "adult", Price: decimal.NewFromInt(20)}}},
		{ID: 2, Name: "Indian Museum", City: "Kolkata", OpeningHours: "10:00-17:00",
			TicketTypes: []entity.TicketType{{Name: "general", Price: decimal.NewFromInt(50)}}},
	}}

	core, logs := observer.New(zap.InfoLevel)
	bot := New(NewMemoryStore(time.Hour), backend, llm, jsonlog.NewWithCore(core))
	bot.now = func() time.Time { return time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC) }

	return bot, backend, logs
}

func say(t *testing.T, bot *Bot, sessionID, text string) *Reply {
	t.Helper()

	reply, err := bot.Reply(context.Background(), sessionID, text)
	require.NoError(t, err)
	return reply
}

func TestBookingConversation(t *testing.T) {
	bot, backend, _ := newTestBot(t, nil)

	reply := say(t, bot, "", "I want to book tickets")
	require.NotEmpty(t, reply.SessionID)
	assert.Equal(t, StepMuseum, reply.Step)
	assert.Contains(t, reply.Message, "1. National Museum (New Delhi)")
	id := reply.SessionID

	reply = say(t, bot, id, "1")
	assert.Equal(t, StepDate, reply.Step)
	assert.Contains(t, reply.Message, "National Museum")

	reply = say(t, bot, id, "tomorrow")
	assert.Equal(t, StepTickets, reply.Step)
	assert.Contains(t, reply.Message, "Tuesday, 20 October")

	reply = say(t, bot, id, "3 please")
	assert.Equal(t, StepConfirm, reply.Step)
	assert.Contains(t, reply.Message, "3 x adult")
	assert.Contains(t, reply.Message, "60.00")

	reply = say(t, bot, id, "sure, it's asha@example.com")
	assert.Equal(t, StepIdle, reply.Step)
	require.NotNil(t, reply.Booking)
	assert.Contains(t, reply.Message, "MUSEUM-000001-1234")

	require.Len(t, backend.booked, 1)
	b := backend.booked[0]
	assert.Equal(t, int64(1), b.MuseumID)
	assert.Equal(t, "2026-10-20", b.VisitDate.Format(time.DateOnly))
	assert.Equal(t, []entity.TicketLine{{Type: "adult", Quantity: 3}}, b.Tickets)
	assert.Equal(t, "asha", b.VisitorName)
	assert.Equal(t, entity.PaymentCash, b.PaymentMethod)
}

func TestBookingIntentNamingMuseumSkipsSelection(t *testing.T) {
	bot, _, _ := newTestBot(t, nil)

	reply := say(t, bot, "s1", "book the indian museum")
	assert.Equal(t, StepDate, reply.Step)
	assert.Contains(t, reply.Message, "Indian Museum")
}

func TestInvalidAnswersKeepTheStep(t *testing.T) {
	bot, _, _ := newTestBot(t, nil)

	say(t, bot, "s1", "book")

	reply := say(t, bot, "s1", "the louvre")
	assert.Equal(t, StepMuseum, reply.Step)
	assert.Contains(t, reply.Message, "couldn't find")

	say(t, bot, "s1", "Indian")

	reply = say(t, bot, "s1", "2026-10-01")
	assert.Equal(t, StepDate, reply.Step)
	assert.Contains(t, reply.Message, "in the past")

	reply = say(t, bot, "s1", "2028-01-01")
	assert.Equal(t, StepDate, reply.Step)

	reply = say(t, bot, "s1", "someday")
	assert.Equal(t, StepDate, reply.Step)

	say(t, bot, "s1", "2026-12-24")

	reply = say(t, bot, "s1", "50")
	assert.Equal(t, StepTickets, reply.Step)

	reply = say(t, bot, "s1", "2")
	assert.Equal(t, StepConfirm, reply.Step)
	assert.Contains(t, reply.Message, "2 x general")

	reply = say(t, bot, "s1", "hmm")
	assert.Equal(t, StepConfirm, reply.Step)

	reply = say(t, bot, "s1", "no")
	assert.Equal(t, StepIdle, reply.Step)
}

func TestTodayFollowsUTCCalendar(t *testing.T) {
	bot, _, _ := newTestBot(t, nil)

	// 21:00 on 19 October in New York is already 20 October in UTC.
	newYork := time.FixedZone("EDT", -4*60*60)
	bot.now = func() time.Time { return time.Date(2026, 10, 19, 21, 0, 0, 0, newYork) }

	say(t, bot, "s1", "book the indian museum")

	reply := say(t, bot, "s1", "2026-10-19")
	assert.Equal(t, StepDate, reply.Step)
	assert.Contains(t, reply.Message, "in the past")

	reply = say(t, bot, "s1", "today")
	assert.Equal(t, StepTickets, reply.Step)
	assert.Contains(t, reply.Message, "Tuesday, 20 October")
}

func TestResetFromAnyStep(t *testing.T) {
	bot, _, _ := newTestBot(t, nil)

	say(t, bot, "s1", "book")
	say(t, bot, "s1", "1")

	reply := say(t, bot, "s1", "cancel")
	assert.Equal(t, StepIdle, reply.Step)

	sess, err := bot.store.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Zero(t, sess.MuseumID)
	assert.Len(t, sess.History, 6)
}

func TestBookingFailureIsReported(t *testing.T) {
	bot, backend, logs := newTestBot(t, nil)
	backend.err = errors.New("insert failed")

	say(t, bot, "s1", "book")
	say(t, bot, "s1", "1")
	say(t, bot, "s1", "today")
	say(t, bot, "s1", "1")

	reply := say(t, bot, "s1", "asha@example.com")
	assert.Equal(t, StepIdle, reply.Step)
	assert.Nil(t, reply.Booking)
	assert.Contains(t, reply.Message, "couldn't complete")
	assert.Equal(t, 1, logs.FilterMessage("insert failed").Len())
}

func TestFreeFormQuestionsGoToLLM(t *testing.T) {
	var got []Turn
	llm := llmFunc(func(_ context.Context, messages []Turn) (string, error) {
		got = messages
		return "The National Museum has great Harappan seals. Would you like to book tickets?", nil
	})

	bot, _, _ := newTestBot(t, llm)

	reply := say(t, bot, "s1", "what should I see in Delhi?")

	assert.Equal(t, StepIdle, reply.Step)
	assert.Equal(t, []string{"National Museum", suggestBook}, reply.Suggestions)

	require.Len(t, got, 2)
	assert.Equal(t, "system", got[0].Role)
	assert.Contains(t, got[0].Content, "Indian Museum in Kolkata")
	assert.Equal(t, Turn{Role: "user", Content: "what should I see in Delhi?"}, got[1])

	say(t, bot, "s1", "and in Kolkata?")
	assert.Len(t, got, 4)
}

func TestLLMFailureFallsBackToCannedAnswer(t *testing.T) {
	llm := llmFunc(func(context.Context, []Turn) (string, error) {
		return "", errors.New("llm down")
	})

	bot, _, logs := newTestBot(t, llm)

	reply := say(t, bot, "s1", "hours of the indian museum?")
	assert.Contains(t, reply.Message, "Indian Museum is in Kolkata")
	assert.Contains(t, reply.Suggestions, suggestBook)
	assert.Equal(t, 1, logs.Len())
}

func TestEmptyMessage(t *testing.T) {
	bot, _, _ := newTestBot(t, nil)

	_, err := bot.Reply(context.Background(), "s1", "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
}
