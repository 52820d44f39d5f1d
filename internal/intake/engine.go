// Package intake runs question-and-answer conversations inside a ticket channel.
package intake

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vaidashi/hire-a-tutor/internal/budget"
	"github.com/vaidashi/hire-a-tutor/internal/chat"
	apperrors "github.com/vaidashi/hire-a-tutor/pkg/errors"
	"github.com/vaidashi/hire-a-tutor/pkg/logger"
)

const promptFooter = "Please type your response below ⬇️"

// Conversation is the part of the chat platform the engine talks through
type Conversation interface {
	Send(ctx context.Context, channelID string, msg chat.Message) (string, error)
	AwaitMessage(ctx context.Context, channelID, userID string) (chat.Incoming, error)
}

// Answers holds the replies of one completed intake
type Answers struct {
	Values map[string]string
	// Budget is set when the form had a budget question
	Budget *budget.Budget
	// BelowMinimum is true when Budget is under the configured minimum
	BelowMinimum bool
}

// Get returns the answer for key, or ""
func (a *Answers) Get(key string) string {
	return a.Values[key]
}

// Engine asks a form's questions one at a time and waits for each reply
type Engine struct {
	conv    Conversation
	parser  *budget.Parser
	minimum decimal.Decimal
	timeout time.Duration
	logger  logger.Logger
}

// NewEngine creates an engine; timeout bounds the wait for every single reply
func NewEngine(conv Conversation, parser *budget.Parser, minimum decimal.Decimal, timeout time.Duration, logger logger.Logger) *Engine {
	return &Engine{
		conv:    conv,
		parser:  parser,
		minimum: minimum,
		timeout: timeout,
		logger:  logger,
	}
}

// Minimum is the smallest budget accepted without a warning
func (e *Engine) Minimum() decimal.Decimal {
	return e.minimum
}

// Run asks every question of form in channelID, reading only replies from
// respondentID. A missed reply or an unusable budget aborts the whole
// intake; partial answers are discarded.
func (e *Engine) Run(ctx context.Context, channelID, respondentID string, form *Form) (*Answers, error) {
	answers := &Answers{Values: make(map[string]string, len(form.Questions))}

	for _, q := range form.Questions {
		prompt := chat.Message{Embed: &chat.Embed{
			Title:       form.Title,
			Description: q.Prompt,
			Footer:      promptFooter,
			Color:       chat.ColorBlue,
		}}

		if _, err := e.conv.Send(ctx, channelID, prompt); err != nil {
			return nil, fmt.Errorf("send question %q: %w", q.Key, err)
		}

		reply, err := e.await(ctx, channelID, respondentID)

		if err != nil {
			if apperrors.KindOf(err) == apperrors.KindTimeout {
				e.logger.Info("Intake timed out",
					"form", form.Name,
					"question", q.Key,
					"channelID", channelID,
					"userID", respondentID)
				e.notify(ctx, channelID, form.TimeoutNotice)
			}
			return nil, err
		}

		switch q.Kind {
		case KindBudget:
			b, err := e.parser.Parse(reply.Content)

			if err != nil {
				e.notify(ctx, channelID, "⚠️ Please enter a valid budget with a currency symbol (e.g., $30, 50€).")
				return nil, apperrors.NewInvalidInputError("That budget could not be read.").WithCause(err)
			}

			if b.BelowMinimum(e.minimum) {
				answers.BelowMinimum = true
				e.notify(ctx, channelID, fmt.Sprintf(
					"⚠️ The minimum budget is $%s (or equivalent in your currency). You'll need to raise it before we can find you a tutor.",
					e.minimum.StringFixed(0)))
			}

			answers.Budget = &b
			answers.Values[q.Key] = b.String()
		case KindAttachment:
			answers.Values[q.Key] = reply.Answer()
		default:
			answers.Values[q.Key] = reply.Content
		}
	}

	return answers, nil
}

func (e *Engine) await(ctx context.Context, channelID, respondentID string) (chat.Incoming, error) {
	qctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	reply, err := e.conv.AwaitMessage(qctx, channelID, respondentID)

	if err == nil {
		return reply, nil
	}

	if errors.Is(err, chat.ErrSuperseded) {
		return chat.Incoming{}, fmt.Errorf("intake replaced: %w", err)
	}

	// Only our own deadline counts as the user being slow
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return chat.Incoming{}, apperrors.NewTimeoutError("You took too long to respond.").WithCause(err)
	}

	if ctx.Err() != nil {
		return chat.Incoming{}, fmt.Errorf("intake interrupted: %w", ctx.Err())
	}

	return chat.Incoming{}, fmt.Errorf("await reply: %w", err)
}

func (e *Engine) notify(ctx context.Context, channelID, content string) {
	if content == "" {
		return
	}

	if _, err := e.conv.Send(ctx, channelID, chat.Message{Content: content}); err != nil {
		e.logger.Warn("Failed to post intake notice", "error", err, "channelID", channelID)
	}
}
