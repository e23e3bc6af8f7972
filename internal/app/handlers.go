package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"kanabot/internal/domain"
	"kanabot/internal/notify"
	"kanabot/internal/router"
	"kanabot/internal/store"
	"kanabot/internal/transport"
	"kanabot/internal/transport/telegram"
	"kanabot/internal/trigger"
	"kanabot/pkg/logx"
)

const maxQuestionsPerDay = 24

// onStart registers the chat's user (idempotent) and schedules their first
// delivery triggers.
func (a *App) onStart(ctx context.Context, up transport.Update) error {
	m := up.Message
	u, err := a.users.FindByChatID(ctx, m.ChatID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		u = &domain.User{
			ID:              m.FromID,
			ChatID:          m.ChatID,
			Username:        m.FromUsername,
			QuestionsPerDay: a.defaultPerDay,
			CreatedAt:       a.clk.Now(),
		}
		if err := a.users.Create(ctx, u); err != nil {
			return fmt.Errorf("create user %d: %w", u.ID, err)
		}
		a.log.Info("user registered", logx.Int64("user", u.ID))
	case err != nil:
		return fmt.Errorf("lookup user by chat %d: %w", m.ChatID, err)
	}

	if err := a.coord.Reconcile(ctx, u); err != nil {
		return fmt.Errorf("schedule user %d: %w", u.ID, err)
	}

	return a.notifier.Notify(ctx, notify.Notification{
		ChatID: m.ChatID,
		Text: fmt.Sprintf("Welcome! You'll get %d kana question(s) per day. "+
			"Use /settings <n> to change how many.", u.QuestionsPerDay),
	})
}

// onSettings handles "/settings <n>": updates the daily question count and
// reconciles the user's triggers right away.
func (a *App) onSettings(ctx context.Context, up transport.Update) error {
	m := up.Message
	u, err := a.users.FindByChatID(ctx, m.ChatID)
	if errors.Is(err, store.ErrNotFound) {
		return a.notifier.Notify(ctx, notify.Notification{ChatID: m.ChatID, Text: "Use /start first."})
	}
	if err != nil {
		return fmt.Errorf("lookup user by chat %d: %w", m.ChatID, err)
	}

	arg := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(m.Text), "/settings"))
	if arg == "" {
		return a.notifier.Notify(ctx, notify.Notification{
			ChatID: m.ChatID,
			Text: fmt.Sprintf("Questions per day: %d. Streak: %d.\nUse /settings <n> to change.",
				u.QuestionsPerDay, u.Streak),
		})
	}

	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > maxQuestionsPerDay {
		return a.notifier.Notify(ctx, notify.Notification{
			ChatID: m.ChatID,
			Text:   fmt.Sprintf("Give a number between 1 and %d, e.g. /settings 3.", maxQuestionsPerDay),
		})
	}

	u.QuestionsPerDay = n
	if err := a.users.Save(ctx, u); err != nil {
		return fmt.Errorf("save user %d: %w", u.ID, err)
	}
	if err := a.coord.Reconcile(ctx, u); err != nil {
		return fmt.Errorf("reschedule user %d: %w", u.ID, err)
	}

	return a.notifier.Notify(ctx, notify.Notification{
		ChatID: m.ChatID,
		Text:   fmt.Sprintf("Done. You'll now get %d question(s) per day.", n),
	})
}

// onAccept confirms a delivered question and reveals the prompt. The answer
// timer starts at confirmation.
func (a *App) onAccept(ctx context.Context, up transport.Update) error {
	cb := up.Callback
	qid := router.CallbackPayload(cb.Data)

	q, err := a.questions.FindByID(ctx, qid)
	if errors.Is(err, store.ErrNotFound) {
		return a.adapter.AnswerCallback(ctx, cb.ID, "This question is gone.")
	}
	if err != nil {
		return fmt.Errorf("load question %s: %w", qid, err)
	}
	if q.UserID != cb.FromID {
		return a.adapter.AnswerCallback(ctx, cb.ID, "Not your question.")
	}

	if err := domain.Accept(q, a.clk.Now()); err != nil {
		return a.adapter.AnswerCallback(ctx, cb.ID, "Already confirmed or expired.")
	}

	ref, err := a.adapter.SendText(ctx, transport.ChatTarget{ChatID: cb.ChatID},
		fmt.Sprintf("What is the romaji for %s? You have %s.", q.Prompt, q.TimeLimit),
		&transport.SendOptions{ReplyTo: cb.MessageID})
	if err != nil {
		return fmt.Errorf("send prompt for %s: %w", q.ID, err)
	}
	q.MessageID = ref.MessageID

	if err := a.questions.Save(ctx, q); err != nil {
		return fmt.Errorf("save question %s: %w", q.ID, err)
	}
	return a.adapter.AnswerCallback(ctx, cb.ID, "Accepted. Good luck!")
}

// onAnswer matches free text against the user's open accepted question.
func (a *App) onAnswer(ctx context.Context, up transport.Update) error {
	m := up.Message
	u, err := a.users.FindByChatID(ctx, m.ChatID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup user by chat %d: %w", m.ChatID, err)
	}

	q, err := a.questions.FindOpenByUser(ctx, u.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open question for user %d: %w", u.ID, err)
	}
	if !q.Accepted {
		// Text before confirmation is chatter, not an answer attempt.
		return nil
	}

	res := domain.SubmitAnswer(q, u, m.Text)
	if res.Outcome == domain.SubmitNotActionable {
		return a.notifier.Notify(ctx, notify.Notification{
			ChatID: m.ChatID, Text: "Already answered or expired.", ReplyTo: m.ID,
		})
	}

	if err := a.questions.Save(ctx, q); err != nil {
		return fmt.Errorf("save question %s: %w", q.ID, err)
	}
	if err := a.users.Save(ctx, u); err != nil {
		return fmt.Errorf("save user %d: %w", u.ID, err)
	}

	var text string
	switch res.Outcome {
	case domain.SubmitCorrect:
		text = fmt.Sprintf("Correct! Streak: %d.", u.Streak)
	case domain.SubmitRetry:
		text = fmt.Sprintf("Not quite. %d attempt(s) left.", res.Remaining)
	case domain.SubmitExhausted:
		text = fmt.Sprintf("Out of attempts. The correct answer was %q. Streak reset.", q.Answer)
	}
	return a.notifier.Notify(ctx, notify.Notification{ChatID: m.ChatID, Text: text, ReplyTo: m.ID})
}

// deliverQuestion runs when a user trigger fires: it creates a fresh question
// and sends the invitation carrying the accept button. The prompt itself stays
// hidden until the user confirms.
func (a *App) deliverQuestion(ctx context.Context, p trigger.Payload) {
	u, err := a.users.FindByID(ctx, p.UserID)
	if err != nil {
		a.log.Error("deliver: load user failed", logx.Int64("user", p.UserID), logx.Err(err))
		return
	}

	// One open question at a time; a still-open one means the user is behind,
	// not that we should pile on.
	if _, err := a.questions.FindOpenByUser(ctx, u.ID); err == nil {
		a.log.Debug("deliver: open question pending, skipping", logx.Int64("user", u.ID))
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		a.log.Error("deliver: open-question check failed", logx.Int64("user", u.ID), logx.Err(err))
		return
	}

	item := a.source.Next()
	q := domain.NewQuestion(u.ID, item.Prompt, item.Answer, a.answerLimit, a.clk.Now())
	if err := a.questions.Create(ctx, q); err != nil {
		a.log.Error("deliver: create question failed", logx.Int64("user", u.ID), logx.Err(err))
		return
	}

	ref, err := a.adapter.SendText(ctx, transport.ChatTarget{ChatID: u.ChatID},
		"A kana question is ready. Confirm within an hour to see it.",
		&transport.SendOptions{ReplyMarkupAdapter: telegram.AcceptMarkup(q.ID)})
	if err != nil {
		a.log.Error("deliver: send invitation failed", logx.Int64("user", u.ID), logx.Err(err))
		return
	}
	q.MessageID = ref.MessageID
	if err := a.questions.Save(ctx, q); err != nil {
		a.log.Error("deliver: save question failed", logx.String("question", q.ID), logx.Err(err))
	}
	a.log.Info("question delivered", logx.Int64("user", u.ID),
		logx.Int("ordinal", p.Ordinal), logx.String("question", q.ID))
}
