// Telegram Bot API implementation of the moderation messaging gateway.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/topicmod/topicmod/moderation"
	"github.com/topicmod/topicmod/util"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

// Receiver of inbound events. Implemented by *moderation.Engine.
type Handler interface {
	HandleMessage(ctx context.Context, msg moderation.IncomingMessage) (moderation.Decision, error)
	HandleReviewDecision(ctx context.Context, rd moderation.ReviewDecision) (moderation.ReviewOutcome, error)
}

type Config struct {
	Token string
	// format string taking the token and method name. Defaults to tgbotapi.APIEndpoint
	APIEndpoint string
	Logger      *slog.Logger
	// defaults to a retrying client with a timeout longer than the poll interval
	HTTPClient *http.Client
	// outbound API calls per second
	RateLimit float64
	// long-poll duration for getUpdates, in seconds
	PollTimeout int
}

type Gateway struct {
	bot         *tgbotapi.BotAPI
	logger      *slog.Logger
	limiter     *rate.Limiter
	pollTimeout int
}

var _ moderation.Gateway = (*Gateway)(nil)

func NewGateway(cfg Config) (*Gateway, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.APIEndpoint == "" {
		cfg.APIEndpoint = tgbotapi.APIEndpoint
	}
	if cfg.PollTimeout < 0 {
		cfg.PollTimeout = 0
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = util.NewRobustHTTPClient(util.ClientOptions{
			Logger:  cfg.Logger.With("system", "telegram-http"),
			Timeout: time.Duration(cfg.PollTimeout+15) * time.Second,
		})
	}
	if cfg.RateLimit <= 0 {
		// stays under the platform's global limit of 30 messages per second
		cfg.RateLimit = 25
	}

	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, cfg.APIEndpoint, cfg.HTTPClient)
	if err != nil {
		return nil, fmt.Errorf("connecting to telegram bot API: %w", err)
	}
	cfg.Logger.Info("telegram bot connected", "username", bot.Self.UserName)
	return &Gateway{
		bot:         bot,
		logger:      cfg.Logger,
		limiter:     rate.NewLimiter(rate.Limit(cfg.RateLimit), 5),
		pollTimeout: cfg.PollTimeout,
	}, nil
}

func (g *Gateway) BotUsername() string {
	return g.bot.Self.UserName
}

// Client errors (bad request, forbidden) won't succeed on retry.
func classifyErr(err error) error {
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) && (tgErr.Code == http.StatusBadRequest || tgErr.Code == http.StatusForbidden) {
		return moderation.PermanentError(err)
	}
	return err
}

func (g *Gateway) send(ctx context.Context, c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return tgbotapi.Message{}, err
	}
	msg, err := g.bot.Send(c)
	if err != nil {
		return msg, classifyErr(err)
	}
	return msg, nil
}

func (g *Gateway) request(ctx context.Context, c tgbotapi.Chattable) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}
	if _, err := g.bot.Request(c); err != nil {
		return classifyErr(err)
	}
	return nil
}

func reviewKeyboard(messageKey string, chosen moderation.ReviewAction) tgbotapi.InlineKeyboardMarkup {
	yes, no := "Yes", "No"
	switch chosen {
	case moderation.ReviewApprove:
		yes = "✅ " + yes
	case moderation.ReviewReject:
		no = "✅ " + no
	}
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(yes, encodeCallback(moderation.ReviewApprove, messageKey)),
		tgbotapi.NewInlineKeyboardButtonData(no, encodeCallback(moderation.ReviewReject, messageKey)),
	))
}

func (g *Gateway) SendReviewPrompt(ctx context.Context, reviewerID int64, text, messageKey string) (string, error) {
	if len(encodeCallback(moderation.ReviewReject, messageKey)) > maxCallbackData {
		return "", moderation.PermanentError(fmt.Errorf("message key too long for callback data: %s", messageKey))
	}
	msg := tgbotapi.NewMessage(reviewerID, text)
	msg.ReplyMarkup = reviewKeyboard(messageKey, "")
	sent, err := g.send(ctx, msg)
	if err != nil {
		return "", err
	}
	return strconv.Itoa(sent.MessageID), nil
}

func (g *Gateway) SendNotification(ctx context.Context, targetID int64, text string) error {
	_, err := g.send(ctx, tgbotapi.NewMessage(targetID, text))
	return err
}

func (g *Gateway) SendReply(ctx context.Context, chatID, replyTo int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = int(replyTo)
	_, err := g.send(ctx, msg)
	return err
}

func (g *Gateway) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	return g.request(ctx, tgbotapi.NewDeleteMessage(chatID, int(messageID)))
}

// Long-polls for updates and dispatches them to the handler one at a time, until the context is cancelled.
func (g *Gateway) Run(ctx context.Context, h Handler) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = g.pollTimeout
	cfg.AllowedUpdates = []string{"message", "callback_query"}

	retryWait := time.Second
	for {
		if ctx.Err() != nil {
			return nil
		}
		updates, err := g.bot.GetUpdates(cfg)
		if err != nil {
			g.logger.Warn("failed to fetch telegram updates", "err", err, "retryIn", retryWait)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(retryWait):
			}
			retryWait = min(retryWait*2, time.Minute)
			continue
		}
		retryWait = time.Second
		for _, upd := range updates {
			cfg.Offset = upd.UpdateID + 1
			g.dispatch(ctx, h, upd)
		}
	}
}

func (g *Gateway) dispatch(ctx context.Context, h Handler, upd tgbotapi.Update) {
	// similar to an HTTP server, we want to recover any panics from handlers
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("telegram update dispatch exception", "err", r, "updateID", upd.UpdateID)
		}
	}()

	switch {
	case upd.Message != nil:
		g.handleMessage(ctx, h, upd.Message)
	case upd.CallbackQuery != nil:
		g.handleCallback(ctx, h, upd.CallbackQuery)
	}
}

func (g *Gateway) handleMessage(ctx context.Context, h Handler, m *tgbotapi.Message) {
	if m.Chat == nil || m.From == nil || m.From.IsBot {
		return
	}
	text := m.Text
	if text == "" {
		text = m.Caption
	}
	msg := moderation.IncomingMessage{
		ChatID:     m.Chat.ID,
		MessageID:  int64(m.MessageID),
		SenderID:   m.From.ID,
		SenderName: m.From.UserName,
		Text:       text,
	}
	if _, err := h.HandleMessage(ctx, msg); err != nil {
		g.logger.Error("failed to handle message", "err", err, "chatID", msg.ChatID, "messageID", msg.MessageID)
	}
}

func (g *Gateway) handleCallback(ctx context.Context, h Handler, cq *tgbotapi.CallbackQuery) {
	logger := g.logger.With("callbackID", cq.ID)
	action, messageKey, err := decodeCallback(cq.Data)
	if err != nil {
		logger.Warn("ignoring callback", "err", err)
		g.answerCallback(ctx, logger, cq.ID, "")
		return
	}
	var reviewerID int64
	if cq.From != nil {
		reviewerID = cq.From.ID
	}

	out, err := h.HandleReviewDecision(ctx, moderation.ReviewDecision{
		Action:     action,
		MessageKey: messageKey,
		ReviewerID: reviewerID,
	})
	if err != nil {
		logger.Error("failed to handle review decision", "err", err, "messageKey", messageKey)
	}
	g.answerCallback(ctx, logger, cq.ID, out.Message())

	if out.Status == moderation.OutcomeRecorded && cq.Message != nil && cq.Message.Chat != nil {
		edit := tgbotapi.NewEditMessageReplyMarkup(cq.Message.Chat.ID, cq.Message.MessageID, reviewKeyboard(messageKey, action))
		if err := g.request(ctx, edit); err != nil {
			// "message is not modified" when the same button is pressed twice
			logger.Debug("failed to update review prompt buttons", "err", err)
		}
	}
}

func (g *Gateway) answerCallback(ctx context.Context, logger *slog.Logger, id, text string) {
	if err := g.request(ctx, tgbotapi.NewCallback(id, text)); err != nil {
		logger.Warn("failed to answer callback query", "err", err)
	}
}
