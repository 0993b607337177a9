// Package telegram connects the command router to the Telegram Bot API
// using long polling.
package telegram

import (
	"context"
	"fmt"

	"categorybot/internal/bot"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// BotAPI is the subset of *tgbotapi.BotAPI used by the poller
type BotAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Handler turns an inbound message into a reply
type Handler interface {
	Handle(ctx context.Context, msg bot.Message) bot.Reply
}

type Poller struct {
	api         BotAPI
	handler     Handler
	pollTimeout int
	logger      *zap.Logger
}

// NewAPI authenticates token against Telegram
func NewAPI(token string, debug bool) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	api.Debug = debug
	return api, nil
}

func NewPoller(api BotAPI, handler Handler, pollTimeout int, logger *zap.Logger) *Poller {
	return &Poller{
		api:         api,
		handler:     handler,
		pollTimeout: pollTimeout,
		logger:      logger,
	}
}

// Run receives updates until ctx is cancelled or the update channel closes.
// Updates are handled one at a time in arrival order.
func (p *Poller) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = p.pollTimeout

	updates := p.api.GetUpdatesChan(u)
	defer p.api.StopReceivingUpdates()

	p.logger.Info("telegram poller started", zap.Int("poll_timeout", p.pollTimeout))
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("telegram poller stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				p.logger.Info("telegram update channel closed")
				return nil
			}
			p.handleUpdate(ctx, update)
		}
	}
}

func (p *Poller) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Error("telegram update panicked", zap.Int("update_id", update.UpdateID), zap.Any("panic", rec))
		}
	}()

	msg, ok := toMessage(update)
	if !ok {
		return
	}

	reply := p.handler.Handle(ctx, msg)
	p.send(msg.ChatID, reply)
}

// toMessage extracts a command from a text message or a document caption
func toMessage(update tgbotapi.Update) (bot.Message, bool) {
	in := update.Message
	if in == nil || in.Chat == nil {
		return bot.Message{}, false
	}

	text := in.Text
	if in.Document != nil {
		text = in.Caption
	}
	msg := bot.NewMessage(in.Chat.ID, text)
	if msg.Token == "" {
		return bot.Message{}, false
	}
	msg.Interactive = true
	if in.Document != nil {
		msg.Document = &bot.InboundDocument{
			FileID:   in.Document.FileID,
			FileName: in.Document.FileName,
			Size:     int64(in.Document.FileSize),
		}
	}
	return msg, true
}

func (p *Poller) send(chatID int64, reply bot.Reply) {
	if reply.Document != nil {
		doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
			Name:  reply.Document.FileName,
			Bytes: reply.Document.Data,
		})
		doc.Caption = reply.Document.Caption
		if _, err := p.api.Send(doc); err != nil {
			p.logger.Error("failed to send document", zap.Int64("chat_id", chatID), zap.Error(err))
		}
	}

	if reply.Text != "" {
		if _, err := p.api.Send(tgbotapi.NewMessage(chatID, reply.Text)); err != nil {
			p.logger.Error("failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
		}
	}
}
