package telegram

import (
	"context"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Handler consumes one update.
type Handler func(ctx context.Context, update tgbotapi.Update)

// Poller long-polls one bot and hands updates to its handler one at a time.
// The strictly sequential dispatch is load-bearing: events for the same
// submitter must never be processed concurrently, and the transport delivers
// them in order only as long as nothing here fans them out.
type Poller struct {
	logger  *slog.Logger
	bot     *tgbotapi.BotAPI
	handle  Handler
	cancel  context.CancelFunc
	updates tgbotapi.UpdatesChannel
	done    chan struct{}
}

func NewPoller(log *slog.Logger, name string, bot *tgbotapi.BotAPI, handle Handler) *Poller {
	if log == nil {
		log = slog.Default()
	}
	return &Poller{
		logger: log.With(slog.String("poller", name)),
		bot:    bot,
		handle: handle,
		done:   make(chan struct{}),
	}
}

// Start begins long polling in a background goroutine.
func (p *Poller) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 30
	p.updates = p.bot.GetUpdatesChan(updateConfig)

	go func() {
		defer close(p.done)
		p.logger.Info("poller started")
		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-p.updates:
				if !ok {
					p.logger.Info("updates channel closed")
					return
				}
				p.handle(ctx, update)
			}
		}
	}()
}

// Stop halts polling and blocks until the loop has exited. Remaining updates
// are drained so the library's polling goroutine can finish; an undrained
// in-flight long poll keeps the old getUpdates session alive and the next
// start with the same token gets "Conflict: terminated by other getUpdates
// request".
func (p *Poller) Stop() {
	p.bot.StopReceivingUpdates()
	if p.cancel != nil {
		p.cancel()
	}
	for range p.updates {
	}
	<-p.done
	p.logger.Info("poller stopped")
}
