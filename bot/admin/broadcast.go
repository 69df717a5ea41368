package admin

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	tele "gopkg.in/telebot.v4"

	"github.com/promokod/promobot/core/logger"
	"github.com/promokod/promobot/core/telegram/sender"
)

// MessageSender is the slice of the bot client the broadcaster uses.
type MessageSender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Broadcaster fans a message out to a list of users. Each send goes
// through the outbound dispatcher's retry machinery; the whole run is
// correlated by a broadcast id in the logs.
type Broadcaster struct {
	send     MessageSender
	executor *sender.Dispatcher
	// Throttle between sends to stay under the bot API flood limits.
	interval time.Duration
}

// NewBroadcaster builds a broadcaster. interval <= 0 uses a default
// pause between sends.
func NewBroadcaster(send MessageSender, executor *sender.Dispatcher, interval time.Duration) *Broadcaster {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	return &Broadcaster{send: send, executor: executor, interval: interval}
}

// Run delivers text to every recipient in the background and reports
// the outcome back to the admin who launched it.
func (b *Broadcaster) Run(adminID int64, recipients []int64, text string) {
	go b.run(adminID, recipients, text)
}

func (b *Broadcaster) run(adminID int64, recipients []int64, text string) {
	ctx := logger.Background()
	id := uuid.NewString()
	start := time.Now()

	logger.Info(ctx, "admin", "admin.broadcast.start",
		slog.String("broadcast_id", id),
		slog.Int64("user_id", adminID),
		slog.Int("count", len(recipients)))

	var sent, failed int
	for _, userID := range recipients {
		target := userID
		err := b.executor.Execute(ctx, "broadcast.send", "sendMessage", func() error {
			_, err := b.send.Send(&tele.User{ID: target}, text)
			return err
		})
		if err != nil {
			failed++
		} else {
			sent++
		}
		time.Sleep(b.interval)
	}

	logger.Info(ctx, "admin", "admin.broadcast.done",
		slog.String("broadcast_id", id),
		slog.Int("sent", sent),
		slog.Int("failed", failed),
		slog.Duration("duration", logger.RoundMS(time.Since(start))))

	summary := fmt.Sprintf("Broadcast finished: %d sent, %d failed", sent, failed)
	if _, err := b.send.Send(&tele.User{ID: adminID}, summary); err != nil {
		logger.Warn(ctx, "admin", "admin.broadcast.report",
			slog.String("broadcast_id", id), slog.Any("err", err))
	}
}
