// Package notify pushes short operator messages to a Telegram chat.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Spok95/batch-weighing/internal/domain/archive"
)

// Sender is the part of *tgbotapi.BotAPI the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Telegram struct {
	api    Sender
	chatID int64
	log    *slog.Logger
}

func NewTelegram(api Sender, chatID int64, log *slog.Logger) *Telegram {
	return &Telegram{api: api, chatID: chatID, log: log}
}

func (t *Telegram) ProcessArchived(ctx context.Context, rec archive.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(t.chatID, ArchiveSummary(rec))
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func (t *Telegram) BackupFinished(ok bool, pruned int) {
	text := fmt.Sprintf("Backup completed, %d old generation(s) removed.", pruned)
	if !ok {
		text = "Backup failed, check the service log."
	}
	if _, err := t.api.Send(tgbotapi.NewMessage(t.chatID, text)); err != nil {
		t.log.Error("send failed", "err", err)
	}
}

// ArchiveSummary is the plain text posted for one archived process.
func ArchiveSummary(rec archive.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Process %s finished\n", rec.No)
	fmt.Fprintf(&b, "Batch: %s\nProduct: %s\n", rec.BatchNo, rec.ProductNo)
	fmt.Fprintf(&b, "Duration: %s\n", rec.Duration.Round(1e9))
	for _, m := range rec.Materials {
		fmt.Fprintf(&b, "- %s (%s): %.3f\n", m.No, m.Packaging, m.Quantity)
	}
	return strings.TrimRight(b.String(), "\n")
}
