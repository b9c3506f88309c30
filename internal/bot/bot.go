// Package bot is the operator Telegram bot: catalog lookups, archive
// summaries, product imports and on-demand backups from a chat.
package bot

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Spok95/batch-weighing/internal/dialog"
	"github.com/Spok95/batch-weighing/internal/domain/archive"
	"github.com/Spok95/batch-weighing/internal/domain/catalog"
	"github.com/Spok95/batch-weighing/internal/domain/process"
	"github.com/Spok95/batch-weighing/internal/infra/blob"
)

// API is the part of *tgbotapi.BotAPI the bot uses.
type API interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Backuper takes one backup on request.
type Backuper interface {
	Run(ctx context.Context) (blob.Info, error)
}

type Deps struct {
	Catalog   *catalog.Service
	Archive   *archive.Service
	Processes *process.Service
	// Backup is optional; /backup answers that backups are disabled without it.
	Backup Backuper
}

type Bot struct {
	api       API
	log       *slog.Logger
	states    *dialog.Store
	adminChat int64
	http      *http.Client

	catalog   *catalog.Service
	archive   *archive.Service
	processes *process.Service
	backup    Backuper
}

// New builds a bot that answers only in adminChat. A zero adminChat
// answers everyone.
func New(api API, log *slog.Logger, adminChat int64, d Deps) *Bot {
	return &Bot{
		api:       api,
		log:       log,
		states:    dialog.NewStore(10 * time.Minute),
		adminChat: adminChat,
		http:      &http.Client{Timeout: 30 * time.Second},
		catalog:   d.Catalog,
		archive:   d.Archive,
		processes: d.Processes,
		backup:    d.Backup,
	}
}

// Run long-polls for updates until ctx ends.
func (b *Bot) Run(ctx context.Context, timeoutSec int) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = timeoutSec
	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()
	b.log.Info("telegram bot polling", "admin_chat", b.adminChat)
	for {
		select {
		case <-ctx.Done():
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			if upd.Message != nil {
				b.onMessage(ctx, upd.Message)
			}
		}
	}
}

func (b *Bot) onMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if b.adminChat != 0 && chatID != b.adminChat {
		b.reply(chatID, "Access denied.")
		return
	}
	if msg.IsCommand() {
		b.handleCommand(ctx, msg.Command(), msg.CommandArguments(), chatID)
		return
	}
	if cmd, ok := buttons[msg.Text]; ok {
		b.handleCommand(ctx, cmd, "", chatID)
		return
	}
	b.handleState(ctx, msg)
}
