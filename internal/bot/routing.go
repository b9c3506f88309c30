package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Spok95/batch-weighing/internal/apperr"
	"github.com/Spok95/batch-weighing/internal/dialog"
	"github.com/Spok95/batch-weighing/internal/domain/archive"
	"github.com/Spok95/batch-weighing/internal/domain/catalog"
	"github.com/Spok95/batch-weighing/internal/infra/notify"
	"github.com/Spok95/batch-weighing/internal/infra/report"
)

const (
	helpText = "Commands:\n" +
		"/product <no> - product and its materials\n" +
		"/sap [no] - latest archived processes\n" +
		"/process <id> - open process status\n" +
		"/import - send an XLSX with products\n" +
		"/backup - write a backup now\n" +
		"/cancel - abort the current prompt"

	archiveLimit = 5
)

func (b *Bot) handleCommand(ctx context.Context, cmd, args string, chatID int64) {
	args = strings.TrimSpace(args)
	switch cmd {
	case "start", "help":
		b.states.Reset(ctx, chatID)
		m := tgbotapi.NewMessage(chatID, helpText)
		m.ReplyMarkup = operatorReplyKeyboard()
		b.send(m)

	case "cancel":
		b.states.Reset(ctx, chatID)
		b.reply(chatID, "Cancelled.")

	case "product":
		if args == "" {
			b.states.Set(ctx, chatID, dialog.StateAwaitProductNo, nil)
			b.reply(chatID, "Send the product number.")
			return
		}
		b.showProduct(ctx, chatID, args)

	case "sap":
		b.showArchive(ctx, chatID, args)

	case "process":
		if args == "" {
			b.reply(chatID, "Usage: /process <id>")
			return
		}
		b.showProcess(ctx, chatID, args)

	case "import":
		b.states.Set(ctx, chatID, dialog.StateAwaitImport, nil)
		b.reply(chatID, "Send an XLSX file: product number in the first column, material numbers after it.")

	case "backup":
		b.runBackup(ctx, chatID)

	default:
		b.reply(chatID, "Unknown command. /help lists what I can do.")
	}
}

func (b *Bot) handleState(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	st := b.states.Get(ctx, chatID)
	switch st.State {
	case dialog.StateAwaitProductNo:
		b.states.Reset(ctx, chatID)
		b.showProduct(ctx, chatID, strings.TrimSpace(msg.Text))

	case dialog.StateAwaitImport:
		if msg.Document == nil {
			b.reply(chatID, "Waiting for an XLSX document. /cancel to stop.")
			return
		}
		b.states.Reset(ctx, chatID)
		b.importProducts(ctx, chatID, msg.Document)

	default:
		b.reply(chatID, helpText)
	}
}

func (b *Bot) showProduct(ctx context.Context, chatID int64, no string) {
	p, err := b.catalog.Get(ctx, no)
	if err != nil {
		b.replyErr(chatID, err)
		return
	}
	b.reply(chatID, productText(p))
}

func (b *Bot) showArchive(ctx context.Context, chatID int64, no string) {
	recs, total, err := b.archive.Query(ctx, archive.Filter{No: no}, archiveLimit, 0)
	if err != nil {
		b.replyErr(chatID, err)
		return
	}
	if total == 0 {
		b.reply(chatID, "No archived processes.")
		return
	}
	parts := make([]string, 0, len(recs)+1)
	parts = append(parts, fmt.Sprintf("Showing %d of %d:", len(recs), total))
	for _, r := range recs {
		parts = append(parts, notify.ArchiveSummary(r))
	}
	b.reply(chatID, strings.Join(parts, "\n\n"))
}

func (b *Bot) showProcess(ctx context.Context, chatID int64, id string) {
	p, err := b.processes.Get(ctx, id)
	if err != nil {
		b.replyErr(chatID, err)
		return
	}
	b.reply(chatID, processText(p))
}

func (b *Bot) importProducts(ctx context.Context, chatID int64, doc *tgbotapi.Document) {
	data, err := b.downloadFile(ctx, doc.FileID)
	if err != nil {
		b.log.Error("download failed", "file", doc.FileName, "err", err)
		b.reply(chatID, "Could not download the file.")
		return
	}
	rows, err := report.ParseProducts(data)
	if err != nil {
		b.reply(chatID, "Could not read the workbook: "+err.Error())
		return
	}

	var created []catalog.Product
	var failed []string
	for _, row := range rows {
		p, err := b.catalog.Register(ctx, row.No, row.MaterialNos)
		if err != nil {
			if apperr.IsInternal(err) {
				b.log.Error("import row failed", "line", row.Line, "no", row.No, "err", err)
			}
			failed = append(failed, fmt.Sprintf("line %d (%s): %s", row.Line, row.No, apperr.Public(err)))
			continue
		}
		created = append(created, *p)
	}
	b.log.Info("products imported from telegram", "file", doc.FileName, "created", len(created), "failed", len(failed))

	text := fmt.Sprintf("Imported %d product(s).", len(created))
	if len(failed) > 0 {
		text += "\nRejected:\n" + strings.Join(failed, "\n")
	}
	b.reply(chatID, text)
}

func (b *Bot) runBackup(ctx context.Context, chatID int64) {
	if b.backup == nil {
		b.reply(chatID, "Backups are disabled.")
		return
	}
	info, err := b.backup.Run(ctx)
	if err != nil {
		b.log.Error("backup from telegram failed", "err", err)
		b.reply(chatID, "Backup failed, check the service log.")
		return
	}
	b.reply(chatID, fmt.Sprintf("Backup written: %s (%d bytes)", info.Key, info.Size))
}

func (b *Bot) replyErr(chatID int64, err error) {
	if apperr.IsInternal(err) {
		b.log.Error("bot request failed", "err", err)
		b.reply(chatID, "Internal error.")
		return
	}
	b.reply(chatID, err.Error())
}
