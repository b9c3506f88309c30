package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Spok95/batch-weighing/internal/domain/catalog"
	"github.com/Spok95/batch-weighing/internal/domain/process"
)

const maxDownload = 10 << 20

func (b *Bot) send(msg tgbotapi.Chattable) {
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send failed", "err", err)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

// downloadFile fetches a document by its Telegram file id.
func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("get file url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telegram returned status %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownload+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(data) > maxDownload {
		return nil, fmt.Errorf("file exceeds %d bytes", maxDownload)
	}
	return data, nil
}

func productText(p *catalog.Product) string {
	nos := make([]string, 0, len(p.Materials))
	for _, m := range p.Materials {
		nos = append(nos, m.No)
	}
	return fmt.Sprintf("Product %s\nMaterials: %s", p.No, strings.Join(nos, ", "))
}

func processText(p *process.Process) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Process %s\nBatch: %s\nProduct: %s\nStarted: %s",
		p.No, p.BatchNo, p.ProductNo, p.StartTime.Format(time.DateTime))
	for _, m := range p.Materials {
		if m.IsCompleted && m.Quantity != nil {
			fmt.Fprintf(&sb, "\n- %s (%s): %.3f", m.No, m.Packaging, *m.Quantity)
			continue
		}
		fmt.Fprintf(&sb, "\n- %s (%s): weighing", m.No, m.Packaging)
	}
	return sb.String()
}
