package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/batch-weighing/internal/domain/archive"
	"github.com/Spok95/batch-weighing/internal/infra/logger"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, f.err
}

func record() archive.Record {
	return archive.Record{
		No: "12", BatchNo: "34", ProductNo: "100",
		Duration: 90*time.Second + 400*time.Millisecond,
		Materials: []archive.Weighing{
			{No: "10", Packaging: "Bag", Quantity: 99.5},
		},
	}
}

func TestArchiveSummary(t *testing.T) {
	want := "Process 12 finished\nBatch: 34\nProduct: 100\nDuration: 1m30s\n- 10 (Bag): 99.500"
	assert.Equal(t, want, ArchiveSummary(record()))
}

func TestProcessArchived(t *testing.T) {
	api := &fakeSender{}
	n := NewTelegram(api, 42, logger.Discard())
	require.NoError(t, n.ProcessArchived(context.Background(), record()))
	require.Len(t, api.sent, 1)
	assert.Equal(t, int64(42), api.sent[0].ChatID)

	api.err = errors.New("forbidden")
	require.Error(t, n.ProcessArchived(context.Background(), record()))
}

func TestBackupFinished(t *testing.T) {
	api := &fakeSender{}
	n := NewTelegram(api, 1, logger.Discard())
	n.BackupFinished(true, 2)
	n.BackupFinished(false, 0)
	require.Len(t, api.sent, 2)
	assert.Contains(t, api.sent[0].Text, "2 old generation(s)")
	assert.Contains(t, api.sent[1].Text, "failed")
}
