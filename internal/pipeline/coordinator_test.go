package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yusuke-j0728/gmail-slack-forwarder/internal/archiver"
	"github.com/yusuke-j0728/gmail-slack-forwarder/internal/classifier"
	"github.com/yusuke-j0728/gmail-slack-forwarder/internal/dispatcher"
	"github.com/yusuke-j0728/gmail-slack-forwarder/internal/domain"
	"github.com/yusuke-j0728/gmail-slack-forwarder/internal/ledger"
	"github.com/yusuke-j0728/gmail-slack-forwarder/internal/storage/memory"
)

// recordingTransport 记录全部投递，可注入主通知失败
type recordingTransport struct {
	units       []domain.DispatchUnit
	failPrimary bool
}

func (f *recordingTransport) PostMessage(_ context.Context, unit domain.DispatchUnit) (domain.ThreadRef, error) {
	if f.failPrimary && len(f.units) == 0 {
		return "", errors.New("slack unavailable")
	}
	f.units = append(f.units, unit)
	return "", nil
}

func (f *recordingTransport) Mode() domain.TransportMode {
	return domain.TransportWebhook
}

type testHarness struct {
	coordinator *Coordinator
	ledgerStore *memory.LedgerStore
	blobStore   *memory.BlobStore
	transport   *recordingTransport
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()

	cls, err := classifier.New([]string{`第\d+回.*部会`}, domain.MatchAny, nil)
	require.NoError(t, err)

	ledgerStore := memory.NewLedgerStore()
	blobStore := memory.NewBlobStore()
	transport := &recordingTransport{}

	led := ledger.New(ledgerStore, ledger.Config{}, nil)
	arc := archiver.New(blobStore, archiver.Config{}, nil)
	dis := dispatcher.New(transport, dispatcher.Config{
		Channel:      "#meetings",
		PreviewLimit: 200,
		ChunkSize:    500,
		MessageDelay: time.Millisecond,
	}, nil)

	return &testHarness{
		coordinator: New(cls, led, arc, dis, Config{}, nil),
		ledgerStore: ledgerStore,
		blobStore:   blobStore,
		transport:   transport,
	}
}

func meetingMessage() *domain.Message {
	return &domain.Message{
		ID:         "msg-kaigi-1",
		Subject:    "第14回部会開催のご案内",
		Sender:     "secretariat@example.jp",
		ReceivedAt: time.Date(2024, 3, 14, 9, 30, 0, 0, time.UTC),
		BodyText:   "次回部会のご案内です。",
		Attachments: []*domain.Attachment{{
			Name: "議事次第.pdf",
			Size: 3,
			Open: func() ([]byte, error) { return []byte("pdf"), nil },
		}},
	}
}

func TestRun_ScenarioA_MatchArchiveNotify(t *testing.T) {
	h := newHarness(t)

	summary := h.coordinator.Run(context.Background(), []*domain.Message{meetingMessage()})

	assert.Equal(t, 1, summary.Checked)
	assert.Equal(t, 1, summary.Processed)
	assert.Zero(t, summary.Skipped)
	assert.Zero(t, summary.Errors)

	// 一条主通知 + 一条附件汇总
	require.Len(t, h.transport.units, 2)
	assert.Contains(t, h.transport.units[0].Body, "第14回部会開催のご案内")
	assert.Contains(t, h.transport.units[0].Body, "✅")
	assert.Contains(t, h.transport.units[1].Body, "保存先フォルダ")

	// 附件已归档，邮件已落账
	files := h.blobStore.Files("2024-03-14_第14回部会開催のご案内")
	assert.Len(t, files, 1)
	entries := h.ledgerStore.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "msg-kaigi-1", entries[0].MessageID)
}

func TestRun_ScenarioB_RerunSkipsRecordedMessage(t *testing.T) {
	h := newHarness(t)

	first := h.coordinator.Run(context.Background(), []*domain.Message{meetingMessage()})
	require.Equal(t, 1, first.Processed)
	unitsAfterFirst := len(h.transport.units)

	// 同一封邮件再跑一轮：直接 SKIPPED，零新投递
	second := h.coordinator.Run(context.Background(), []*domain.Message{meetingMessage()})
	assert.Equal(t, 1, second.Checked)
	assert.Zero(t, second.Processed)
	assert.Equal(t, 1, second.Skipped)
	assert.Len(t, h.transport.units, unitsAfterFirst)

	count, err := h.ledgerStore.CountEntries()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRun_ScenarioC_NoMatchNoSideEffects(t *testing.T) {
	h := newHarness(t)

	msg := meetingMessage()
	msg.ID = "msg-newsletter"
	msg.Subject = "週刊ニュースレター"

	summary := h.coordinator.Run(context.Background(), []*domain.Message{msg})

	assert.Equal(t, 1, summary.Checked)
	assert.Zero(t, summary.Processed)
	assert.Equal(t, 1, summary.Skipped)

	// 零归档、零投递、零落账
	assert.Empty(t, h.transport.units)
	assert.Empty(t, h.blobStore.FolderNames())
	count, err := h.ledgerStore.CountEntries()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRun_PrimaryFailureLeavesMessageUnrecorded(t *testing.T) {
	h := newHarness(t)
	h.transport.failPrimary = true

	summary := h.coordinator.Run(context.Background(), []*domain.Message{meetingMessage()})

	assert.Equal(t, 1, summary.Errors)
	assert.Zero(t, summary.Processed)
	require.Len(t, summary.Digest, 1)
	assert.Contains(t, summary.Digest[0], "msg-kaigi-1")

	// 未落账：下一轮重新评估（至少一次送达语义）
	count, err := h.ledgerStore.CountEntries()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRun_FailureIsolationAcrossBatch(t *testing.T) {
	h := newHarness(t)

	// 第一封附件读取会 panic，第二封正常
	poisoned := meetingMessage()
	poisoned.ID = "msg-poison"
	poisoned.Attachments = []*domain.Attachment{{
		Name: "bad.pdf",
		Size: 1,
		Open: func() ([]byte, error) { panic("corrupted stream") },
	}}
	healthy := meetingMessage()

	summary := h.coordinator.Run(context.Background(), []*domain.Message{poisoned, healthy})

	assert.Equal(t, 2, summary.Checked)
	assert.Equal(t, 1, summary.Errors)
	// 后续邮件不受前一封故障影响
	assert.Equal(t, 1, summary.Processed)
}

func TestRun_MessageCap(t *testing.T) {
	h := newHarness(t)
	h.coordinator.cfg.MaxMessages = 1

	first := meetingMessage()
	second := meetingMessage()
	second.ID = "msg-kaigi-2"

	summary := h.coordinator.Run(context.Background(), []*domain.Message{first, second})
	assert.Equal(t, 1, summary.Checked)
}
