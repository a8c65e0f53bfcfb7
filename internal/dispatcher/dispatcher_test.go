package dispatcher

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yusuke-j0728/gmail-slack-forwarder/internal/domain"
)

// fakeTransport 记录投递的消息，可按序号注入失败
type fakeTransport struct {
	mode      domain.TransportMode
	threadRef domain.ThreadRef
	units     []domain.DispatchUnit
	failAt    map[int]error // 第 n 次（0 起）投递返回的错误
}

func (f *fakeTransport) PostMessage(_ context.Context, unit domain.DispatchUnit) (domain.ThreadRef, error) {
	n := len(f.units)
	f.units = append(f.units, unit)
	if err, ok := f.failAt[n]; ok {
		return "", err
	}
	if n == 0 {
		return f.threadRef, nil
	}
	return "", nil
}

func (f *fakeTransport) Mode() domain.TransportMode {
	return f.mode
}

func testMessage(body string) *domain.Message {
	return &domain.Message{
		ID:         "msg-1",
		Subject:    "第14回部会開催のご案内",
		Sender:     "secretariat@example.jp",
		ReceivedAt: time.Date(2024, 3, 14, 9, 30, 0, 0, time.UTC),
		BodyText:   body,
	}
}

func testConfig() Config {
	return Config{
		Channel:      "#meetings",
		PreviewLimit: 20,
		ChunkSize:    30,
		MessageDelay: time.Millisecond,
	}
}

func okResult(folder, stored string) domain.ArchiveResult {
	return domain.ArchiveResult{
		OriginalName: stored,
		StoredName:   stored,
		Status:       domain.ArchiveOK,
		Folder:       &domain.FolderRef{ID: folder, Name: folder, URL: "memory://" + folder},
		File:         &domain.FileRef{ID: stored, URL: "memory://" + folder + "/" + stored},
	}
}

func TestDispatch_ShortBodySingleUnit(t *testing.T) {
	transport := &fakeTransport{mode: domain.TransportWebhook}
	d := New(transport, testConfig(), nil)

	outcome, err := d.Dispatch(context.Background(), testMessage("短い本文"), domain.ClassificationResult{MatchedPattern: `部会`}, nil)
	require.NoError(t, err)

	assert.True(t, outcome.PrimarySent)
	assert.Equal(t, 1, outcome.UnitsSent)
	assert.Zero(t, outcome.UnitsFailed)

	require.Len(t, transport.units, 1)
	body := transport.units[0].Body
	assert.Contains(t, body, "第14回部会開催のご案内")
	assert.Contains(t, body, "secretariat@example.jp")
	assert.Contains(t, body, "短い本文")
	assert.NotContains(t, body, "続き")
}

func TestDispatch_LongBodyChunkRoundTrip(t *testing.T) {
	transport := &fakeTransport{mode: domain.TransportWebhook}
	cfg := testConfig()
	d := New(transport, cfg, nil)

	body := strings.Repeat("あいうえお", 30) // 150 字 > preview 20
	_, err := d.Dispatch(context.Background(), testMessage(body), domain.ClassificationResult{}, nil)
	require.NoError(t, err)

	require.Greater(t, len(transport.units), 1)
	assert.Contains(t, transport.units[0].Body, "…（続きはスレッドへ）")

	// 主通知的预览 + 全部续篇 = 原文（不丢字不重叠）
	var rebuilt strings.Builder
	rebuilt.WriteString(strings.Repeat("あいうえお", 4)) // preview 20 字
	for _, unit := range transport.units[1:] {
		_, chunk, found := strings.Cut(unit.Body, "\n")
		require.True(t, found)
		rebuilt.WriteString(chunk)
	}
	assert.Equal(t, body, rebuilt.String())
}

func TestDispatch_OrderingPrimaryChunksSummary(t *testing.T) {
	transport := &fakeTransport{mode: domain.TransportWebhook}
	d := New(transport, testConfig(), nil)

	body := strings.Repeat("x", 100)
	results := []domain.ArchiveResult{okResult("2024-03-14_部会", "agenda.pdf")}

	_, err := d.Dispatch(context.Background(), testMessage(body), domain.ClassificationResult{}, results)
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(transport.units), 3)
	assert.Contains(t, transport.units[0].Body, "新着メール通知")
	for _, unit := range transport.units[1 : len(transport.units)-1] {
		assert.Contains(t, unit.Body, "（続き")
	}
	// 附件汇总殿后
	last := transport.units[len(transport.units)-1]
	assert.Contains(t, last.Body, "保存先フォルダ")
	assert.Contains(t, last.Body, "2024-03-14_部会")
}

func TestDispatch_AttachmentStatusLines(t *testing.T) {
	transport := &fakeTransport{mode: domain.TransportWebhook}
	d := New(transport, testConfig(), nil)

	results := []domain.ArchiveResult{
		okResult("2024-03-14_部会", "agenda.pdf"),
		{OriginalName: "tool.exe", Status: domain.ArchiveSkipped, Reason: "dangerous file extension .exe"},
		{OriginalName: "photo.png", Status: domain.ArchiveFailed, Reason: "write blob: quota"},
	}

	_, err := d.Dispatch(context.Background(), testMessage("本文"), domain.ClassificationResult{}, results)
	require.NoError(t, err)

	body := transport.units[0].Body
	assert.Contains(t, body, "✅")
	assert.Contains(t, body, "⚠️ tool.exe（dangerous file extension .exe）")
	assert.Contains(t, body, "❌ photo.png（write blob: quota）")
}

func TestDispatch_ThreadedMode(t *testing.T) {
	transport := &fakeTransport{mode: domain.TransportBot, threadRef: "1700000000.000100"}
	d := New(transport, testConfig(), nil)

	body := strings.Repeat("x", 100)
	outcome, err := d.Dispatch(context.Background(), testMessage(body), domain.ClassificationResult{}, []domain.ArchiveResult{okResult("f", "a.pdf")})
	require.NoError(t, err)

	assert.Equal(t, domain.ThreadRef("1700000000.000100"), outcome.Thread)
	require.Greater(t, len(transport.units), 1)
	assert.Empty(t, transport.units[0].Thread)
	for _, unit := range transport.units[1:] {
		assert.Equal(t, domain.ThreadRef("1700000000.000100"), unit.Thread)
	}
}

func TestDispatch_ThreadHandleMissingFallsBackToStateless(t *testing.T) {
	// bot 模式但主通知未返回线程句柄：后续消息退回顶层发送而非中止
	transport := &fakeTransport{mode: domain.TransportBot, threadRef: ""}
	d := New(transport, testConfig(), nil)

	body := strings.Repeat("x", 100)
	outcome, err := d.Dispatch(context.Background(), testMessage(body), domain.ClassificationResult{}, nil)
	require.NoError(t, err)

	assert.True(t, outcome.PrimarySent)
	require.Greater(t, len(transport.units), 1)
	for _, unit := range transport.units[1:] {
		assert.Empty(t, unit.Thread)
	}
}

func TestDispatch_PrimaryFailureFailsDispatch(t *testing.T) {
	transport := &fakeTransport{
		mode:   domain.TransportWebhook,
		failAt: map[int]error{0: errors.New("503 from slack")},
	}
	d := New(transport, testConfig(), nil)

	outcome, err := d.Dispatch(context.Background(), testMessage(strings.Repeat("x", 100)), domain.ClassificationResult{}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDispatchPrimary)
	assert.False(t, outcome.PrimarySent)

	// 主通知失败后不再发送任何后续消息
	assert.Len(t, transport.units, 1)
}

func TestDispatch_FollowUpFailureIsNonFatal(t *testing.T) {
	transport := &fakeTransport{
		mode:   domain.TransportWebhook,
		failAt: map[int]error{1: errors.New("rate limited")},
	}
	d := New(transport, testConfig(), nil)

	body := strings.Repeat("x", 100)
	outcome, err := d.Dispatch(context.Background(), testMessage(body), domain.ClassificationResult{}, nil)
	require.NoError(t, err)

	assert.True(t, outcome.PrimarySent)
	assert.Equal(t, 1, outcome.UnitsFailed)
	// 失败的续篇之后的消息仍然发送
	assert.Greater(t, outcome.UnitsSent, 1)
}
