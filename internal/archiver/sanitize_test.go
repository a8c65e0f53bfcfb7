package archiver

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "報告書", "報告書"},
		{"strips illegal characters", `a/b\c:d*e?f"g<h>i|j#k[l]m`, "abcdefghijklm"},
		{"collapses whitespace", "第14回  部会\t開催", "第14回 部会 開催"},
		{"trims", "  padded  ", "padded"},
		{"empty", "", ""},
		{"only illegal chars", `///***`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeName(tt.input))
		})
	}

	t.Run("truncates to max length in runes", func(t *testing.T) {
		long := strings.Repeat("あ", 150)
		got := sanitizeName(long)
		assert.Equal(t, maxNameLength, len([]rune(got)))
	})
}

func TestFolderName(t *testing.T) {
	received := time.Date(2024, 3, 14, 9, 30, 0, 0, time.UTC)
	now := time.Date(2024, 3, 15, 12, 34, 56, 0, time.UTC)

	t.Run("deterministic from date and subject", func(t *testing.T) {
		first := folderName(received, "第14回部会開催のご案内", now)
		second := folderName(received, "第14回部会開催のご案内", now.Add(time.Hour))
		assert.Equal(t, "2024-03-14_第14回部会開催のご案内", first)
		assert.Equal(t, first, second)
	})

	t.Run("empty subject falls back to time-derived name", func(t *testing.T) {
		got := folderName(received, "   ", now)
		assert.Equal(t, "2024-03-14_no-subject-123456", got)
	})
}

func TestSplitExtension(t *testing.T) {
	base, ext := splitExtension("report.pdf")
	assert.Equal(t, "report", base)
	assert.Equal(t, ".pdf", ext)

	base, ext = splitExtension("archive.tar.gz")
	assert.Equal(t, "archive.tar", base)
	assert.Equal(t, ".gz", ext)

	base, ext = splitExtension("README")
	assert.Equal(t, "README", base)
	assert.Empty(t, ext)

	base, ext = splitExtension(".gitignore")
	assert.Equal(t, ".gitignore", base)
	assert.Empty(t, ext)
}
