package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yusuke-j0728/gmail-slack-forwarder/internal/domain"
)

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, domain.MatchAny, nil)
	assert.Error(t, err)

	_, err = New([]string{"foo"}, domain.MatchMode("sometimes"), nil)
	assert.Error(t, err)
}

func TestClassify_AnyMode(t *testing.T) {
	c, err := New([]string{`会議`, `第\d+回.*部会`, `報告`}, domain.MatchAny, nil)
	require.NoError(t, err)

	t.Run("first match wins in list order", func(t *testing.T) {
		result := c.Classify("第14回部会開催のご案内")
		assert.True(t, result.IsMatch)
		assert.Equal(t, `第\d+回.*部会`, result.MatchedPattern)
		assert.Equal(t, domain.MatchAny, result.Mode)
		assert.Len(t, result.EvaluatedPatterns, 3)
	})

	t.Run("earlier pattern short-circuits later ones", func(t *testing.T) {
		result := c.Classify("会議と報告")
		assert.True(t, result.IsMatch)
		assert.Equal(t, `会議`, result.MatchedPattern)
	})

	t.Run("no pattern matches", func(t *testing.T) {
		result := c.Classify("週刊ニュースレター")
		assert.False(t, result.IsMatch)
		assert.Empty(t, result.MatchedPattern)
	})

	t.Run("empty subject", func(t *testing.T) {
		result := c.Classify("")
		assert.False(t, result.IsMatch)
	})
}

func TestClassify_AllMode(t *testing.T) {
	c, err := New([]string{`請求`, `\d{4}年`}, domain.MatchAll, nil)
	require.NoError(t, err)

	t.Run("all patterns must match", func(t *testing.T) {
		result := c.Classify("請求書 2024年3月分")
		assert.True(t, result.IsMatch)
		assert.Equal(t, `請求`, result.MatchedPattern)
	})

	t.Run("one miss fails the whole evaluation", func(t *testing.T) {
		result := c.Classify("請求書（日付なし）")
		assert.False(t, result.IsMatch)
		// 诊断信息仍报告第一个命中的模式
		assert.Equal(t, `請求`, result.MatchedPattern)
	})
}

func TestClassify_MalformedPattern(t *testing.T) {
	t.Run("any mode skips the bad pattern", func(t *testing.T) {
		c, err := New([]string{`[invalid`, `ok`}, domain.MatchAny, nil)
		require.NoError(t, err)

		result := c.Classify("ok then")
		assert.True(t, result.IsMatch)
		assert.Equal(t, `ok`, result.MatchedPattern)
		require.Len(t, result.PatternErrors, 1)
		assert.Equal(t, `[invalid`, result.PatternErrors[0].Pattern)
	})

	t.Run("all mode counts the bad pattern as a miss but keeps evaluating", func(t *testing.T) {
		c, err := New([]string{`[invalid`, `ok`}, domain.MatchAll, nil)
		require.NoError(t, err)

		result := c.Classify("ok then")
		assert.False(t, result.IsMatch)
		// 坏模式之后的模式仍被评估，诊断完整
		assert.Equal(t, `ok`, result.MatchedPattern)
		assert.Len(t, result.PatternErrors, 1)
	})
}

func TestNewSingle_LegacyMode(t *testing.T) {
	c, err := NewSingle(`第\d+回.*部会`, nil)
	require.NoError(t, err)

	result := c.Classify("第3回部会の議事録")
	assert.True(t, result.IsMatch)
	assert.Equal(t, domain.MatchAny, result.Mode)
	assert.Len(t, result.EvaluatedPatterns, 1)
}
