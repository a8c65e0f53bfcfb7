package classifier

import (
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"github.com/yusuke-j0728/gmail-slack-forwarder/internal/domain"
)

// Classifier 按序评估一组正则模式，对邮件主题做相关性判定。
// 模式在构造时预编译；编译失败的模式保留原文，评估时按"该模式未命中"处理，
// 不会让一个坏模式掩盖其余模式的结果。
type Classifier struct {
	patterns []pattern
	mode     domain.MatchMode
	logger   *zap.Logger
}

type pattern struct {
	raw      string
	compiled *regexp.Regexp // 编译失败时为 nil
	err      error
}

// New 创建分类器
//
// 参数:
//   - patterns: 有序模式列表，不得为空
//   - mode: 组合方式（any/all）
func New(patterns []string, mode domain.MatchMode, logger *zap.Logger) (*Classifier, error) {
	if len(patterns) == 0 {
		return nil, fmt.Errorf("pattern list must not be empty")
	}
	if !mode.Valid() {
		return nil, fmt.Errorf("invalid match mode: %q", mode)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	compiled := make([]pattern, 0, len(patterns))
	for _, raw := range patterns {
		p := pattern{raw: raw}
		p.compiled, p.err = regexp.Compile(raw)
		if p.err != nil {
			logger.Warn("pattern failed to compile, treated as non-match",
				zap.String("pattern", raw),
				zap.Error(p.err),
			)
		}
		compiled = append(compiled, p)
	}

	return &Classifier{
		patterns: compiled,
		mode:     mode,
		logger:   logger,
	}, nil
}

// NewSingle 创建单模式分类器（旧版配置的退化形式，等价于 ANY + 单模式）
func NewSingle(raw string, logger *zap.Logger) (*Classifier, error) {
	return New([]string{raw}, domain.MatchAny, logger)
}

// Classify 评估主题字符串，返回分类结果。无副作用。
//
// ANY 模式在第一个命中处短路；ALL 模式评估全部模式以保证诊断信息完整，
// MatchedPattern 均报告按列表顺序第一个命中的模式。
func (c *Classifier) Classify(subject string) domain.ClassificationResult {
	result := domain.ClassificationResult{
		EvaluatedPatterns: c.rawPatterns(),
		Mode:              c.mode,
	}

	switch c.mode {
	case domain.MatchAll:
		allMatched := true
		for _, p := range c.patterns {
			if p.err != nil {
				result.PatternErrors = append(result.PatternErrors, domain.PatternError{
					Pattern: p.raw,
					Reason:  p.err.Error(),
				})
				allMatched = false
				continue
			}
			if p.compiled.MatchString(subject) {
				if result.MatchedPattern == "" {
					result.MatchedPattern = p.raw
				}
			} else {
				allMatched = false
			}
		}
		result.IsMatch = allMatched

	default: // domain.MatchAny
		for _, p := range c.patterns {
			if p.err != nil {
				result.PatternErrors = append(result.PatternErrors, domain.PatternError{
					Pattern: p.raw,
					Reason:  p.err.Error(),
				})
				continue
			}
			if p.compiled.MatchString(subject) {
				result.IsMatch = true
				result.MatchedPattern = p.raw
				break
			}
		}
	}

	return result
}

// rawPatterns 返回模式原文列表（按配置顺序）
func (c *Classifier) rawPatterns() []string {
	raws := make([]string, len(c.patterns))
	for i, p := range c.patterns {
		raws[i] = p.raw
	}
	return raws
}
