package domain

// MatchMode 多模式匹配的组合方式
type MatchMode string

const (
	MatchAny MatchMode = "any" // 任一模式命中即匹配
	MatchAll MatchMode = "all" // 所有模式均命中才匹配
)

// Valid 判断组合方式是否合法
func (m MatchMode) Valid() bool {
	return m == MatchAny || m == MatchAll
}

// PatternError 单个模式的评估失败（如正则语法错误）。
// 仅影响该模式本身，按非命中处理，不会中断整体评估。
type PatternError struct {
	Pattern string `json:"pattern"`
	Reason  string `json:"reason"`
}

// ClassificationResult 主题分类结果
type ClassificationResult struct {
	IsMatch           bool           `json:"isMatch"`
	MatchedPattern    string         `json:"matchedPattern,omitempty"` // 按列表顺序第一个命中的模式
	EvaluatedPatterns []string       `json:"evaluatedPatterns"`
	Mode              MatchMode      `json:"mode"`
	PatternErrors     []PatternError `json:"patternErrors,omitempty"`
}
