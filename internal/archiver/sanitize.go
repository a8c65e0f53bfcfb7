package archiver

import (
	"regexp"
	"strings"
	"time"
)

// 文件夹/文件名净化规则：层级存储不接受的字符一律剔除，
// 连续空白折叠为单个空格，最终截断到固定长度。
const maxNameLength = 100

var (
	illegalNameChars = regexp.MustCompile(`[\\/:*?"<>|#\[\]{}]`)
	whitespaceRuns   = regexp.MustCompile(`\s+`)
)

// sanitizeName 净化名字字符串。结果可能为空（调用方负责兜底）。
func sanitizeName(s string) string {
	s = illegalNameChars.ReplaceAllString(s, "")
	s = whitespaceRuns.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	runes := []rune(s)
	if len(runes) > maxNameLength {
		s = string(runes[:maxNameLength])
		s = strings.TrimSpace(s)
	}
	return s
}

// folderName 由接收日期和净化后的主题生成确定性的文件夹名。
// 同一 (日期, 主题) 恒得同一名字；主题净化后为空时用当前时刻兜底。
func folderName(receivedAt time.Time, subject string, now time.Time) string {
	date := receivedAt.Format("2006-01-02")
	name := sanitizeName(subject)
	if name == "" {
		name = "no-subject-" + now.Format("150405")
	}
	return date + "_" + name
}

// splitExtension 把文件名拆成主干和扩展名（扩展名含点，可为空）
func splitExtension(name string) (base, ext string) {
	idx := strings.LastIndex(name, ".")
	if idx <= 0 { // 隐藏文件（".gitignore"）整体视为主干
		return name, ""
	}
	return name[:idx], name[idx:]
}
