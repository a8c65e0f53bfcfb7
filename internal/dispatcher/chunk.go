package dispatcher

// splitChunks 把字符串按字符数切成有序分块。
// 不丢字不重叠：按顺序拼接全部分块必须精确还原原文。
// 按 rune 切分，避免把多字节字符劈在两条消息之间。
func splitChunks(s string, size int) []string {
	if s == "" {
		return nil
	}
	if size <= 0 {
		return []string{s}
	}

	runes := []rune(s)
	chunks := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

// splitPreview 把正文拆成预览部分和剩余部分。
// 正文不超过阈值时整体作为预览，无剩余。
func splitPreview(body string, limit int) (preview, rest string) {
	if limit <= 0 {
		return "", body
	}
	runes := []rune(body)
	if len(runes) <= limit {
		return body, ""
	}
	return string(runes[:limit]), string(runes[limit:])
}
