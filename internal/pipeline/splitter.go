// Package pipeline 实现了贡献文本的摄取管线：切分、元数据组装、向量化入库。
package pipeline

import (
	"strings"
	"unicode"
)

// 管线默认的切分参数。
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 150
)

// Splitter 将长文本按目标大小与重叠量切分为有序分块。
// 计量单位是 rune；切分优先落在段落/句子边界上，范围内找不到边界时
// 才做硬截断。相邻分块按配置的重叠量共享尾部内容，避免跨块语义在检索
// 中完全丢失。
type Splitter struct {
	chunkSize    int
	chunkOverlap int
}

// NewSplitter 创建一个 Splitter。非法参数回退到管线默认值；
// 重叠量必须小于分块大小，否则无法保证推进。
func NewSplitter(chunkSize, chunkOverlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = DefaultChunkOverlap
		if chunkOverlap >= chunkSize {
			chunkOverlap = chunkSize / 4
		}
	}
	return &Splitter{chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

// Split 将文本切分为有序分块。
// 空白文本产生零个分块；每个分块长度不超过目标大小；去掉重叠后按序
// 拼接能还原原文，不丢失任何内容。
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	var chunks []string
	pos := 0
	for pos < len(runes) {
		end := pos + s.chunkSize
		if end >= len(runes) {
			chunks = append(chunks, string(runes[pos:]))
			break
		}

		cut := s.findBoundary(runes, pos, end)
		chunks = append(chunks, string(runes[pos:cut]))

		// 下一块从边界回退 overlap 个 rune 开始；必须保证推进
		next := cut - s.chunkOverlap
		if next <= pos {
			next = cut
		}
		pos = next
	}
	return chunks
}

// findBoundary 在 (floor, end] 范围内从后向前找一个语义边界，返回切点
// （切点是下一块的起始下标，边界字符归入前一块）。按优先级依次找段落、
// 换行、句末标点、空白；都找不到则在 end 处硬截断。
// floor 取窗口中点，避免边界切出过小的分块。
func (s *Splitter) findBoundary(runes []rune, pos, end int) int {
	floor := pos + s.chunkSize/2

	// 段落边界：连续两个换行
	for i := end - 1; i > floor; i-- {
		if runes[i] == '\n' && runes[i-1] == '\n' {
			return i + 1
		}
	}
	// 单个换行
	for i := end - 1; i > floor; i-- {
		if runes[i] == '\n' {
			return i + 1
		}
	}
	// 句末标点
	for i := end - 1; i > floor; i-- {
		if isSentenceTerminator(runes[i]) {
			return i + 1
		}
	}
	// 空白
	for i := end - 1; i > floor; i-- {
		if unicode.IsSpace(runes[i]) {
			return i + 1
		}
	}
	return end
}

func isSentenceTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？':
		return true
	}
	return false
}
