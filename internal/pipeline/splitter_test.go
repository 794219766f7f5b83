package pipeline

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitEmptyText(t *testing.T) {
	s := NewSplitter(100, 20)

	require.Nil(t, s.Split(""))
	require.Nil(t, s.Split("   \n\t  "))
}

func TestSplitShortTextSingleChunk(t *testing.T) {
	s := NewSplitter(100, 20)

	chunks := s.Split("一段不需要切分的短文本。")
	require.Len(t, chunks, 1)
	require.Equal(t, "一段不需要切分的短文本。", chunks[0])
}

func TestSplitChunkSizeBound(t *testing.T) {
	s := NewSplitter(100, 20)
	text := strings.Repeat("word apple banana. ", 200)

	for _, chunk := range s.Split(text) {
		require.LessOrEqual(t, len([]rune(chunk)), 100)
	}
}

func TestSplitUniformTextWithoutBoundaries(t *testing.T) {
	// 1200 个无边界字符，size=1000/overlap=150：第一块硬切 1000，
	// 第二块从 850 开始覆盖剩余 350
	s := NewSplitter(1000, 150)
	text := strings.Repeat("A", 1200)

	chunks := s.Split(text)
	require.Len(t, chunks, 2)
	require.Equal(t, 1000, len([]rune(chunks[0])))
	require.Equal(t, 350, len([]rune(chunks[1])))
}

func TestSplitCoverage(t *testing.T) {
	// 每个分块去掉与前一块的重叠后按序拼接必须还原原文
	s := NewSplitter(80, 16)
	// 用互不重复的词元避免重叠探测出现假匹配
	var sb strings.Builder
	for i := 0; i < 120; i++ {
		fmt.Fprintf(&sb, "token%03d。", i)
	}
	text := sb.String()

	chunks := s.Split(text)
	require.NotEmpty(t, chunks)

	reconstructed := chunks[0]
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1])
		cur := []rune(chunks[i])
		// 找到当前块与前一块尾部的最长重叠
		overlap := 0
		for n := min(len(prev), len(cur)); n > 0; n-- {
			if string(prev[len(prev)-n:]) == string(cur[:n]) {
				overlap = n
				break
			}
		}
		reconstructed += string(cur[overlap:])
	}
	require.Equal(t, text, reconstructed)
}

func TestSplitPrefersParagraphBoundary(t *testing.T) {
	s := NewSplitter(100, 10)
	para1 := strings.Repeat("a", 80)
	para2 := strings.Repeat("b", 80)
	text := para1 + "\n\n" + para2

	chunks := s.Split(text)
	require.GreaterOrEqual(t, len(chunks), 2)
	// 切点落在段落边界上：第一块以段落分隔结束，不包含第二段的内容
	require.True(t, strings.HasSuffix(chunks[0], "\n"))
	require.NotContains(t, chunks[0], "b")
}

func TestSplitPrefersSentenceBoundary(t *testing.T) {
	s := NewSplitter(100, 10)
	text := strings.Repeat("c", 70) + ". " + strings.Repeat("d", 70)

	chunks := s.Split(text)
	require.GreaterOrEqual(t, len(chunks), 2)
	require.NotContains(t, chunks[0], "d")
}

func TestNewSplitterFallsBackOnInvalidParams(t *testing.T) {
	s := NewSplitter(0, -1)
	require.Equal(t, DefaultChunkSize, s.chunkSize)
	require.Equal(t, DefaultChunkOverlap, s.chunkOverlap)

	// 重叠量不小于分块大小时收敛到 size/4
	s = NewSplitter(100, 100)
	require.Equal(t, 100, s.chunkSize)
	require.Equal(t, 25, s.chunkOverlap)
}
