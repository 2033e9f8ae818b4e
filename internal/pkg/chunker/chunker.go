// Package chunker 提供递归字符分割器。
//
// 文本按 "\n\n"、"\n"、". "、" " 的顺序寻找分隔符，再贪心合并到 size 以内。
// 文本长于 size 且 overlap > 0 时，相邻块共享上一块末尾不超过 overlap 的内容；
// 长度以 rune 计算。
package chunker

import (
	"errors"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"unicode"

	"github.com/kart-io/legal-rag/internal/model"
)

// ErrInvalidChunkConfig 分块参数非法。
var ErrInvalidChunkConfig = errors.New("chunk size must be positive and overlap must be in [0, size)")

// DefaultSeparators 默认分隔符，从大到小。空串表示按字符硬切。
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Splitter 递归字符分割器。
type Splitter struct {
	size       int
	overlap    int
	separators []string
}

// New 创建分割器。
func New(size, overlap int) (*Splitter, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, ErrInvalidChunkConfig
	}
	return &Splitter{
		size:       size,
		overlap:    overlap,
		separators: DefaultSeparators,
	}, nil
}

// Size returns the maximum chunk length in runes.
func (s *Splitter) Size() int { return s.size }

// Overlap returns the maximum carried overlap in runes.
func (s *Splitter) Overlap() int { return s.overlap }

// Split 分割文本。空文本或仅包含空白的文本不产生任何块。
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	runes := []rune(text)
	if len(runes) <= s.size {
		return appendChunk(nil, text)
	}

	// structural 为递归分割得到的片段边界；fine 为任一分隔符之后的位置，
	// 用于回退切分点和重叠起点。
	structural := s.boundaries(runes, 0, len(runes), s.separators, nil)
	fine := separatorEnds(runes, s.separators)
	return s.merge(runes, structural, fine)
}

// boundaries 用第一个出现在 [start, end) 中的分隔符切分，超过 size 的片段
// 继续用后续分隔符递归切分。返回各片段的结束位置，升序。
func (s *Splitter) boundaries(runes []rune, start, end int, separators []string, out []int) []int {
	for i, sep := range separators {
		if sep == "" {
			break
		}
		cuts := indexAfter(runes[start:end], []rune(sep))
		if len(cuts) == 0 {
			continue
		}
		rest := separators[i+1:]
		prev := start
		for _, c := range cuts {
			out = s.piece(runes, prev, start+c, rest, out)
			prev = start + c
		}
		return s.piece(runes, prev, end, rest, out)
	}
	return append(out, end)
}

func (s *Splitter) piece(runes []rune, start, end int, rest []string, out []int) []int {
	if start == end {
		return out
	}
	if end-start > s.size && len(rest) > 0 {
		return s.boundaries(runes, start, end, rest, out)
	}
	return append(out, end)
}

// merge 贪心地把片段合并到 size 以内。块结束位置依次取片段边界、任一分隔符
// 之后的位置，都不可用时按 size 硬切。
func (s *Splitter) merge(runes []rune, structural, fine []int) []string {
	var chunks []string
	start, prevEnd := 0, 0
	for {
		limit := min(start+s.size, len(runes))
		end := lastBetween(structural, prevEnd, limit)
		if end < 0 {
			end = lastBetween(fine, prevEnd, limit)
		}
		if end < 0 {
			end = limit
		}
		chunks = appendChunk(chunks, string(runes[start:end]))
		if end >= len(runes) {
			return chunks
		}
		start, prevEnd = s.nextStart(runes, fine, start, end), end
	}
}

// nextStart 返回下一块的起点。上一块末尾（去掉尾部空白）的最后不超过
// overlap 个 rune 被带入下一块，起点优先落在分隔符之后，否则硬切。
// 带入部分至少包含一个非空白 rune，所以去掉首尾空白后相邻块仍有公共部分。
func (s *Splitter) nextStart(runes []rune, fine []int, start, end int) int {
	if s.overlap == 0 {
		return end
	}
	last := end
	for last > start && unicode.IsSpace(runes[last-1]) {
		last--
	}
	lo := max(last-s.overlap, start+1)
	if lo >= last {
		return end
	}

	next := lo
	if i := sort.SearchInts(fine, lo); i < len(fine) && fine[i] < last {
		next = fine[i]
	}
	if next+s.size <= end {
		return end
	}
	return next
}

// lastBetween 返回 bs 中满足 lo < b <= hi 的最大值，不存在时返回 -1。bs 升序。
func lastBetween(bs []int, lo, hi int) int {
	i := sort.SearchInts(bs, hi+1) - 1
	if i >= 0 && bs[i] > lo {
		return bs[i]
	}
	return -1
}

// separatorEnds 返回任一非空分隔符每次出现之后的位置，升序去重。
func separatorEnds(runes []rune, separators []string) []int {
	var out []int
	for _, sep := range separators {
		if sep != "" {
			out = append(out, indexAfter(runes, []rune(sep))...)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// indexAfter 返回 sep 在 rs 中每次不重叠出现之后的位置。
func indexAfter(rs, sep []rune) []int {
	var out []int
	for i := 0; i+len(sep) <= len(rs); {
		if slices.Equal(rs[i:i+len(sep)], sep) {
			i += len(sep)
			out = append(out, i)
			continue
		}
		i++
	}
	return out
}

func appendChunk(chunks []string, chunk string) []string {
	if chunk = strings.TrimSpace(chunk); chunk != "" {
		chunks = append(chunks, chunk)
	}
	return chunks
}

// DocumentChunks 分割文档文本并附加来源信息。
// source 取文件名（不含目录），fileType 为小写扩展名（不含点）。
func DocumentChunks(text, source, fileType string, s *Splitter) []model.Chunk {
	parts := s.Split(text)
	chunks := make([]model.Chunk, len(parts))
	for i, part := range parts {
		chunks[i] = model.Chunk{
			Text:     part,
			Source:   filepath.Base(source),
			FileType: strings.TrimPrefix(strings.ToLower(fileType), "."),
			Index:    i,
			Type:     model.ResourceTypeDocument,
		}
	}
	return chunks
}
