// Package textsplit 按 token 数切分长文本，用于超出模型上下文的数据分析。
package textsplit

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Encoder 把文本编码为 token 序列并能还原。
type Encoder interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

type tiktokenEncoder struct {
	tk *tiktoken.Tiktoken
}

func (e tiktokenEncoder) Encode(text string) []int   { return e.tk.Encode(text, nil, nil) }
func (e tiktokenEncoder) Decode(tokens []int) string { return e.tk.Decode(tokens) }

// RuneEncoder 把每个字符当作一个 token，在无法加载词表时使用。
type RuneEncoder struct{}

func (RuneEncoder) Encode(text string) []int {
	runes := []rune(text)
	out := make([]int, len(runes))
	for i, r := range runes {
		out[i] = int(r)
	}
	return out
}

func (RuneEncoder) Decode(tokens []int) string {
	runes := make([]rune, len(tokens))
	for i, t := range tokens {
		runes[i] = rune(t)
	}
	return string(runes)
}

var (
	defaultOnce sync.Once
	defaultEnc  Encoder
	defaultErr  error
)

// NewTiktokenEncoder 加载 cl100k_base 词表，首次调用可能需要下载。
func NewTiktokenEncoder() (Encoder, error) {
	defaultOnce.Do(func() {
		tke, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			defaultErr = fmt.Errorf("failed to get tiktoken encoding: %w", err)
			return
		}
		defaultEnc = tiktokenEncoder{tk: tke}
	})
	return defaultEnc, defaultErr
}

// TokenSplitter 按 token 窗口切分文本，相邻分片重叠 ChunkOverlap 个 token。
type TokenSplitter struct {
	ChunkSize    int
	ChunkOverlap int
	encoder      Encoder
}

// NewTokenSplitter 使用 cl100k_base 词表创建切分器。
func NewTokenSplitter(chunkSize, chunkOverlap int) (*TokenSplitter, error) {
	enc, err := NewTiktokenEncoder()
	if err != nil {
		return nil, err
	}
	return New(enc, chunkSize, chunkOverlap), nil
}

// New 使用给定的编码器创建切分器。
func New(enc Encoder, chunkSize, chunkOverlap int) *TokenSplitter {
	if enc == nil {
		enc = RuneEncoder{}
	}
	return &TokenSplitter{ChunkSize: chunkSize, ChunkOverlap: chunkOverlap, encoder: enc}
}

// Count 返回文本的 token 数。
func (s *TokenSplitter) Count(text string) int {
	return len(s.encoder.Encode(text))
}

// Split 切分文本。ChunkSize 不大于 0 或文本不超过一个窗口时原样返回。
func (s *TokenSplitter) Split(text string) []string {
	if text == "" {
		return nil
	}
	tokens := s.encoder.Encode(text)
	if s.ChunkSize <= 0 || len(tokens) <= s.ChunkSize {
		return []string{text}
	}
	step := s.ChunkSize - s.ChunkOverlap
	if step <= 0 {
		step = s.ChunkSize
	}

	var chunks []string
	for start := 0; start < len(tokens); start += step {
		end := start + s.ChunkSize
		if end > len(tokens) {
			end = len(tokens)
		}
		chunks = append(chunks, s.encoder.Decode(tokens[start:end]))
		if end == len(tokens) {
			break
		}
	}
	return chunks
}
