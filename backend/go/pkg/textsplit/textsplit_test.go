package textsplit

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplit_WindowsWithOverlap(t *testing.T) {
	s := New(RuneEncoder{}, 4, 1)
	chunks := s.Split("abcdefghij")
	assert.Equal(t, []string{"abcd", "defg", "ghij"}, chunks)
}

func TestSplit_ShortTextUnchanged(t *testing.T) {
	s := New(nil, 100, 10)
	assert.Equal(t, []string{"短文本"}, s.Split("短文本"))
	assert.Nil(t, s.Split(""))
}

func TestSplit_OverlapNotSmallerThanSize(t *testing.T) {
	s := New(RuneEncoder{}, 3, 5)
	chunks := s.Split("abcdefg")
	assert.Equal(t, "abcdefg", strings.Join(chunks, ""))
	assert.Len(t, chunks, 3)
}

func TestCount(t *testing.T) {
	s := New(RuneEncoder{}, 10, 0)
	assert.Equal(t, 3, s.Count("数据表"))
}
