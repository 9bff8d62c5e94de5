package subagents

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func marshalIndent(v interface{}) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprint(v), err
	}
	return string(b), nil
}

// toText 把任意参数转换为文本，字符串原样返回，其余编码为 JSON。
func toText(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	}
	s, _ := marshalIndent(v)
	return s
}

// toChunks 把上游输出转换为分片列表：字符串是一个分片，列表的每一项是一个分片。
// 空白分片会被丢弃。
func toChunks(v interface{}) []string {
	var out []string
	add := func(s string) {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	switch x := v.(type) {
	case nil:
	case []string:
		for _, s := range x {
			add(s)
		}
	case []interface{}:
		for _, item := range x {
			add(toText(item))
		}
	default:
		add(toText(v))
	}
	return out
}

// parseInt64 接受数字或数字字符串。
func parseInt64(v interface{}) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int64:
		return x, true
	case float64:
		if x == float64(int64(x)) {
			return int64(x), true
		}
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err == nil {
			return n, true
		}
	case json.Number:
		n, err := x.Int64()
		if err == nil {
			return n, true
		}
	}
	return 0, false
}
