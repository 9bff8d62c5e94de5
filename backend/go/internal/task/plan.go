package task

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	stepWithColon = regexp.MustCompile(`^\s*(\d+)\.\s*([^:：]+)[:：]\s*(.+)$`)
	stepSimple    = regexp.MustCompile(`^\s*(\d+)\.\s*(.+)$`)
)

const minStepRunes = 10

// ExtractSteps 从任务计划文本中提取步骤标题。
// 优先匹配 "1. 标题: 描述"；没有时退回 "1. 文本"，并忽略过短的行。重复的步骤只保留一次。
func ExtractSteps(text string) []string {
	lines := strings.Split(text, "\n")
	var steps []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if m := stepWithColon.FindStringSubmatch(line); m != nil {
			steps = append(steps, fmt.Sprintf("%s. %s: %s", m[1], strings.TrimSpace(m[2]), strings.TrimSpace(m[3])))
		}
	}
	if len(steps) == 0 {
		for _, line := range lines {
			line = strings.TrimSpace(line)
			if m := stepSimple.FindStringSubmatch(line); m != nil {
				s := strings.TrimSpace(m[2])
				if utf8.RuneCountInString(s) > minStepRunes {
					steps = append(steps, s)
				}
			}
		}
	}

	seen := make(map[string]bool, len(steps))
	out := steps[:0]
	for _, s := range steps {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
