package dataquery

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"AIAssistant/backend/go/internal/models"
)

// Counter 计算文本的 token 数。
type Counter func(string) int

func runeCount(s string) int { return len([]rune(s)) }

// RenderMarkdown 把查询结果渲染为 Markdown，每种查询类型一张表。
// maxTokens 大于 0 时，结果按 maxTokens*0.95 拆分成多段，过大的表按行拆分；
// 返回的每一段都可以单独交给模型分析。
func RenderMarkdown(result *models.QueryResult, maxTokens int, count Counter) []string {
	if result == nil || len(result.Data) == 0 {
		return nil
	}
	if count == nil {
		count = runeCount
	}
	limit := 0
	if maxTokens > 0 {
		limit = maxTokens * 95 / 100
	}

	names := make([]string, 0, len(result.Data))
	for name := range result.Data {
		names = append(names, name)
	}
	sort.Strings(names)

	var sections []string
	var current []string
	flush := func() {
		if len(current) > 0 {
			sections = append(sections, strings.Join(current, "\n\n"))
			current = nil
		}
	}
	for _, name := range names {
		for _, part := range renderTable(name, result.Data[name], limit, count) {
			if limit > 0 && len(current) > 0 && count(strings.Join(append(current, part), "\n\n")) > limit {
				flush()
			}
			current = append(current, part)
		}
	}
	flush()
	return sections
}

func tableTitle(name string, rows int) string {
	title := name
	if cn, ok := QueryTypes[name]; ok {
		title = fmt.Sprintf("%s（%s）", name, cn)
	}
	return fmt.Sprintf("## %s\n\n共 %d 条记录", title, rows)
}

// renderTable 渲染一张表，超过 limit 时按行拆分，每段都带表头。
func renderTable(name string, t *models.Table, limit int, count Counter) []string {
	if t == nil || len(t.Columns) == 0 || len(t.Rows) == 0 {
		return []string{tableTitle(name, 0) + "\n\n无数据"}
	}
	head := tableTitle(name, len(t.Rows)) + "\n\n" +
		"| " + strings.Join(t.Columns, " | ") + " |\n" +
		"|" + strings.Repeat(" --- |", len(t.Columns))

	var parts []string
	var sb strings.Builder
	sb.WriteString(head)
	rowsInPart := 0
	for _, row := range t.Rows {
		line := "\n" + formatRow(row)
		if limit > 0 && rowsInPart > 0 && count(sb.String()+line) > limit {
			parts = append(parts, sb.String())
			sb.Reset()
			sb.WriteString(head)
			rowsInPart = 0
		}
		sb.WriteString(line)
		rowsInPart++
	}
	return append(parts, sb.String())
}

func formatRow(row []interface{}) string {
	cells := make([]string, len(row))
	for i, cell := range row {
		switch v := cell.(type) {
		case nil:
			cells[i] = "`null`"
		case float64:
			cells[i] = strconv.FormatFloat(v, 'f', -1, 64)
		case int, int64, bool:
			cells[i] = fmt.Sprintf("%v", v)
		default:
			cells[i] = fmt.Sprintf("`%v`", v)
		}
	}
	return "| " + strings.Join(cells, " | ") + " |"
}
