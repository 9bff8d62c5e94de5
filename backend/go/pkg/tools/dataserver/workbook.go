// Package dataserver 提供一个 MCP 数据服务：query_data 工具从 xlsx 工作簿中读取数据，
// 每个工作表对应一种查询类型，第一行是列名。
// 它是数据仓库 MCP 传输方式在本地开发与联调时的对端。
package dataserver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"AIAssistant/backend/go/internal/models"
)

// Workbook 是加载到内存中的工作簿，加载后只读。
type Workbook struct {
	tables map[string]*models.Table
}

// LoadWorkbook 读取工作簿中的所有工作表，空白表被忽略。
func LoadWorkbook(path string) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("打开工作簿失败: %w", err)
	}
	defer f.Close()

	wb := &Workbook{tables: make(map[string]*models.Table)}
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("读取工作表 %s 失败: %w", name, err)
		}
		if len(rows) == 0 {
			continue
		}
		t := &models.Table{Columns: trimAll(rows[0])}
		for _, r := range rows[1:] {
			row := make([]interface{}, len(t.Columns))
			empty := true
			for i := range t.Columns {
				if i < len(r) {
					row[i] = strings.TrimSpace(r[i])
					empty = empty && row[i] == ""
				} else {
					row[i] = ""
				}
			}
			if !empty {
				t.Rows = append(t.Rows, row)
			}
		}
		wb.tables[strings.TrimSpace(name)] = t
	}
	return wb, nil
}

func trimAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.TrimSpace(s)
	}
	return out
}

// Types 返回工作簿提供的查询类型，按名称排序。
func (w *Workbook) Types() []string {
	types := make([]string, 0, len(w.tables))
	for k := range w.tables {
		types = append(types, k)
	}
	sort.Strings(types)
	return types
}

// Query 按参数过滤一种查询类型的数据。
// 与列名同名的参数按值相等过滤，limit 限制行数，其他参数（例如 range_time）被忽略。
func (w *Workbook) Query(queryType string, params map[string]interface{}) (*models.Table, bool) {
	src, ok := w.tables[queryType]
	if !ok {
		return nil, false
	}
	index := make(map[string]int, len(src.Columns))
	for i, c := range src.Columns {
		index[c] = i
	}

	filters := map[int]string{}
	limit := 0
	for k, v := range params {
		if k == "limit" {
			limit = asLimit(v)
			continue
		}
		if i, ok := index[k]; ok && v != nil {
			filters[i] = fmt.Sprint(v)
		}
	}

	out := &models.Table{Columns: src.Columns, Rows: [][]interface{}{}}
	for _, row := range src.Rows {
		if !matches(row, filters) {
			continue
		}
		out.Rows = append(out.Rows, row)
		if limit > 0 && len(out.Rows) >= limit {
			break
		}
	}
	return out, true
}

func matches(row []interface{}, filters map[int]string) bool {
	for i, want := range filters {
		if fmt.Sprint(row[i]) != want {
			return false
		}
	}
	return true
}

func asLimit(v interface{}) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	}
	return 0
}
