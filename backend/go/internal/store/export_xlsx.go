package store

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"AIAssistant/backend/go/internal/models"
)

// maxSheetName 是 Excel 对工作表名称的长度限制。
const maxSheetName = 31

var sheetNameReplacer = strings.NewReplacer(":", "_", "/", "_", "\\", "_", "?", "_", "*", "_", "[", "_", "]", "_")

type sheet struct {
	name string
	rows [][]interface{}
}

// writeXLSX 每张数据表一个工作表，第一行为加粗表头。
// 没有结构化数据时使用 Markdown 中的表格，仍然没有时逐行写入正文。
func writeXLSX(path string, req *models.ExportRequest) error {
	sheets := xlsxSheets(req)

	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("创建表头样式失败: %w", err)
	}

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.name); err != nil {
				return fmt.Errorf("重命名工作表失败: %w", err)
			}
		} else if _, err := f.NewSheet(s.name); err != nil {
			return fmt.Errorf("创建工作表失败: %w", err)
		}
		for r, row := range s.rows {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				return err
			}
			row := row
			if err := f.SetSheetRow(s.name, cell, &row); err != nil {
				return fmt.Errorf("写入工作表失败: %w", err)
			}
		}
		if len(s.rows) > 0 && len(s.rows[0]) > 0 {
			last, err := excelize.CoordinatesToCellName(len(s.rows[0]), 1)
			if err != nil {
				return err
			}
			if err := f.SetCellStyle(s.name, "A1", last, header); err != nil {
				return fmt.Errorf("设置表头样式失败: %w", err)
			}
		}
	}
	f.SetActiveSheet(0)
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("保存 xlsx 失败: %w", err)
	}
	return nil
}

func xlsxSheets(req *models.ExportRequest) []sheet {
	var sheets []sheet
	if len(req.Tables) > 0 {
		names := make([]string, 0, len(req.Tables))
		for name := range req.Tables {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			t := req.Tables[name]
			if t == nil {
				continue
			}
			rows := make([][]interface{}, 0, len(t.Rows)+1)
			head := make([]interface{}, len(t.Columns))
			for i, c := range t.Columns {
				head[i] = c
			}
			rows = append(rows, head)
			rows = append(rows, t.Rows...)
			sheets = append(sheets, sheet{name: sheetName(name, len(sheets)), rows: rows})
		}
	}
	if len(sheets) == 0 {
		for _, table := range markdownTables(req.Markdown) {
			rows := make([][]interface{}, len(table))
			for i, r := range table {
				rows[i] = make([]interface{}, len(r))
				for j, c := range r {
					rows[i][j] = c
				}
			}
			sheets = append(sheets, sheet{name: sheetName("", len(sheets)), rows: rows})
		}
	}
	if len(sheets) == 0 {
		var rows [][]interface{}
		for _, b := range parseMarkdown(req.Markdown) {
			rows = append(rows, []interface{}{b.text})
		}
		sheets = append(sheets, sheet{name: sheetName(req.Title, 0), rows: rows})
	}
	return sheets
}

func sheetName(name string, i int) string {
	if name == "" {
		return fmt.Sprintf("Sheet%d", i+1)
	}
	runes := []rune(sheetNameReplacer.Replace(name))
	if len(runes) > maxSheetName {
		runes = runes[:maxSheetName]
	}
	return string(runes)
}
