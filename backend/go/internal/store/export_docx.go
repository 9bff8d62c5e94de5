package store

import (
	"fmt"
	"sort"
	"sync"

	"github.com/unidoc/unioffice/v2/color"
	"github.com/unidoc/unioffice/v2/common/license"
	"github.com/unidoc/unioffice/v2/document"
	"github.com/unidoc/unioffice/v2/measurement"
	"github.com/unidoc/unioffice/v2/schema/soo/wml"

	"AIAssistant/backend/go/internal/models"
)

var (
	licenseOnce sync.Once
	licenseErr  error
)

// setLicense 只在第一次导出 docx 时设置授权。
func setLicense(key string) error {
	licenseOnce.Do(func() {
		if key != "" {
			licenseErr = license.SetMeteredKey(key)
		}
	})
	return licenseErr
}

// writeDOCX 把 Markdown 渲染为 Word 文档，结构化数据追加为表格。
func writeDOCX(path, licenseKey string, req *models.ExportRequest) error {
	if err := setLicense(licenseKey); err != nil {
		return fmt.Errorf("设置 docx 授权失败: %w", err)
	}
	doc := document.New()

	if req.Title != "" {
		addHeading(doc, req.Title, 0)
	}
	for _, b := range parseMarkdown(req.Markdown) {
		switch b.kind {
		case blockHeading:
			addHeading(doc, b.text, b.level)
		case blockList:
			p := doc.AddParagraph()
			p.SetStyle("ListParagraph")
			p.AddRun().AddText("• " + b.text)
		case blockTable:
			addTable(doc, b.rows)
		default:
			doc.AddParagraph().AddRun().AddText(b.text)
		}
	}

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
		addHeading(doc, name, 2)
		rows := [][]string{t.Columns}
		for _, r := range t.Rows {
			cells := make([]string, len(r))
			for i, v := range r {
				cells[i] = fmt.Sprint(v)
			}
			rows = append(rows, cells)
		}
		addTable(doc, rows)
	}

	if err := doc.SaveToFile(path); err != nil {
		return fmt.Errorf("保存 docx 失败: %w", err)
	}
	return nil
}

func addHeading(doc *document.Document, text string, level int) {
	p := doc.AddParagraph()
	if level == 0 {
		p.SetStyle("Title")
	} else {
		p.SetStyle(fmt.Sprintf("Heading%d", level))
	}
	p.AddRun().AddText(text)
}

func addTable(doc *document.Document, rows [][]string) {
	table := doc.AddTable()
	table.Properties().SetWidthPercent(100)
	table.Properties().Borders().SetAll(wml.ST_BorderSingle, color.Auto, 1*measurement.Point)
	for i, r := range rows {
		row := table.AddRow()
		for _, c := range r {
			run := row.AddCell().AddParagraph().AddRun()
			run.Properties().SetBold(i == 0)
			run.AddText(c)
		}
	}
	doc.AddParagraph()
}
