package store

import (
	"regexp"
	"strings"
)

type blockKind int

const (
	blockParagraph blockKind = iota
	blockHeading
	blockList
	blockTable
)

// block 是导出 Office 文件时使用的 Markdown 块，只识别标题、列表、表格与段落。
type block struct {
	kind  blockKind
	level int
	text  string
	rows  [][]string
}

var (
	headingRe   = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
	listRe      = regexp.MustCompile(`^\s*(?:[-*+]|\d+\.)\s+(.*)$`)
	separatorRe = regexp.MustCompile(`^\|?\s*:?-{3,}:?\s*(\|\s*:?-{3,}:?\s*)*\|?$`)
)

func parseMarkdown(text string) []block {
	var blocks []block
	var table [][]string
	var para []string

	flushTable := func() {
		if len(table) > 0 {
			blocks = append(blocks, block{kind: blockTable, rows: table})
			table = nil
		}
	}
	flushPara := func() {
		if len(para) > 0 {
			blocks = append(blocks, block{kind: blockParagraph, text: strings.Join(para, " ")})
			para = nil
		}
	}

	for _, raw := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line := strings.TrimSpace(raw)
		if strings.HasPrefix(line, "|") {
			flushPara()
			if !separatorRe.MatchString(line) {
				table = append(table, splitRow(line))
			}
			continue
		}
		flushTable()
		switch {
		case line == "":
			flushPara()
		case headingRe.MatchString(line):
			flushPara()
			m := headingRe.FindStringSubmatch(line)
			blocks = append(blocks, block{kind: blockHeading, level: len(m[1]), text: stripEmphasis(m[2])})
		case listRe.MatchString(raw):
			flushPara()
			blocks = append(blocks, block{kind: blockList, text: stripEmphasis(listRe.FindStringSubmatch(raw)[1])})
		default:
			para = append(para, stripEmphasis(line))
		}
	}
	flushTable()
	flushPara()
	return blocks
}

func splitRow(line string) []string {
	line = strings.TrimSuffix(strings.TrimPrefix(line, "|"), "|")
	cells := strings.Split(line, "|")
	for i, c := range cells {
		cells[i] = strings.TrimSpace(c)
	}
	return cells
}

func stripEmphasis(s string) string {
	return strings.NewReplacer("**", "", "__", "", "`", "").Replace(s)
}

// markdownTables 提取文本中的所有表格，第一行为表头。
func markdownTables(text string) [][][]string {
	var out [][][]string
	for _, b := range parseMarkdown(text) {
		if b.kind == blockTable {
			out = append(out, b.rows)
		}
	}
	return out
}
