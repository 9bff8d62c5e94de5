package models

// ExportRequest 描述一次文件导出。Tables 不为空时表格格式优先使用它，否则使用 Markdown 文本。
type ExportRequest struct {
	TaskID   string
	Name     string // 不含扩展名的文件名
	Format   string // markdown、xlsx 或 docx
	Title    string
	Markdown string
	Tables   map[string]*Table
}
