package store

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"AIAssistant/backend/go/internal/models"
	"AIAssistant/backend/go/pkg/logger"
)

var extensions = map[string]string{
	models.FormatMarkdown: "md",
	models.FormatXLSX:     "xlsx",
	models.FormatDOCX:     "docx",
}

// FileExporter 把内容写入本地导出目录（按轮次分子目录），配置了 Uploader 时再上传到对象存储。
type FileExporter struct {
	Dir           string
	PublicBaseURL string
	LicenseKey    string
	Uploader      Uploader
	Log           *logger.Logger
	Now           func() time.Time
}

func (e *FileExporter) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *FileExporter) Export(ctx context.Context, req *models.ExportRequest) (*models.FileDescriptor, error) {
	format := req.Format
	if format == "" {
		format = models.FormatMarkdown
	}
	ext, ok := extensions[format]
	if !ok {
		return nil, fmt.Errorf("不支持的导出格式: %s", format)
	}
	name := filepath.Base(strings.TrimSpace(req.Name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return nil, fmt.Errorf("导出文件名为空")
	}
	filename := name + "." + ext

	dir := e.Dir
	if dir == "" {
		dir = "exports"
	}
	if req.TaskID != "" {
		dir = filepath.Join(dir, filepath.Base(req.TaskID))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("创建导出目录失败: %w", err)
	}
	path := filepath.Join(dir, filename)

	var err error
	switch format {
	case models.FormatXLSX:
		err = writeXLSX(path, req)
	case models.FormatDOCX:
		err = writeDOCX(path, e.LicenseKey, req)
	default:
		err = os.WriteFile(path, []byte(req.Markdown), 0o644)
	}
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("读取导出文件失败: %w", err)
	}
	fd := &models.FileDescriptor{
		Filename:    filename,
		Path:        path,
		ContentType: detectContentType(path),
		Size:        stat.Size(),
		Format:      format,
		TaskID:      req.TaskID,
		ExportTime:  e.now(),
	}

	switch {
	case e.Uploader != nil:
		object, link, err := e.Uploader.Upload(ctx, path, fd.ContentType)
		if err != nil {
			return nil, err
		}
		fd.ObjectName, fd.URL = object, link
	case e.PublicBaseURL != "":
		fd.URL = strings.TrimRight(e.PublicBaseURL, "/") + "/"
		if req.TaskID != "" {
			fd.URL += url.PathEscape(filepath.Base(req.TaskID)) + "/"
		}
		fd.URL += url.PathEscape(filename)
	}
	if e.Log != nil {
		e.Log.WithPayload(map[string]interface{}{"file": fd.Filename, "size": fd.Size, "format": format}).Info("文件导出完成")
	}
	return fd, nil
}

// detectContentType 优先按内容识别，纯文本按扩展名修正为 markdown。
func detectContentType(path string) string {
	if strings.HasSuffix(path, ".md") {
		return "text/markdown; charset=utf-8"
	}
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return "application/octet-stream"
	}
	return mtype.String()
}
