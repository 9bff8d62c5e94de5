package models

import "time"

// FileDescriptor 描述一个导出的文件产物。
type FileDescriptor struct {
	Filename    string    `json:"filename" bson:"filename"`
	Path        string    `json:"path,omitempty" bson:"path,omitempty"`
	URL         string    `json:"url,omitempty" bson:"url,omitempty"`
	ObjectName  string    `json:"object_name,omitempty" bson:"object_name,omitempty"`
	ContentType string    `json:"content_type,omitempty" bson:"content_type,omitempty"`
	Size        int64     `json:"size" bson:"size"`
	Format      string    `json:"format" bson:"format"`
	TaskID      string    `json:"task_id,omitempty" bson:"task_id,omitempty"`
	ExportTime  time.Time `json:"export_time" bson:"export_time"`
}
