package database

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Job 表示一次文档解析作业及其全部产物。
type Job struct {
	gorm.Model
	JobID        string         `gorm:"uniqueIndex;size:64"`
	Filename     string         `gorm:"size:255"`
	MimeType     string         `gorm:"size:128"`
	SizeBytes    int64
	ObjectKey    string         `gorm:"size:512"`
	RawText      string         `gorm:"type:text"`
	Lifecycle    string         `gorm:"size:32;index"`
	Attempt      int
	Degraded     bool           `gorm:"default:false"`
	ParsedData   datatypes.JSON `gorm:"type:jsonb"` // JSONB 存储最终的 MergedResult
	ErrorCode    string         `gorm:"size:64"`
	ErrorMessage string         `gorm:"size:1024"`
}
