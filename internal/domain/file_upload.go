package domain

import "time"

// FileUpload 文件引用（对应 file_uploads 表）
// 核心不读取文件字节，只记录外部 blob 存储的路径与元数据
type FileUpload struct {
	FileID         string `db:"file_id"`         // UUID, PRIMARY KEY
	ResponseID     string `db:"response_id"`     // NOT NULL, FK responses
	OrganizationID string `db:"organization_id"` // NOT NULL（上传方组织）

	FileName    string `db:"file_name"`    // NOT NULL
	StoragePath string `db:"storage_path"` // NOT NULL（外部存储标识）
	ContentType string `db:"content_type"` // NOT NULL
	SizeBytes   int64  `db:"size_bytes"`   // NOT NULL

	UploadedBy string    `db:"uploaded_by"` // NOT NULL, FK users
	CreatedAt  time.Time `db:"created_at"`
}
