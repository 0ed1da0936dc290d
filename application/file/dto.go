package file

import "time"

// CreateFileRequest 上传文件的元数据，文件内容不经过这里
type CreateFileRequest struct {
	Category  string `json:"category"`
	Name      string `json:"name"`
	Extension string `json:"extension,omitempty"`
}

// ListFilesRequest 空字段不过滤；默认只返回未删除的文件
type ListFilesRequest struct {
	Category       string `json:"category,omitempty"`
	Extension      string `json:"extension,omitempty"`
	IncludeDeleted bool   `json:"include_deleted,omitempty"`
}

type FileResponse struct {
	ID        string    `json:"id"`
	Category  string    `json:"category"`
	Name      string    `json:"name"`
	Extension string    `json:"extension"`
	URL       string    `json:"url"`
	IsDeleted bool      `json:"is_deleted"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
