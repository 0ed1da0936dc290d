package po

import (
	"time"

	"recordhub/domain/file"
)

type FilePO struct {
	ID        string    `gorm:"primaryKey;size:64"`
	Category  string    `gorm:"size:16;index;not null"`
	Name      string    `gorm:"size:255;not null"`
	Extension string    `gorm:"size:16;not null"`
	URL       string    `gorm:"size:512"`
	IsDeleted bool      `gorm:"default:false;index;not null"`
	Version   int       `gorm:"default:0;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (FilePO) TableName() string {
	return "files"
}

func FromFileDomain(f *file.File) *FilePO {
	dto := f.ToDTO()
	return &FilePO{
		ID:        dto.ID,
		Category:  dto.Category,
		Name:      dto.Name,
		Extension: dto.Extension,
		URL:       dto.URL,
		IsDeleted: dto.IsDeleted,
		Version:   dto.Version,
		CreatedAt: dto.CreatedAt,
		UpdatedAt: dto.UpdatedAt,
	}
}

func (po *FilePO) ToDomain() *file.File {
	return file.RebuildFromDTO(file.ReconstructionDTO{
		ID:        po.ID,
		Category:  po.Category,
		Name:      po.Name,
		Extension: po.Extension,
		URL:       po.URL,
		IsDeleted: po.IsDeleted,
		Version:   po.Version,
		CreatedAt: po.CreatedAt,
		UpdatedAt: po.UpdatedAt,
	})
}

func (po *FilePO) Columns() map[string]any {
	return map[string]any{
		"category":   po.Category,
		"name":       po.Name,
		"extension":  po.Extension,
		"url":        po.URL,
		"is_deleted": po.IsDeleted,
	}
}
