package file

import (
	"path/filepath"
	"sort"
	"strings"
	"time"

	"recordhub/domain/shared"

	"github.com/google/uuid"
)

const (
	EntityName = "file"

	idPrefix = "file-"
)

// Category 文件用途
type Category string

const (
	CategoryAvatar Category = "avatar"
	CategoryResume Category = "resume"
)

// supportedExtensions 每个类别允许的扩展名
var supportedExtensions = map[Category][]string{
	CategoryAvatar: {"jpg", "jpeg", "gif", "png"},
	CategoryResume: {"doc", "docx", "pdf"},
}

// Categories returns every supported category, sorted.
func Categories() []Category {
	out := make([]Category, 0, len(supportedExtensions))
	for c := range supportedExtensions {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Extensions returns the extensions accepted for c.
func Extensions(c Category) []string {
	return append([]string(nil), supportedExtensions[c]...)
}

func ParseCategory(raw string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := supportedExtensions[c]; !ok {
		return "", newValidationError("category", ErrUnsupportedCategory, raw)
	}
	return c, nil
}

func checkExtension(c Category, ext string) error {
	for _, allowed := range supportedExtensions[c] {
		if ext == allowed {
			return nil
		}
	}
	return newValidationError("extension", ErrUnsupportedExtension, string(c)+"/"+ext)
}

// File 上传文件聚合根
type File struct {
	id        string
	category  Category
	name      string
	extension string
	url       string
	isDeleted bool
	version   int
	createdAt time.Time
	updatedAt time.Time
}

// NewFile 创建文件实体
// extension 为空时从文件名推导；扩展名统一小写、不带点。
func NewFile(category, name, extension, url string) (*File, error) {
	c, err := ParseCategory(category)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, newValidationError("name", ErrInvalidName, "")
	}
	ext := normalizeExtension(extension)
	if ext == "" {
		ext = normalizeExtension(filepath.Ext(name))
	}
	if err := checkExtension(c, ext); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &File{
		id:        idPrefix + uuid.New().String(),
		category:  c,
		name:      name,
		extension: ext,
		url:       strings.TrimSpace(url),
		createdAt: now,
		updatedAt: now,
	}, nil
}

func normalizeExtension(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// MarkDeleted 软删除
func (f *File) MarkDeleted() error {
	if f.isDeleted {
		return newValidationError("is_deleted", ErrAlreadyDeleted, f.id)
	}
	f.isDeleted = true
	return nil
}

func (f *File) SetURL(url string) {
	f.url = strings.TrimSpace(url)
}

// StoredName is the name the file is kept under: "<id>.<extension>".
func (f *File) StoredName() string {
	return f.id + "." + f.extension
}

func (f *File) IncrementVersionForSave(at time.Time) {
	f.version++
	f.updatedAt = at
}

func (f *File) Equals(other *File) bool {
	return other != nil && f.id == other.id
}

func (f *File) ID() string            { return f.id }
func (f *File) AggregateType() string { return EntityName }
func (f *File) Category() Category    { return f.category }
func (f *File) Name() string          { return f.name }
func (f *File) Extension() string     { return f.extension }
func (f *File) URL() string           { return f.url }
func (f *File) IsDeleted() bool       { return f.isDeleted }
func (f *File) Version() int          { return f.version }
func (f *File) CreatedAt() time.Time  { return f.createdAt }
func (f *File) UpdatedAt() time.Time  { return f.updatedAt }

func (f *File) Snapshot() map[string]any {
	return map[string]any{
		"id":         f.id,
		"category":   string(f.category),
		"name":       f.name,
		"extension":  f.extension,
		"url":        f.url,
		"is_deleted": f.isDeleted,
		"version":    f.version,
	}
}

// ReconstructionDTO ⚠️ 仅供仓储实现使用
type ReconstructionDTO struct {
	ID        string
	Category  string
	Name      string
	Extension string
	URL       string
	IsDeleted bool
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

func RebuildFromDTO(dto ReconstructionDTO) *File {
	return &File{
		id:        dto.ID,
		category:  Category(dto.Category),
		name:      dto.Name,
		extension: dto.Extension,
		url:       dto.URL,
		isDeleted: dto.IsDeleted,
		version:   dto.Version,
		createdAt: dto.CreatedAt,
		updatedAt: dto.UpdatedAt,
	}
}

func (f *File) ToDTO() ReconstructionDTO {
	return ReconstructionDTO{
		ID:        f.id,
		Category:  string(f.category),
		Name:      f.name,
		Extension: f.extension,
		URL:       f.url,
		IsDeleted: f.isDeleted,
		Version:   f.version,
		CreatedAt: f.createdAt,
		UpdatedAt: f.updatedAt,
	}
}

var _ shared.AggregateRoot = (*File)(nil)
