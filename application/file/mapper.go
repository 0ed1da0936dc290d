package file

import (
	"strings"

	"recordhub/domain/file"
)

// URLPrefixes 每个类别的公开访问路径前缀
type URLPrefixes map[string]string

// DefaultURLPrefixes avatar → /images/avatar, resume → /resume
var DefaultURLPrefixes = URLPrefixes{
	string(file.CategoryAvatar): "/images/avatar",
	string(file.CategoryResume): "/resume",
}

// URLFor joins the category prefix with the stored name.
func (p URLPrefixes) URLFor(f *file.File) string {
	prefix, ok := p[string(f.Category())]
	if !ok {
		prefix = DefaultURLPrefixes[string(f.Category())]
	}
	return strings.TrimRight(prefix, "/") + "/" + f.StoredName()
}

func toFileResponse(f *file.File) *FileResponse {
	return &FileResponse{
		ID:        f.ID(),
		Category:  string(f.Category()),
		Name:      f.Name(),
		Extension: f.Extension(),
		URL:       f.URL(),
		IsDeleted: f.IsDeleted(),
		CreatedAt: f.CreatedAt(),
		UpdatedAt: f.UpdatedAt(),
	}
}

func toFileResponses(files []*file.File) []*FileResponse {
	out := make([]*FileResponse, 0, len(files))
	for _, f := range files {
		out = append(out, toFileResponse(f))
	}
	return out
}
