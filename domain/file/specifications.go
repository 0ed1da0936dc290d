package file

import (
	"context"
	"strings"

	"recordhub/domain/shared"
)

type ByCategorySpecification struct {
	Category Category
}

func (spec ByCategorySpecification) IsSatisfiedBy(ctx context.Context, entity *File) bool {
	return entity.Category() == spec.Category
}

type ByExtensionSpecification struct {
	Extension string
}

func (spec ByExtensionSpecification) IsSatisfiedBy(ctx context.Context, entity *File) bool {
	return entity.Extension() == normalizeExtension(spec.Extension)
}

type ByDeletedSpecification struct {
	Deleted bool
}

func (spec ByDeletedSpecification) IsSatisfiedBy(ctx context.Context, entity *File) bool {
	return entity.IsDeleted() == spec.Deleted
}

type NameContainsSpecification struct {
	Query string
}

func (spec NameContainsSpecification) IsSatisfiedBy(ctx context.Context, entity *File) bool {
	return strings.Contains(strings.ToLower(entity.Name()), strings.ToLower(spec.Query))
}

// Filter builds the list filter; empty category/extension and a nil deleted
// flag are ignored.
func Filter(category Category, extension string, deleted *bool) shared.Specification[*File] {
	var specs []shared.Specification[*File]
	if category != "" {
		specs = append(specs, ByCategorySpecification{Category: category})
	}
	if extension != "" {
		specs = append(specs, ByExtensionSpecification{Extension: extension})
	}
	if deleted != nil {
		specs = append(specs, ByDeletedSpecification{Deleted: *deleted})
	}
	return shared.And(specs...)
}
