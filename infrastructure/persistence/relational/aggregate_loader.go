package relational

import (
	"context"
	"errors"
	"fmt"

	"recordhub/domain/file"
	"recordhub/domain/shared"
	"recordhub/domain/user"
	"recordhub/infrastructure/persistence/relational/po"

	"gorm.io/gorm"
)

// AggregateLoader reads the committed state of an aggregate by type and id.
type AggregateLoader interface {
	LoadAggregate(ctx context.Context, aggregateType, id string) (shared.AggregateRoot, error)
}

// LoadAggregate 读取已提交的聚合，不经过 Unit of Work
func (s *Store) LoadAggregate(ctx context.Context, aggregateType, id string) (shared.AggregateRoot, error) {
	db := s.db.WithContext(ctx)
	switch aggregateType {
	case user.EntityName:
		var row po.UserPO
		if err := db.First(&row, "id = ?", id).Error; err != nil {
			return nil, loadError(aggregateType, id, err)
		}
		return row.ToDomain(), nil
	case user.AuthCodeEntityName:
		var row po.AuthCodePO
		if err := db.First(&row, "id = ?", id).Error; err != nil {
			return nil, loadError(aggregateType, id, err)
		}
		return row.ToDomain(), nil
	case file.EntityName:
		var row po.FilePO
		if err := db.First(&row, "id = ?", id).Error; err != nil {
			return nil, loadError(aggregateType, id, err)
		}
		return row.ToDomain(), nil
	default:
		return nil, fmt.Errorf("unknown aggregate type %q", aggregateType)
	}
}

func loadError(entity, id string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.NewNotFoundError(entity, id)
	}
	return shared.NewPersistenceError(entity, "load", err)
}

var _ AggregateLoader = (*Store)(nil)
