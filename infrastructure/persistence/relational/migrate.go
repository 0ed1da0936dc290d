package relational

import (
	"fmt"

	"recordhub/infrastructure/persistence/relational/po"

	"gorm.io/gorm"
)

// Models every table owned by the relational adapter.
func Models() []any {
	return []any{
		&po.UserPO{},
		&po.AuthCodePO{},
		&po.FilePO{},
		&po.DispatchFailurePO{},
	}
}

func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
