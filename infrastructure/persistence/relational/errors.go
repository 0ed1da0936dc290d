package relational

import (
	"errors"
	"strings"

	"recordhub/domain/shared"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "Duplicate entry") ||
		strings.Contains(errStr, "UNIQUE constraint failed")
}

// writeError 唯一约束冲突额外匹配 shared.ErrConflict
func writeError(entity, op, id string, err error) error {
	if err == nil {
		return nil
	}
	if isDuplicateKeyError(err) {
		err = errors.Join(shared.NewConflictError(entity, entity+" "+id+" already exists"), err)
	}
	return shared.NewPersistenceError(entity, op, err)
}
