package specification

import (
	"errors"
	"fmt"
	"strings"

	"recordhub/domain/file"
	"recordhub/domain/shared"
	"recordhub/domain/user"

	"gorm.io/gorm"
)

// ErrUnsupported 没有对应 SQL 翻译的规格
var ErrUnsupported = errors.New("specification has no SQL translation")

// Clause is one parameterised WHERE fragment.
type Clause struct {
	SQL  string
	Args []any
}

// LeafFunc translates the concrete specifications of one aggregate package.
type LeafFunc[T any] func(spec shared.Specification[T]) (Clause, bool)

// Translator converts domain specifications to GORM queries
// DDD principle: Infrastructure layer handles framework-specific concerns
type Translator[T any] struct {
	leaf LeafFunc[T]
}

func NewTranslator[T any](leaf LeafFunc[T]) *Translator[T] {
	return &Translator[T]{leaf: leaf}
}

// Translate returns a scope for db.Scopes; a nil spec leaves the query alone.
func (t *Translator[T]) Translate(spec shared.Specification[T]) (func(*gorm.DB) *gorm.DB, error) {
	if spec == nil {
		return func(db *gorm.DB) *gorm.DB { return db }, nil
	}
	c, err := t.Clause(spec)
	if err != nil {
		return nil, err
	}
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(c.SQL, c.Args...)
	}, nil
}

// Clause flattens composites into one parenthesised expression.
func (t *Translator[T]) Clause(spec shared.Specification[T]) (Clause, error) {
	switch s := spec.(type) {
	case shared.AndSpecification[T]:
		return t.binary("AND", s.Left, s.Right)
	case shared.OrSpecification[T]:
		return t.binary("OR", s.Left, s.Right)
	case shared.NotSpecification[T]:
		inner, err := t.Clause(s.Spec)
		if err != nil {
			return Clause{}, err
		}
		return Clause{SQL: "NOT (" + inner.SQL + ")", Args: inner.Args}, nil
	}
	if c, ok := t.leaf(spec); ok {
		return c, nil
	}
	return Clause{}, fmt.Errorf("%w: %T", ErrUnsupported, spec)
}

func (t *Translator[T]) binary(op string, left, right shared.Specification[T]) (Clause, error) {
	l, err := t.Clause(left)
	if err != nil {
		return Clause{}, err
	}
	r, err := t.Clause(right)
	if err != nil {
		return Clause{}, err
	}
	return Clause{
		SQL:  "(" + l.SQL + ") " + op + " (" + r.SQL + ")",
		Args: append(append([]any{}, l.Args...), r.Args...),
	}, nil
}

// containsPattern escapes LIKE wildcards with '!'
func containsPattern(q string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return "%" + r.Replace(strings.ToLower(q)) + "%"
}

func contains(column, q string) Clause {
	return Clause{SQL: "LOWER(" + column + ") LIKE ? ESCAPE '!'", Args: []any{containsPattern(q)}}
}

func eq(column string, v any) Clause {
	return Clause{SQL: column + " = ?", Args: []any{v}}
}

func normalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

// ============================================================================
// 各聚合的具体规格
// ============================================================================

func UserClause(spec shared.Specification[*user.User]) (Clause, bool) {
	switch s := spec.(type) {
	case user.ByEmailSpecification:
		return eq("email", normalizeEmail(s.Email)), true
	case user.EmailContainsSpecification:
		return contains("email", s.Query), true
	case user.ByStatusSpecification:
		return eq("status", string(s.Status)), true
	case user.ByRoleSpecification:
		return eq("role", string(s.Role)), true
	}
	return Clause{}, false
}

func AuthCodeClause(spec shared.Specification[*user.AuthCode]) (Clause, bool) {
	switch s := spec.(type) {
	case user.AuthCodeByEmailSpecification:
		return eq("email", normalizeEmail(s.Email)), true
	case user.AuthCodeByStatusSpecification:
		return eq("status", string(s.Status)), true
	case user.AuthCodeEmailContainsSpecification:
		return contains("email", s.Query), true
	}
	return Clause{}, false
}

func FileClause(spec shared.Specification[*file.File]) (Clause, bool) {
	switch s := spec.(type) {
	case file.ByCategorySpecification:
		return eq("category", string(s.Category)), true
	case file.ByExtensionSpecification:
		return eq("extension", strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s.Extension), "."))), true
	case file.ByDeletedSpecification:
		return eq("is_deleted", s.Deleted), true
	case file.NameContainsSpecification:
		return contains("name", s.Query), true
	}
	return Clause{}, false
}

var (
	Users     = NewTranslator[*user.User](UserClause)
	AuthCodes = NewTranslator[*user.AuthCode](AuthCodeClause)
	Files     = NewTranslator[*file.File](FileClause)
)
