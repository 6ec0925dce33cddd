package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"notification-service/internal/archive"
	"notification-service/internal/db"
	"notification-service/internal/models"
)

// tableStore implements archive.Store over one table whose rows map onto T.
type tableStore[T any] struct {
	db       *sqlx.DB
	table    string
	columns  []string
	notFound error
}

func newTableStore[T any](database *sqlx.DB, table string, columns []string, notFound error) *tableStore[T] {
	return &tableStore[T]{db: database, table: table, columns: columns, notFound: notFound}
}

func (s *tableStore[T]) selectList() string {
	return strings.Join(s.columns, ", ")
}

// Persist inserts the row or overwrites the row with the same id.
func (s *tableStore[T]) Persist(ctx context.Context, entity T) error {
	named := make([]string, 0, len(s.columns))
	updates := make([]string, 0, len(s.columns))
	for _, col := range s.columns {
		named = append(named, ":"+col)
		if col != "id" {
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
		}
	}
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (id) DO UPDATE SET %s`,
		s.table, s.selectList(), strings.Join(named, ", "), strings.Join(updates, ", "))
	_, err := sqlx.NamedExecContext(ctx, db.Conn(ctx, s.db), query, entity)
	return err
}

// FindByID loads one row; inside a transaction the row is locked.
func (s *tableStore[T]) FindByID(ctx context.Context, id int) (T, error) {
	var entity T
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id=$1%s`, s.selectList(), s.table, db.ForUpdate(ctx))
	err := db.Conn(ctx, s.db).GetContext(ctx, &entity, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return entity, s.notFound
	}
	return entity, err
}

func (s *tableStore[T]) Delete(ctx context.Context, id int) error {
	res, err := db.Conn(ctx, s.db).ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id=$1`, s.table), id)
	if err != nil {
		return err
	}
	return expectAffected(res, s.notFound)
}

func (s *tableStore[T]) FindAllPage(ctx context.Context, page models.Page) ([]T, error) {
	page = page.Normalize()
	items := make([]T, 0)
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY id DESC LIMIT $1 OFFSET $2`, s.selectList(), s.table)
	err := db.Conn(ctx, s.db).SelectContext(ctx, &items, query, page.Limit, page.Offset)
	return items, err
}

// cascadeStore removes dependent rows together with the entity when an
// archived row is purged. Plain Delete keeps them, since recovery moves the
// row back and the dependents must survive.
type cascadeStore[T any] struct {
	*tableStore[T]
	cascade []string
}

func newCascadeStore[T any](database *sqlx.DB, table string, columns []string, notFound error, cascade ...string) *cascadeStore[T] {
	return &cascadeStore[T]{tableStore: newTableStore[T](database, table, columns, notFound), cascade: cascade}
}

func (s *cascadeStore[T]) Purge(ctx context.Context, id int) error {
	return db.NewTransactor(s.db).InTx(ctx, func(ctx context.Context) error {
		if err := s.Delete(ctx, id); err != nil {
			return err
		}
		conn := db.Conn(ctx, s.db)
		for _, stmt := range s.cascade {
			if _, err := conn.ExecContext(ctx, stmt, id); err != nil {
				return err
			}
		}
		return nil
	})
}

func expectAffected(res sql.Result, notFound error) error {
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return notFound
	}
	return nil
}

var (
	_ archive.Store[models.Role] = (*tableStore[models.Role])(nil)
	_ archive.Purger             = (*cascadeStore[models.Role])(nil)
)
