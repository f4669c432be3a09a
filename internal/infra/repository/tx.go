package repository

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/cityflow/cityflow/internal/domain"
	"github.com/cityflow/cityflow/internal/usecase"
)

type txCtxKey struct{}

// Transactor keeps the open *gorm.DB transaction in the context so that
// repositories called inside fn join it.
type Transactor struct {
	db *gorm.DB
}

func NewTransactor(db *gorm.DB) *Transactor {
	return &Transactor{db: db}
}

func (t *Transactor) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txCtxKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txCtxKey{}, tx))
	})
}

// conn returns the transaction bound to ctx, or db outside of one.
func conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txCtxKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return db.WithContext(ctx)
}

// translate maps gorm errors onto the domain error kinds.
func translate(err error, resource string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domain.NotFoundError{Resource: resource}
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return domain.ConflictError{Message: resource + " already exists"}
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return domain.ValidationError{Message: resource + " references a missing record"}
	default:
		return errors.Wrap(err, resource)
	}
}

var _ usecase.Transactor = (*Transactor)(nil)
