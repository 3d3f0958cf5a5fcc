package sessiondb

import (
	"context"
	"log/slog"

	"github.com/chanakyavasantha/violens/internal/core/session"
	"github.com/ixugo/goddd/pkg/orm"
	"gorm.io/gorm"
)

var _ session.Storer = DB{}

type DB struct {
	db *gorm.DB
}

func NewDB(db *gorm.DB) DB {
	return DB{db: db}
}

// AutoMigrate 按开关执行建表
func (d DB) AutoMigrate(ok bool) DB {
	if ok {
		if err := d.db.AutoMigrate(&session.Session{}, &session.AnalysisRecord{}); err != nil {
			slog.Error("session auto migrate", "err", err)
		}
	}
	return d
}

func (d DB) Session() session.SessionStorer {
	return sessionStore{db: d.db}
}

func (d DB) Analysis() session.AnalysisStorer {
	return analysisStore{db: d.db}
}

type sessionStore struct {
	db *gorm.DB
}

func (s sessionStore) Find(ctx context.Context, items *[]*session.Session, pager orm.Pager, opts ...orm.QueryOption) (int64, error) {
	return findPage(ctx, s.db, &session.Session{}, items, pager, opts...)
}

func (s sessionStore) Get(ctx context.Context, out *session.Session, opts ...orm.QueryOption) error {
	return apply(s.db.WithContext(ctx), opts).First(out).Error
}

func (s sessionStore) Add(ctx context.Context, in *session.Session) error {
	return s.db.WithContext(ctx).Create(in).Error
}

func (s sessionStore) Edit(ctx context.Context, out *session.Session, changeFn func(*session.Session), opts ...orm.QueryOption) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := apply(tx, opts).First(out).Error; err != nil {
			return err
		}
		changeFn(out)
		return tx.Save(out).Error
	})
}

func (s sessionStore) Del(ctx context.Context, out *session.Session, opts ...orm.QueryOption) error {
	return apply(s.db.WithContext(ctx), opts).Delete(out).Error
}

type analysisStore struct {
	db *gorm.DB
}

func (s analysisStore) Find(ctx context.Context, items *[]*session.AnalysisRecord, pager orm.Pager, opts ...orm.QueryOption) (int64, error) {
	return findPage(ctx, s.db, &session.AnalysisRecord{}, items, pager, opts...)
}

func (s analysisStore) Get(ctx context.Context, out *session.AnalysisRecord, opts ...orm.QueryOption) error {
	return apply(s.db.WithContext(ctx), opts).First(out).Error
}

func (s analysisStore) Add(ctx context.Context, in *session.AnalysisRecord) error {
	return s.db.WithContext(ctx).Create(in).Error
}

func (s analysisStore) Del(ctx context.Context, out *session.AnalysisRecord, opts ...orm.QueryOption) error {
	return apply(s.db.WithContext(ctx), opts).Delete(out).Error
}

func apply(db *gorm.DB, opts []orm.QueryOption) *gorm.DB {
	for _, fn := range opts {
		db = fn(db)
	}
	return db
}

// findPage 统一的 count + 分页查询
func findPage[T any](ctx context.Context, db *gorm.DB, model *T, items *[]*T, pager orm.Pager, opts ...orm.QueryOption) (int64, error) {
	tx := apply(db.WithContext(ctx).Model(model), opts)

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return 0, err
	}
	if total == 0 {
		return 0, nil
	}
	if err := tx.Limit(pager.Limit()).Offset(pager.Offset()).Find(items).Error; err != nil {
		return 0, err
	}
	return total, nil
}
