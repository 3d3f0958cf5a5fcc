package sessiondb

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/chanakyavasantha/violens/internal/core/session"
	"github.com/ixugo/goddd/pkg/orm"
	"github.com/ixugo/goddd/pkg/web"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func generateMockDB() (*gorm.DB, sqlmock.Sqlmock, error) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		return nil, nil, err
	}
	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 conn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{})
	if err != nil {
		return nil, nil, err
	}
	return db, mock, nil
}

func TestSessionGet(t *testing.T) {
	db, mock, err := generateMockDB()
	if err != nil {
		t.Fatal(err)
	}
	store := NewDB(db).Session()

	rows := sqlmock.NewRows([]string{"id", "mode", "busy"}).
		AddRow("vs1", "home", "idle")
	mock.ExpectQuery(`SELECT \* FROM "sessions" WHERE id=\$1 (.+) LIMIT \$2`).
		WithArgs("vs1", 1).
		WillReturnRows(rows)

	var out session.Session
	if err := store.Get(context.Background(), &out, orm.Where("id=?", "vs1")); err != nil {
		t.Fatal(err)
	}
	if out.Mode != "home" {
		t.Fatalf("期望 mode home，实际 %s", out.Mode)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal("ExpectationsWereMet err:", err)
	}
}

func TestAnalysisFind(t *testing.T) {
	db, mock, err := generateMockDB()
	if err != nil {
		t.Fatal(err)
	}
	store := NewDB(db).Analysis()

	mock.ExpectQuery(`SELECT count\(\*\) FROM "analyses" WHERE session_id = \$1`).
		WithArgs("vs1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT \* FROM "analyses" WHERE session_id = \$1 (.+) LIMIT \$2`).
		WithArgs("vs1", 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "session_id", "summary"}).
			AddRow(1, "vs1", "Video analysis completed."))

	in := session.FindAnalysisInput{SessionID: "vs1"}
	in.PagerFilter = web.PagerFilter{Page: 1, Size: 10}
	items := make([]*session.AnalysisRecord, 0, 10)
	total, err := store.Find(context.Background(), &items, in,
		orm.NewQuery(1).OrderBy("created_at DESC").Where("session_id = ?", "vs1").Encode()...)
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || len(items) != 1 {
		t.Fatalf("期望 1 条记录，实际 total=%d len=%d", total, len(items))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal("ExpectationsWereMet err:", err)
	}
}
