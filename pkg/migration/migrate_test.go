package migration

import (
	"database/sql"
	"testing"
	"testing/fstest"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// newTestDB はインメモリSQLiteを開く。
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("インメモリDBの作成に失敗: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestRun はマイグレーションの適用を検証する。
func TestRun(t *testing.T) {
	t.Parallel()

	t.Run("マイグレーションをバージョン順に適用する", func(t *testing.T) {
		t.Parallel()
		db := newTestDB(t)
		fsys := fstest.MapFS{
			"migrations/000002_add_column.up.sql": {
				Data: []byte("ALTER TABLE items ADD COLUMN note TEXT"),
			},
			"migrations/000001_create_items.up.sql": {
				Data: []byte("CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT NOT NULL)"),
			},
		}

		if err := Run(db, fsys, "migrations", zap.NewNop()); err != nil {
			t.Fatalf("Runに失敗: %v", err)
		}

		// 2番目のマイグレーションで追加されたカラムに書き込めること
		if _, err := db.Exec("INSERT INTO items (name, note) VALUES ('a', 'b')"); err != nil {
			t.Errorf("マイグレーション後の書き込みに失敗: %v", err)
		}
	})

	t.Run("適用済みのマイグレーションはスキップする", func(t *testing.T) {
		t.Parallel()
		db := newTestDB(t)
		fsys := fstest.MapFS{
			"migrations/000001_create_items.up.sql": {
				Data: []byte("CREATE TABLE items (id INTEGER PRIMARY KEY)"),
			},
		}

		if err := Run(db, fsys, "migrations", zap.NewNop()); err != nil {
			t.Fatalf("1回目のRunに失敗: %v", err)
		}
		// 再実行してもCREATE TABLEの重複エラーにならない
		if err := Run(db, fsys, "migrations", zap.NewNop()); err != nil {
			t.Fatalf("2回目のRunに失敗: %v", err)
		}

		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
			t.Fatalf("バージョン数の取得に失敗: %v", err)
		}
		if count != 1 {
			t.Errorf("適用済みバージョン数: got %d, want 1", count)
		}
	})

	t.Run("SQLが不正な場合はエラーを返す", func(t *testing.T) {
		t.Parallel()
		db := newTestDB(t)
		fsys := fstest.MapFS{
			"migrations/000001_broken.up.sql": {
				Data: []byte("CREATE BROKEN SQL"),
			},
		}

		if err := Run(db, fsys, "migrations", zap.NewNop()); err == nil {
			t.Fatal("不正なSQLでエラーが返らない")
		}
	})

	t.Run("up.sql以外のファイルは無視する", func(t *testing.T) {
		t.Parallel()
		db := newTestDB(t)
		fsys := fstest.MapFS{
			"migrations/000001_create_items.up.sql": {
				Data: []byte("CREATE TABLE items (id INTEGER PRIMARY KEY)"),
			},
			"migrations/README.md": {
				Data: []byte("# migrations"),
			},
			"migrations/000001_create_items.down.sql": {
				Data: []byte("DROP TABLE items"),
			},
		}

		if err := Run(db, fsys, "migrations", zap.NewNop()); err != nil {
			t.Fatalf("Runに失敗: %v", err)
		}
	})
}
