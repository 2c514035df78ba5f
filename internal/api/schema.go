package api

import (
	"database/sql"
	"embed"
	"fmt"

	"go.uber.org/zap"

	"github.com/nao1215/bloghub/pkg/migration"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// OpenDB は指定パスのSQLiteデータベースを開き、マイグレーションを適用して返す。
// APIサーバーとシーダーの両方から使用する。
func OpenDB(path string, logger *zap.Logger) (*sql.DB, error) {
	sqlDB, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON")
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	if err := migration.Run(sqlDB, migrationFS, "migrations", logger); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return sqlDB, nil
}
