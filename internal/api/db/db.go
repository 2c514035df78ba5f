// Package db はAPIサービスのSQLite向けクエリ実行レイヤーを提供する。
// database/sqlの薄いラッパーとして、型付きのクエリメソッドを公開する。
package db

import (
	"context"
	"database/sql"
)

// DBTX はクエリ実行に必要なdatabase/sqlの操作を抽象化する。
// *sql.DBと*sql.Txの両方を受け取れるようにするためのインターフェース。
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries は型付きクエリの実行オブジェクト。
type Queries struct {
	db DBTX
}

// New は新しいQueriesを生成する。
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx はトランザクション上で動作するQueriesを返す。
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}
