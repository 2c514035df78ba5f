package db

import (
	"context"
)

const createUser = `
INSERT INTO users (oid, display_name)
VALUES (?, ?)
RETURNING id, oid, display_name, created_at, updated_at
`

// CreateUserParams はCreateUserのパラメータ。
type CreateUserParams struct {
	// OID はMicrosoft Entra IDのオブジェクトID。
	OID string
	// DisplayName は表示名。空でもよい。
	DisplayName string
}

// CreateUser は新しいユーザーを作成し、作成された行を返す。
func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRowContext(ctx, createUser, arg.OID, arg.DisplayName)
	var u User
	err := row.Scan(&u.ID, &u.OID, &u.DisplayName, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

const getUserByOID = `
SELECT id, oid, display_name, created_at, updated_at
FROM users
WHERE oid = ?
`

// GetUserByOID はオブジェクトIDでユーザーを取得する。
// 存在しない場合はsql.ErrNoRowsを返す。
func (q *Queries) GetUserByOID(ctx context.Context, oid string) (User, error) {
	row := q.db.QueryRowContext(ctx, getUserByOID, oid)
	var u User
	err := row.Scan(&u.ID, &u.OID, &u.DisplayName, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

const updateUserDisplayName = `
UPDATE users
SET display_name = ?, updated_at = datetime('now')
WHERE id = ?
`

// UpdateUserDisplayName はユーザーの表示名を更新する。
func (q *Queries) UpdateUserDisplayName(ctx context.Context, id int64, displayName string) error {
	_, err := q.db.ExecContext(ctx, updateUserDisplayName, displayName, id)
	return err
}

const deleteAllUsers = `
DELETE FROM users
`

// DeleteAllUsers は全ユーザーを削除する。シーダーのクリア処理で使用する。
func (q *Queries) DeleteAllUsers(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteAllUsers)
	return err
}
