package db

import (
	"context"
)

const createBlogPost = `
INSERT INTO blog_posts (title, content, author_id)
VALUES (?, ?, ?)
RETURNING id, title, content, author_id, created_at, updated_at
`

// CreateBlogPostParams はCreateBlogPostのパラメータ。
type CreateBlogPostParams struct {
	// Title は記事タイトル。
	Title string
	// Content は記事本文。
	Content string
	// AuthorID は著者ユーザーのID。
	AuthorID int64
}

// CreateBlogPost は新しいブログ記事を作成し、作成された行を返す。
func (q *Queries) CreateBlogPost(ctx context.Context, arg CreateBlogPostParams) (BlogPost, error) {
	row := q.db.QueryRowContext(ctx, createBlogPost, arg.Title, arg.Content, arg.AuthorID)
	var p BlogPost
	err := row.Scan(&p.ID, &p.Title, &p.Content, &p.AuthorID, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

const getBlogPostWithAuthor = `
SELECT p.id, p.title, p.content, p.author_id, p.created_at, p.updated_at,
       u.id, u.oid, u.display_name, u.created_at, u.updated_at
FROM blog_posts p
JOIN users u ON u.id = p.author_id
WHERE p.id = ?
`

// BlogPostWithAuthor は著者情報を結合したブログ記事の行。
type BlogPostWithAuthor struct {
	// BlogPost は記事本体。
	BlogPost BlogPost
	// Author は著者のユーザー行。
	Author User
}

// GetBlogPostWithAuthor はIDでブログ記事を著者情報付きで取得する。
// 存在しない場合はsql.ErrNoRowsを返す。
func (q *Queries) GetBlogPostWithAuthor(ctx context.Context, id int64) (BlogPostWithAuthor, error) {
	row := q.db.QueryRowContext(ctx, getBlogPostWithAuthor, id)
	var r BlogPostWithAuthor
	err := row.Scan(
		&r.BlogPost.ID, &r.BlogPost.Title, &r.BlogPost.Content, &r.BlogPost.AuthorID, &r.BlogPost.CreatedAt, &r.BlogPost.UpdatedAt,
		&r.Author.ID, &r.Author.OID, &r.Author.DisplayName, &r.Author.CreatedAt, &r.Author.UpdatedAt,
	)
	return r, err
}

const listBlogPostsWithAuthor = `
SELECT p.id, p.title, p.content, p.author_id, p.created_at, p.updated_at,
       u.id, u.oid, u.display_name, u.created_at, u.updated_at
FROM blog_posts p
JOIN users u ON u.id = p.author_id
ORDER BY p.created_at DESC, p.id DESC
LIMIT ? OFFSET ?
`

// ListBlogPostsParams はListBlogPostsWithAuthorのパラメータ。
type ListBlogPostsParams struct {
	// Limit は取得する最大件数。
	Limit int64
	// Offset は読み飛ばす件数。
	Offset int64
}

// ListBlogPostsWithAuthor はブログ記事を著者情報付きで新しい順にページング取得する。
func (q *Queries) ListBlogPostsWithAuthor(ctx context.Context, arg ListBlogPostsParams) ([]BlogPostWithAuthor, error) {
	rows, err := q.db.QueryContext(ctx, listBlogPostsWithAuthor, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []BlogPostWithAuthor
	for rows.Next() {
		var r BlogPostWithAuthor
		if err := rows.Scan(
			&r.BlogPost.ID, &r.BlogPost.Title, &r.BlogPost.Content, &r.BlogPost.AuthorID, &r.BlogPost.CreatedAt, &r.BlogPost.UpdatedAt,
			&r.Author.ID, &r.Author.OID, &r.Author.DisplayName, &r.Author.CreatedAt, &r.Author.UpdatedAt,
		); err != nil {
			return nil, err
		}
		posts = append(posts, r)
	}
	return posts, rows.Err()
}

const countBlogPosts = `
SELECT COUNT(*) FROM blog_posts
`

// CountBlogPosts はブログ記事の総数を返す。ページングのメタ情報に使用する。
func (q *Queries) CountBlogPosts(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countBlogPosts)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const updateBlogPost = `
UPDATE blog_posts
SET title = ?, content = ?, updated_at = datetime('now')
WHERE id = ?
RETURNING id, title, content, author_id, created_at, updated_at
`

// UpdateBlogPostParams はUpdateBlogPostのパラメータ。
type UpdateBlogPostParams struct {
	// ID は更新する記事のID。
	ID int64
	// Title は更新後のタイトル。
	Title string
	// Content は更新後の本文。
	Content string
}

// UpdateBlogPost はブログ記事のタイトルと本文を更新し、更新後の行を返す。
func (q *Queries) UpdateBlogPost(ctx context.Context, arg UpdateBlogPostParams) (BlogPost, error) {
	row := q.db.QueryRowContext(ctx, updateBlogPost, arg.Title, arg.Content, arg.ID)
	var p BlogPost
	err := row.Scan(&p.ID, &p.Title, &p.Content, &p.AuthorID, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

const deleteBlogPost = `
DELETE FROM blog_posts
WHERE id = ?
`

// DeleteBlogPost はブログ記事を削除する。
func (q *Queries) DeleteBlogPost(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, deleteBlogPost, id)
	return err
}

const deleteAllBlogPosts = `
DELETE FROM blog_posts
`

// DeleteAllBlogPosts は全ブログ記事を削除する。シーダーのクリア処理で使用する。
func (q *Queries) DeleteAllBlogPosts(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteAllBlogPosts)
	return err
}
