// Package apiclient はブログAPIを呼び出す型付きクライアントを提供する。
package apiclient

import (
	"context"
	"fmt"
	"net/url"

	"github.com/nao1215/bloghub/pkg/httpclient"
)

// Profile はAPIが返すプロフィール情報。
type Profile struct {
	// OID はMicrosoft Entra IDのオブジェクトID。
	OID string `json:"oid"`
	// Name は表示名。
	Name string `json:"name"`
	// Email はメールアドレス。
	Email string `json:"email"`
	// PreferredUsername は優先ユーザー名。
	PreferredUsername string `json:"preferred_username"`
}

// User はAPIが返すユーザー情報。
type User struct {
	// ID は内部的なユーザーID。
	ID int64 `json:"id"`
	// OID はMicrosoft Entra IDのオブジェクトID。
	OID string `json:"oid"`
	// DisplayName は表示名。
	DisplayName string `json:"display_name"`
	// CreatedAt は作成日時。
	CreatedAt string `json:"created_at"`
	// UpdatedAt は更新日時。
	UpdatedAt string `json:"updated_at"`
}

// Post はAPIが返す記事情報。
type Post struct {
	// ID は記事ID。
	ID int64 `json:"id"`
	// Title は記事のタイトル。
	Title string `json:"title"`
	// Content は記事の本文。
	Content string `json:"content"`
	// AuthorID は著者の内部ユーザーID。
	AuthorID int64 `json:"author_id"`
	// Author は著者のユーザー情報。
	Author User `json:"author"`
	// CreatedAt は作成日時。
	CreatedAt string `json:"created_at"`
	// UpdatedAt は更新日時。
	UpdatedAt string `json:"updated_at"`
}

// PostList はAPIが返す記事一覧。
type PostList struct {
	// Items は記事の配列。
	Items []Post `json:"items"`
	// Meta はページネーション情報。
	Meta PageMeta `json:"meta"`
}

// PageMeta はページネーションのメタ情報。
type PageMeta struct {
	// Total は全記事数。
	Total int64 `json:"total"`
	// Skip は読み飛ばした件数。
	Skip int64 `json:"skip"`
	// Limit は1ページの件数。
	Limit int64 `json:"limit"`
	// HasNext は次のページが存在するかどうか。
	HasNext bool `json:"has_next"`
	// HasPrev は前のページが存在するかどうか。
	HasPrev bool `json:"has_prev"`
}

// PostInput は記事の作成・更新リクエスト。
type PostInput struct {
	// Title は記事のタイトル。
	Title string `json:"title"`
	// Content は記事の本文。
	Content string `json:"content"`
}

// Client はブログAPIの型付きクライアント。
type Client struct {
	// http はJSON通信を行う下位クライアント。
	http *httpclient.Client
}

// New は新しいブログAPIクライアントを生成する。
func New(baseURL string) *Client {
	return &Client{http: httpclient.New(baseURL)}
}

// Profile は現在のユーザーのプロフィールを取得する。
func (c *Client) Profile(ctx context.Context) (*Profile, error) {
	var p Profile
	if err := c.http.GetJSON(ctx, "/v1/profile", &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// RegisterUser は現在のユーザーをAPI側のデータベースに登録する。
func (c *Client) RegisterUser(ctx context.Context) (*User, error) {
	var u User
	if err := c.http.PostJSON(ctx, "/v1/users/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// ListPosts は記事一覧を取得する。
func (c *Client) ListPosts(ctx context.Context, skip, limit int64) (*PostList, error) {
	q := url.Values{}
	q.Set("skip", fmt.Sprintf("%d", skip))
	q.Set("limit", fmt.Sprintf("%d", limit))

	var list PostList
	if err := c.http.GetJSON(ctx, "/v1/posts?"+q.Encode(), &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// GetPost は指定IDの記事を取得する。
func (c *Client) GetPost(ctx context.Context, id int64) (*Post, error) {
	var p Post
	if err := c.http.GetJSON(ctx, fmt.Sprintf("/v1/posts/%d", id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePost は新しい記事を作成する。
func (c *Client) CreatePost(ctx context.Context, input PostInput) (*Post, error) {
	var p Post
	if err := c.http.PostJSON(ctx, "/v1/posts", input, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdatePost は指定IDの記事を更新する。
func (c *Client) UpdatePost(ctx context.Context, id int64, input PostInput) (*Post, error) {
	var p Post
	if err := c.http.PutJSON(ctx, fmt.Sprintf("/v1/posts/%d", id), input, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DeletePost は指定IDの記事を削除する。
func (c *Client) DeletePost(ctx context.Context, id int64) error {
	return c.http.Delete(ctx, fmt.Sprintf("/v1/posts/%d", id))
}
