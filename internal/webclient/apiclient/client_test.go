package apiclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nao1215/bloghub/pkg/httpclient"
)

// newMockAPI はブログAPIのモックサーバーを起動する。
func newMockAPI(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return New(ts.URL)
}

// TestListPosts は記事一覧の取得を検証する。
func TestListPosts(t *testing.T) {
	t.Parallel()

	t.Run("ページネーションパラメータ付きで一覧を取得する", func(t *testing.T) {
		t.Parallel()
		var gotPath string
		var gotQuery string
		client := newMockAPI(t, func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotQuery = r.URL.RawQuery
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{
				"items": [{"id": 1, "title": "記事1", "content": "本文", "author_id": 7,
					"author": {"id": 7, "oid": "oid-7", "display_name": "alice"}}],
				"meta": {"total": 21, "skip": 20, "limit": 10, "has_next": false, "has_prev": true}
			}`))
		})

		list, err := client.ListPosts(context.Background(), 20, 10)
		if err != nil {
			t.Fatalf("ListPostsに失敗: %v", err)
		}
		if gotPath != "/v1/posts" {
			t.Errorf("path: got %q, want /v1/posts", gotPath)
		}
		if gotQuery != "limit=10&skip=20" {
			t.Errorf("query: got %q", gotQuery)
		}
		if len(list.Items) != 1 || list.Items[0].Title != "記事1" {
			t.Errorf("Items: got %+v", list.Items)
		}
		if list.Items[0].Author.OID != "oid-7" || list.Items[0].Author.DisplayName != "alice" {
			t.Errorf("Author: got %+v", list.Items[0].Author)
		}
		if list.Meta.Total != 21 || !list.Meta.HasPrev {
			t.Errorf("Meta: got %+v", list.Meta)
		}
	})
}

// TestPostCRUD は記事操作のパスとメソッドを検証する。
func TestPostCRUD(t *testing.T) {
	t.Parallel()

	t.Run("CreatePostはPOSTで記事を作成する", func(t *testing.T) {
		t.Parallel()
		client := newMockAPI(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/v1/posts" {
				t.Errorf("リクエスト: got %s %s", r.Method, r.URL.Path)
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id": 5, "title": "新規", "content": "本文", "author_id": 1}`))
		})

		post, err := client.CreatePost(context.Background(), PostInput{Title: "新規", Content: "本文"})
		if err != nil {
			t.Fatalf("CreatePostに失敗: %v", err)
		}
		if post.ID != 5 {
			t.Errorf("ID: got %d, want 5", post.ID)
		}
	})

	t.Run("UpdatePostはPUTでIDを指定する", func(t *testing.T) {
		t.Parallel()
		client := newMockAPI(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPut || r.URL.Path != "/v1/posts/9" {
				t.Errorf("リクエスト: got %s %s", r.Method, r.URL.Path)
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id": 9, "title": "更新後", "content": "本文", "author_id": 1}`))
		})

		post, err := client.UpdatePost(context.Background(), 9, PostInput{Title: "更新後", Content: "本文"})
		if err != nil {
			t.Fatalf("UpdatePostに失敗: %v", err)
		}
		if post.Title != "更新後" {
			t.Errorf("Title: got %q", post.Title)
		}
	})

	t.Run("DeletePostはDELETEでIDを指定する", func(t *testing.T) {
		t.Parallel()
		client := newMockAPI(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodDelete || r.URL.Path != "/v1/posts/3" {
				t.Errorf("リクエスト: got %s %s", r.Method, r.URL.Path)
			}
			w.WriteHeader(http.StatusNoContent)
		})

		if err := client.DeletePost(context.Background(), 3); err != nil {
			t.Fatalf("DeletePostに失敗: %v", err)
		}
	})

	t.Run("404は型付きエラーとして返る", func(t *testing.T) {
		t.Parallel()
		client := newMockAPI(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"記事が見つかりません"}`))
		})

		_, err := client.GetPost(context.Background(), 999)
		if !httpclient.IsStatus(err, http.StatusNotFound) {
			t.Errorf("エラー: got %v, want 404のStatusError", err)
		}
	})
}

// TestProfileAndRegister はプロフィール取得とユーザー登録を検証する。
func TestProfileAndRegister(t *testing.T) {
	t.Parallel()

	t.Run("Profileはトークンを伝播してプロフィールを取得する", func(t *testing.T) {
		t.Parallel()
		var gotAuth string
		client := newMockAPI(t, func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"oid": "oid-1", "name": "テスト 太郎", "email": "taro@example.com"}`))
		})

		ctx := httpclient.WithToken(context.Background(), "delegated-token")
		profile, err := client.Profile(ctx)
		if err != nil {
			t.Fatalf("Profileに失敗: %v", err)
		}
		if gotAuth != "Bearer delegated-token" {
			t.Errorf("Authorization: got %q", gotAuth)
		}
		if profile.Name != "テスト 太郎" {
			t.Errorf("Name: got %q", profile.Name)
		}
	})

	t.Run("RegisterUserはユーザー情報を返す", func(t *testing.T) {
		t.Parallel()
		client := newMockAPI(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/v1/users/me" {
				t.Errorf("リクエスト: got %s %s", r.Method, r.URL.Path)
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id": 12, "oid": "oid-1", "display_name": "テスト 太郎"}`))
		})

		user, err := client.RegisterUser(context.Background())
		if err != nil {
			t.Fatalf("RegisterUserに失敗: %v", err)
		}
		if user.ID != 12 {
			t.Errorf("ID: got %d, want 12", user.ID)
		}
	})
}
