package webclient

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

// newWebTestServer はモックAPIを背後に持つWebクライアントサーバーを生成する。
func newWebTestServer(t *testing.T, api http.HandlerFunc) *Server {
	t.Helper()
	ts := httptest.NewServer(api)
	t.Cleanup(ts.Close)

	cfg := newClientConfig()
	cfg.APIBaseURL = ts.URL
	cfg.SessionSecret = "web-test-secret"

	s, err := NewServer(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("サーバーの生成に失敗: %v", err)
	}
	return s
}

// sessionCookie は指定したOIDのログインセッションCookieを発行するヘルパー関数。
func sessionCookie(t *testing.T, s *Server, oid string) *http.Cookie {
	t.Helper()
	c, w := newTestContext(t)
	sess := &Session{
		OID:         oid,
		Name:        "tester",
		AccessToken: "test-access-token",
		TokenExpiry: time.Now().Add(time.Hour),
	}
	if err := s.sessions.Issue(c, sess); err != nil {
		t.Fatalf("セッションの発行に失敗: %v", err)
	}
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == sessionCookieName {
			return cookie
		}
	}
	t.Fatal("セッションCookieが発行されていない")
	return nil
}

// TestHandleShowPost は記事詳細ページの表示と編集リンクの出し分けを検証する。
func TestHandleShowPost(t *testing.T) {
	t.Parallel()

	postJSON := `{
		"id": 1, "title": "表示する記事", "content": "本文",
		"author_id": 7,
		"author": {"id": 7, "oid": "owner-oid", "display_name": "alice",
			"created_at": "2026-01-01T00:00:00Z", "updated_at": "2026-01-01T00:00:00Z"},
		"created_at": "2026-01-01T00:00:00Z", "updated_at": "2026-01-01T00:00:00Z"
	}`
	mockAPI := func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/posts/1" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(postJSON))
	}

	t.Run("著者本人には編集リンクが表示される", func(t *testing.T) {
		t.Parallel()
		s := newWebTestServer(t, mockAPI)

		req := httptest.NewRequest(http.MethodGet, "/posts/1", nil)
		req.AddCookie(sessionCookie(t, s, "owner-oid"))
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, body=%s", w.Code, w.Body.String())
		}
		body := w.Body.String()
		if !strings.Contains(body, "alice") {
			t.Error("著者名が表示されていない")
		}
		if !strings.Contains(body, "/posts/1/edit") {
			t.Error("著者本人なのに編集リンクが表示されていない")
		}
	})

	t.Run("他人の記事では編集リンクが表示されない", func(t *testing.T) {
		t.Parallel()
		s := newWebTestServer(t, mockAPI)

		req := httptest.NewRequest(http.MethodGet, "/posts/1", nil)
		req.AddCookie(sessionCookie(t, s, "reader-oid"))
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, body=%s", w.Code, w.Body.String())
		}
		if strings.Contains(w.Body.String(), "/posts/1/edit") {
			t.Error("著者でないのに編集リンクが表示されている")
		}
	})
}
