package webclient

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/nao1215/bloghub/internal/config"
	"github.com/nao1215/bloghub/internal/webclient/apiclient"
	"github.com/nao1215/bloghub/pkg/httpclient"
	"github.com/nao1215/bloghub/pkg/middleware"
)

//go:embed templates/*.html
var templateFS embed.FS

// contextKeySession はGinコンテキストにセッションを格納するためのキー。
const contextKeySession = "session"

// Server はブログAPIを利用するWebクライアントのサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はHTTPサーバーのリッスンポート。
	port string
	// cfg はWebクライアントの設定。
	cfg *config.Client
	// auth はMicrosoft Entra IDとの認可クライアント。
	auth *AuthClient
	// sessions はCookieセッションの管理。
	sessions *SessionManager
	// api はブログAPIの型付きクライアント。
	api *apiclient.Client
	// logger は構造化ログ出力用のロガー。
	logger *zap.Logger
}

// NewServer は新しいWebクライアントサーバーを生成する。
func NewServer(cfg *config.Client, logger *zap.Logger) (*Server, error) {
	auth, err := NewAuthClient(cfg)
	if err != nil {
		return nil, err
	}

	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("テンプレートの読み込みに失敗: %w", err)
	}

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.Recovery(logger, cfg.IsDevelopment()))
	router.Use(middleware.CorrelationID())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RequestLogger(logger))
	router.SetHTMLTemplate(tmpl)

	s := &Server{
		router:   router,
		port:     cfg.Port,
		cfg:      cfg,
		auth:     auth,
		sessions: NewSessionManager(cfg.SessionSecret, !cfg.IsDevelopment()),
		api:      apiclient.New(cfg.APIBaseURL),
		logger:   logger,
	}
	s.setupRoutes()
	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	s.logger.Info("Webクライアントを起動します", zap.String("port", s.port))
	return s.router.Run(":" + s.port)
}

// setupRoutes はルーティングを設定する。
func (s *Server) setupRoutes() {
	s.router.GET("/", s.handleHome())
	s.router.GET("/health", s.handleHealth())
	s.router.GET("/login", s.handleLogin())
	s.router.GET("/callback", s.handleCallback())
	s.router.GET("/logout", s.handleLogout())

	authed := s.router.Group("/")
	authed.Use(s.requireSession())
	{
		authed.GET("/profile", s.handleProfile())
		authed.GET("/posts", s.handleListPosts())
		authed.GET("/posts/new", s.handleNewPostForm())
		authed.POST("/posts/new", s.handleCreatePost())
		authed.GET("/posts/:id", s.handleShowPost())
		authed.GET("/posts/:id/edit", s.handleEditPostForm())
		authed.POST("/posts/:id/edit", s.handleUpdatePost())
		authed.POST("/posts/:id/delete", s.handleDeletePost())
	}
}

// requireSession はセッションを必須とするミドルウェアを返す。
// 未ログインの場合はログインページへリダイレクトする。
// アクセストークンの失効が近い場合はリフレッシュトークンで更新する。
func (s *Server) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := s.sessions.Get(c)
		if err != nil {
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}

		if time.Until(sess.TokenExpiry) < 2*time.Minute && sess.RefreshToken != "" {
			if refreshed, err := s.refreshSession(c, sess); err == nil {
				sess = refreshed
			} else {
				s.logger.Warn("トークンの更新に失敗しました", zap.Error(err))
				s.sessions.Clear(c)
				c.Redirect(http.StatusFound, "/login")
				c.Abort()
				return
			}
		}

		c.Set(contextKeySession, sess)
		c.Next()
	}
}

// refreshSession はリフレッシュトークンでセッションを更新する。
func (s *Server) refreshSession(c *gin.Context, sess *Session) (*Session, error) {
	tokens, err := s.auth.RefreshToken(c.Request.Context(), sess.RefreshToken)
	if err != nil {
		return nil, err
	}

	updated := *sess
	updated.AccessToken = tokens.AccessToken
	if tokens.RefreshToken != "" {
		updated.RefreshToken = tokens.RefreshToken
	}
	updated.TokenExpiry = time.Now().Add(time.Duration(tokens.ExpiresIn) * time.Second)
	if err := s.sessions.Issue(c, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// currentSession はGinコンテキストからセッションを取得する。
func currentSession(c *gin.Context) *Session {
	if v, ok := c.Get(contextKeySession); ok {
		if sess, ok := v.(*Session); ok {
			return sess
		}
	}
	return nil
}

// apiContext はセッションのアクセストークンを伝播するコンテキストを返す。
func apiContext(c *gin.Context, sess *Session) context.Context {
	return httpclient.WithToken(c.Request.Context(), sess.AccessToken)
}

// pageData は全ページ共通のテンプレートデータを構築する。
func (s *Server) pageData(c *gin.Context, title string) gin.H {
	data := gin.H{
		"Title": title,
		"User":  "",
		"Flash": s.sessions.PopFlash(c),
	}
	if sess := currentSession(c); sess != nil {
		data["User"] = sess.Name
	} else if sess, err := s.sessions.Get(c); err == nil {
		data["User"] = sess.Name
	}
	return data
}

// handleHome はトップページのハンドラを返す。
func (s *Server) handleHome() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.HTML(http.StatusOK, "index.html", s.pageData(c, "ホーム"))
	}
}

// handleHealth はヘルスチェックハンドラを返す。
func (s *Server) handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "bloghub-webclient"})
	}
}

// handleLogin は認可エンドポイントへのリダイレクトハンドラを返す。
func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		state, err := s.sessions.NewState(c)
		if err != nil {
			s.renderError(c, http.StatusInternalServerError, "ログイン処理を開始できませんでした")
			return
		}
		c.Redirect(http.StatusFound, s.auth.AuthorizeURL(state))
	}
}

// idTokenClaims はIDトークンから読み取るクレーム。
// トークンエンドポイントからTLS経由で直接取得したものなので署名検証は行わない。
type idTokenClaims struct {
	jwt.RegisteredClaims
	// OID はMicrosoft Entra IDのオブジェクトID。
	OID string `json:"oid"`
	// Name は表示名。
	Name string `json:"name"`
	// Email はメールアドレス。
	Email string `json:"email"`
	// PreferredUsername は優先ユーザー名。
	PreferredUsername string `json:"preferred_username"`
}

// handleCallback は認可コードフローのコールバックハンドラを返す。
// stateを検証し、コードをトークンに交換してセッションを発行する。
func (s *Server) handleCallback() gin.HandlerFunc {
	return func(c *gin.Context) {
		if errCode := c.Query("error"); errCode != "" {
			s.logger.Warn("認可エンドポイントがエラーを返しました",
				zap.String("error", errCode),
				zap.String("description", c.Query("error_description")))
			s.renderError(c, http.StatusBadRequest, "ログインがキャンセルされたか、失敗しました")
			return
		}

		if !s.sessions.VerifyState(c, c.Query("state")) {
			s.renderError(c, http.StatusBadRequest, "stateの検証に失敗しました。もう一度ログインしてください")
			return
		}

		code := c.Query("code")
		if code == "" {
			s.renderError(c, http.StatusBadRequest, "認可コードがありません")
			return
		}

		tokens, err := s.auth.ExchangeCode(c.Request.Context(), code)
		if err != nil {
			s.logger.Error("トークン交換に失敗しました", zap.Error(err))
			s.renderError(c, http.StatusBadGateway, "トークンの取得に失敗しました")
			return
		}

		claims := &idTokenClaims{}
		if tokens.IDToken != "" {
			if _, _, err := jwt.NewParser().ParseUnverified(tokens.IDToken, claims); err != nil {
				s.logger.Warn("IDトークンの解析に失敗しました", zap.Error(err))
			}
		}

		sess := &Session{
			OID:          claims.OID,
			Name:         claims.Name,
			Email:        claims.Email,
			AccessToken:  tokens.AccessToken,
			RefreshToken: tokens.RefreshToken,
			TokenExpiry:  time.Now().Add(time.Duration(tokens.ExpiresIn) * time.Second),
		}

		// API側のデータベースにユーザーを登録する
		if user, err := s.api.RegisterUser(httpclient.WithToken(c.Request.Context(), tokens.AccessToken)); err == nil {
			if sess.Name == "" {
				sess.Name = user.DisplayName
			}
		} else {
			s.logger.Warn("ユーザー登録に失敗しました", zap.Error(err))
		}

		if err := s.sessions.Issue(c, sess); err != nil {
			s.logger.Error("セッションの発行に失敗しました", zap.Error(err))
			s.renderError(c, http.StatusInternalServerError, "セッションの作成に失敗しました")
			return
		}

		s.sessions.SetFlash(c, "ログインしました")
		c.Redirect(http.StatusFound, "/")
	}
}

// handleLogout はログアウトハンドラを返す。
// セッションを破棄し、Entra IDのサインアウトエンドポイントへリダイレクトする。
func (s *Server) handleLogout() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.sessions.Clear(c)
		scheme := "https"
		if s.cfg.IsDevelopment() {
			scheme = "http"
		}
		home := fmt.Sprintf("%s://%s/", scheme, c.Request.Host)
		c.Redirect(http.StatusFound, s.auth.LogoutURL(home))
	}
}

// handleProfile はプロフィールページのハンドラを返す。
func (s *Server) handleProfile() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := currentSession(c)
		profile, err := s.api.Profile(apiContext(c, sess))
		if err != nil {
			s.renderAPIError(c, err, "プロフィールの取得に失敗しました")
			return
		}

		data := s.pageData(c, "プロフィール")
		data["Profile"] = profile
		c.HTML(http.StatusOK, "profile.html", data)
	}
}

// handleListPosts は記事一覧ページのハンドラを返す。
func (s *Server) handleListPosts() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := currentSession(c)
		skip, _ := strconv.ParseInt(c.DefaultQuery("skip", "0"), 10, 64)
		if skip < 0 {
			skip = 0
		}
		limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 64)
		if limit < 1 || limit > 100 {
			limit = 20
		}

		list, err := s.api.ListPosts(apiContext(c, sess), skip, limit)
		if err != nil {
			s.renderAPIError(c, err, "記事一覧の取得に失敗しました")
			return
		}

		prevSkip := skip - limit
		if prevSkip < 0 {
			prevSkip = 0
		}
		data := s.pageData(c, "記事一覧")
		data["Posts"] = list.Items
		data["Meta"] = list.Meta
		data["PrevSkip"] = prevSkip
		data["NextSkip"] = skip + limit
		c.HTML(http.StatusOK, "posts.html", data)
	}
}

// handleShowPost は記事詳細ページのハンドラを返す。
func (s *Server) handleShowPost() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := currentSession(c)
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || id < 1 {
			s.renderError(c, http.StatusNotFound, "記事が見つかりません")
			return
		}

		post, err := s.api.GetPost(apiContext(c, sess), id)
		if err != nil {
			s.renderAPIError(c, err, "記事の取得に失敗しました")
			return
		}

		data := s.pageData(c, post.Title)
		data["Post"] = post
		data["IsOwner"] = sess.OID != "" && post.Author.OID == sess.OID
		c.HTML(http.StatusOK, "post.html", data)
	}
}

// handleNewPostForm は記事作成フォームのハンドラを返す。
func (s *Server) handleNewPostForm() gin.HandlerFunc {
	return func(c *gin.Context) {
		data := s.pageData(c, "新規投稿")
		data["Heading"] = "新規投稿"
		data["Action"] = "/posts/new"
		data["PostTitle"] = ""
		data["PostContent"] = ""
		c.HTML(http.StatusOK, "post_form.html", data)
	}
}

// handleCreatePost は記事作成フォームの送信ハンドラを返す。
func (s *Server) handleCreatePost() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := currentSession(c)
		input := apiclient.PostInput{
			Title:   c.PostForm("title"),
			Content: c.PostForm("content"),
		}

		post, err := s.api.CreatePost(apiContext(c, sess), input)
		if err != nil {
			data := s.pageData(c, "新規投稿")
			data["Heading"] = "新規投稿"
			data["Action"] = "/posts/new"
			data["PostTitle"] = input.Title
			data["PostContent"] = input.Content
			data["Error"] = apiErrorMessage(err, "記事の作成に失敗しました")
			c.HTML(http.StatusUnprocessableEntity, "post_form.html", data)
			return
		}

		s.sessions.SetFlash(c, "記事を投稿しました")
		c.Redirect(http.StatusFound, fmt.Sprintf("/posts/%d", post.ID))
	}
}

// handleEditPostForm は記事編集フォームのハンドラを返す。
func (s *Server) handleEditPostForm() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := currentSession(c)
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || id < 1 {
			s.renderError(c, http.StatusNotFound, "記事が見つかりません")
			return
		}

		post, err := s.api.GetPost(apiContext(c, sess), id)
		if err != nil {
			s.renderAPIError(c, err, "記事の取得に失敗しました")
			return
		}

		data := s.pageData(c, "記事の編集")
		data["Heading"] = "記事の編集"
		data["Action"] = fmt.Sprintf("/posts/%d/edit", id)
		data["PostTitle"] = post.Title
		data["PostContent"] = post.Content
		c.HTML(http.StatusOK, "post_form.html", data)
	}
}

// handleUpdatePost は記事編集フォームの送信ハンドラを返す。
func (s *Server) handleUpdatePost() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := currentSession(c)
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || id < 1 {
			s.renderError(c, http.StatusNotFound, "記事が見つかりません")
			return
		}

		input := apiclient.PostInput{
			Title:   c.PostForm("title"),
			Content: c.PostForm("content"),
		}

		post, err := s.api.UpdatePost(apiContext(c, sess), id, input)
		if err != nil {
			data := s.pageData(c, "記事の編集")
			data["Heading"] = "記事の編集"
			data["Action"] = fmt.Sprintf("/posts/%d/edit", id)
			data["PostTitle"] = input.Title
			data["PostContent"] = input.Content
			data["Error"] = apiErrorMessage(err, "記事の更新に失敗しました")
			c.HTML(http.StatusUnprocessableEntity, "post_form.html", data)
			return
		}

		s.sessions.SetFlash(c, "記事を更新しました")
		c.Redirect(http.StatusFound, fmt.Sprintf("/posts/%d", post.ID))
	}
}

// handleDeletePost は記事削除フォームの送信ハンドラを返す。
func (s *Server) handleDeletePost() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := currentSession(c)
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || id < 1 {
			s.renderError(c, http.StatusNotFound, "記事が見つかりません")
			return
		}

		if err := s.api.DeletePost(apiContext(c, sess), id); err != nil {
			s.renderAPIError(c, err, "記事の削除に失敗しました")
			return
		}

		s.sessions.SetFlash(c, "記事を削除しました")
		c.Redirect(http.StatusFound, "/posts")
	}
}

// renderError はエラーページを表示する。
func (s *Server) renderError(c *gin.Context, status int, message string) {
	data := s.pageData(c, "エラー")
	data["Message"] = message
	c.HTML(status, "error.html", data)
}

// renderAPIError はAPI呼び出しのエラーをユーザー向けに表示する。
// 401の場合はセッションを破棄してログインページへリダイレクトする。
func (s *Server) renderAPIError(c *gin.Context, err error, fallback string) {
	if httpclient.IsStatus(err, http.StatusUnauthorized) {
		s.sessions.Clear(c)
		c.Redirect(http.StatusFound, "/login")
		return
	}

	status := http.StatusBadGateway
	var se *httpclient.StatusError
	if errors.As(err, &se) {
		status = se.StatusCode
	}
	s.logger.Warn("API呼び出しでエラーが発生しました", zap.Int("status", status), zap.Error(err))
	s.renderError(c, status, apiErrorMessage(err, fallback))
}

// apiErrorMessage はAPIエラーからユーザー向けメッセージを取り出す。
func apiErrorMessage(err error, fallback string) string {
	var se *httpclient.StatusError
	if errors.As(err, &se) {
		switch se.StatusCode {
		case http.StatusTooManyRequests:
			return "リクエストが多すぎます。しばらく待ってから再度お試しください"
		case http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity:
			if se.Message != "" {
				return se.Message
			}
		}
	}
	return fallback
}
