package api

import (
	"database/sql"
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	apidb "github.com/nao1215/bloghub/internal/api/db"
	"github.com/nao1215/bloghub/internal/config"
	"github.com/nao1215/bloghub/pkg/middleware"
	"github.com/nao1215/bloghub/pkg/ratelimit"
	"github.com/nao1215/bloghub/pkg/tokenauth"
)

// apiVersion はAPIのバージョンプレフィックス。
const apiVersion = "v1"

// Server はブログAPIサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// queries は型付きクエリの実行オブジェクト。
	queries *apidb.Queries
	// db はSQLiteデータベース接続。
	db *sql.DB
	// validator はBearerトークンの検証器。
	validator *tokenauth.Validator
	// logger は構造化ログ出力用のロガー。
	logger *zap.Logger
	// cfg はAPIサービスの設定。
	cfg *config.API
}

// NewServer は新しいブログAPIサーバーを生成する。
// SQLiteデータベースの初期化とミドルウェアパイプラインの構築を行う。
func NewServer(cfg *config.API, logger *zap.Logger) (*Server, error) {
	sqlDB, err := OpenDB(cfg.DatabasePath, logger)
	if err != nil {
		return nil, err
	}

	validator := tokenauth.NewValidator(tokenauth.Config{
		JWKSURL:       cfg.JWKSEndpoint(),
		Audience:      cfg.Audience,
		Issuers:       cfg.Issuers(),
		RequiredScope: cfg.RequiredScope,
	}, logger)

	limiters := ratelimit.NewSet(ratelimit.DefaultSetConfig(cfg.DefaultRateLimit))

	// ミドルウェアの適用順序には意味がある。リカバリは最外周に置き、
	// 相関IDはログより先、レート制限はハンドラより先に適用する
	router := gin.New()
	router.Use(middleware.Recovery(logger, cfg.IsDevelopment()))
	router.Use(middleware.CorrelationID())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.Metrics())
	router.Use(middleware.CORS(cfg.CORSOrigins))
	router.Use(middleware.RateLimit(limiters))

	s := &Server{
		router:    router,
		port:      cfg.Port,
		queries:   apidb.New(sqlDB),
		db:        sqlDB,
		validator: validator,
		logger:    logger,
		cfg:       cfg,
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// Close はデータベース接続を閉じる。
func (s *Server) Close() error {
	return s.db.Close()
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	// ヘルスチェック（認証・レート制限なし）
	s.router.GET("/health", s.handleHealth())
	s.router.GET("/health/live", s.handleLiveness())
	s.router.GET("/health/ready", s.handleReadiness())

	// Prometheusメトリクス
	s.router.GET("/metrics", middleware.MetricsHandler())

	// 認証必須のAPIエンドポイント
	v1 := s.router.Group("/" + apiVersion)
	v1.Use(middleware.JWTAuth(s.validator))
	{
		// プロフィール（クレームから直接返す）
		v1.GET("/profile", s.handleGetProfile())

		// ユーザー登録
		v1.POST("/users/me", s.handleRegisterUser())

		// ブログ記事
		posts := v1.Group("/posts")
		{
			// 記事作成
			posts.POST("", s.handleCreatePost())
			// 記事一覧取得（ページング付き）
			posts.GET("", s.handleListPosts())
			// 記事詳細取得
			posts.GET("/:id", s.handleGetPost())
			// 記事更新（著者のみ）
			posts.PUT("/:id", s.handleUpdatePost())
			// 記事削除（著者のみ）
			posts.DELETE("/:id", s.handleDeletePost())
		}
	}
}
