package api

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apidb "github.com/nao1215/bloghub/internal/api/db"
	"github.com/nao1215/bloghub/pkg/middleware"
)

const (
	// defaultPageLimit はページネーションの既定件数。
	defaultPageLimit = 100
	// maxPageLimit はページネーションで指定できる最大件数。
	maxPageLimit = 1000
)

// createPostRequest は記事作成リクエストのJSON構造。
type createPostRequest struct {
	// Title は記事のタイトル。
	Title string `json:"title" binding:"required,min=1,max=200"`
	// Content は記事の本文。
	Content string `json:"content" binding:"required,min=1"`
}

// updatePostRequest は記事更新リクエストのJSON構造。
// nilのフィールドは変更しない。
type updatePostRequest struct {
	// Title は記事のタイトル。
	Title *string `json:"title" binding:"omitempty,min=1,max=200"`
	// Content は記事の本文。
	Content *string `json:"content" binding:"omitempty,min=1"`
}

// postResponse は記事のJSONレスポンス構造。
type postResponse struct {
	// ID は記事ID。
	ID int64 `json:"id"`
	// Title は記事のタイトル。
	Title string `json:"title"`
	// Content は記事の本文。
	Content string `json:"content"`
	// AuthorID は著者の内部ユーザーID。
	AuthorID int64 `json:"author_id"`
	// Author は著者のユーザー情報。
	Author userResponse `json:"author"`
	// CreatedAt は作成日時。
	CreatedAt string `json:"created_at"`
	// UpdatedAt は更新日時。
	UpdatedAt string `json:"updated_at"`
}

// listPostsResponse は記事一覧のJSONレスポンス構造。
type listPostsResponse struct {
	// Items は記事の配列。
	Items []postResponse `json:"items"`
	// Meta はページネーション情報。
	Meta paginationMeta `json:"meta"`
}

// paginationMeta はページネーションのメタ情報。
type paginationMeta struct {
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

// toPostResponse は著者付きのDB行をJSONレスポンスに変換する。
func toPostResponse(p apidb.BlogPost, author apidb.User) postResponse {
	return postResponse{
		ID:        p.ID,
		Title:     p.Title,
		Content:   p.Content,
		AuthorID:  p.AuthorID,
		Author:    toUserResponse(author),
		CreatedAt: p.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: p.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// handleCreatePost は記事作成ハンドラを返す。
// 著者が未登録の場合はトークンのクレームから自動登録する。
func (s *Server) handleCreatePost() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createPostRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "リクエストの形式が不正です", "details": gin.H{"reason": err.Error()}})
			return
		}

		claims, ok := middleware.GetClaims(c)
		if !ok || claims.OID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		author, _, err := s.getOrCreateUser(c.Request.Context(), claims.OID, claims.Name)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "著者の解決に失敗しました"})
			s.logger.Error("著者解決エラー", zap.String("oid", claims.OID), zap.Error(err))
			return
		}

		post, err := s.queries.CreateBlogPost(c.Request.Context(), apidb.CreateBlogPostParams{
			Title:    req.Title,
			Content:  req.Content,
			AuthorID: author.ID,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "記事の作成に失敗しました"})
			s.logger.Error("記事作成エラー", zap.Error(err))
			return
		}

		c.JSON(http.StatusCreated, toPostResponse(post, author))
	}
}

// handleListPosts は記事一覧ハンドラを返す。
// skip/limitクエリパラメータでページネーションする。
func (s *Server) handleListPosts() gin.HandlerFunc {
	return func(c *gin.Context) {
		skip, err := parseQueryInt(c, "skip", 0)
		if err != nil || skip < 0 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "skipは0以上の整数で指定してください"})
			return
		}
		limit, err := parseQueryInt(c, "limit", defaultPageLimit)
		if err != nil || limit < 1 || limit > maxPageLimit {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "limitは1から1000の整数で指定してください"})
			return
		}

		total, err := s.queries.CountBlogPosts(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "記事一覧の取得に失敗しました"})
			s.logger.Error("記事件数取得エラー", zap.Error(err))
			return
		}

		posts, err := s.queries.ListBlogPostsWithAuthor(c.Request.Context(), apidb.ListBlogPostsParams{
			Limit:  limit,
			Offset: skip,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "記事一覧の取得に失敗しました"})
			s.logger.Error("記事一覧取得エラー", zap.Error(err))
			return
		}

		items := make([]postResponse, 0, len(posts))
		for _, p := range posts {
			items = append(items, toPostResponse(p.BlogPost, p.Author))
		}

		c.JSON(http.StatusOK, listPostsResponse{
			Items: items,
			Meta: paginationMeta{
				Total:   total,
				Skip:    skip,
				Limit:   limit,
				HasNext: skip+int64(len(items)) < total,
				HasPrev: skip > 0,
			},
		})
	}
}

// handleGetPost は記事取得ハンドラを返す。
func (s *Server) handleGetPost() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := parsePathID(c)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "記事IDは正の整数で指定してください"})
			return
		}

		post, err := s.queries.GetBlogPostWithAuthor(c.Request.Context(), id)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "記事が見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "記事の取得に失敗しました"})
			s.logger.Error("記事取得エラー", zap.Int64("id", id), zap.Error(err))
			return
		}

		c.JSON(http.StatusOK, toPostResponse(post.BlogPost, post.Author))
	}
}

// handleUpdatePost は記事更新ハンドラを返す。
// 著者本人のみ更新でき、指定されたフィールドだけを変更する。
func (s *Server) handleUpdatePost() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := parsePathID(c)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "記事IDは正の整数で指定してください"})
			return
		}

		var req updatePostRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "リクエストの形式が不正です", "details": gin.H{"reason": err.Error()}})
			return
		}

		post, err := s.queries.GetBlogPostWithAuthor(c.Request.Context(), id)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "記事が見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "記事の取得に失敗しました"})
			s.logger.Error("記事取得エラー", zap.Int64("id", id), zap.Error(err))
			return
		}

		if !isPostOwner(c, post.Author) {
			c.JSON(http.StatusForbidden, gin.H{"error": "この記事を変更する権限がありません"})
			return
		}

		title := post.BlogPost.Title
		if req.Title != nil {
			title = *req.Title
		}
		content := post.BlogPost.Content
		if req.Content != nil {
			content = *req.Content
		}

		updated, err := s.queries.UpdateBlogPost(c.Request.Context(), apidb.UpdateBlogPostParams{
			ID:      id,
			Title:   title,
			Content: content,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "記事の更新に失敗しました"})
			s.logger.Error("記事更新エラー", zap.Int64("id", id), zap.Error(err))
			return
		}

		c.JSON(http.StatusOK, toPostResponse(updated, post.Author))
	}
}

// handleDeletePost は記事削除ハンドラを返す。著者本人のみ削除できる。
func (s *Server) handleDeletePost() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := parsePathID(c)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "記事IDは正の整数で指定してください"})
			return
		}

		post, err := s.queries.GetBlogPostWithAuthor(c.Request.Context(), id)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "記事が見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "記事の取得に失敗しました"})
			s.logger.Error("記事取得エラー", zap.Int64("id", id), zap.Error(err))
			return
		}

		if !isPostOwner(c, post.Author) {
			c.JSON(http.StatusForbidden, gin.H{"error": "この記事を削除する権限がありません"})
			return
		}

		if err := s.queries.DeleteBlogPost(c.Request.Context(), id); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "記事の削除に失敗しました"})
			s.logger.Error("記事削除エラー", zap.Int64("id", id), zap.Error(err))
			return
		}

		c.Status(http.StatusNoContent)
	}
}

// isPostOwner はリクエストユーザーが記事の著者かどうかをOIDで判定する。
func isPostOwner(c *gin.Context, author apidb.User) bool {
	oid := middleware.GetUserOID(c)
	return oid != "" && oid == author.OID
}

// parseQueryInt はクエリパラメータを整数として解析する。
func parseQueryInt(c *gin.Context, name string, defaultValue int64) (int64, error) {
	raw := c.Query(name)
	if raw == "" {
		return defaultValue, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

// parsePathID はパスパラメータidを正の整数として解析する。
func parsePathID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, err
	}
	if id < 1 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}
