package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// healthCheckTimeout は依存先チェックのタイムアウト。
const healthCheckTimeout = 5 * time.Second

// handleHealth はサービス全体のヘルスチェックハンドラを返す。
// データベースとJWKSエンドポイントの両方を確認する。
func (s *Server) handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()

		checks := gin.H{
			"database": "ok",
			"jwks":     "ok",
		}
		status := http.StatusOK

		if err := s.checkDatabase(ctx); err != nil {
			checks["database"] = "unavailable"
			status = http.StatusServiceUnavailable
			s.logger.Warn("データベースのヘルスチェックに失敗しました", zap.Error(err))
		}
		if err := s.checkJWKS(ctx); err != nil {
			checks["jwks"] = "unavailable"
			status = http.StatusServiceUnavailable
			s.logger.Warn("JWKSのヘルスチェックに失敗しました", zap.Error(err))
		}

		body := gin.H{
			"status":  "healthy",
			"service": "bloghub-api",
			"version": apiVersion,
			"checks":  checks,
		}
		if status != http.StatusOK {
			body["status"] = "unhealthy"
		}
		c.JSON(status, body)
	}
}

// handleLiveness は生存確認ハンドラを返す。依存先は確認しない。
func (s *Server) handleLiveness() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "alive"})
	}
}

// handleReadiness は受付可否の確認ハンドラを返す。
// データベースに接続できる場合のみ200を返す。
func (s *Server) handleReadiness() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()

		if err := s.checkDatabase(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
			s.logger.Warn("データベースのレディネスチェックに失敗しました", zap.Error(err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}

// checkDatabase はデータベースへの接続を確認する。
func (s *Server) checkDatabase(ctx context.Context) error {
	var one int
	return s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one)
}

// checkJWKS はJWKSエンドポイントへの到達性を確認する。
func (s *Server) checkJWKS(ctx context.Context) error {
	return s.validator.JWKS().Refresh(ctx)
}
