package api

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apidb "github.com/nao1215/bloghub/internal/api/db"
	"github.com/nao1215/bloghub/pkg/middleware"
)

// userResponse はユーザーのJSONレスポンス構造。
type userResponse struct {
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

// profileResponse はプロフィールのJSONレスポンス構造。
// DBを参照せず、検証済みトークンのクレームから直接構築する。
type profileResponse struct {
	// OID はMicrosoft Entra IDのオブジェクトID。
	OID string `json:"oid"`
	// Name はトークンの表示名。
	Name string `json:"name,omitempty"`
	// Email はメールアドレス。
	Email string `json:"email,omitempty"`
	// PreferredUsername は優先ユーザー名。
	PreferredUsername string `json:"preferred_username,omitempty"`
}

// toUserResponse はDB行をJSONレスポンスに変換する。
func toUserResponse(u apidb.User) userResponse {
	return userResponse{
		ID:          u.ID,
		OID:         u.OID,
		DisplayName: u.DisplayName,
		CreatedAt:   u.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   u.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// handleGetProfile は現在のユーザーのプロフィールを返すハンドラを返す。
// トークンのクレームをそのまま返し、データベースは参照しない。
func (s *Server) handleGetProfile() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := middleware.GetClaims(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "クレームが取得できません"})
			return
		}

		c.JSON(http.StatusOK, profileResponse{
			OID:               claims.OID,
			Name:              claims.Name,
			Email:             claims.Email,
			PreferredUsername: claims.PreferredUsername,
		})
	}
}

// handleRegisterUser は認証済みユーザーのDB登録を行うハンドラを返す。
// 既に存在する場合は既存の行を返す。
func (s *Server) handleRegisterUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := middleware.GetClaims(c)
		if !ok || claims.OID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		user, created, err := s.getOrCreateUser(c.Request.Context(), claims.OID, claims.Name)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザーの登録に失敗しました"})
			s.logger.Error("ユーザー登録エラー", zap.String("oid", claims.OID), zap.Error(err))
			return
		}

		if created {
			s.logger.Info("新規ユーザーを登録しました", zap.String("oid", claims.OID))
		}
		c.JSON(http.StatusCreated, toUserResponse(user))
	}
}

// getOrCreateUser はOIDでユーザーを取得し、存在しなければ作成する。
// 並行リクエストによるUNIQUE制約違反の場合は再取得にフォールバックする。
func (s *Server) getOrCreateUser(ctx context.Context, oid, displayName string) (apidb.User, bool, error) {
	user, err := s.queries.GetUserByOID(ctx, oid)
	if err == nil {
		// トークン側の表示名が変わっていればDBに反映する
		if displayName != "" && displayName != user.DisplayName {
			if updErr := s.queries.UpdateUserDisplayName(ctx, user.ID, displayName); updErr != nil {
				return apidb.User{}, false, updErr
			}
			user.DisplayName = displayName
		}
		return user, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return apidb.User{}, false, err
	}

	user, err = s.queries.CreateUser(ctx, apidb.CreateUserParams{
		OID:         oid,
		DisplayName: displayName,
	})
	if err != nil {
		// 別リクエストが先に作成した可能性がある
		if existing, getErr := s.queries.GetUserByOID(ctx, oid); getErr == nil {
			return existing, false, nil
		}
		return apidb.User{}, false, err
	}
	return user, true, nil
}
