// ブログAPIサービスのエントリポイント。
// Microsoft Entra IDのトークン検証、レート制限、記事のCRUDを提供する。
package main

import (
	"log"

	"github.com/nao1215/bloghub/internal/api"
	"github.com/nao1215/bloghub/internal/config"
	"github.com/nao1215/bloghub/pkg/observability"
)

func main() {
	cfg, err := config.LoadAPI()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("ロガーの初期化に失敗: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	server, err := api.NewServer(cfg, logger)
	if err != nil {
		log.Fatalf("APIサーバーの初期化に失敗: %v", err)
	}
	defer server.Close()

	if err := server.Run(); err != nil {
		log.Fatalf("APIサービスの起動に失敗: %v", err)
	}
}
