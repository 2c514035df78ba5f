// Webクライアントのエントリポイント。
// Microsoft Entra IDでログインし、ブログAPIを呼び出すWebアプリケーションを提供する。
package main

import (
	"log"

	"github.com/nao1215/bloghub/internal/config"
	"github.com/nao1215/bloghub/internal/webclient"
	"github.com/nao1215/bloghub/pkg/observability"
)

func main() {
	cfg, err := config.LoadClient()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("ロガーの初期化に失敗: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	server, err := webclient.NewServer(cfg, logger)
	if err != nil {
		log.Fatalf("Webクライアントの初期化に失敗: %v", err)
	}

	if err := server.Run(); err != nil {
		log.Fatalf("Webクライアントの起動に失敗: %v", err)
	}
}
