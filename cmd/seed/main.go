// 開発用のサンプルデータを投入するコマンド。
// APIサービスと同じSQLiteデータベースに直接ユーザーと記事を書き込む。
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/nao1215/bloghub/internal/api"
	apidb "github.com/nao1215/bloghub/internal/api/db"
)

func main() {
	// APIサービスと同じ.env・既定値でデータベースパスを解決する
	_ = godotenv.Load()
	var (
		dbPath = flag.String("db", envOr("DATABASE_PATH", "./blog_api.db"), "SQLiteデータベースのパス")
		clear  = flag.Bool("clear", false, "投入前に既存データを全削除する")
		users  = flag.Int("users", 3, "作成するユーザー数")
		count  = flag.Int("count", 10, "作成する記事数")
	)
	flag.Parse()

	if *users < 1 || *count < 0 {
		log.Fatal("usersは1以上、countは0以上を指定してください")
	}

	db, err := api.OpenDB(*dbPath, zap.NewNop())
	if err != nil {
		log.Fatalf("データベースのオープンに失敗: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	queries := apidb.New(db)

	if *clear {
		if err := queries.DeleteAllBlogPosts(ctx); err != nil {
			log.Fatalf("記事の削除に失敗: %v", err)
		}
		if err := queries.DeleteAllUsers(ctx); err != nil {
			log.Fatalf("ユーザーの削除に失敗: %v", err)
		}
		log.Print("既存データを削除しました")
	}

	seeded := make([]apidb.User, 0, *users)
	for i := 0; i < *users; i++ {
		user, err := queries.CreateUser(ctx, apidb.CreateUserParams{
			OID:         uuid.New().String(),
			DisplayName: fmt.Sprintf("サンプルユーザー%d", i+1),
		})
		if err != nil {
			log.Fatalf("ユーザーの作成に失敗: %v", err)
		}
		seeded = append(seeded, user)
	}

	for i := 0; i < *count; i++ {
		author := seeded[i%len(seeded)]
		_, err := queries.CreateBlogPost(ctx, apidb.CreateBlogPostParams{
			Title:    fmt.Sprintf("サンプル記事 %d", i+1),
			Content:  fmt.Sprintf("これは%sが投稿したサンプル記事の本文です。\n\n記事番号: %d", author.DisplayName, i+1),
			AuthorID: author.ID,
		})
		if err != nil {
			log.Fatalf("記事の作成に失敗: %v", err)
		}
	}

	log.Printf("投入が完了しました: users=%d, posts=%d, db=%s", *users, *count, *dbPath)
}

// envOr は環境変数の値を返し、未設定なら既定値を返す。
func envOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
