package observability

import "testing"

// TestNewLogger はロガーの生成を検証する。
func TestNewLogger(t *testing.T) {
	t.Parallel()

	t.Run("開発環境のロガーを生成できる", func(t *testing.T) {
		t.Parallel()
		logger, err := NewLogger("development", "debug")
		if err != nil {
			t.Fatalf("NewLoggerに失敗: %v", err)
		}
		if logger == nil {
			t.Fatal("loggerがnil")
		}
	})

	t.Run("本番環境のロガーを生成できる", func(t *testing.T) {
		t.Parallel()
		logger, err := NewLogger("production", "info")
		if err != nil {
			t.Fatalf("NewLoggerに失敗: %v", err)
		}
		if logger == nil {
			t.Fatal("loggerがnil")
		}
	})

	t.Run("不正なログレベルはエラーを返す", func(t *testing.T) {
		t.Parallel()
		if _, err := NewLogger("development", "loud"); err == nil {
			t.Fatal("不正なログレベルでエラーが返らない")
		}
	})
}
