package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandAPI はWeb APIサーバーモードで起動することを示す。
	CommandAPI Command = "api"
	// CommandWeb はフロントエンド（サーバーレンダリング）モードで起動することを示す。
	CommandWeb Command = "web"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandAPIを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandAPI
	}

	switch args[0] {
	case "api":
		return CommandAPI
	case "web":
		return CommandWeb
	case "migrate":
		return CommandMigrate
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandAPI
	}
}
