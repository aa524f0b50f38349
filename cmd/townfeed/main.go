package main

import (
	"embed"
	"os"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"github.com/harborlight/townfeed/internal/app"
	"github.com/harborlight/townfeed/internal/config"
)

// embeddedConfig embeds the application's YAML configuration, loaded at
// startup with environment overrides applied on top.
//
//go:embed resources/application.yaml
var embeddedConfig []byte

// migrationsFS bundles the run-log schema migrations into the binary.
//
//go:embed all:resources/migrations
var migrationsFS embed.FS

func main() {
	envFilePath := os.Getenv("ENV_FILE_PATH")
	if envFilePath == "" {
		envFilePath = ".env"
	}

	app.RunApplication(envFilePath, config.EmbeddedConfig(embeddedConfig), migrationsFS)
}
