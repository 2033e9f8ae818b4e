// Package main is the entry point for the legal RAG service.
package main

import (
	"github.com/joho/godotenv"
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/legal-rag/cmd/legal-rag/app"
)

func main() {
	// .env 不覆盖已存在的环境变量
	_ = godotenv.Load()

	app.NewApp().Run()
}
