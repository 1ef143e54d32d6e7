// Package main UIN Salatiga Campus Assistant
//
//	@title			UIN Salatiga Campus Assistant API
//	@version		1.0
//	@description	Retrieval-augmented question answering for UIN Salatiga with web search fallback
//
//	@host		localhost:8080
//	@BasePath	/
package main

import (
	"os"

	_ "campus-rag/docs" // This imports the docs package to initialize swagger

	"github.com/joho/godotenv"
)

func main() {
	// .env is optional; real environment variables take precedence
	_ = godotenv.Load()

	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
