package server

import (
	"embed"
	"log"
)

//go:embed web
var embedFS embed.FS

// indexHTML returns the index.html content as bytes
func indexHTML() []byte {
	data, err := embedFS.ReadFile("web/index.html")
	if err != nil {
		log.Fatalf("埋め込みindex.htmlの読み込みに失敗: %v", err)
	}
	return data
}
