package app

import (
	"log"
	"mime"
)

func init() {
	ensureMimeType(".css", "text/css; charset=utf-8")
	ensureMimeType(".webp", "image/webp")
	ensureMimeType(".mp4", "video/mp4")
	ensureMimeType(".webm", "video/webm")
	ensureMimeType(".mkv", "video/x-matroska")
}

func ensureMimeType(ext, typ string) {
	if mime.TypeByExtension(ext) != "" {
		return
	}
	if err := mime.AddExtensionType(ext, typ); err != nil {
		log.Printf("app: failed to register MIME type for %s: %v", ext, err)
	}
}
