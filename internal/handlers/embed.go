package handlers

import "embed"

//go:embed templates/*.html
var templateFS embed.FS

//go:embed content/about.md
var aboutMarkdown []byte
