package server

import (
	"mime"
	"os"
	"path/filepath"
	"strings"
)

var extensionTypes = map[string]string{
	".html":  "text/html",
	".htm":   "text/html",
	".xml":   "text/xml",
	".xhtml": "application/xhtml+xml",
	".txt":   "text/plain",
	".css":   "text/css",
	".js":    "text/javascript",
	".json":  "application/json",
	".rtf":   "application/rtf",
	".pdf":   "application/pdf",
	".word":  "application/nsword",
	".png":   "image/png",
	".gif":   "image/gif",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".ico":   "image/x-icon",
	".svg":   "image/svg+xml",
	".au":    "audio/basic",
	".mpeg":  "video/mpeg",
	".mpg":   "video/mpeg",
	".mp4":   "video/mp4",
	".avi":   "video/x-msvideo",
	".gz":    "application/x-gzip",
	".tar":   "application/x-tar",
	".woff":  "font/woff",
	".woff2": "font/woff2",
}

func init() {
	for ext, typ := range extensionTypes {
		mime.AddExtensionType(ext, typ)
	}
}

// errorPages maps error statuses to the page served in their place
var errorPages = map[int]string{
	400: "/400.html",
	403: "/403.html",
	404: "/404.html",
}

// getContentType determines MIME type from file extension
func getContentType(filePath string) string {
	contentType := mime.TypeByExtension(filepath.Ext(filePath))
	if contentType == "" {
		contentType = "text/plain"
	}
	return contentType
}

// resolveStatic maps a request path onto root. It returns 403 for paths
// escaping root or unreadable by others, 404 for missing files and
// directories, 200 otherwise.
func resolveStatic(root, path string) (string, int) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", 500
	}
	absFile, err := filepath.Abs(filepath.Join(absRoot, filepath.FromSlash(path)))
	if err != nil {
		return "", 500
	}
	if absFile != absRoot && !strings.HasPrefix(absFile, absRoot+string(filepath.Separator)) {
		return "", 403
	}

	info, err := os.Stat(absFile)
	if err != nil || info.IsDir() {
		return absFile, 404
	}
	if info.Mode().Perm()&0o004 == 0 {
		return absFile, 403
	}
	return absFile, 200
}

// readFileContent reads entire file content
func readFileContent(filePath string) ([]byte, bool) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, false
	}
	return content, true
}
