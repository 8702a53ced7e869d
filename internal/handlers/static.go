package handlers

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

// Static serves files under dir for any GET or HEAD that matched no route.
// Directories resolve to their index.html and are never listed.
func Static(dir string) gin.HandlerFunc {
	files := http.FileServer(http.Dir(dir))
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}
		name := path.Clean("/" + c.Request.URL.Path)
		if !servable(filepath.Join(dir, filepath.FromSlash(strings.TrimPrefix(name, "/")))) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}
		c.Status(http.StatusOK)
		files.ServeHTTP(c.Writer, c.Request)
	}
}

// servable reports whether target is a file, or a directory holding index.html.
func servable(target string) bool {
	info, err := os.Stat(target)
	if err != nil {
		return false
	}
	if !info.IsDir() {
		return true
	}
	index, err := os.Stat(filepath.Join(target, "index.html"))
	return err == nil && !index.IsDir()
}
