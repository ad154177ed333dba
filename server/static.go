package server

import (
	"bytes"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

// reloadTag is injected into served HTML pages.
const reloadTag = `<script src="/__reload.js"></script>`

// reloadScript reloads the page on "reload" events and logs build errors.
const reloadScript = `(function () {
  var source = new EventSource("/__reload");
  source.addEventListener("reload", function () { location.reload(); });
  source.addEventListener("build_error", function (e) {
    console.error("[assetflow] build failed", JSON.parse(e.data).errors);
  });
})();
`

// resolve maps a URL path to a file under root. Directories resolve to
// their index.html.
func resolve(root, urlPath string) (string, error) {
	clean := path.Clean("/" + urlPath)
	full := filepath.Join(root, filepath.FromSlash(clean))
	info, err := os.Stat(full)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		full = filepath.Join(full, "index.html")
		if info, err = os.Stat(full); err != nil {
			return "", err
		}
	}
	if !info.Mode().IsRegular() {
		return "", fs.ErrNotExist
	}
	return full, nil
}

func (s *Server) serveStatic(c *gin.Context) {
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		c.Status(http.StatusMethodNotAllowed)
		return
	}
	full, err := resolve(s.config.Root, c.Request.URL.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.String(http.StatusNotFound, "404 page not found")
			return
		}
		c.String(http.StatusInternalServerError, err.Error())
		return
	}

	c.Header("Cache-Control", "no-cache")
	ext := strings.ToLower(filepath.Ext(full))
	if s.config.NoReload || (ext != ".html" && ext != ".htm") {
		c.File(full)
		return
	}

	data, err := os.ReadFile(full)
	if err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", injectReload(data))
}

// injectReload adds the reload script before the last </body>, or at the
// end when the page has none.
func injectReload(page []byte) []byte {
	i := bytes.LastIndex(bytes.ToLower(page), []byte("</body>"))
	if i < 0 {
		return append(append([]byte(nil), page...), reloadTag...)
	}
	out := make([]byte, 0, len(page)+len(reloadTag))
	out = append(out, page[:i]...)
	out = append(out, reloadTag...)
	return append(out, page[i:]...)
}
