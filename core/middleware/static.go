package middleware

import (
	"context"
	"errors"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/searchktools/fast-host/core/http"
	"github.com/searchktools/fast-host/core/pipeline"
)

// Static serves files from dir for GET and HEAD requests under prefix.
// Missing files fall through to the resolved route.
func Static(prefix, dir string) pipeline.BeforeFunc {
	prefix = "/" + strings.Trim(prefix, "/")
	root, err := filepath.Abs(dir)
	if err != nil {
		root = dir
	}

	return func(_ context.Context, c *http.Context) (*http.Response, error) {
		if c.Method() != "GET" && c.Method() != "HEAD" {
			return nil, nil
		}
		rel, ok := underPrefix(c.Path(), prefix)
		if !ok || rel == "" {
			return nil, nil
		}

		f := http.NewFormatter(c, nil, []string{root})
		resp, err := f.AsFile(filepath.Join(root, filepath.FromSlash(rel)), "")
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) || errors.Is(err, http.ErrUnsafePath) || errors.Is(err, http.ErrIsDirectory) {
				return nil, nil
			}
			return nil, err
		}
		return resp, nil
	}
}

// underPrefix returns the cleaned path below prefix, case-insensitively
func underPrefix(p, prefix string) (string, bool) {
	p = path.Clean("/" + p)
	if prefix == "/" {
		return strings.TrimPrefix(p, "/"), true
	}
	if len(p) < len(prefix) || !strings.EqualFold(p[:len(prefix)], prefix) {
		return "", false
	}
	rest := p[len(prefix):]
	if rest != "" && rest[0] != '/' {
		return "", false
	}
	return strings.TrimPrefix(rest, "/"), true
}

// InstallStatic registers the static file hook
func InstallStatic(set *pipeline.Set, prefix, dir string) {
	set.Before.AddToEnd(pipeline.Item[pipeline.BeforeFunc]{Name: NameStatic, Delegate: Static(prefix, dir)}, true)
}
