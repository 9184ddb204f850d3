package middleware

import (
	"compress/gzip"
	"context"
	"io"
	"strings"

	"github.com/searchktools/fast-host/core/http"
	"github.com/searchktools/fast-host/core/pipeline"
)

// DefaultCompressibleTypes are the media types gzipped by default
var DefaultCompressibleTypes = []string{
	"text/",
	"application/json",
	"application/xml",
	"application/javascript",
	"image/svg+xml",
}

// Compression gzips response bodies for clients that accept it.
// Only content types starting with one of types are compressed.
func Compression(level int, types ...string) pipeline.AfterFunc {
	if len(types) == 0 {
		types = DefaultCompressibleTypes
	}

	return func(_ context.Context, c *http.Context) error {
		resp := c.Response
		if resp == nil || resp.Contents == nil {
			return nil
		}
		if resp.Header.Get("Content-Encoding") != "" || !compressible(resp.ContentType, types) {
			return nil
		}
		if !c.Request.AcceptsEncoding("gzip") {
			return nil
		}

		contents := resp.Contents
		resp.Contents = func(w io.Writer) error {
			gz, err := gzip.NewWriterLevel(w, level)
			if err != nil {
				return err
			}
			if err := contents(gz); err != nil {
				gz.Close()
				return err
			}
			return gz.Close()
		}
		resp.WithHeader("Content-Encoding", "gzip")
		resp.Header.Add("Vary", "Accept-Encoding")
		return nil
	}
}

func compressible(contentType string, types []string) bool {
	if contentType == "" {
		return false
	}
	contentType = strings.ToLower(contentType)
	for _, t := range types {
		if strings.HasPrefix(contentType, t) {
			return true
		}
	}
	return false
}

// InstallCompression registers gzip as the last After hook
func InstallCompression(set *pipeline.Set, level int, types ...string) {
	set.After.AddToEnd(pipeline.Item[pipeline.AfterFunc]{Name: NameCompression, Delegate: Compression(level, types...)}, true)
}
