package host

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	stdhttp "net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/net/http/httpguts"

	"github.com/searchktools/fast-host/core/http"
)

// ignoredHeaders are computed by the writer and dropped from response headers
var ignoredHeaders = map[string]bool{
	"content-length":    true,
	"content-type":      true,
	"transfer-encoding": true,
	"keep-alive":        true,
	"connection":        true,
}

// serve processes one request on conn. Failures stay inside the connection.
func (h *SelfHost) serve(conn net.Conn, ep *endpoint) {
	h.track(conn)
	defer func() {
		h.untrack(conn)
		conn.Close()
	}()

	if h.readTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	}

	stdReq, err := stdhttp.ReadRequest(bufio.NewReader(conn))
	if err != nil {
		if errors.Is(err, io.EOF) {
			return
		}
		h.logger.Debug("malformed request", "remote", conn.RemoteAddr().String(), "error", err)
		h.writeError(conn, stdhttp.StatusBadRequest)
		return
	}
	defer stdReq.Body.Close()

	if websocket.IsWebSocketUpgrade(stdReq) {
		h.writeError(conn, stdhttp.StatusNotImplemented)
		return
	}

	req := h.convert(stdReq, conn, ep)

	ctx, cancel := context.WithCancel(h.baseCtx)
	defer cancel()

	c, err := h.handler.HandleRequest(ctx, req)
	if c != nil {
		defer func() {
			if cerr := c.Close(); cerr != nil {
				h.logger.Warn("closing request context", "error", cerr)
			}
		}()
	}
	if err != nil || c == nil || c.Response == nil {
		// canceled; the connection is abandoned without a response
		h.logger.Debug("request abandoned", "method", req.Method, "path", req.Path(), "error", err)
		return
	}

	if err := h.writeResponse(conn, req.Method, c.Response); err != nil {
		if h.stopping.Load() {
			return
		}
		h.logger.Warn("write failed", "remote", conn.RemoteAddr().String(), "error", err)
	}
}

// convert builds the engine request, matching the request path against the
// endpoint's prefixes case-insensitively to split off the base path.
func (h *SelfHost) convert(r *stdhttp.Request, conn net.Conn, ep *endpoint) *http.Request {
	hostName, port := splitHost(r.Host)
	u := http.URL{
		Scheme:   "http",
		HostName: hostName,
		Port:     port,
		Path:     r.URL.Path,
		Query:    r.URL.RawQuery,
	}
	if u.Path == "" {
		u.Path = "/"
	}

	for _, p := range ep.prefixes {
		if base, ok := matchBase(u.Path, p.basePath); ok {
			u.BasePath = base
			u.Path = u.Path[len(base):]
			if u.Path == "" {
				u.Path = "/"
			}
			if u.HostName == "" {
				u.HostName = p.host
			}
			if u.Port == 0 {
				u.Port = p.port
			}
			break
		}
	}

	return &http.Request{
		Method:     r.Method,
		URL:        u,
		Header:     http.Header(r.Header),
		Body:       r.Body,
		RemoteAddr: conn.RemoteAddr().String(),
		Proto:      r.Proto,
	}
}

// matchBase reports whether basePath is a case-insensitive base of path and
// returns the base as it appears in path.
func matchBase(path, basePath string) (string, bool) {
	if basePath == "" {
		return "", true
	}
	if len(path) < len(basePath) || !strings.EqualFold(path[:len(basePath)], basePath) {
		return "", false
	}
	if len(path) > len(basePath) && path[len(basePath)] != '/' {
		return "", false
	}
	return path[:len(basePath)], true
}

func splitHost(hostport string) (string, int) {
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return hostport, 0
	}
	port, _ := strconv.Atoi(portStr)
	return host, port
}

func (h *SelfHost) writeError(conn net.Conn, code int) {
	resp := http.NewText(code, stdhttp.StatusText(code))
	if err := h.writeResponse(conn, "GET", resp); err != nil {
		h.logger.Debug("write failed", "error", err)
	}
}

// writeResponse renders resp as an HTTP/1.1 message and closes the exchange.
// Contents are buffered so Content-Length is exact.
func (h *SelfHost) writeResponse(conn net.Conn, method string, resp *http.Response) error {
	if h.writeTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
	}

	body := h.buffers.Get(0)
	defer h.buffers.Put(body)

	if _, err := resp.WriteTo(body); err != nil {
		h.logger.Error("response contents failed", "error", err)
		body.Reset()
		resp = http.InternalServerError()
	}

	w := bufio.NewWriter(conn)
	writeHead(w, resp, body.Len(), h.logHeader)
	if method != stdhttp.MethodHead && bodyAllowed(resp.StatusCode) {
		if _, err := w.Write(body.Bytes()); err != nil {
			return err
		}
	}
	return w.Flush()
}

func (h *SelfHost) logHeader(name string) {
	h.logger.Warn("dropping invalid response header", "header", name)
}

func writeHead(w *bufio.Writer, resp *http.Response, length int, invalid func(string)) {
	fmt.Fprintf(w, "HTTP/1.1 %d %s\r\n", resp.StatusCode, resp.Reason())

	keys := make([]string, 0, len(resp.Header))
	for k := range resp.Header {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if ignoredHeaders[strings.ToLower(k)] {
			continue
		}
		if !httpguts.ValidHeaderFieldName(k) {
			invalid(k)
			continue
		}
		for _, v := range resp.Header[k] {
			if !httpguts.ValidHeaderFieldValue(v) {
				invalid(k)
				continue
			}
			fmt.Fprintf(w, "%s: %s\r\n", k, v)
		}
	}

	if resp.ContentType != "" && httpguts.ValidHeaderFieldValue(resp.ContentType) {
		fmt.Fprintf(w, "Content-Type: %s\r\n", resp.ContentType)
	}
	for _, cookie := range resp.Cookies {
		if v := cookie.String(); v != "" {
			fmt.Fprintf(w, "Set-Cookie: %s\r\n", v)
		}
	}
	if resp.Header.Get("Date") == "" {
		fmt.Fprintf(w, "Date: %s\r\n", time.Now().UTC().Format(stdhttp.TimeFormat))
	}
	if bodyAllowed(resp.StatusCode) {
		fmt.Fprintf(w, "Content-Length: %d\r\n", length)
	}
	w.WriteString("Connection: close\r\n\r\n")
}

func bodyAllowed(code int) bool {
	switch {
	case code >= 100 && code < 200:
		return false
	case code == stdhttp.StatusNoContent, code == stdhttp.StatusNotModified:
		return false
	}
	return true
}
