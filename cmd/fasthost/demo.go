package main

import (
	"context"
	"runtime"
	"time"

	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/searchktools/fast-host/core/http"
	"github.com/searchktools/fast-host/core/router"
)

var started = time.Now()

type status struct {
	Status  string `json:"status" xml:"status"`
	Version string `json:"version" xml:"version"`
	Uptime  string `json:"uptime" xml:"uptime"`
	Go      string `json:"go" xml:"go"`
}

func currentStatus() status {
	return status{
		Status:  "ok",
		Version: version,
		Uptime:  time.Since(started).Round(time.Second).String(),
		Go:      runtime.Version(),
	}
}

type user struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func demoModules() []*router.Module {
	home := router.NewModule("HomeModule", "/").
		Get("/", func(context.Context, *http.Context) (any, error) {
			return "Welcome to fasthost", nil
		}, router.WithName("home")).
		Get("/docs", func(context.Context, *http.Context) (any, error) {
			return http.Redirect{Location: "~/api/status", Kind: http.RedirectTemporary}, nil
		})

	api := router.NewModule("ApiModule", "/api").
		Get("/status", func(context.Context, *http.Context) (any, error) {
			return http.JSON{Model: currentStatus()}, nil
		}, router.WithName("status")).
		Get("/status.xml", func(context.Context, *http.Context) (any, error) {
			return http.XML{Model: currentStatus()}, nil
		}).
		Get("/status.pb", func(context.Context, *http.Context) (any, error) {
			return http.Proto{Model: wrapperspb.String("ok")}, nil
		}).
		Get("/users/{id:int}", func(_ context.Context, c *http.Context) (any, error) {
			id, err := c.Params.Int("id")
			if err != nil {
				return nil, err
			}
			return http.JSON{Model: user{ID: id, Name: "user " + c.Params["id"]}}, nil
		}, router.WithName("user")).
		Get("/users/me", func(context.Context, *http.Context) (any, error) {
			return http.JSON{Model: user{ID: 0, Name: "me"}}, nil
		}).
		Post("/users", func(_ context.Context, c *http.Context) (any, error) {
			body, err := c.Request.ReadBody()
			if err != nil {
				return nil, err
			}
			return http.NewBytes(201, "application/json; charset=utf-8", body), nil
		}).
		Get("/search", func(_ context.Context, c *http.Context) (any, error) {
			return http.JSON{Model: map[string]string{
				"query": c.Request.Query("q"),
				"page":  c.Request.Query("page"),
			}}, nil
		}).
		Get("/echo/{path*}", func(_ context.Context, c *http.Context) (any, error) {
			return c.Params["path"], nil
		})

	return []*router.Module{home, api}
}
