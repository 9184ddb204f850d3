/*
Package fasthost provides an embeddable HTTP front end for Go applications.

Requests are matched against a segment trie built from route modules, run
through named hook pipelines, and answered by actions whose results are
negotiated into responses. The same engine can listen on its own (the
self-host) or be mounted inside any net/http server.

Features

  - Segment trie routing: literal, capture and greedy segments with typed constraints
  - Correct 404/405 handling with an Allow header
  - Named Before, After and Error pipelines with start/end insertion
  - Content negotiation for text, JSON, XML and protobuf
  - Self-host with a fixed number of outstanding accepts and a counting limiter
  - net/http and chi mounting through core/embed
  - Prometheus metrics, OpenTelemetry spans, CORS, request IDs, throttling,
    gzip, static files and S3 content as installable hooks

Quick Start

	package main

	import (
		"context"

		"github.com/searchktools/fast-host/app"
		"github.com/searchktools/fast-host/config"
		"github.com/searchktools/fast-host/core/http"
		"github.com/searchktools/fast-host/core/router"
	)

	func main() {
		hello := router.NewModule("Hello", "/").
			Get("/hello/{name}", func(_ context.Context, c *http.Context) (any, error) {
				return "Hello, " + c.Params["name"], nil
			})

		a, err := app.New(config.Default(), []*router.Module{hello})
		if err != nil {
			panic(err)
		}
		if err := a.Run(context.Background()); err != nil {
			panic(err)
		}
	}

Packages

  - app: configuration, hooks, engine and self-host wired together
  - config: defaults, JSON file, FASTHOST_ environment and flag loading
  - core: request engine and dispatcher state machine
  - core/router: modules, route catalog, trie and resolver
  - core/pipeline: named hook pipelines
  - core/http: request, response, context and content negotiation
  - core/host: self-host accept loop
  - core/embed: net/http adapter
  - core/ratelimit: counting and no-op limiters
  - core/middleware: installable hooks
  - core/codec: JSON and protobuf codecs
  - core/pools: response buffer pool
  - cmd/fasthost: command-line server
*/
package fasthost
