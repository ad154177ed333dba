// Package server is the development server: it serves the build output with
// Gin and pushes live-reload events to browsers over Server-Sent Events.
//
// # Endpoints
//
//   - /__reload: event stream, one "reload" event per successful run
//   - /__reload.js: client script, injected into served HTML pages
//   - /__health: liveness and connected client count
//   - /__version: build version information
//
// Every other GET is resolved against the configured root directory.
//
// # Usage
//
//	srv := server.New(cfg, log)
//	sched.Subscribe(server.NewReloadSubscriber(srv.Hub(), log))
//	if err := srv.Start(ctx); err != nil { ... }
//	defer srv.Stop(context.Background())
package server
