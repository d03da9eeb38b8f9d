// Package server exposes health reports, circuit-breaker introspection,
// and alert statistics over HTTP.
//
// # Endpoints
//
//	GET  /health                         aggregate report, 503 when unhealthy
//	GET  /health/{service}               single service report
//	GET  /health/circuit-breakers        breaker snapshots by service
//	POST /health/circuit-breakers/reset  force all breakers closed
//	GET  /alerts/statistics              active alert counts (when wired)
//
// # Usage
//
//	cfg, err := server.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	srv := server.New(*cfg, checker,
//		server.WithAlertManager(alerts),
//	)
//	if err := srv.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
//
// Shutdown is graceful: cancelling ctx waits DrainDelay for load
// balancers to stop routing, then gives in-flight requests
// ShutdownTimeout to finish.
package server
