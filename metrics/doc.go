// Package metrics exports feedbackAuth counters and HTTP collectors with
// the Prometheus client.
//
// A [Registry] owns its own prometheus.Registry so several instances (one
// per test, say) never collide on the default registerer.
//
//	reg := metrics.NewRegistry("feedback")
//	engine, _ := feedbackAuth.New().WithMetrics(reg).Build()
//	reg.WatchAuditDrops(engine.AuditDropped, engine.AuditDroppedCritical)
//	router.Use(reg.HTTPMiddleware())
//	router.GET("/metrics", reg.GinHandler())
package metrics
