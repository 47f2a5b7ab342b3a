// Package health serves liveness and readiness probes for the watch
// daemon.
//
// Liveness always succeeds while the process runs. Readiness runs every
// registered check; the daemon registers PolicyCheck (a policy version has
// been accepted) and StorageCheck (the evidence store answers queries).
//
//	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
//	checker.RegisterCheck("policy", health.PolicyCheck(w.Current))
//	checker.RegisterCheck("evidence", health.StorageCheck(store))
//	health.Register(mux, checker, "/health", "/ready", info)
package health
