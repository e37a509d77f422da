// Package metrics define los contadores Prometheus del core de auth.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts cuenta autenticaciones por método y resultado.
	AuthAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "envgate",
		Name:      "auth_attempts_total",
		Help:      "Intentos de autenticación por método y resultado.",
	}, []string{"method", "result"})

	// TokensIssued cuenta tokens emitidos por tipo.
	TokensIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "envgate",
		Name:      "tokens_issued_total",
		Help:      "Tokens emitidos por tipo.",
	}, []string{"type"})

	// KeyRotations cuenta rotaciones de claves por tipo.
	KeyRotations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "envgate",
		Name:      "key_rotations_total",
		Help:      "Rotaciones de claves de environment por tipo.",
	}, []string{"kind"})

	// GenRetries cuenta reintentos por colisión de unique index.
	GenRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "envgate",
		Name:      "generation_retries_total",
		Help:      "Reintentos de generación por colisión (claves y tokens).",
	}, []string{"what"})

	// DomainsVerified cuenta verificaciones del poller por resultado.
	DomainsVerified = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "envgate",
		Name:      "domains_verified_total",
		Help:      "Verificaciones de email domains por resultado.",
	}, []string{"result"})
)
