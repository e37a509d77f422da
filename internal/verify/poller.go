// Package verify corre la verificación en background de los email domains
// registrados. El poller arranca cuando hay dominios pendientes y se apaga
// solo cuando no queda ninguno; registrar un dominio nuevo lo despierta.
package verify

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/envgate/internal/domain/repository"
	"github.com/dropDatabas3/envgate/internal/metrics"
	"github.com/dropDatabas3/envgate/internal/observability/logger"
)

// Checker decide si un dominio está correctamente configurado.
type Checker interface {
	Check(ctx context.Context, domain string) error
}

// CheckerFunc adapta una función a Checker.
type CheckerFunc func(ctx context.Context, domain string) error

func (f CheckerFunc) Check(ctx context.Context, domain string) error { return f(ctx, domain) }

const (
	sweepConcurrency = 4

	// maxVerifyAttempts acota los reintentos: un check que falla puede ser
	// DNS transitorio, así que el dominio sigue pending hasta agotar el cupo.
	maxVerifyAttempts = 5
)

// Poller barre los dominios pendientes a intervalo fijo. Cada dominio se
// verifica de forma independiente: el fallo de uno no frena a los demás.
type Poller struct {
	Domains  repository.DomainRepository
	Checker  Checker
	Interval time.Duration

	mu      sync.Mutex
	running bool
	wake    chan struct{}
}

// Start arranca el loop si hay dominios pendientes. Idempotente.
func (p *Poller) Start(ctx context.Context) error {
	n, err := p.Domains.CountPending(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	p.Notify(ctx)
	return nil
}

// Notify despierta al poller, arrancándolo si estaba apagado.
func (p *Poller) Notify(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		select {
		case p.wake <- struct{}{}:
		default:
		}
		return
	}
	p.running = true
	p.wake = make(chan struct{}, 1)
	go p.loop(ctx, p.wake)
}

// Running reporta si el loop está vivo.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Poller) loop(ctx context.Context, wake <-chan struct{}) {
	log := logger.L().With(logger.Component("verify"))
	log.Info("domain verification poller started")

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for {
		remaining, err := p.sweep(ctx)
		if err != nil {
			log.Error("sweep failed", logger.Err(err))
		} else if remaining == 0 {
			// Sin pendientes no hay nada que pollear; el próximo
			// registro nos vuelve a levantar.
			p.mu.Lock()
			p.running = false
			p.mu.Unlock()
			log.Info("no pending domains, poller stopped")
			return
		}

		select {
		case <-ctx.Done():
			p.mu.Lock()
			p.running = false
			p.mu.Unlock()
			return
		case <-ticker.C:
		case <-wake:
		}
	}
}

// sweep verifica todos los pendientes y devuelve cuántos quedan.
func (p *Poller) sweep(ctx context.Context) (int, error) {
	pending, err := p.Domains.ListPending(ctx)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	log := logger.L().With(logger.Component("verify"))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepConcurrency)
	for i := range pending {
		d := pending[i]
		g.Go(func() error {
			// El resultado de cada dominio se registra por separado;
			// nunca devolvemos error para no cortar el grupo.
			if err := p.Checker.Check(gctx, d.Domain); err != nil {
				attempts, rerr := p.Domains.RecordFailure(gctx, d.ID)
				if rerr != nil {
					log.Error("attempt update failed", logger.Domain(d.Domain), logger.Err(rerr))
					return nil
				}
				if attempts < maxVerifyAttempts {
					// Sigue pending: entra en el próximo sweep.
					log.Info("domain verification failed, will retry",
						logger.Domain(d.Domain), logger.EnvID(d.EnvironmentID),
						logger.Count(attempts), logger.Err(err))
					return nil
				}
				log.Info("domain verification failed, giving up",
					logger.Domain(d.Domain), logger.EnvID(d.EnvironmentID),
					logger.Count(attempts), logger.Err(err))
				metrics.DomainsVerified.WithLabelValues("failed").Inc()
				if serr := p.Domains.SetStatus(gctx, d.ID, repository.DomainFailed); serr != nil {
					log.Error("status update failed", logger.Domain(d.Domain), logger.Err(serr))
				}
				return nil
			}

			log.Info("domain verified", logger.Domain(d.Domain), logger.EnvID(d.EnvironmentID))
			metrics.DomainsVerified.WithLabelValues("verified").Inc()
			if serr := p.Domains.SetStatus(gctx, d.ID, repository.DomainVerified); serr != nil {
				log.Error("status update failed", logger.Domain(d.Domain), logger.Err(serr))
			}
			return nil
		})
	}
	_ = g.Wait()

	return p.Domains.CountPending(ctx)
}
