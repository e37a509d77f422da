package verify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/envgate/internal/domain/repository"
)

type fakeDomainRepo struct {
	mu      sync.Mutex
	domains map[string]*repository.EmailDomain
}

func newFakeDomainRepo(ds ...*repository.EmailDomain) *fakeDomainRepo {
	r := &fakeDomainRepo{domains: map[string]*repository.EmailDomain{}}
	for _, d := range ds {
		r.domains[d.ID] = d
	}
	return r
}

func (r *fakeDomainRepo) Create(_ context.Context, d *repository.EmailDomain) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.domains[d.ID] = d
	return nil
}

func (r *fakeDomainRepo) ListPending(_ context.Context) ([]repository.EmailDomain, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []repository.EmailDomain
	for _, d := range r.domains {
		if d.Status == repository.DomainPending {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (r *fakeDomainRepo) CountPending(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, d := range r.domains {
		if d.Status == repository.DomainPending {
			n++
		}
	}
	return n, nil
}

func (r *fakeDomainRepo) SetStatus(_ context.Context, id string, status repository.DomainStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.domains[id]; ok {
		d.Status = status
	}
	return nil
}

func (r *fakeDomainRepo) RecordFailure(_ context.Context, id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.domains[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	d.Attempts++
	return d.Attempts, nil
}

func (r *fakeDomainRepo) status(id string) repository.DomainStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.domains[id].Status
}

func pendingDomain(id, domain string) *repository.EmailDomain {
	return &repository.EmailDomain{
		ID:            id,
		EnvironmentID: "env-1",
		Domain:        domain,
		Status:        repository.DomainPending,
	}
}

func waitStopped(t *testing.T, p *Poller) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for p.Running() {
		select {
		case <-deadline:
			t.Fatal("poller still running")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestPollerVerifiesAndStops(t *testing.T) {
	repo := newFakeDomainRepo(
		pendingDomain("d1", "mail.acme.test"),
		pendingDomain("d2", "mail.globex.test"),
	)
	p := &Poller{
		Domains:  repo,
		Interval: 5 * time.Millisecond,
		Checker: CheckerFunc(func(_ context.Context, _ string) error {
			return nil
		}),
	}

	require.NoError(t, p.Start(context.Background()))
	waitStopped(t, p)

	require.Equal(t, repository.DomainVerified, repo.status("d1"))
	require.Equal(t, repository.DomainVerified, repo.status("d2"))
}

func TestPollerDoesNotStartWithoutPending(t *testing.T) {
	p := &Poller{
		Domains:  newFakeDomainRepo(),
		Interval: 5 * time.Millisecond,
		Checker:  CheckerFunc(func(_ context.Context, _ string) error { return nil }),
	}
	require.NoError(t, p.Start(context.Background()))
	require.False(t, p.Running())
}

func TestPollerIsolatesFailures(t *testing.T) {
	repo := newFakeDomainRepo(
		pendingDomain("ok", "good.test"),
		pendingDomain("bad", "broken.test"),
	)
	p := &Poller{
		Domains:  repo,
		Interval: 5 * time.Millisecond,
		Checker: CheckerFunc(func(_ context.Context, domain string) error {
			if domain == "broken.test" {
				return errors.New("no mx records")
			}
			return nil
		}),
	}

	require.NoError(t, p.Start(context.Background()))
	waitStopped(t, p)

	// El dominio roto no frenó al sano, y recién se marca failed
	// después de agotar los reintentos.
	require.Equal(t, repository.DomainVerified, repo.status("ok"))
	require.Equal(t, repository.DomainFailed, repo.status("bad"))
	repo.mu.Lock()
	attempts := repo.domains["bad"].Attempts
	repo.mu.Unlock()
	require.Equal(t, maxVerifyAttempts, attempts)
}

func TestPollerRetriesTransientFailure(t *testing.T) {
	repo := newFakeDomainRepo(pendingDomain("d1", "flaky.test"))

	var mu sync.Mutex
	calls := 0
	p := &Poller{
		Domains:  repo,
		Interval: 5 * time.Millisecond,
		Checker: CheckerFunc(func(_ context.Context, _ string) error {
			mu.Lock()
			defer mu.Unlock()
			calls++
			// Las dos primeras veces el DNS no responde.
			if calls <= 2 {
				return errors.New("lookup timeout")
			}
			return nil
		}),
	}

	require.NoError(t, p.Start(context.Background()))
	waitStopped(t, p)

	// Un fallo transitorio no condena al dominio: se reintenta en el
	// próximo sweep hasta que el check pasa.
	require.Equal(t, repository.DomainVerified, repo.status("d1"))
}

func TestNotifyRestartsAfterStop(t *testing.T) {
	repo := newFakeDomainRepo(pendingDomain("d1", "first.test"))
	p := &Poller{
		Domains:  repo,
		Interval: 5 * time.Millisecond,
		Checker:  CheckerFunc(func(_ context.Context, _ string) error { return nil }),
	}

	require.NoError(t, p.Start(context.Background()))
	waitStopped(t, p)

	// Un registro nuevo lo vuelve a levantar.
	require.NoError(t, repo.Create(context.Background(), pendingDomain("d2", "second.test")))
	p.Notify(context.Background())
	waitStopped(t, p)

	require.Equal(t, repository.DomainVerified, repo.status("d2"))
}
