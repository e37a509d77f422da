package verify

import (
	"context"
	"fmt"
	"net"
)

// MXChecker acepta un dominio si publica al menos un registro MX.
type MXChecker struct {
	Resolver *net.Resolver
}

func (c *MXChecker) Check(ctx context.Context, domain string) error {
	r := c.Resolver
	if r == nil {
		r = net.DefaultResolver
	}
	records, err := r.LookupMX(ctx, domain)
	if err != nil {
		return fmt.Errorf("verify: mx lookup for %s: %w", domain, err)
	}
	if len(records) == 0 {
		return fmt.Errorf("verify: no mx records for %s", domain)
	}
	return nil
}
