package policy

import (
	"context"
	"errors"

	domainauth "github.com/mhnuk2007/oerms-sub002/internal/domain/auth"
	"github.com/mhnuk2007/oerms-sub002/internal/ports"
)

var _ ports.PolicyClient = Disabled{}

// Disabled is the client used when no policy endpoint is configured. Every
// query fails, which the service layer turns into a fail-closed deny.
type Disabled struct{}

// Evaluate always reports an evaluation failure.
func (Disabled) Evaluate(context.Context, string, domainauth.PolicyQuery) (bool, error) {
	return false, errors.New("policy endpoint not configured")
}
