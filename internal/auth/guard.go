package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/marketplace/internal/domain"
)

type DecisionKind int

const (
	Admit DecisionKind = iota
	DenyRedirect
	DenyForbidden
	DenyNotFound
	DenyInternal
)

// Decision is the outcome of a single guard check. The first non-Admit
// decision in a chain is terminal: the wrapped handler never runs.
type Decision struct {
	Kind DecisionKind
	Err  error
}

func admit() Decision                 { return Decision{Kind: Admit} }
func denyRedirect() Decision          { return Decision{Kind: DenyRedirect} }
func denyForbidden() Decision         { return Decision{Kind: DenyForbidden} }
func denyNotFound() Decision          { return Decision{Kind: DenyNotFound} }
func denyInternal(err error) Decision { return Decision{Kind: DenyInternal, Err: err} }

// ResourceKind names an owned entity the guard can resolve.
type ResourceKind string

const (
	ResourceOrder   ResourceKind = "order"
	ResourceCart    ResourceKind = "cart"
	ResourcePayment ResourceKind = "payment"
	ResourceProduct ResourceKind = "product"
	ResourceVendor  ResourceKind = "vendor"
)

func (k ResourceKind) valid() bool {
	switch k {
	case ResourceOrder, ResourceCart, ResourcePayment, ResourceProduct, ResourceVendor:
		return true
	}
	return false
}

// OwnershipResolver returns the id of the user owning the given resource,
// or domain.ErrNotFound when the id does not resolve.
type OwnershipResolver interface {
	ResolveOwner(ctx context.Context, kind ResourceKind, id string) (string, error)
}

// Check inspects a request and its actor (nil when unauthenticated) and
// either admits it or denies with a reason.
type Check func(r *http.Request, actor *domain.User) Decision

// Guard composes ordered checks in front of handlers. Unauthenticated
// requests are redirected to the login URL; authorization failures map to
// 403, unresolvable resources to 404.
type Guard struct {
	loginURL string
	resolver OwnershipResolver
	logger   *slog.Logger
}

func NewGuard(loginURL string, resolver OwnershipResolver, logger *slog.Logger) *Guard {
	return &Guard{
		loginURL: loginURL,
		resolver: resolver,
		logger:   logger,
	}
}

func (g *Guard) RequireAuth() Check {
	return func(r *http.Request, actor *domain.User) Decision {
		if actor == nil {
			return denyRedirect()
		}
		return admit()
	}
}

// RequireCapability panics when given a capability outside the known set;
// that is a wiring bug, not a runtime condition.
func (g *Guard) RequireCapability(c Capability) Check {
	if !c.Valid() {
		panic(fmt.Sprintf("auth: unknown capability %q", c))
	}

	return func(r *http.Request, actor *domain.User) Decision {
		if actor == nil {
			return denyRedirect()
		}
		if !HasCapability(actor, c) {
			return denyForbidden()
		}
		return admit()
	}
}

// RequireOwner resolves the entity named by the path parameter and admits
// only when its owner is the actor.
func (g *Guard) RequireOwner(param string, kind ResourceKind) Check {
	if !kind.valid() {
		panic(fmt.Sprintf("auth: unknown resource kind %q", kind))
	}

	return func(r *http.Request, actor *domain.User) Decision {
		if actor == nil {
			return denyRedirect()
		}

		id := r.PathValue(param)
		if id == "" {
			return denyNotFound()
		}

		owner, err := g.resolver.ResolveOwner(r.Context(), kind, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return denyNotFound()
			}
			return denyInternal(err)
		}

		if owner != actor.ID {
			return denyForbidden()
		}
		return admit()
	}
}

// Protect wraps a handler with the given checks, short-circuiting on the
// first deny.
func (g *Guard) Protect(h http.HandlerFunc, checks ...Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFrom(r.Context())

		for _, check := range checks {
			decision := check(r, actor)
			switch decision.Kind {
			case Admit:
			case DenyRedirect:
				http.Redirect(w, r, g.loginURL, http.StatusSeeOther)
				return
			case DenyForbidden:
				g.writeError(w, http.StatusForbidden, "forbidden")
				return
			case DenyNotFound:
				g.writeError(w, http.StatusNotFound, "not found")
				return
			case DenyInternal:
				g.logger.Error("guard check failed", "error", decision.Err, "path", r.URL.Path)
				g.writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}
		}

		h(w, r)
	}
}

func (g *Guard) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		g.logger.Error("failed to encode error response", "error", err)
	}
}
