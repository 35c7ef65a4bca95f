// Package sub serves subscription content behind the subscription credential
// gate. Requests that fail the gate get plausible decoy content instead of an
// error.
package sub

import (
	"context"

	"github.com/trojan-ui/trojan-ui/database"
	"github.com/trojan-ui/trojan-ui/logger"
	"github.com/trojan-ui/trojan-ui/util/crypto"
	"github.com/trojan-ui/trojan-ui/web/service"
)

// throwawaySecret is compared against when the username is unknown.
const throwawaySecret = "0000000000000000"

type SubService struct {
	store    database.EntitlementStore
	renderer *service.LinkRenderer
}

func NewSubService(store database.EntitlementStore, renderer *service.LinkRenderer) *SubService {
	return &SubService{store: store, renderer: renderer}
}

// Authorize reports whether secret is the user's subscription secret and, if
// so, returns the user's resolved links. A missing user and a wrong secret are
// indistinguishable to the caller.
func (s *SubService) Authorize(ctx context.Context, username, secret string) ([]service.Link, bool, error) {
	user, err := s.store.GetUser(ctx, username)
	if err != nil && !database.IsNotFound(err) {
		return nil, false, err
	}
	stored := throwawaySecret
	if user != nil {
		stored = user.SubscribeSecret
	}
	ok := crypto.SecretEqual(secret, stored) && user != nil && stored != ""

	// Both outcomes issue the same reads so rejected requests cost the same.
	assignments, err := s.store.ListAssignments(ctx, username)
	if err != nil {
		return nil, false, err
	}
	nodes, err := s.store.ListNodes(ctx)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		logger.Debugf("subscribe rejected for %q: %v", username, service.ErrCredentialMismatch)
		return nil, false, nil
	}
	return s.renderer.Resolve(assignments, nodes), true, nil
}

func parseFormat(t string) service.Format {
	if t == string(service.FormatClash) {
		return service.FormatClash
	}
	return service.FormatRaw
}

// GetSubscription returns the body to serve for u/p in format t and its
// content type. It never fails: rejected credentials, store failures and
// render failures all produce decoy content of the requested format.
func (s *SubService) GetSubscription(ctx context.Context, username, secret, t string) ([]byte, string) {
	format := parseFormat(t)
	links, ok, err := s.Authorize(ctx, username, secret)
	if err != nil {
		logger.Warningf("subscribe for %q failed, serving decoy: %v", username, err)
	}
	if !ok {
		links = decoyLinks()
	}
	body, err := s.renderer.Render(links, format)
	if err != nil {
		logger.Errorf("render subscription: %v", err)
		body, _ = s.renderer.Render(decoyLinks(), service.FormatRaw)
	}
	return body, service.SubContentType
}
