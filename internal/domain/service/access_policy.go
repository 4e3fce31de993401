package service

import (
	"github.com/lordseriouspig/nova-shell/internal/domain"
	"github.com/lordseriouspig/nova-shell/internal/domain/vo"
)

// AssetsPrefix is the only wildcard the policy accepts
const AssetsPrefix = "assets/"

// Denial reasons
const (
	ReasonAllowListed = "allow_listed"
	ReasonAssetPrefix = "asset_prefix"
	ReasonNotAllowed  = "not_allowed"
	ReasonEmpty       = "empty_path"
)

// DefaultPages are the bundled pages reachable by name
var DefaultPages = []string{
	"home",
	"settings",
	"downloads",
	"history",
	"bookmarks",
	"about",
	"error",
	"404",
}

// DefaultThemeResources are the shared theme files every page links
var DefaultThemeResources = []string{
	"theme.css",
	"theme.js",
}

// AccessDecision is the outcome of a policy check
type AccessDecision struct {
	Allowed  bool
	Reason   string
	Category domain.ResourceCategory
}

// AccessPolicy is a domain service deciding which sanitized paths may be served.
// It approves exactly the allow-list plus anything under assets/; assets are
// re-validated by containment when they are resolved.
type AccessPolicy struct {
	allowed map[string]struct{}
}

// NewAccessPolicy creates a policy over the given page names and theme resources
func NewAccessPolicy(pages, themeResources []string) *AccessPolicy {
	allowed := make(map[string]struct{}, len(pages)+len(themeResources))
	for _, name := range pages {
		allowed[name] = struct{}{}
	}
	for _, name := range themeResources {
		allowed[name] = struct{}{}
	}
	return &AccessPolicy{allowed: allowed}
}

// DefaultAccessPolicy returns the policy over DefaultPages and DefaultThemeResources
func DefaultAccessPolicy() *AccessPolicy {
	return NewAccessPolicy(DefaultPages, DefaultThemeResources)
}

// Evaluate decides whether path may be served
func (p *AccessPolicy) Evaluate(path vo.SanitizedPath) AccessDecision {
	if path.IsEmpty() {
		return AccessDecision{Reason: ReasonEmpty}
	}
	if path.HasPrefix(AssetsPrefix) {
		return AccessDecision{Allowed: true, Reason: ReasonAssetPrefix, Category: domain.CategoryAsset}
	}
	if p.IsAllowListed(path.String()) {
		return AccessDecision{Allowed: true, Reason: ReasonAllowListed, Category: domain.CategoryPage}
	}
	return AccessDecision{Reason: ReasonNotAllowed}
}

// IsAllowListed returns true if name is an exact allow-list entry
func (p *AccessPolicy) IsAllowListed(name string) bool {
	_, ok := p.allowed[name]
	return ok
}
