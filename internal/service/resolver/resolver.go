package resolver

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lordseriouspig/nova-shell/internal/domain"
	"github.com/lordseriouspig/nova-shell/internal/domain/event"
	domainservice "github.com/lordseriouspig/nova-shell/internal/domain/service"
	"github.com/lordseriouspig/nova-shell/internal/domain/vo"
	"github.com/lordseriouspig/nova-shell/internal/port"
)

// Scheme is the virtual URL scheme served by the resolver
const Scheme = "nova"

// NotFoundPage is rendered for approved paths with no backing file
const NotFoundPage = "404"

// Outcomes reported in events and metrics
const (
	OutcomeOK            = "ok"
	OutcomeNotFound      = "not_found"
	OutcomeFallback      = "generic_fallback"
	OutcomeInputRejected = "input_rejected"
	OutcomeAccessDenied  = "access_denied"
	OutcomeSandboxEscape = "sandbox_escape"
	OutcomeInternalFault = "internal_fault"
)

// ErrWrongScheme is returned by LocatorFromURL for non-nova URLs
var ErrWrongScheme = errors.New("not a nova url")

// Response is the outcome of a resolution, ready to be written to the client
type Response struct {
	Status      int
	ContentType string
	Body        []byte
	Outcome     string
}

// Resolver turns untrusted locators into bundled resources
type Resolver struct {
	policy *domainservice.AccessPolicy
	loader port.ResourceLoader
	events event.EventDispatcher
	logger *zap.Logger
}

// New creates a new Resolver
func New(policy *domainservice.AccessPolicy, loader port.ResourceLoader, events event.EventDispatcher, logger *zap.Logger) *Resolver {
	if events == nil {
		events = event.NewNullDispatcher()
	}
	return &Resolver{
		policy: policy,
		loader: loader,
		events: events,
		logger: logger,
	}
}

// Resolve runs the full pipeline for locator. It never fails: every error,
// including a panic, becomes a response with the matching status.
func (r *Resolver) Resolve(ctx context.Context, locator string) (resp *Response) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Resolver panicked",
				zap.String("locator", locator),
				zap.Any("panic", p))
			resp = genericResponse(http.StatusInternalServerError, OutcomeInternalFault)
		}
		r.events.Dispatch(event.NewResourceResolved(locator, resp.Status, resp.Outcome, len(resp.Body), time.Since(start)))
	}()

	return r.resolve(ctx, locator)
}

func (r *Resolver) resolve(ctx context.Context, locator string) *Response {
	if err := ctx.Err(); err != nil {
		return r.failure(locator, domain.NewResolveError(domain.ErrInternalFault, "", err))
	}

	path, err := vo.SanitizePath(locator)
	if err != nil {
		return r.failure(locator, domain.NewResolveError(domain.ErrInputRejected, "", err))
	}

	decision := r.policy.Evaluate(path)
	if !decision.Allowed {
		return r.failure(locator, domain.NewResolveError(domain.ErrAccessDenied, path.String(), errors.New(decision.Reason)))
	}

	res, err := r.loader.Load(path, decision.Category, path.String())
	if err == nil {
		r.logger.Debug("Serving resource",
			zap.String("locator", locator),
			zap.String("resolved_path", res.ResolvedPath),
			zap.Int("size", res.Size()))
		return resourceResponse(http.StatusOK, OutcomeOK, res)
	}
	if domain.ResolveKind(err) == domain.ErrResourceMissing {
		return r.notFound(locator, path.String())
	}
	return r.failure(locator, err)
}

// notFound renders the 404 page for requested, falling back to inline markup
func (r *Resolver) notFound(locator, requested string) *Response {
	res, err := r.loader.Load(vo.MustSanitizePath(NotFoundPage), domain.CategoryPage, requested)
	if err == nil {
		return resourceResponse(http.StatusNotFound, OutcomeNotFound, res)
	}

	if domain.IsSecurityRelevant(err) {
		r.logSecurity(locator, err)
	} else if !errors.Is(err, domain.ErrResourceMissing) {
		r.logger.Error("Failed to load not-found page", zap.String("locator", locator), zap.Error(err))
	}
	return genericResponse(http.StatusNotFound, OutcomeFallback)
}

func (r *Resolver) failure(locator string, err error) *Response {
	kind := domain.ResolveKind(err)
	status := StatusFor(kind)

	switch kind {
	case domain.ErrSandboxEscape:
		r.logSecurity(locator, err)
	case domain.ErrInternalFault:
		r.logger.Error("Resource resolution failed", zap.String("locator", locator), zap.Error(err))
	default:
		r.logger.Debug("Resource request refused",
			zap.String("locator", locator),
			zap.Int("status", status),
			zap.Error(err))
	}

	return genericResponse(status, outcomeFor(kind))
}

func (r *Resolver) logSecurity(locator string, err error) {
	var resolved string
	var re *domain.ResolveError
	if errors.As(err, &re) {
		resolved = re.Path
	}
	r.logger.Error("Resource path escapes sandbox",
		zap.String("locator", locator),
		zap.String("resolved_path", resolved),
		zap.Error(err))
}

// StatusFor maps a resolution error kind to its HTTP status
func StatusFor(kind error) int {
	switch kind {
	case domain.ErrInputRejected:
		return http.StatusBadRequest
	case domain.ErrAccessDenied, domain.ErrSandboxEscape:
		return http.StatusForbidden
	case domain.ErrResourceMissing:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func outcomeFor(kind error) string {
	switch kind {
	case domain.ErrInputRejected:
		return OutcomeInputRejected
	case domain.ErrAccessDenied:
		return OutcomeAccessDenied
	case domain.ErrSandboxEscape:
		return OutcomeSandboxEscape
	case domain.ErrResourceMissing:
		return OutcomeNotFound
	default:
		return OutcomeInternalFault
	}
}

func resourceResponse(status int, outcome string, res *domain.Resource) *Response {
	return &Response{
		Status:      status,
		ContentType: vo.ContentTypeHeader(res.MediaType),
		Body:        res.Bytes,
		Outcome:     outcome,
	}
}

func genericResponse(status int, outcome string) *Response {
	text := html.EscapeString(http.StatusText(status))
	body := fmt.Sprintf("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>%d %s</title></head>"+
		"<body><h1>%d %s</h1></body></html>\n", status, text, status, text)
	return &Response{
		Status:      status,
		ContentType: vo.ContentTypeHeader(vo.MediaTypeHTML),
		Body:        []byte(body),
		Outcome:     outcome,
	}
}

// LocatorFromURL extracts the locator from a nova:// URL: host and path joined.
func LocatorFromURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInputRejected, err)
	}
	if u.Scheme != Scheme {
		return "", fmt.Errorf("%w: %q", ErrWrongScheme, u.Scheme)
	}
	if u.Opaque != "" {
		return u.Opaque, nil
	}

	p := u.Path
	if p == "/" {
		p = ""
	}
	return strings.TrimPrefix(u.Host+p, "/"), nil
}
