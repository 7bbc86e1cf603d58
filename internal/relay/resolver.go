// Package relay sequences the fetch pipeline against the local cache,
// producing content tagged with its provenance.
package relay

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	"apirelay/internal/config"
	"apirelay/internal/metrics"
	"apirelay/internal/registry"
)

// Source marks where resolved content came from.
type Source string

// Provenance tags.
const (
	SourceRemote Source = "remote"
	SourceLocal  Source = "local"
	SourceError  Source = "error"
)

// Gating errors returned by Allowed.
var (
	ErrEndpointDisabled = errors.New("endpoint is disabled")
	ErrSiteDisabled     = errors.New("endpoint site is disabled")
	ErrTypeDisabled     = errors.New("endpoint payload type is disabled")
)

// Fetcher is the normalization entry point of the fetch pipeline.
type Fetcher interface {
	GetData(ctx context.Context, urls []string, params map[string]string, kind registry.Kind, target string) (string, []byte, error)
}

// Cache is the local fallback collaborator.
type Cache interface {
	Save(kind registry.Kind, name string, text string, data []byte) (string, string, error)
	Load(kind registry.Kind, name string) (string, string, error)
}

// Resolver runs the strict two-step fallback: remote fetch, then cache.
type Resolver struct {
	fetcher           Fetcher
	cache             Cache
	enabledTypes      map[registry.Kind]bool
	disabledEndpoints map[string]bool
	disabledSites     []string
	logger            *zap.Logger
}

// New builds a Resolver applying the configured gating rules.
func New(fetcher Fetcher, cache Cache, cfg config.RelayConfig, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	enabled := make(map[registry.Kind]bool, len(cfg.EnabledTypes))
	for _, t := range cfg.EnabledTypes {
		enabled[registry.Kind(t)] = true
	}
	disabled := make(map[string]bool, len(cfg.DisabledEndpoints))
	for _, name := range cfg.DisabledEndpoints {
		disabled[name] = true
	}
	metrics.Init()
	return &Resolver{
		fetcher:           fetcher,
		cache:             cache,
		enabledTypes:      enabled,
		disabledEndpoints: disabled,
		disabledSites:     append([]string(nil), cfg.DisabledSites...),
		logger:            logger,
	}
}

// Allowed reports whether a matched definition may be resolved under the
// configured gating rules.
func (r *Resolver) Allowed(def registry.Definition) error {
	if r.disabledEndpoints[def.Name()] {
		return ErrEndpointDisabled
	}
	for _, u := range def.URLs {
		for _, site := range r.disabledSites {
			if site != "" && len(u) >= len(site) && u[:len(site)] == site {
				return ErrSiteDisabled
			}
		}
	}
	if len(r.enabledTypes) > 0 && !r.enabledTypes[def.Type] {
		return ErrTypeDisabled
	}
	return nil
}

// Resolve fetches content for a definition and hands it to the cache for a
// stable reference, falling back to previously cached content when the
// whole fetch pipeline fails. Both paths failing yields SourceError with
// no content.
func (r *Resolver) Resolve(ctx context.Context, def registry.Definition, params map[string]string) (string, string, Source) {
	if params == nil {
		params = def.Params
	}

	text, data, err := r.fetcher.GetData(ctx, def.URLs, params, def.Type, def.Target)
	if err == nil {
		savedText, savedPath, saveErr := r.cache.Save(def.Type, def.Name(), text, data)
		if saveErr == nil {
			metrics.ObserveResolution(string(SourceRemote))
			return savedText, savedPath, SourceRemote
		}
		r.logger.Warn("caching fetched payload failed",
			zap.String("endpoint", def.Name()), zap.Error(saveErr))
	} else {
		r.logger.Warn("fetch pipeline failed, trying local cache",
			zap.String("endpoint", def.Name()), zap.Error(err))
	}

	localText, localPath, localErr := r.cache.Load(def.Type, def.Name())
	if localErr == nil {
		metrics.ObserveResolution(string(SourceLocal))
		return localText, localPath, SourceLocal
	}
	r.logger.Error("local cache fallback failed",
		zap.String("endpoint", def.Name()), zap.Error(localErr))
	metrics.ObserveResolution(string(SourceError))
	return "", "", SourceError
}

// OverlayParams fills a definition's parameter defaults with positional
// args, in deterministic sorted-key order. With no args at all, empty
// defaults (meaning "fill from context") take the subject instead.
func OverlayParams(defaults map[string]string, args []string, subject string) map[string]string {
	out := make(map[string]string, len(defaults))
	if len(args) == 0 {
		for k, v := range defaults {
			if v == "" && subject != "" {
				out[k] = subject
				continue
			}
			out[k] = v
		}
		return out
	}

	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for i, k := range keys {
		if i < len(args) {
			out[k] = args[i]
		} else {
			out[k] = defaults[k]
		}
	}
	return out
}
