package sources

import (
	"errors"
	"fmt"
	"strings"

	"wallgrab/pkg/config"
	"wallgrab/pkg/logger"
)

var (
	// ErrUnknownSource is returned for a name no source answers to
	ErrUnknownSource = errors.New("unknown source")
	// ErrMissingAPIKey is returned for a keyed source without a key
	ErrMissingAPIKey = errors.New("missing API key")
)

// BuiltinNames lists the built-in sources in their canonical order
var BuiltinNames = []string{"wallhaven", "reddit", "unsplash", "pixabay", "pexels"}

// KeyFunc looks up a stored API key for a source, returning "" when none
type KeyFunc func(source string) string

// Endpoints overrides the public API URLs, mainly for tests
type Endpoints struct {
	Wallhaven          string
	Reddit             string
	Unsplash           string
	UnsplashRedirector string
	Pixabay            string
	Pexels             string
}

// Info describes a registered source for listings
type Info struct {
	Name     string
	Enabled  bool
	Limit    int
	NeedsKey bool
	HasKey   bool
}

// Registry builds and looks up sources by case-insensitive name
type Registry struct {
	sources map[string]Source
	missing map[string]bool
	infos   []Info
}

// NewRegistry creates every built-in and custom source from cfg. Keys in
// cfg win over keys returned by keys.
func NewRegistry(cfg *config.Config, client JSONClient, keys KeyFunc, endpoints Endpoints, log logger.Logger) *Registry {
	if log == nil {
		log = logger.GetLogger()
	}
	lookup := func(name, configured string) string {
		if configured != "" || keys == nil {
			return configured
		}
		return keys(name)
	}

	r := &Registry{
		sources: make(map[string]Source),
		missing: make(map[string]bool),
	}

	wallhaven := cfg.Sources.Wallhaven
	wallhaven.APIKey = lookup("wallhaven", wallhaven.APIKey)
	r.add(NewWallhaven(client, wallhaven, endpoints.Wallhaven, log), wallhaven.SourceCommon, false, wallhaven.APIKey != "")

	r.add(NewReddit(client, cfg.Sources.Reddit, endpoints.Reddit, log), cfg.Sources.Reddit.SourceCommon, false, false)

	unsplash := cfg.Sources.Unsplash
	unsplash.AccessKey = lookup("unsplash", unsplash.AccessKey)
	r.add(NewUnsplash(client, unsplash, endpoints.Unsplash, endpoints.UnsplashRedirector, log), unsplash.SourceCommon, false, unsplash.AccessKey != "")

	pixabay := cfg.Sources.Pixabay
	pixabay.APIKey = lookup("pixabay", pixabay.APIKey)
	r.add(NewPixabay(client, pixabay, endpoints.Pixabay, log), pixabay.SourceCommon, true, pixabay.APIKey != "")

	pexels := cfg.Sources.Pexels
	pexels.APIKey = lookup("pexels", pexels.APIKey)
	r.add(NewPexels(client, pexels, endpoints.Pexels, log), pexels.SourceCommon, true, pexels.APIKey != "")

	for _, custom := range cfg.Sources.Custom {
		common := custom.SourceCommon
		if common.Limit == 0 {
			common.Limit = 10
		}
		r.add(NewCustom(client, custom, log), common, false, false)
	}

	return r
}

func (r *Registry) add(s Source, common config.SourceCommon, needsKey, hasKey bool) {
	name := s.Name()
	r.sources[name] = s
	if needsKey && !hasKey {
		r.missing[name] = true
	}
	r.infos = append(r.infos, Info{
		Name:     name,
		Enabled:  common.Enabled,
		Limit:    common.Limit,
		NeedsKey: needsKey,
		HasKey:   hasKey,
	})
}

// Get returns the named source. It fails with ErrUnknownSource or, for a
// keyed source without a key, ErrMissingAPIKey.
func (r *Registry) Get(name string) (Source, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	s, ok := r.sources[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, name)
	}
	if r.missing[key] {
		return nil, fmt.Errorf("%w: %s", ErrMissingAPIKey, name)
	}
	return s, nil
}

// Names returns every registered source name in canonical order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.infos))
	for _, info := range r.infos {
		names = append(names, info.Name)
	}
	return names
}

// Defaults returns the enabled sources that can run without further
// setup, in canonical order
func (r *Registry) Defaults() []string {
	var names []string
	for _, info := range r.infos {
		if info.Enabled && !r.missing[info.Name] {
			names = append(names, info.Name)
		}
	}
	return names
}

// Infos describes every registered source
func (r *Registry) Infos() []Info {
	out := make([]Info, len(r.infos))
	copy(out, r.infos)
	return out
}
