// Package sources builds quote sources and routers from their names, as
// stored in the settings.
package sources

import (
	"fmt"
	"log"
	"net/http"
	"slices"
	"sort"
	"time"

	"github.com/etnz/kasa"
	"github.com/etnz/kasa/exrhost"
	"github.com/etnz/kasa/frankfurter"
	"github.com/etnz/kasa/kapalicarsi"
	"github.com/etnz/kasa/metalsdev"
	"github.com/etnz/kasa/stooq"
	"github.com/etnz/kasa/tcmb"
)

// None disables a slot. The manual name is accepted as a synonym since
// operator prices are applied by the router anyway.
const None = "none"

// Options are the shared dependencies of all sources.
type Options struct {
	Client             *http.Client // shared client, kasa.NewHTTPClient with defaults if nil
	MetalsDevAPIKey    string
	ExchangeRateAPIKey string
}

func (o Options) client() *http.Client {
	if o.Client == nil {
		return kasa.NewHTTPClient(kasa.HTTPOptions{})
	}
	return o.Client
}

type factory struct {
	class kasa.Class
	new   func(Options) kasa.Source
}

var registry = map[string]factory{
	frankfurter.Name: {kasa.ClassFX, func(o Options) kasa.Source { return frankfurter.New(o.client()) }},
	exrhost.Name:     {kasa.ClassFX, func(o Options) kasa.Source { return exrhost.New(o.client(), o.ExchangeRateAPIKey) }},
	tcmb.Name:        {kasa.ClassFX, func(o Options) kasa.Source { return tcmb.New(o.client()) }},
	kapalicarsi.Name: {kasa.ClassPrecious, func(o Options) kasa.Source { return kapalicarsi.New(o.client()) }},
	metalsdev.Name:   {kasa.ClassPrecious, func(o Options) kasa.Source { return metalsdev.New(o.client(), o.MetalsDevAPIKey) }},
	stooq.Name:       {kasa.ClassBase, func(o Options) kasa.Source { return stooq.New(o.client()) }},
}

// aliases are the names used by earlier configurations.
var aliases = map[string]string{
	"exchangerate_host":   exrhost.Name,
	"kapalicarsi_apiluna": kapalicarsi.Name,
	"metals_dev":          metalsdev.Name,
	"metalsdev":           metalsdev.Name,
	"copper_stooq":        stooq.Name,
	"manual":              None,
	"":                    None,
}

func canonical(name string) string {
	if a, ok := aliases[name]; ok {
		return a
	}
	return name
}

// Names returns the source names available for class, sorted.
func Names(class kasa.Class) []string {
	var names []string
	for name, f := range registry {
		if f.class == class {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// UnknownSourceError is returned for a name that is not registered for the
// requested class.
type UnknownSourceError struct {
	Name  string
	Class kasa.Class
}

func (e *UnknownSourceError) Error() string {
	return fmt.Sprintf("unknown %s source %q (want one of %v or %q)", e.Class, e.Name, Names(e.Class), None)
}

// New returns the source registered as name for class, or nil for None.
func New(class kasa.Class, name string, opts Options) (kasa.Source, error) {
	name = canonical(name)
	if name == None {
		return nil, nil
	}
	f, ok := registry[name]
	if !ok || f.class != class {
		return nil, &UnknownSourceError{Name: name, Class: class}
	}
	return f.new(opts), nil
}

// Check reports whether name can fill a slot of class.
func Check(class kasa.Class, name string) error {
	name = canonical(name)
	if f, ok := registry[name]; name != None && (!ok || f.class != class) {
		return &UnknownSourceError{Name: name, Class: class}
	}
	return nil
}

// Config names the sources of each slot of a router.
type Config struct {
	FXPrimary      string
	FXFallback     string
	MetalsPrimary  string
	MetalsFallback string
	Copper         string
	Timeout        time.Duration
}

// Router builds a kasa.Router from cfg. Slots set to None are skipped and a
// fallback equal to its primary is ignored.
func Router(cfg Config, opts Options, logger *log.Logger) (*kasa.Router, error) {
	if opts.Client == nil {
		opts.Client = kasa.NewHTTPClient(kasa.HTTPOptions{Logger: logger})
	}
	fx, err := chain(kasa.ClassFX, opts, cfg.FXPrimary, cfg.FXFallback)
	if err != nil {
		return nil, err
	}
	metals, err := chain(kasa.ClassPrecious, opts, cfg.MetalsPrimary, cfg.MetalsFallback)
	if err != nil {
		return nil, err
	}
	rc := kasa.RouterConfig{
		FX:      fx,
		Metals:  metals,
		Timeout: cfg.Timeout,
		Logger:  logger,
	}
	src, err := New(kasa.ClassBase, cfg.Copper, opts)
	if err != nil {
		return nil, err
	}
	if src != nil {
		bm, ok := src.(kasa.BaseMetalSource)
		if !ok {
			return nil, fmt.Errorf("source %q cannot price copper", cfg.Copper)
		}
		rc.Copper = bm
	}
	return kasa.NewRouter(rc), nil
}

func chain(class kasa.Class, opts Options, names ...string) (kasa.Chain, error) {
	var c kasa.Chain
	var seen []string
	for _, name := range names {
		name = canonical(name)
		if name == None || slices.Contains(seen, name) {
			continue
		}
		seen = append(seen, name)
		src, err := New(class, name, opts)
		if err != nil {
			return nil, err
		}
		c = append(c, src)
	}
	return c, nil
}
