// Package registry loads the component registry: the durable description of
// every independently versioned installable unit the sync pipeline manages.
// The registry is read at startup and merged over built-in defaults; the
// pipeline itself never mutates it.
package registry

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"github.com/nguyentruongduy1410/VoiceUpdate/internal/validate"
)

// Kind distinguishes how a downloaded artifact is installed.
type Kind string

const (
	// KindFile is copied into the destination, optionally renamed.
	KindFile Kind = "file"
	// KindArchive is extracted in place at the destination.
	KindArchive Kind = "archive"
)

// Component describes one installable unit.
type Component struct {
	ID          string   `mapstructure:"-"`
	URL         string   `mapstructure:"url"`
	Version     string   `mapstructure:"version"`
	Kind        Kind     `mapstructure:"type"`
	Destination string   `mapstructure:"destination"`
	FileName    string   `mapstructure:"filename"`
	Files       []string `mapstructure:"files"`
	Hash        string   `mapstructure:"hash"`
}

// Registry is the loaded component set, keyed by component ID.
type Registry struct {
	components map[string]Component
}

// Defaults returns the built-in component set shipped with the application.
// URLs are intentionally empty: components without a source URL are skipped
// by the sync pipeline until configured.
func Defaults() map[string]Component {
	return map[string]Component{
		"vocos_model": {
			Version:     "1.0.0",
			Kind:        KindArchive,
			Destination: "models/vocos_model",
			Files:       []string{"config.yaml", "pytorch_model.bin"},
		},
		"whisper_medium": {
			Version:     "1.0.0",
			Kind:        KindFile,
			Destination: "models/whisper",
			FileName:    "medium.pt",
		},
		"secure_model": {
			Version:     "1.0.0",
			Kind:        KindFile,
			Destination: "secure_models",
			FileName:    "model.enc",
		},
		"secure_vocab": {
			Version:     "1.0.0",
			Kind:        KindFile,
			Destination: "secure_models",
			FileName:    "vocab.enc",
		},
	}
}

// Load reads the registry file at path, merging it over Defaults. A missing
// file yields the defaults; a malformed file logs a warning and yields the
// defaults as well (configuration errors are recovered, not propagated).
func Load(path string) *Registry {
	components := Defaults()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("[Registry] WARNING: registry file %s unreadable, using defaults: %v", path, err)
		}
		return &Registry{components: components}
	}

	raw := v.GetStringMap("models")
	for id := range raw {
		base := components[id] // zero Component for unknown IDs
		var loaded Component
		if err := v.UnmarshalKey("models."+id, &loaded); err != nil {
			log.Printf("[Registry] WARNING: component %q malformed, keeping defaults: %v", id, err)
			continue
		}
		components[id] = mergeComponent(base, loaded)
	}

	reg := &Registry{components: make(map[string]Component, len(components))}
	for id, c := range components {
		c.ID = id
		if err := validateComponent(c); err != nil {
			log.Printf("[Registry] WARNING: dropping component %q: %v", id, err)
			continue
		}
		reg.components[id] = c
	}
	return reg
}

// FromComponents builds a registry from an explicit component set (tests and
// programmatic configuration).
func FromComponents(components ...Component) (*Registry, error) {
	reg := &Registry{components: make(map[string]Component, len(components))}
	for _, c := range components {
		if err := validateComponent(c); err != nil {
			return nil, fmt.Errorf("registry: component %q: %w", c.ID, err)
		}
		reg.components[c.ID] = c
	}
	return reg, nil
}

// Get returns the component with the given ID.
func (r *Registry) Get(id string) (Component, bool) {
	c, ok := r.components[id]
	return c, ok
}

// All returns every component ordered by ID for deterministic iteration.
func (r *Registry) All() []Component {
	out := make([]Component, 0, len(r.components))
	for _, c := range r.components {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of registered components.
func (r *Registry) Len() int {
	return len(r.components)
}

func mergeComponent(base, loaded Component) Component {
	out := base
	if loaded.URL != "" {
		out.URL = loaded.URL
	}
	if loaded.Version != "" {
		out.Version = loaded.Version
	}
	if loaded.Kind != "" {
		out.Kind = normalizeKind(loaded.Kind)
	}
	if loaded.Destination != "" {
		out.Destination = loaded.Destination
	}
	if loaded.FileName != "" {
		out.FileName = loaded.FileName
	}
	if len(loaded.Files) > 0 {
		out.Files = loaded.Files
	}
	if loaded.Hash != "" {
		out.Hash = loaded.Hash
	}
	return out
}

// normalizeKind accepts the legacy wire value "zip" as an archive.
func normalizeKind(k Kind) Kind {
	switch Kind(strings.ToLower(string(k))) {
	case "zip", KindArchive:
		return KindArchive
	default:
		return KindFile
	}
}

func validateComponent(c Component) error {
	if !validate.Ident(c.ID) {
		return fmt.Errorf("invalid component ID %q", c.ID)
	}
	if c.Destination == "" {
		return fmt.Errorf("missing destination")
	}
	if strings.Contains(c.Destination, "..") {
		return fmt.Errorf("destination %q escapes the application directory", c.Destination)
	}
	if c.Kind != KindFile && c.Kind != KindArchive {
		return fmt.Errorf("unknown kind %q", c.Kind)
	}
	if c.URL != "" {
		if err := validate.HTTPURL(c.URL); err != nil {
			return err
		}
	}
	return nil
}
