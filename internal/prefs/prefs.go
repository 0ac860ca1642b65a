// Package prefs persists the appearance settings: light/dark mode and the
// background image reference.
package prefs

import (
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"taskpad/internal/storage"
	"taskpad/internal/utils"
)

// Storage keys
const (
	ThemeKey      = "app_theme"
	BackgroundKey = "app_bg"
)

// DefaultBackground is the galaxy image used until the user picks another
const DefaultBackground = "https://images.unsplash.com/photo-1534796636912-3b95b3ab5980?q=80&w=3272&auto=format&fit=crop"

// Mode is the colour scheme
type Mode string

const (
	Light Mode = "light"
	Dark  Mode = "dark"
)

// ParseMode converts a string into a Mode
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case Light:
		return Light, nil
	case Dark:
		return Dark, nil
	}
	return "", utils.ErrValidation("unknown theme \"" + s + "\" (valid: light, dark)")
}

// Prefs holds the appearance settings, writing through to storage
type Prefs struct {
	kv storage.KV

	mu         sync.RWMutex
	mode       Mode
	background string
}

// Load reads the saved settings once. Missing or unrecognized values fall
// back to the defaults.
func Load(kv storage.KV) (*Prefs, error) {
	p := &Prefs{kv: kv, mode: Light, background: DefaultBackground}

	raw, ok, err := kv.Get(ThemeKey)
	if err != nil {
		return nil, err
	}
	if ok {
		if m, err := ParseMode(raw); err == nil {
			p.mode = m
		} else {
			utils.Warnf("Ignoring saved theme %q", raw)
		}
	}

	bg, ok, err := kv.Get(BackgroundKey)
	if err != nil {
		return nil, err
	}
	if ok && bg != "" {
		p.background = bg
	}
	return p, nil
}

// Mode returns the current colour scheme
func (p *Prefs) Mode() Mode {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.mode
}

// SetMode persists and applies m
func (p *Prefs) SetMode(m Mode) error {
	if _, err := ParseMode(string(m)); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.kv.Set(ThemeKey, string(m)); err != nil {
		return err
	}
	p.mode = m
	return nil
}

// ToggleMode switches between light and dark, returning the new mode
func (p *Prefs) ToggleMode() (Mode, error) {
	next := Dark
	if p.Mode() == Dark {
		next = Light
	}
	return next, p.SetMode(next)
}

// Background returns the background image reference
func (p *Prefs) Background() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.background
}

// SetBackground persists ref. An empty ref restores DefaultBackground.
func (p *Prefs) SetBackground(ref string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		ref = DefaultBackground
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.kv.Set(BackgroundKey, ref); err != nil {
		return err
	}
	p.background = ref
	return nil
}

// IsDefaultBackground reports whether no custom background is set
func (p *Prefs) IsDefaultBackground() bool {
	return p.Background() == DefaultBackground
}

// Apply pushes the mode to the terminal renderer
func (p *Prefs) Apply() {
	lipgloss.SetHasDarkBackground(p.Mode() == Dark)
}
