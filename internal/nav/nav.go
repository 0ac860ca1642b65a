// Package nav implements the navigation controller: a finite-state router
// driven by identity changes from the session store and explicit requests
// from the view layer.
package nav

import (
	"fmt"
	"sync"

	"taskpad/backend"
	"taskpad/internal/auth"
	"taskpad/internal/utils"
)

// Screen identifies a navigation state
type Screen string

const (
	Login          Screen = "login"
	Register       Screen = "register"
	ForgotPassword Screen = "forgot-password"
	Home           Screen = "home"
	AddItem        Screen = "add-item"
	EditItem       Screen = "edit-item"
	Settings       Screen = "settings"
)

// Screens lists every screen
var Screens = []Screen{Login, Register, ForgotPassword, Home, AddItem, EditItem, Settings}

// IsAuthScreen reports whether s is reachable without an identity
func (s Screen) IsAuthScreen() bool {
	return s == Login || s == Register || s == ForgotPassword
}

func (s Screen) valid() bool {
	for _, candidate := range Screens {
		if s == candidate {
			return true
		}
	}
	return false
}

// State is a snapshot of the navigation state
type State struct {
	Screen  Screen
	Pending *backend.Item // set only for EditItem
	// Generation increases on every screen change.
	Generation uint64
}

// IdentitySource is the part of the session store the controller needs
type IdentitySource interface {
	Subscribe(fn func(*auth.Identity)) (unsubscribe func())
}

// Controller owns the navigation state
type Controller struct {
	mu         sync.Mutex
	screen     Screen
	pending    *backend.Item
	generation uint64
	ready      bool
	detach     func()

	watchMu  sync.Mutex
	watchers []*watcher
}

type watcher struct {
	fn      func(State)
	removed bool
}

// New creates a controller on the Login screen
func New() *Controller {
	return &Controller{screen: Login}
}

// Attach subscribes to identity changes. Because Subscribe calls back
// immediately, a persisted identity moves the controller to Home before
// Attach returns.
func (c *Controller) Attach(src IdentitySource) {
	unsubscribe := src.Subscribe(c.onIdentity)

	c.mu.Lock()
	previous := c.detach
	c.detach = unsubscribe
	c.mu.Unlock()

	if previous != nil {
		previous()
	}
}

// Detach stops following identity changes
func (c *Controller) Detach() {
	c.mu.Lock()
	unsubscribe := c.detach
	c.detach = nil
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// Ready reports whether the first identity signal has arrived
func (c *Controller) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// onIdentity applies the automatic transition rules
func (c *Controller) onIdentity(id *auth.Identity) {
	c.mu.Lock()
	c.ready = true
	changed := false
	switch {
	case id == nil:
		changed = c.setScreen(Login)
		if c.pending != nil {
			c.pending = nil
			changed = true
		}
	case c.screen.IsAuthScreen():
		changed = c.setScreen(Home)
	}
	state := c.stateLocked()
	c.mu.Unlock()

	if changed {
		utils.Debugf("Navigation: identity change -> %s", state.Screen)
		c.notify(state)
	}
}

// Navigate handles an explicit navigation request. EditItem requires an item.
func (c *Controller) Navigate(screen Screen, item *backend.Item) error {
	if !screen.valid() {
		return utils.ErrValidation(fmt.Sprintf("unknown screen %q", screen))
	}
	if screen == EditItem && item == nil {
		return utils.ErrValidation("an item is required to edit")
	}

	c.mu.Lock()
	c.setScreen(screen)
	switch screen {
	case AddItem:
		c.pending = nil
	case EditItem:
		copied := *item
		c.pending = &copied
	}
	state := c.stateLocked()
	c.mu.Unlock()

	utils.Debugf("Navigation: -> %s", screen)
	c.notify(state)
	return nil
}

// State returns the current navigation state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// Current returns the current screen
func (c *Controller) Current() Screen {
	return c.State().Screen
}

// Pending returns a copy of the item carried into EditItem, or nil
func (c *Controller) Pending() *backend.Item {
	return c.State().Pending
}

// Generation returns the screen-change counter. A view layer captures it
// when starting an operation and discards the result if it has moved on.
func (c *Controller) Generation() uint64 {
	return c.State().Generation
}

// Watch registers fn for state changes. The returned func removes it and is
// safe to call repeatedly or from inside fn.
func (c *Controller) Watch(fn func(State)) (unwatch func()) {
	w := &watcher{fn: fn}
	c.watchMu.Lock()
	c.watchers = append(c.watchers, w)
	c.watchMu.Unlock()

	return func() {
		c.watchMu.Lock()
		defer c.watchMu.Unlock()
		w.removed = true
		for i, candidate := range c.watchers {
			if candidate == w {
				c.watchers = append(c.watchers[:i:i], c.watchers[i+1:]...)
				return
			}
		}
	}
}

func (c *Controller) notify(state State) {
	c.watchMu.Lock()
	snapshot := make([]*watcher, len(c.watchers))
	copy(snapshot, c.watchers)
	c.watchMu.Unlock()

	for _, w := range snapshot {
		c.watchMu.Lock()
		removed := w.removed
		c.watchMu.Unlock()
		if !removed {
			w.fn(state)
		}
	}
}

// setScreen changes the screen, bumping the generation. Callers hold mu.
func (c *Controller) setScreen(s Screen) bool {
	if c.screen == s {
		return false
	}
	c.screen = s
	c.generation++
	return true
}

func (c *Controller) stateLocked() State {
	st := State{Screen: c.screen, Generation: c.generation}
	if c.pending != nil {
		copied := *c.pending
		st.Pending = &copied
	}
	return st
}
