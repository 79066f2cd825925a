// Package control exposes named, resettable components to integration tests
// through POST /test-control/reset.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/gogotex/docstore/pkg/logger"
)

// ResetPath is the route served by RegisterRoutes.
const ResetPath = "/test-control/reset"

// Component is something test control can reset to its persisted state.
type Component interface {
	Name() string
	Reset(ctx context.Context) error
}

// UnknownComponentError is returned by Registry.Reset for a name nobody
// registered.
type UnknownComponentError struct {
	Name string
}

func (e *UnknownComponentError) Error() string {
	return fmt.Sprintf("Component '%s' not found", e.Name)
}

// Registry holds components by name, in registration order.
type Registry struct {
	mu         sync.RWMutex
	components []Component
	byName     map[string]Component
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Component)}
}

// Register adds c. Names must be unique.
func (r *Registry) Register(c Component) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[c.Name()]; ok {
		return fmt.Errorf("component %q already registered", c.Name())
	}
	r.byName[c.Name()] = c
	r.components = append(r.components, c)
	return nil
}

// Get looks up a component by name.
func (r *Registry) Get(name string) (Component, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byName[name]
	return c, ok
}

// Names lists registered component names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.components))
	for _, c := range r.components {
		out = append(out, c.Name())
	}
	return out
}

// Reset resets the named component, or every component when name is empty.
// Resetting all stops at the first failure.
func (r *Registry) Reset(ctx context.Context, name string) error {
	if name != "" {
		c, ok := r.Get(name)
		if !ok {
			return &UnknownComponentError{Name: name}
		}
		logger.Infof("test-control: resetting %s", name)
		return c.Reset(ctx)
	}

	r.mu.RLock()
	all := append([]Component(nil), r.components...)
	r.mu.RUnlock()
	for _, c := range all {
		logger.Infof("test-control: resetting %s", c.Name())
		if err := c.Reset(ctx); err != nil {
			return fmt.Errorf("reset %s: %w", c.Name(), err)
		}
	}
	return nil
}

type resetRequest struct {
	ComponentName *string `json:"component_name"`
}

// RegisterRoutes mounts the reset endpoint on r. The body is optional; an
// absent component_name resets everything.
func RegisterRoutes(r gin.IRouter, reg *Registry) {
	r.POST(ResetPath, func(c *gin.Context) {
		raw, err := c.GetRawData()
		if err != nil {
			c.String(http.StatusBadRequest, "Cannot read request body")
			return
		}
		var req resetRequest
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &req); err != nil {
				c.String(http.StatusBadRequest, "Request body must be a JSON object")
				return
			}
		}
		name := ""
		if req.ComponentName != nil {
			name = *req.ComponentName
			if name == "" {
				c.String(http.StatusNotFound, (&UnknownComponentError{}).Error())
				return
			}
		}

		if err := reg.Reset(c.Request.Context(), name); err != nil {
			var unknown *UnknownComponentError
			if errors.As(err, &unknown) {
				c.String(http.StatusNotFound, unknown.Error())
				return
			}
			logger.Errorf("test-control: %v", err)
			c.String(http.StatusInternalServerError, "reset failed")
			return
		}
		c.String(http.StatusOK, "OK")
	})
}
