// Package registry maps action type identifiers to action handlers.
package registry

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"plugin"
	"sort"
	"sync"

	"github.com/dukex/autoflow/pkg/protocol"
)

// HandlerSymbol is the symbol a handler plugin must export.
const HandlerSymbol = "Handler"

// Registry is safe for concurrent use. Registration normally happens at process start
// and lookups happen for every executed action.
type Registry struct {
	logger   *slog.Logger
	mu       sync.RWMutex
	handlers map[string]protocol.ActionHandler
}

func New(logger *slog.Logger) *Registry {
	return &Registry{
		logger:   logger,
		handlers: make(map[string]protocol.ActionHandler),
	}
}

// Register binds actionType to handler. A later registration of the same type wins.
func (r *Registry) Register(actionType string, handler protocol.ActionHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[actionType]; exists {
		r.logger.Warn("Replacing registered action handler", "action_type", actionType)
	}

	r.handlers[actionType] = handler
}

func (r *Registry) Lookup(actionType string) (protocol.ActionHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handler, ok := r.handlers[actionType]

	return handler, ok
}

// Types returns the registered action types in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.handlers))
	for actionType := range r.handlers {
		types = append(types, actionType)
	}

	sort.Strings(types)

	return types
}

// HandlerInfo describes a registered handler for listings.
type HandlerInfo struct {
	Type        string         `json:"type"`
	Name        string         `json:"name,omitempty"`
	Description string         `json:"description,omitempty"`
	Schema      map[string]any `json:"schema,omitempty"`
}

func (r *Registry) Describe() []HandlerInfo {
	types := r.Types()
	infos := make([]HandlerInfo, 0, len(types))

	for _, actionType := range types {
		handler, ok := r.Lookup(actionType)
		if !ok {
			continue
		}

		info := HandlerInfo{Type: actionType}
		if d, ok := handler.(protocol.Describer); ok {
			info.Name = d.Name()
			info.Description = d.Description()
		}

		if s, ok := handler.(protocol.SchemaProvider); ok {
			info.Schema = s.Schema()
		}

		infos = append(infos, info)
	}

	return infos
}

// LoadHandlerPlugins opens every shared object under pluginsPath/actions and registers
// the Handler symbol each one exports.
func (r *Registry) LoadHandlerPlugins(pluginsPath string) ([]protocol.TypedHandler, error) {
	handlers, err := loadPlugins[protocol.TypedHandler](r.logger, filepath.Join(pluginsPath, "actions"), HandlerSymbol)
	if err != nil {
		return nil, err
	}

	for _, h := range handlers {
		r.Register(h.Type(), h)
	}

	return handlers, nil
}

func loadPlugins[T any](logger *slog.Logger, rootPath string, symbolName string) ([]T, error) {
	if _, err := os.Stat(rootPath); os.IsNotExist(err) {
		return nil, nil
	}

	pluginPathList, err := fs.Glob(os.DirFS(rootPath), "**/*.so")
	if err != nil {
		return nil, err
	}

	l := logger.With(slog.String("path", rootPath), slog.String("symbol", symbolName))
	l.Info("Loading plugins", "count", len(pluginPathList))

	pluginList := make([]T, 0, len(pluginPathList))

	for _, p := range pluginPathList {
		plg, err := plugin.Open(filepath.Join(rootPath, p))
		if err != nil {
			return nil, fmt.Errorf("opening plugin %s: %w", p, err)
		}

		v, err := plg.Lookup(symbolName)
		if err != nil {
			return nil, fmt.Errorf("plugin %s: %w", p, err)
		}

		castV, ok := v.(T)
		if !ok {
			return nil, fmt.Errorf("plugin %s: symbol %s has unexpected type %T", p, symbolName, v)
		}

		pluginList = append(pluginList, castV)

		l.Info("Loaded handler plugin", slog.String("plugin", p))
	}

	return pluginList, nil
}
