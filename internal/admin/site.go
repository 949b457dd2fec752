package admin

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/gisquick/accounts-server/internal/domain"
)

var (
	ErrAlreadyRegistered = errors.New("model is already registered")
	ErrNotRegistered     = errors.New("model is not registered")
)

// ConfigError reports admin option referring to an unknown field.
type ConfigError struct {
	Model  string
	Option string
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = fmt.Sprintf("which is not a field of '%s'", e.Model)
	}
	return fmt.Sprintf("admin: %s: '%s' refers to '%s', %s", e.Model, e.Option, e.Field, reason)
}

type entry struct {
	model Model
	admin ModelAdmin
}

// Site is a registry of model admins.
type Site struct {
	sync.RWMutex
	registry map[string]entry
}

// DefaultSite is the process-wide admin site.
var DefaultSite = NewSite()

func NewSite() *Site {
	return &Site{registry: make(map[string]entry)}
}

func checkFields(model Model, option string, fields, allowed domain.FieldNames) error {
	for _, f := range fields {
		name, _ := domain.OrderingField(f)
		if !allowed.Has(name) {
			return &ConfigError{Model: model.Name, Option: option, Field: f}
		}
	}
	return nil
}

func checkFieldsets(model Model, option string, fieldsets Fieldsets, allowed domain.FieldNames) error {
	seen := make(map[string]bool)
	for _, fs := range fieldsets {
		if fs.Fields == nil {
			return &ConfigError{Model: model.Name, Option: option, Field: fs.Name, Reason: "which must contain the 'fields' key"}
		}
		if err := checkFields(model, option, fs.Fields, allowed); err != nil {
			return err
		}
		for _, f := range fs.Fields {
			if seen[f] {
				return &ConfigError{Model: model.Name, Option: option, Field: f, Reason: "which is duplicated"}
			}
			seen[f] = true
		}
	}
	return nil
}

// Check validates that all admin options refer to existing model fields.
func Check(model Model, ma ModelAdmin) error {
	if err := checkFields(model, "list_display", ma.ListDisplay(), model.Fields); err != nil {
		return err
	}
	if err := checkFields(model, "list_filter", ma.ListFilter(), model.Fields); err != nil {
		return err
	}
	if err := checkFields(model, "search_fields", ma.SearchFields(), model.Fields); err != nil {
		return err
	}
	if err := checkFields(model, "ordering", ma.Ordering(), model.Fields); err != nil {
		return err
	}
	if err := checkFields(model, "readonly_fields", ma.ReadonlyFields(), model.Fields); err != nil {
		return err
	}
	if err := checkFieldsets(model, "fieldsets", ma.Fieldsets(), model.Fields); err != nil {
		return err
	}
	return checkFieldsets(model, "add_fieldsets", ma.AddFieldsets(), model.Fields.Union(model.AddFormFields))
}

func (s *Site) Register(model Model, ma ModelAdmin) error {
	if err := Check(model, ma); err != nil {
		return err
	}
	s.Lock()
	defer s.Unlock()
	if _, exists := s.registry[model.Name]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, model.Name)
	}
	s.registry[model.Name] = entry{model: model, admin: ma}
	return nil
}

func (s *Site) Unregister(name string) error {
	s.Lock()
	defer s.Unlock()
	if _, exists := s.registry[name]; !exists {
		return fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}
	delete(s.registry, name)
	return nil
}

func (s *Site) Get(name string) (Model, ModelAdmin, error) {
	s.RLock()
	defer s.RUnlock()
	e, ok := s.registry[name]
	if !ok {
		return Model{}, nil, fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}
	return e.model, e.admin, nil
}

func (s *Site) IsRegistered(name string) bool {
	s.RLock()
	defer s.RUnlock()
	_, ok := s.registry[name]
	return ok
}

// Models returns sorted names of registered models.
func (s *Site) Models() []string {
	s.RLock()
	defer s.RUnlock()
	names := make([]string, 0, len(s.registry))
	for name := range s.registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
