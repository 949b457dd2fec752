// Package admin describes how models are listed and edited in the
// administration interface.
package admin

import (
	"github.com/gisquick/accounts-server/internal/domain"
)

// Fieldset is a named group of fields shown together in an edit form.
type Fieldset struct {
	Name    string            `json:"name"`
	Classes []string          `json:"classes,omitempty"`
	Fields  domain.FieldNames `json:"fields"`
}

type Fieldsets []Fieldset

func (f Fieldsets) Clone() Fieldsets {
	res := make(Fieldsets, len(f))
	for i, fs := range f {
		res[i] = Fieldset{Name: fs.Name, Fields: fs.Fields.Clone()}
		if fs.Classes != nil {
			res[i].Classes = append([]string{}, fs.Classes...)
		}
	}
	return res
}

// Extend returns new fieldsets list with given fieldsets appended.
func (f Fieldsets) Extend(fieldsets ...Fieldset) Fieldsets {
	return append(f.Clone(), Fieldsets(fieldsets).Clone()...)
}

func (f Fieldsets) Names() []string {
	names := make([]string, len(f))
	for i, fs := range f {
		names[i] = fs.Name
	}
	return names
}

func (f Fieldsets) Find(name string) (Fieldset, bool) {
	for _, fs := range f {
		if fs.Name == name {
			return fs, true
		}
	}
	return Fieldset{}, false
}

// Fields returns flattened list of all fields.
func (f Fieldsets) Fields() domain.FieldNames {
	res := domain.FieldNames{}
	for _, fs := range f {
		res = append(res, fs.Fields...)
	}
	return res
}

// ModelAdmin declares how a model is presented in the admin interface.
type ModelAdmin interface {
	ListDisplay() domain.FieldNames
	ListFilter() domain.FieldNames
	SearchFields() domain.FieldNames
	Ordering() domain.FieldNames
	ReadonlyFields() domain.FieldNames
	Fieldsets() Fieldsets
	AddFieldsets() Fieldsets
	ListPerPage() int
}

// Model describes a model registered in the admin site.
type Model struct {
	Name   string
	Fields domain.FieldNames
	// Form-only fields accepted by the add form.
	AddFormFields domain.FieldNames
}

// Options serialized for admin clients.
type Options struct {
	Model        string            `json:"model"`
	ListDisplay  domain.FieldNames `json:"list_display"`
	ListFilter   domain.FieldNames `json:"list_filter"`
	SearchFields domain.FieldNames `json:"search_fields"`
	Ordering     domain.FieldNames `json:"ordering"`
	Readonly     domain.FieldNames `json:"readonly_fields"`
	Fieldsets    Fieldsets         `json:"fieldsets"`
	AddFieldsets Fieldsets         `json:"add_fieldsets"`
	ListPerPage  int               `json:"list_per_page"`
	Labels       map[string]string `json:"labels"`
}

func OptionsOf(model Model, ma ModelAdmin) Options {
	labels := make(map[string]string)
	for _, f := range model.Fields.Union(model.AddFormFields) {
		labels[f] = FieldLabel(f)
	}
	return Options{
		Model:        model.Name,
		ListDisplay:  ma.ListDisplay(),
		ListFilter:   ma.ListFilter(),
		SearchFields: ma.SearchFields(),
		Ordering:     ma.Ordering(),
		Readonly:     ma.ReadonlyFields(),
		Fieldsets:    ma.Fieldsets(),
		AddFieldsets: ma.AddFieldsets(),
		ListPerPage:  ma.ListPerPage(),
		Labels:       labels,
	}
}
