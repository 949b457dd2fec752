package admin

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/gisquick/accounts-server/internal/domain"
)

// Changelist query parameter names.
const (
	SearchVar = "q"
	OrderVar  = "o"
	PageVar   = "p"
)

type InvalidParamError struct {
	Param string
	Value string
}

func (e *InvalidParamError) Error() string {
	return fmt.Sprintf("invalid value of '%s' parameter: '%s'", e.Param, e.Value)
}

// Changelist is a page of the admin list view.
type Changelist struct {
	admin ModelAdmin
	Query domain.UsersQuery
	Page  int
}

type Column struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

type Row struct {
	ID     string        `json:"id"`
	Values []interface{} `json:"values"`
}

type ChangelistResult struct {
	Columns  []Column `json:"columns"`
	Rows     []Row    `json:"rows"`
	Count    int      `json:"count"`
	Page     int      `json:"page"`
	NumPages int      `json:"num_pages"`
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "1", "true", "yes":
		return true, nil
	case "0", "false", "no":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean value: %s", v)
}

// NewChangelist builds users query from list view parameters.
func NewChangelist(ma ModelAdmin, params url.Values) (*Changelist, error) {
	q := domain.UsersQuery{
		Search:       strings.TrimSpace(params.Get(SearchVar)),
		SearchFields: ma.SearchFields(),
		Filters:      make(map[string]bool),
		Ordering:     ma.Ordering(),
		Limit:        ma.ListPerPage(),
	}
	for _, f := range ma.ListFilter() {
		value := params.Get(f)
		if value == "" {
			continue
		}
		b, err := parseBool(value)
		if err != nil {
			return nil, &InvalidParamError{Param: f, Value: value}
		}
		q.Filters[f] = b
	}
	if o := params.Get(OrderVar); o != "" {
		sortable := ma.ListDisplay().Union(ma.Ordering())
		ordering := domain.FieldNames{}
		for _, item := range strings.Split(o, ",") {
			item = strings.TrimSpace(item)
			name, _ := domain.OrderingField(item)
			if !sortable.Has(name) || name == "password" {
				return nil, &InvalidParamError{Param: OrderVar, Value: o}
			}
			ordering = append(ordering, item)
		}
		// keep stable order of remaining items
		q.Ordering = ordering.Union(ma.Ordering())
	}
	page := 1
	if p := params.Get(PageVar); p != "" {
		v, err := strconv.Atoi(p)
		if err != nil || v < 1 {
			return nil, &InvalidParamError{Param: PageVar, Value: p}
		}
		page = v
	}
	q.Offset = (page - 1) * q.Limit
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return &Changelist{admin: ma, Query: q, Page: page}, nil
}

func cellValue(u domain.User, field string) interface{} {
	if field == "password" {
		return PasswordSummary(u)
	}
	v, _ := u.FieldValue(field)
	return v
}

// Result projects users onto list_display columns.
func (cl *Changelist) Result(users []domain.User, count int) ChangelistResult {
	display := cl.admin.ListDisplay()
	columns := make([]Column, len(display))
	for i, f := range display {
		columns[i] = Column{Name: f, Label: FieldLabel(f)}
	}
	rows := make([]Row, len(users))
	for i, u := range users {
		values := make([]interface{}, len(display))
		for j, f := range display {
			values[j] = cellValue(u, f)
		}
		rows[i] = Row{ID: u.ID, Values: values}
	}
	numPages := 1
	if cl.Query.Limit > 0 && count > 0 {
		numPages = (count + cl.Query.Limit - 1) / cl.Query.Limit
	}
	return ChangelistResult{
		Columns:  columns,
		Rows:     rows,
		Count:    count,
		Page:     cl.Page,
		NumPages: numPages,
	}
}
