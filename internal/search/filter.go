// Package search turns a declarative product filter into a query against
// the local catalog mirror.
package search

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"shopmirror/internal/models"
	apperrors "shopmirror/pkg/errors"

	"github.com/shopspring/decimal"
)

type Show string

const (
	ShowAvailable Show = "available"
	ShowAll       Show = "all"
)

const (
	SortTitleAsc  = "title-ascending"
	SortTitleDesc = "title-descending"
	SortPriceAsc  = "price-ascending"
	SortPriceDesc = "price-descending"
	SortDateAsc   = "date-ascending"
	SortDateDesc  = "date-descending"
	SortManual    = "manual-ascending"
)

const (
	DefaultPerPage = 20
	MaxPerPage     = 250
)

type Filter struct {
	Show     Show
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	// Tags are expressions: "a", "a-and-b" or "a-or-b". Each must match.
	Tags []string
	// Vendor matches either the vendor name or its slug.
	Vendor string
	// CollectionID is a remote collection id, custom or smart.
	CollectionID int64
	Rules        []models.CollectionRule
	Disjunctive  bool
	Sort         string
	Page         int
	PerPage      int
	// ManualOrder overrides the collection's own order for manual-ascending.
	ManualOrder []int64
}

// ParseFilter reads a filter from query parameters: show, min_price,
// max_price, tag (repeatable), vendor, collection, sort, page, per_page.
func ParseFilter(q url.Values) (Filter, error) {
	f := Filter{
		Show:   Show(strings.ToLower(q.Get("show"))),
		Tags:   q["tag"],
		Vendor: strings.TrimSpace(q.Get("vendor")),
		Sort:   q.Get("sort"),
	}
	if f.Show == "" {
		f.Show = ShowAvailable
	}

	var err error
	if f.MinPrice, err = parsePrice(q, "min_price"); err != nil {
		return f, err
	}
	if f.MaxPrice, err = parsePrice(q, "max_price"); err != nil {
		return f, err
	}
	if v := q.Get("collection"); v != "" {
		if f.CollectionID, err = strconv.ParseInt(v, 10, 64); err != nil {
			return f, invalid("collection", v)
		}
	}
	if v := q.Get("page"); v != "" {
		if f.Page, err = strconv.Atoi(v); err != nil {
			return f, invalid("page", v)
		}
	}
	if v := q.Get("per_page"); v != "" {
		if f.PerPage, err = strconv.Atoi(v); err != nil {
			return f, invalid("per_page", v)
		}
	}
	return f, f.Validate()
}

func parsePrice(q url.Values, key string) (*decimal.Decimal, error) {
	v := q.Get(key)
	if v == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return nil, invalid(key, v)
	}
	return &d, nil
}

func invalid(field, value string) error {
	return &apperrors.ErrValidation{
		Message: fmt.Sprintf("invalid %s %q", field, value),
		Fields:  map[string]string{field: value},
	}
}

func (f Filter) Validate() error {
	switch f.Show {
	case ShowAvailable, ShowAll, "":
	default:
		return invalid("show", string(f.Show))
	}
	switch f.Sort {
	case "", SortTitleAsc, SortTitleDesc, SortPriceAsc, SortPriceDesc, SortDateAsc, SortDateDesc, SortManual:
	default:
		return invalid("sort", f.Sort)
	}
	if f.Page < 0 {
		return invalid("page", strconv.Itoa(f.Page))
	}
	if f.PerPage < 0 || f.PerPage > MaxPerPage {
		return invalid("per_page", strconv.Itoa(f.PerPage))
	}
	for _, r := range f.Rules {
		if _, _, err := ruleCondition(r); err != nil {
			return err
		}
	}
	return nil
}

func (f Filter) limits() (page, perPage int) {
	page, perPage = f.Page, f.PerPage
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	return page, perPage
}

// tagGroups splits a tag expression into OR-ed groups of AND-ed terms.
func tagGroups(expr string) [][]string {
	var groups [][]string
	for _, alt := range strings.Split(expr, "-or-") {
		var terms []string
		for _, term := range strings.Split(alt, "-and-") {
			if term = strings.ToLower(strings.TrimSpace(term)); term != "" {
				terms = append(terms, term)
			}
		}
		if len(terms) > 0 {
			groups = append(groups, terms)
		}
	}
	return groups
}
