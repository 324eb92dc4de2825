package search

import (
	"net/url"
	"testing"

	apperrors "shopmirror/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFilter(t *testing.T) {
	q := url.Values{
		"show":       {"all"},
		"min_price":  {"10.50"},
		"tag":        {"winter", "a-or-b"},
		"vendor":     {"Acme"},
		"collection": {"42"},
		"sort":       {"price-descending"},
		"page":       {"3"},
		"per_page":   {"50"},
	}
	f, err := ParseFilter(q)
	require.NoError(t, err)
	assert.Equal(t, ShowAll, f.Show)
	assert.Equal(t, "10.5", f.MinPrice.String())
	assert.Nil(t, f.MaxPrice)
	assert.Equal(t, []string{"winter", "a-or-b"}, f.Tags)
	assert.Equal(t, int64(42), f.CollectionID)
	assert.Equal(t, SortPriceDesc, f.Sort)
	assert.Equal(t, 3, f.Page)
	assert.Equal(t, 50, f.PerPage)
}

func TestParseFilterDefaults(t *testing.T) {
	f, err := ParseFilter(url.Values{})
	require.NoError(t, err)
	assert.Equal(t, ShowAvailable, f.Show)
	page, perPage := f.limits()
	assert.Equal(t, 1, page)
	assert.Equal(t, DefaultPerPage, perPage)
}

func TestParseFilterRejects(t *testing.T) {
	for _, q := range []url.Values{
		{"show": {"hidden"}},
		{"sort": {"random"}},
		{"min_price": {"cheap"}},
		{"per_page": {"1000"}},
		{"collection": {"x"}},
	} {
		_, err := ParseFilter(q)
		assert.True(t, apperrors.IsValidation(err), "%v", q)
	}
}

func TestTagGroups(t *testing.T) {
	assert.Equal(t, [][]string{{"red"}}, tagGroups("Red"))
	assert.Equal(t, [][]string{{"red", "blue"}}, tagGroups("red-and-blue"))
	assert.Equal(t, [][]string{{"red"}, {"blue", "green"}}, tagGroups("red-or-blue-and-green"))
	assert.Empty(t, tagGroups(" "))
}
