package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPagination(t *testing.T) {
	p := NewPagination(2, 9, 11)
	assert.Equal(t, 2, p.Page)
	assert.Equal(t, 9, p.PerPage)
	assert.Equal(t, 11, p.Total)
	assert.Equal(t, 2, p.TotalPages)
	assert.Equal(t, 9, p.Offset())
	assert.True(t, p.HasPrev())
	assert.False(t, p.HasNext())
}

func TestNewPaginationEmptyResultKeepsOnePage(t *testing.T) {
	p := NewPagination(1, 9, 0)
	assert.Equal(t, 1, p.TotalPages)
	assert.False(t, p.HasPrev())
	assert.False(t, p.HasNext())
}

func TestNewPaginationClampsPage(t *testing.T) {
	p := NewPagination(0, 10, 25)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, 1, p.PrevPage())
	assert.Equal(t, 2, p.NextPage())
}

func TestNextPageClampsAtLast(t *testing.T) {
	p := NewPagination(3, 10, 25)
	assert.Equal(t, 3, p.NextPage())
	assert.Equal(t, 2, p.PrevPage())
}

func TestListQueryNormalize(t *testing.T) {
	q := ListQuery{Search: "john", Page: -4}.Normalize()
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, "john", q.Search)
}
