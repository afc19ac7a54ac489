// Package paging computes page metadata and navigation links for list responses.
package paging

import (
	"net/url"
	"strconv"

	"github.com/aretw0/furrow/pkg/core"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Filter is a requested page.
type Filter struct {
	PageNumber int `json:"pageNumber"`
	PageSize   int `json:"pageSize"`
}

// NewFilter clamps the page number to >= 1 and the size to [1, MaxPageSize].
// A non-positive size falls back to DefaultPageSize.
func NewFilter(pageNumber, pageSize int) Filter {
	return NewFilterWithLimits(pageNumber, pageSize, DefaultPageSize, MaxPageSize)
}

// NewFilterWithLimits is NewFilter with configurable default and maximum sizes.
func NewFilterWithLimits(pageNumber, pageSize, defaultSize, maxSize int) Filter {
	if pageNumber < 1 {
		pageNumber = 1
	}
	if pageSize < 1 {
		pageSize = defaultSize
	}
	if pageSize > maxSize {
		pageSize = maxSize
	}
	return Filter{PageNumber: pageNumber, PageSize: pageSize}
}

// Offset is the number of records before the page.
func (f Filter) Offset() int {
	return (f.PageNumber - 1) * f.PageSize
}

// Spec returns a copy of spec windowed to the page.
func (f Filter) Spec(spec core.Spec) core.Spec {
	return spec.Page(f.Offset(), f.PageSize)
}

// URIBuilder builds the link to a page of a route.
type URIBuilder interface {
	PageURI(filter Filter, route string) (*url.URL, error)
}

type uriBuilder struct {
	base *url.URL
}

// NewURIBuilder returns a builder resolving routes against base and setting the
// pageNumber and pageSize query parameters.
func NewURIBuilder(base string) (URIBuilder, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	return &uriBuilder{base: u}, nil
}

func (b *uriBuilder) PageURI(filter Filter, route string) (*url.URL, error) {
	ref, err := url.Parse(route)
	if err != nil {
		return nil, err
	}
	u := b.base.ResolveReference(ref)
	q := u.Query()
	q.Set("pageNumber", strconv.Itoa(filter.PageNumber))
	q.Set("pageSize", strconv.Itoa(filter.PageSize))
	u.RawQuery = q.Encode()
	return u, nil
}

// Response is one page of data with navigation links.
type Response[T any] struct {
	Data         []T    `json:"data"`
	PageNumber   int    `json:"pageNumber"`
	PageSize     int    `json:"pageSize"`
	TotalPages   int    `json:"totalPages"`
	TotalRecords int64  `json:"totalRecords"`
	FirstPage    string `json:"firstPage"`
	LastPage     string `json:"lastPage"`
	NextPage     string `json:"nextPage,omitempty"`
	PreviousPage string `json:"previousPage,omitempty"`
}

// New builds the response for one page. The last page link points at page
// totalPages, which is 0 when there are no records.
func New[T any](data []T, filter Filter, totalRecords int64, builder URIBuilder, route string) (Response[T], error) {
	if data == nil {
		data = []T{}
	}
	size := filter.PageSize
	if size < 1 {
		size = DefaultPageSize
	}
	totalPages := int((totalRecords + int64(size) - 1) / int64(size))
	page := filter.PageNumber

	resp := Response[T]{
		Data:         data,
		PageNumber:   page,
		PageSize:     size,
		TotalPages:   totalPages,
		TotalRecords: totalRecords,
	}

	link := func(n int) (string, error) {
		u, err := builder.PageURI(Filter{PageNumber: n, PageSize: size}, route)
		if err != nil {
			return "", err
		}
		return u.String(), nil
	}

	var err error
	if page >= 1 && page < totalPages {
		if resp.NextPage, err = link(page + 1); err != nil {
			return resp, err
		}
	}
	if page-1 >= 1 && page <= totalPages {
		if resp.PreviousPage, err = link(page - 1); err != nil {
			return resp, err
		}
	}
	if resp.FirstPage, err = link(1); err != nil {
		return resp, err
	}
	if resp.LastPage, err = link(totalPages); err != nil {
		return resp, err
	}
	return resp, nil
}
