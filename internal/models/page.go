package models

import (
	"net/url"
	"strconv"
)

// SortOrder — направление сортировки табличных выборок.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ListParams — параметры постраничной выборки.
// Нулевые значения не попадают в query, апстрим применяет свои дефолты.
type ListParams struct {
	Page     int
	PageSize int
	Sort     string
	Order    SortOrder
	Filters  map[string]string
}

// Query кодирует параметры в query-строку.
func (p ListParams) Query() url.Values {
	q := url.Values{}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(p.PageSize))
	}
	if p.Sort != "" {
		q.Set("sort", p.Sort)
		if p.Order != "" {
			q.Set("order", string(p.Order))
		}
	}
	for k, v := range p.Filters {
		if k == "" || v == "" {
			continue
		}
		q.Set(k, v)
	}

	return q
}

// ListParamsFromQuery — обратное преобразование для BFF-хендлеров.
// Всё, что не является page/page_size/sort/order, считается фильтром.
func ListParamsFromQuery(q url.Values) ListParams {
	p := ListParams{}
	for k, vs := range q {
		if len(vs) == 0 {
			continue
		}
		v := vs[0]
		switch k {
		case "page":
			p.Page, _ = strconv.Atoi(v)
		case "page_size":
			p.PageSize, _ = strconv.Atoi(v)
		case "sort":
			p.Sort = v
		case "order":
			if SortOrder(v) == SortAsc || SortOrder(v) == SortDesc {
				p.Order = SortOrder(v)
			}
		default:
			if p.Filters == nil {
				p.Filters = make(map[string]string)
			}
			p.Filters[k] = v
		}
	}

	return p
}

// Page — страница сущностей в формате апстрима.
type Page[T any] struct {
	Items    []T `json:"items"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}
