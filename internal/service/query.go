package service

import (
	"strconv"
	"strings"

	"github.com/travelblog/internal/store"
)

const (
	DefaultPage   = 1
	DefaultLimit  = 10
	MaxLimit      = 50
	AllCategories = "All"
)

// ListParams carries raw listing parameters as they arrive on the query string.
type ListParams struct {
	Search      string
	Category    string
	Page        string
	Limit       string
	IsPublished string
	Fields      string
}

// PostQuery is the normalized form of ListParams shared by admin and public listings.
type PostQuery struct {
	Filter store.PostFilter
	Sort   store.Sort
	Page   int
	Limit  int
	Skip   int
	Fields []string
}

// BuildPostQuery 将原始查询参数规范化为存储层查询条件。
func BuildPostQuery(params ListParams) PostQuery {
	query := PostQuery{
		Sort:  store.RecentFirst,
		Page:  normalizePage(parsePositiveInt(params.Page, DefaultPage)),
		Limit: normalizeLimit(parsePositiveInt(params.Limit, DefaultLimit)),
	}
	query.Skip = (query.Page - 1) * query.Limit

	query.Filter.Search = strings.TrimSpace(params.Search)

	if category := strings.TrimSpace(params.Category); category != "" && category != AllCategories {
		query.Filter.Category = category
	}

	switch strings.TrimSpace(params.IsPublished) {
	case "true":
		published := true
		query.Filter.IsPublished = &published
	case "false":
		published := false
		query.Filter.IsPublished = &published
	}

	query.Fields = parseFields(params.Fields)
	return query
}

// storeQuery converts to a repository query; paginate=false drops skip/limit.
func (q PostQuery) storeQuery(paginate bool) store.PostQuery {
	sq := store.PostQuery{Filter: q.Filter, Sort: q.Sort, Fields: q.Fields}
	if paginate {
		sq.Skip = q.Skip
		sq.Limit = q.Limit
	}
	return sq
}

// parseFields keeps whitelisted Post JSON names and always includes id.
func parseFields(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	allowed := make(map[string]bool, len(store.PostFieldNames))
	for _, name := range store.PostFieldNames {
		allowed[name] = true
	}

	fields := []string{"id"}
	seen := map[string]bool{"id": true}
	for _, part := range strings.Split(raw, ",") {
		name := strings.TrimSpace(part)
		if !allowed[name] || seen[name] {
			continue
		}
		seen[name] = true
		fields = append(fields, name)
	}
	return fields
}

func parsePositiveInt(raw string, fallback int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func normalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

func normalizeLimit(limit int) int {
	if limit < 1 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// calculateTotalPages returns ceil(total/perPage); zero results give zero pages.
func calculateTotalPages(total int64, perPage int) int {
	if perPage <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(perPage) - 1) / int64(perPage))
}
