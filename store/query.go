package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/basit/mediashare-backend/models"
)

const (
	DefaultPageSize = 15
	MaxPageSize     = 100

	defaultSortField = "created_at"
)

// Filter narrows a Query. Nil fields are not applied.
type Filter struct {
	OwnerID      *uuid.UUID
	IsPublic     *bool
	Type         *models.TypeCategory
	NameContains string
	// NotExpiredAt keeps records with expires_at IS NULL OR expires_at > the given time.
	NotExpiredAt *time.Time
	// ExpiredAt keeps records with expires_at <= the given time.
	ExpiredAt *time.Time
}

type Sort struct {
	Field     string
	Ascending bool
}

// sortable columns, whitelisted to keep ORDER BY injection-free
var sortColumns = map[string]string{
	"created_at":     "created_at",
	"updated_at":     "updated_at",
	"original_name":  "original_name",
	"size":           "size",
	"download_count": "download_count",
	"expires_at":     "expires_at",
}

// Column returns the whitelisted column, falling back to created_at.
func (s Sort) Column() string {
	if col, ok := sortColumns[strings.ToLower(s.Field)]; ok {
		return col
	}
	return defaultSortField
}

func (s Sort) orderClause() string {
	dir := "DESC"
	if s.Ascending {
		dir = "ASC"
	}
	return fmt.Sprintf("%s %s, id ASC", s.Column(), dir)
}

// ParseSort builds a Sort from request-style values ("size", "asc").
func ParseSort(field, order string) Sort {
	return Sort{Field: field, Ascending: strings.EqualFold(order, "asc")}
}

type Page struct {
	Number int
	Size   int
}

// Normalize clamps the page number to >= 1 and the size to 1..MaxPageSize.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	switch {
	case p.Size < 1:
		p.Size = DefaultPageSize
	case p.Size > MaxPageSize:
		p.Size = MaxPageSize
	}
	return p
}

func (p Page) Offset() int {
	n := p.Normalize()
	return (n.Number - 1) * n.Size
}

func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(s)) + "%"
}
