// Package record stores the storefront's schemaless resources: orders,
// analytics events, email templates and discounts. Each record is an id plus an
// arbitrary JSON object.
package record

import (
	"encoding/json"
	"net/url"
	"time"
)

// Kind describes one schemaless resource and the table that holds it.
type Kind struct {
	Table string
	Name  string
	// FilterKeys are the top-level data keys accepted as list filters.
	FilterKeys []string
	// OwnerKey, when set, names the data key holding the owning user's id.
	// Non-admin callers only see records they own.
	OwnerKey string
}

var (
	Orders         = Kind{Table: "orders", Name: "Order", FilterKeys: []string{"user_id", "status"}, OwnerKey: "user_id"}
	Analytics      = Kind{Table: "analytics", Name: "Analytics record", FilterKeys: []string{"type", "user_id", "product_id"}}
	EmailTemplates = Kind{Table: "email_templates", Name: "Email template", FilterKeys: []string{"name", "type"}}
	Discounts      = Kind{Table: "discounts", Name: "Discount", FilterKeys: []string{"code", "active"}}
)

// Kinds lists every schemaless resource.
var Kinds = []Kind{Orders, Analytics, EmailTemplates, Discounts}

type Record struct {
	ID        string          `json:"id"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func clone(r Record) Record {
	r.Data = append(json.RawMessage(nil), r.Data...)
	return r
}

// Filter matches records whose top-level data fields equal the given values,
// compared as text. All entries must match.
type Filter struct {
	Data map[string]string
}

// ParseFilter keeps the query parameters named in k.FilterKeys and ignores the rest.
func ParseFilter(k Kind, q url.Values) Filter {
	f := Filter{Data: map[string]string{}}
	for _, key := range k.FilterKeys {
		if v, ok := q[key]; ok && len(v) > 0 {
			f.Data[key] = v[0]
		}
	}
	return f
}
