// Package catalog holds the static registry of HR tables the query generator
// may be grounded against.
package catalog

import (
	"strings"

	"github.com/kyleking/hr-insight/internal/types"
)

// Catalog is an immutable, ordered set of table schemas. It is safe for
// concurrent use because nothing mutates it after New returns.
type Catalog struct {
	tables []types.TableSchema
	index  map[string]int
}

// New builds a catalog preserving the given table order. Later duplicates of a
// name are ignored.
func New(tables ...types.TableSchema) *Catalog {
	c := &Catalog{index: make(map[string]int, len(tables))}

	for _, t := range tables {
		key := normalizeName(t.Name)
		if key == "" {
			continue
		}

		if _, exists := c.index[key]; exists {
			continue
		}

		cols := make([]types.ColumnSchema, len(t.Columns))
		copy(cols, t.Columns)
		t.Columns = cols

		c.index[key] = len(c.tables)
		c.tables = append(c.tables, t)
	}

	return c
}

// Default returns the built-in HR catalog
func Default() *Catalog {
	return New(hrTables()...)
}

// Names returns table names in catalog order
func (c *Catalog) Names() []string {
	names := make([]string, len(c.tables))
	for i, t := range c.tables {
		names[i] = t.Name
	}

	return names
}

// Lookup finds a table by case-insensitive name
func (c *Catalog) Lookup(name string) (types.TableSchema, bool) {
	i, ok := c.index[normalizeName(name)]
	if !ok {
		return types.TableSchema{}, false
	}

	return c.tables[i], true
}

// Resolve filters ids down to known tables, de-duplicated and in catalog order
func (c *Catalog) Resolve(ids []string) []string {
	wanted := make(map[int]bool, len(ids))
	for _, id := range ids {
		if i, ok := c.index[normalizeName(id)]; ok {
			wanted[i] = true
		}
	}

	resolved := make([]string, 0, len(wanted))
	for i, t := range c.tables {
		if wanted[i] {
			resolved = append(resolved, t.Name)
		}
	}

	return resolved
}

// BuildContext renders the grounding text for the known tables among ids.
// Unknown ids are skipped. The output depends only on the id set and the
// catalog, so it is byte-identical across calls.
func (c *Catalog) BuildContext(ids []string) string {
	var b strings.Builder

	for n, name := range c.Resolve(ids) {
		t, _ := c.Lookup(name)
		if n > 0 {
			b.WriteString("\n")
		}

		b.WriteString("Table: ")
		b.WriteString(t.Name)
		b.WriteString("\n")

		if t.Description != "" {
			b.WriteString("Description: ")
			b.WriteString(t.Description)
			b.WriteString("\n")
		}

		b.WriteString("Columns:\n")
		for _, col := range t.Columns {
			b.WriteString("- ")
			b.WriteString(col.Name)
			b.WriteString(" (")
			b.WriteString(col.Type)
			b.WriteString(")")
			if col.Description != "" {
				b.WriteString(": ")
				b.WriteString(col.Description)
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
