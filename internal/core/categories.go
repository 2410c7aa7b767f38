package core

import "strings"

// CategoryOther is the fallback category. It is a member of every set.
const CategoryOther = "Other"

// DefaultCategories is the category set used when none is configured.
var DefaultCategories = []string{
	"Food", "Transport", "Utilities", "Rent", "Entertainment", "Shopping",
	"Health", "Education", "Bills", "Communication", "Income", CategoryOther,
}

// Categories is a closed, case-insensitive set of record categories.
type Categories struct {
	names []string
	index map[string]string
}

// NewCategories builds a set from names, trimming blanks and duplicates.
// CategoryOther is appended when missing.
func NewCategories(names []string) Categories {
	c := Categories{index: make(map[string]string, len(names)+1)}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		key := strings.ToLower(n)
		if _, ok := c.index[key]; ok {
			continue
		}
		c.index[key] = n
		c.names = append(c.names, n)
	}
	if _, ok := c.index[strings.ToLower(CategoryOther)]; !ok {
		c.index[strings.ToLower(CategoryOther)] = CategoryOther
		c.names = append(c.names, CategoryOther)
	}
	return c
}

// Lookup returns the canonical spelling of name when it belongs to the set.
func (c Categories) Lookup(name string) (string, bool) {
	if c.index == nil {
		return "", false
	}
	canon, ok := c.index[strings.ToLower(strings.TrimSpace(name))]
	return canon, ok
}

// Names returns the categories in configured order.
func (c Categories) Names() []string {
	return append([]string(nil), c.names...)
}

// Fallback returns the canonical spelling of the "Other" category.
func (c Categories) Fallback() string {
	if canon, ok := c.Lookup(CategoryOther); ok {
		return canon
	}
	return CategoryOther
}
