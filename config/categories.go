package config

import (
	"fmt"
	"strings"
)

// Category pairs a site category code with its display label.
type Category struct {
	Code  string
	Label string
}

// Registry is a read-only, ordered table of categories.
type Registry struct {
	categories []Category
	index      map[string]int
}

// NewRegistry builds a registry, rejecting empty or duplicate codes.
func NewRegistry(categories ...Category) (Registry, error) {
	r := Registry{
		categories: make([]Category, 0, len(categories)),
		index:      make(map[string]int, len(categories)),
	}
	for _, cat := range categories {
		code := strings.TrimSpace(cat.Code)
		if code == "" {
			return Registry{}, fmt.Errorf("category code cannot be empty")
		}
		if _, dup := r.index[code]; dup {
			return Registry{}, fmt.Errorf("duplicate category code %q", code)
		}
		label := cat.Label
		if label == "" {
			label = code
		}
		r.index[code] = len(r.categories)
		r.categories = append(r.categories, Category{Code: code, Label: label})
	}
	return r, nil
}

// MustRegistry is NewRegistry for static tables.
func MustRegistry(categories ...Category) Registry {
	r, err := NewRegistry(categories...)
	if err != nil {
		panic(err)
	}
	return r
}

// DefaultRegistry returns the books.com.tw Chinese-book categories.
func DefaultRegistry() Registry {
	return MustRegistry(
		Category{"02", "商業理財"},
		Category{"03", "藝術設計"},
		Category{"04", "人文社科"},
		Category{"06", "自然科普"},
		Category{"07", "心理勵志"},
		Category{"08", "醫療保健"},
		Category{"09", "飲食"},
		Category{"10", "生活風格"},
		Category{"11", "旅遊"},
		Category{"12", "宗教命理"},
		Category{"13", "親子教養"},
		Category{"14", "童書/青少年文學"},
		Category{"17", "語言學習"},
		Category{"18", "考試用書"},
		Category{"19", "電腦資訊"},
		Category{"20", "專業/教科書/政府出版品"},
		Category{"22", "影視偶像"},
		Category{"24", "國中小參考書"},
	)
}

// Label returns the label registered for code.
func (r Registry) Label(code string) (string, bool) {
	i, ok := r.index[code]
	if !ok {
		return "", false
	}
	return r.categories[i].Label, true
}

// Codes returns every registered code in registration order.
func (r Registry) Codes() []string {
	codes := make([]string, len(r.categories))
	for i, cat := range r.categories {
		codes[i] = cat.Code
	}
	return codes
}

// Categories returns a copy of the table.
func (r Registry) Categories() []Category {
	out := make([]Category, len(r.categories))
	copy(out, r.categories)
	return out
}

// Len is the number of registered categories.
func (r Registry) Len() int {
	return len(r.categories)
}

// Validate reports the first code that is not registered.
func (r Registry) Validate(codes []string) error {
	for _, code := range codes {
		if _, ok := r.index[code]; !ok {
			return fmt.Errorf("unknown category code: %s", code)
		}
	}
	return nil
}
