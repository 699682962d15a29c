package models

import "encoding/json"

// ScrapeResult maps category labels to their books, keeping the order in
// which labels were first set.
type ScrapeResult struct {
	labels []string
	books  map[string][]*Book
}

// NewScrapeResult returns an empty result.
func NewScrapeResult() *ScrapeResult {
	return &ScrapeResult{books: make(map[string][]*Book)}
}

// Set stores books under label. A label keeps the position of its first Set.
func (r *ScrapeResult) Set(label string, books []*Book) {
	if books == nil {
		books = []*Book{}
	}
	if _, ok := r.books[label]; !ok {
		r.labels = append(r.labels, label)
	}
	r.books[label] = books
}

// Books returns the books stored under label and whether the label exists.
func (r *ScrapeResult) Books(label string) ([]*Book, bool) {
	books, ok := r.books[label]
	return books, ok
}

// Labels returns the labels in insertion order.
func (r *ScrapeResult) Labels() []string {
	out := make([]string, len(r.labels))
	copy(out, r.labels)
	return out
}

// Len is the number of labels.
func (r *ScrapeResult) Len() int {
	return len(r.labels)
}

// Total counts books across all labels.
func (r *ScrapeResult) Total() int {
	total := 0
	for _, books := range r.books {
		total += len(books)
	}
	return total
}

type labeledBooks struct {
	Category string  `json:"category"`
	Books    []*Book `json:"books"`
}

// MarshalJSON encodes the result as an ordered list of categories.
func (r *ScrapeResult) MarshalJSON() ([]byte, error) {
	out := make([]labeledBooks, 0, len(r.labels))
	for _, label := range r.labels {
		out = append(out, labeledBooks{Category: label, Books: r.books[label]})
	}
	return json.Marshal(out)
}
