// Package models defines data structures for the scraper.
package models

import "time"

// Book is one catalog record extracted from a listing page.
// Records are built once by the extractor and never modified afterwards.
type Book struct {
	Title     string `csv:"title" json:"title"`
	URL       string `csv:"url" json:"url"`
	Author    string `csv:"author" json:"author"`
	Publisher string `csv:"publisher" json:"publisher"`
	Price     string `csv:"price" json:"price"`
	ImageURL  string `csv:"image_url" json:"image_url"`
	PubDate   string `csv:"pub_date" json:"pub_date"`
	Category  string `csv:"category" json:"category"`
}

// RunSummary holds statistics about a single orchestrated run.
type RunSummary struct {
	StartTime         time.Time
	EndTime           time.Time
	Requested         int
	FailedLabels      []string
	EmptyLabels       []string
	ErrorsByType      map[string]int
	RequestCount      int
	SectionsMissing   int
	ExtractedCount    int
	TotalCount        int
	PreordersIncluded bool
}
