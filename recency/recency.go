// Package recency keeps books published within a trailing window of days.
package recency

import (
	"time"

	"github.com/aluiziolira/bookcraw/models"
)

// DateLayout is the publish date format produced by the extractor.
const DateLayout = "2006-01-02"

// Cutoff returns the earliest publish date kept for a window ending today.
func Cutoff(today time.Time, windowDays int) time.Time {
	y, m, d := today.Date()
	return time.Date(y, m, d-windowDays, 0, 0, 0, 0, time.UTC)
}

// Filter returns the books whose PubDate falls on or after the cutoff, in
// their original order. Books with an empty or unparseable date are dropped.
func Filter(books []*models.Book, windowDays int, today time.Time) []*models.Book {
	cutoff := Cutoff(today, windowDays)
	kept := make([]*models.Book, 0, len(books))
	for _, book := range books {
		if book == nil || book.PubDate == "" {
			continue
		}
		pub, err := time.Parse(DateLayout, book.PubDate)
		if err != nil {
			continue
		}
		if !pub.Before(cutoff) {
			kept = append(kept, book)
		}
	}
	return kept
}
