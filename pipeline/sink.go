package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aluiziolira/bookcraw/models"
)

// Sink receives batches of accepted books.
type Sink interface {
	Write(books []*models.Book) error
	Close() error
	// Validate reports an error when nothing usable was written.
	Validate() error
}

// NewSink opens the file sink for format: csv, json (JSON lines) or dual,
// which writes path as CSV and a .jsonl sibling next to it.
func NewSink(format, path string) (Sink, error) {
	switch format {
	case "csv":
		return CreateCSV(path)
	case "json":
		return CreateJSONL(path)
	case "dual":
		csvSink, err := CreateCSV(path)
		if err != nil {
			return nil, err
		}
		jsonSink, err := CreateJSONL(strings.TrimSuffix(path, filepath.Ext(path)) + ".jsonl")
		if err != nil {
			csvSink.Close()
			return nil, err
		}
		return MultiSink{csvSink, jsonSink}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

var csvColumns = []string{"category", "title", "author", "publisher", "pub_date", "price", "url", "image_url"}

func csvRow(b *models.Book) []string {
	return []string{b.Category, b.Title, b.Author, b.Publisher, b.PubDate, b.Price, b.URL, b.ImageURL}
}

type recordEncoder interface {
	encode(*models.Book) error
	flush() error
}

type csvEncoder struct{ w *csv.Writer }

func (c csvEncoder) encode(b *models.Book) error { return c.w.Write(csvRow(b)) }

func (c csvEncoder) flush() error {
	c.w.Flush()
	return c.w.Error()
}

type jsonlEncoder struct {
	buf *bufio.Writer
	enc *json.Encoder
}

func (j jsonlEncoder) encode(b *models.Book) error { return j.enc.Encode(b) }

func (j jsonlEncoder) flush() error { return j.buf.Flush() }

// FileSink writes books to a single file, flushing after every batch.
type FileSink struct {
	path string
	kind string

	mu      sync.Mutex
	file    *os.File
	enc     recordEncoder
	records int
}

// CreateCSV creates path and writes the header row.
func CreateCSV(path string) (*FileSink, error) {
	f, err := createFile(path)
	if err != nil {
		return nil, err
	}
	w := csv.NewWriter(f)
	enc := csvEncoder{w: w}
	if err := w.Write(csvColumns); err != nil {
		f.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	if err := enc.flush(); err != nil {
		f.Close()
		return nil, fmt.Errorf("flush csv header: %w", err)
	}
	return &FileSink{path: path, kind: "csv", file: f, enc: enc}, nil
}

// CreateJSONL creates path for newline-delimited JSON records.
func CreateJSONL(path string) (*FileSink, error) {
	f, err := createFile(path)
	if err != nil {
		return nil, err
	}
	buf := bufio.NewWriter(f)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	return &FileSink{path: path, kind: "jsonl", file: f, enc: jsonlEncoder{buf: buf, enc: enc}}, nil
}

// Path is the file being written.
func (s *FileSink) Path() string { return s.path }

func (s *FileSink) Write(books []*models.Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range books {
		if err := s.enc.encode(b); err != nil {
			return fmt.Errorf("encode %s record: %w", s.kind, err)
		}
		s.records++
	}
	if err := s.enc.flush(); err != nil {
		return fmt.Errorf("flush %s: %w", s.kind, err)
	}
	return nil
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	flushErr := s.enc.flush()
	closeErr := s.file.Close()
	if flushErr != nil {
		return fmt.Errorf("flush %s: %w", s.kind, flushErr)
	}
	return closeErr
}

func (s *FileSink) Validate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.records == 0 {
		return fmt.Errorf("%s: no records written", s.path)
	}
	return nil
}

// MultiSink fans every batch out to each of its sinks in order.
type MultiSink []Sink

func (m MultiSink) Write(books []*models.Book) error {
	for _, s := range m {
		if err := s.Write(books); err != nil {
			return err
		}
	}
	return nil
}

func (m MultiSink) Close() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

func (m MultiSink) Validate() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Validate())
	}
	return errors.Join(errs...)
}

func createFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return f, nil
}
