package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/aluiziolira/bookcraw/config"
	"github.com/aluiziolira/bookcraw/models"
	"github.com/google/go-cmp/cmp"
)

func newCategoryFlags(codes *codeList) *flag.FlagSet {
	flags := flag.NewFlagSet("test", flag.ContinueOnError)
	flags.Var(codes, "category", "")
	return flags
}

func TestCodeListAccumulates(t *testing.T) {
	var codes codeList
	flags := newCategoryFlags(&codes)

	if err := flags.Parse([]string{"-category", "02", "-category", "19, 24", "-category", ""}); err != nil {
		t.Fatalf("parse: %v", err)
	}

	if diff := cmp.Diff([]string{"02", "19", "24"}, []string(codes)); diff != "" {
		t.Fatalf("codes mismatch (-want +got):\n%s", diff)
	}
	if got := codes.String(); got != "02,19,24" {
		t.Fatalf("String() = %q", got)
	}
}

func TestSelectCategoriesPrecedence(t *testing.T) {
	tests := []struct {
		name string
		args []string
		env  []string
		want []string
	}{
		{name: "flag replaces env", args: []string{"-category", "19"}, env: []string{"02"}, want: []string{"19"}},
		{name: "env when no flag", args: nil, env: []string{"02", "03"}, want: []string{"02", "03"}},
		{name: "neither", args: nil, env: nil, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var codes codeList
			flags := newCategoryFlags(&codes)
			if err := flags.Parse(tt.args); err != nil {
				t.Fatalf("parse: %v", err)
			}
			got := selectCategories(flags, codes, tt.env)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("codes mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func sampleResult() *models.ScrapeResult {
	r := models.NewScrapeResult()
	r.Set("電腦資訊", []*models.Book{{
		Title:    "Example Book",
		URL:      "https://www.books.com.tw/products/999",
		PubDate:  "2026-02-10",
		Category: "電腦資訊",
	}})
	return r
}

func TestDeliverFormatNoneWritesNothing(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.OutputFormat = "none"
	cfg.OutputFile = filepath.Join(t.TempDir(), "books.csv")

	written, err := deliver(context.Background(), cfg, sampleResult(), false, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if written != "" {
		t.Fatalf("written = %q, want empty", written)
	}
	if _, err := os.Stat(cfg.OutputFile); !os.IsNotExist(err) {
		t.Fatalf("expected no output file, stat err = %v", err)
	}
}

func TestDeliverCSVReportsFile(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.OutputFile = filepath.Join(t.TempDir(), "out", "books.csv")

	written, err := deliver(context.Background(), cfg, sampleResult(), false, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if written != cfg.OutputFile {
		t.Fatalf("written = %q, want %q", written, cfg.OutputFile)
	}
	if info, err := os.Stat(cfg.OutputFile); err != nil || info.Size() == 0 {
		t.Fatalf("output file missing or empty: %v", err)
	}
}

func TestDeliverDryRunEncodesResult(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.OutputFormat = "none"
	var stdout bytes.Buffer

	written, err := deliver(context.Background(), cfg, sampleResult(), true, &stdout)
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if written != "" {
		t.Fatalf("written = %q, want empty", written)
	}

	var decoded []struct {
		Category string        `json:"category"`
		Books    []models.Book `json:"books"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &decoded); err != nil {
		t.Fatalf("decode %q: %v", stdout.String(), err)
	}
	if len(decoded) != 1 || decoded[0].Category != "電腦資訊" || len(decoded[0].Books) != 1 {
		t.Fatalf("decoded = %+v", decoded)
	}
}

func TestDeliverEmptyResultSkipsOutput(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.OutputFile = filepath.Join(t.TempDir(), "books.csv")
	result := models.NewScrapeResult()
	result.Set("電腦資訊", nil)

	written, err := deliver(context.Background(), cfg, result, false, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if written != "" {
		t.Fatalf("written = %q, want empty", written)
	}
	if _, err := os.Stat(cfg.OutputFile); !os.IsNotExist(err) {
		t.Fatalf("expected no output file, stat err = %v", err)
	}
}
