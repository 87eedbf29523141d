package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/ccsit-tools/schedule-api/internal/models"
	"github.com/ccsit-tools/schedule-api/internal/service"
)

// snapshot_lint parses course snapshot CSVs the same way the server does
// and reports what would be ingested. Useful for vetting a freshly
// scraped snapshot before dropping it into the snapshot directory.

func main() {
	var (
		dir     string
		verbose bool
	)

	flag.StringVar(&dir, "dir", "./public", "Directory containing snapshot CSV files")
	flag.BoolVar(&verbose, "verbose", false, "Print per-course section counts")
	flag.Parse()

	paths := flag.Args()
	if len(paths) == 0 {
		matches, err := filepath.Glob(filepath.Join(dir, "*.csv"))
		if err != nil {
			log.Fatalf("scan snapshot dir: %v", err)
		}
		sort.Strings(matches)
		paths = matches
	}
	if len(paths) == 0 {
		log.Fatalf("no snapshot files found under %s", dir)
	}

	ingest := service.NewIngestService(nil)
	failed := 0
	for _, path := range paths {
		if err := lintSnapshot(ingest, path, verbose); err != nil {
			fmt.Printf("[FAIL] %s: %v\n", filepath.Base(path), err)
			failed++
		}
	}

	if failed > 0 {
		os.Exit(1)
	}
}

func lintSnapshot(ingest *service.IngestService, path string, verbose bool) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close() //nolint:errcheck

	name := filepath.Base(path)
	courses, report, err := ingest.ParseSnapshot(file, name)
	if err != nil {
		return err
	}

	fmt.Printf("[OK] %s: %d courses, %d sections, %d skipped rows\n",
		name, report.Courses, report.Sections, report.SkippedRows)

	if verbose {
		for _, course := range courses {
			fmt.Printf("  %s %s (%s cr): %d sections, %d pairable\n",
				course.CourseCode, course.CourseName, course.CreditHours,
				len(course.Sections), countTheory(course))
		}
	}
	return nil
}

func countTheory(course models.Course) int {
	n := 0
	for _, section := range course.Sections {
		if section.SectionType == models.SectionTypeTheoretical {
			n++
		}
	}
	return n
}
