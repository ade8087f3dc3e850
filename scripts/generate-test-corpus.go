//go:build ignore

// Package main generates a synthetic MARC corpus for load testing the indexer.
// Usage: go run scripts/generate-test-corpus.go -files 20 -records 5000 -output testdata/bench
package main

import (
	"bufio"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/Aman-CERP/marcindex/internal/marc"
)

var (
	numFiles   = flag.Int("files", 10, "Number of files to generate")
	numRecords = flag.Int("records", 1000, "Records per file")
	deleteRate = flag.Float64("deletes", 0.01, "Fraction of deletion records")
	outputDir  = flag.String("output", "testdata/bench", "Output directory")
	seed       = flag.Int64("seed", 42, "Random seed for reproducibility")
)

var (
	subjects = []string{
		"Meteorology", "Hydrology", "Glaciers", "Lakes", "Climatic changes",
		"Soil science", "Forestry", "Ornithology", "Cartography", "Geology",
	}
	adjectives = []string{"Northern", "Coastal", "Alpine", "Prairie", "Arctic", "Tropical", "Urban"}
	forms      = []string{"atlas", "survey", "handbook", "field guide", "report", "history"}
	authors    = []string{"Lindqvist, Anna", "Okafor, Chidi", "Moreau, Élise", "Tanaka, Hiro", "Nowak, Piotr"}
	places     = []string{"Minneapolis", "Madison", "Toronto", "Boulder", "Anchorage"}
	lcClasses  = []string{"QC", "GB", "QE", "SD", "QL", "GA", "S"}
)

func main() {
	flag.Parse()
	rand.Seed(*seed)

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create %s: %v\n", *outputDir, err)
		os.Exit(1)
	}

	fmt.Printf("Generating %d files of %d records in %s (seed=%d)\n", *numFiles, *numRecords, *outputDir, *seed)

	total := 0
	for i := 0; i < *numFiles; i++ {
		path := filepath.Join(*outputDir, fmt.Sprintf("batch_%04d.mrc", i))
		n, err := writeFile(path, i)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", path, err)
			os.Exit(1)
		}
		total += n
	}

	fmt.Printf("Generated %d records successfully.\n", total)
}

func writeFile(path string, fileIndex int) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for j := 0; j < *numRecords; j++ {
		id := fmt.Sprintf("bench%04d%06d", fileIndex, j)
		var rec *marc.Record
		if rand.Float64() < *deleteRate {
			rec = deletion(id)
		} else {
			rec = book(id)
		}
		data, err := rec.MarshalBinary()
		if err != nil {
			return j, fmt.Errorf("record %s: %w", id, err)
		}
		if _, err := w.Write(data); err != nil {
			return j, err
		}
	}
	return *numRecords, w.Flush()
}

func pick(pool []string) string {
	return pool[rand.Intn(len(pool))]
}

func book(id string) *marc.Record {
	year := 1950 + rand.Intn(75)
	subject := pick(subjects)
	title := fmt.Sprintf("%s %s of %s", pick(adjectives), pick(forms), subject)

	rec := marc.NewRecord("00000nam a2200000 a 4500").
		AddControlField("001", id).
		AddControlField("005", fmt.Sprintf("%04d%02d%02d120000.0", 2000+rand.Intn(25), 1+rand.Intn(12), 1+rand.Intn(28))).
		AddControlField("008", fmt.Sprintf("900101s%04d    xxu           000 0 eng d", year)).
		AddDataField("050", ' ', '0',
			marc.Sub('a', fmt.Sprintf("%s%d", pick(lcClasses), 1+rand.Intn(999))),
			marc.Sub('b', fmt.Sprintf(".%c%d %d", 'A'+rune(rand.Intn(26)), 1+rand.Intn(99), year))).
		AddDataField("082", '0', '4', marc.Sub('a', fmt.Sprintf("%d.%d", 500+rand.Intn(99), rand.Intn(100)))).
		AddDataField("100", '1', ' ', marc.Sub('a', pick(authors))).
		AddDataField("245", '1', '0', marc.Sub('a', title)).
		AddDataField("260", ' ', ' ',
			marc.Sub('a', pick(places)),
			marc.Sub('c', fmt.Sprintf("%d.", year))).
		AddDataField("650", ' ', '0', marc.Sub('a', subject))

	if rand.Intn(4) == 0 {
		lon := fmt.Sprintf("W%03d%02d%02d", 80+rand.Intn(40), rand.Intn(60), rand.Intn(60))
		lat := fmt.Sprintf("N%03d%02d%02d", 30+rand.Intn(30), rand.Intn(60), rand.Intn(60))
		rec.AddDataField("034", '1', ' ',
			marc.Sub('d', lon), marc.Sub('e', lon),
			marc.Sub('f', lat), marc.Sub('g', lat))
	}
	return rec
}

func deletion(id string) *marc.Record {
	return marc.NewRecord("00000dam a2200000 a 4500").
		AddControlField("001", id)
}
