// Команда unit-import регистрирует партию серийных кодов на площадке.
// Коды читаются построчно из файла или stdin; пустые строки и строки с '#' пропускаются.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/service/ordering"
	"github.com/vladislavdragonenkov/pos/internal/storage/postgres"
)

const (
	defaultTimeout = 5 * time.Minute
	envPostgresDSN = "POS_POSTGRES_DSN"
)

type options struct {
	dsn      string
	venueID  string
	category string
	price    decimal.Decimal
	shared   bool
	input    string
}

// importer - часть ordering.Service, нужная команде.
type importer interface {
	BulkImportUnits(ctx context.Context, venueID string, in ordering.BulkImportInput) (domain.BulkImportResult, error)
}

func parseOptions(args []string, lookup func(string) (string, bool)) (options, error) {
	var (
		opts     options
		priceRaw string
	)

	fs := flag.NewFlagSet("unit-import", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&opts.dsn, "dsn", "", "PostgreSQL DSN (fallback: "+envPostgresDSN+")")
	fs.StringVar(&opts.venueID, "venue", "", "venue id")
	fs.StringVar(&opts.category, "category", "", "category assigned to every imported unit")
	fs.StringVar(&priceRaw, "price", "0", "price assigned to every imported unit")
	fs.BoolVar(&opts.shared, "shared", false, "register units in the organization-wide pool")
	fs.StringVar(&opts.input, "input", "-", "file with one code per line, '-' for stdin")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	opts.dsn = strings.TrimSpace(opts.dsn)
	if opts.dsn == "" {
		if v, ok := lookup(envPostgresDSN); ok {
			opts.dsn = strings.TrimSpace(v)
		}
	}
	opts.venueID = strings.TrimSpace(opts.venueID)
	opts.category = strings.TrimSpace(opts.category)

	price, err := decimal.NewFromString(strings.TrimSpace(priceRaw))
	if err != nil {
		return options{}, fmt.Errorf("invalid price %q: %w", priceRaw, err)
	}
	opts.price = price

	switch {
	case opts.dsn == "":
		return options{}, errors.New(envPostgresDSN + " (or -dsn) is required")
	case opts.venueID == "":
		return options{}, errors.New("-venue is required")
	case opts.category == "":
		return options{}, errors.New("-category is required")
	case opts.price.IsNegative():
		return options{}, errors.New("-price must be >= 0")
	}
	return opts, nil
}

// readCodes читает коды построчно. Порядок сохраняется, дубликаты отсекает сервис.
func readCodes(r io.Reader) ([]string, error) {
	var codes []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		codes = append(codes, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read codes: %w", err)
	}
	return codes, nil
}

func importCodes(ctx context.Context, svc importer, opts options, codes []string, out io.Writer) error {
	if len(codes) == 0 {
		return errors.New("no codes to import")
	}

	result, err := svc.BulkImportUnits(ctx, opts.venueID, ordering.BulkImportInput{
		Category: opts.category,
		Price:    opts.price,
		Codes:    codes,
		Shared:   opts.shared,
	})
	if err != nil {
		return fmt.Errorf("bulk import: %w", err)
	}

	_, _ = fmt.Fprintf(out, "imported: %d duplicates: %d\n", result.Created, len(result.Duplicates))
	for _, code := range result.Duplicates {
		_, _ = fmt.Fprintf(out, "duplicate: %s\n", code)
	}
	return nil
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

func main() {
	logger := log.WithField("component", "unit-import")

	opts, err := parseOptions(os.Args[1:], os.LookupEnv)
	if err != nil {
		fail(logger, err)
	}

	input, err := openInput(opts.input)
	if err != nil {
		fail(logger, err)
	}
	codes, err := readCodes(input)
	_ = input.Close()
	if err != nil {
		fail(logger, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	store, err := postgres.Open(ctx, opts.dsn)
	if err != nil {
		fail(logger, err)
	}
	defer store.Close()

	svc := ordering.NewService(store, ordering.WithLogger(logger))
	if err := importCodes(ctx, svc, opts, codes, os.Stdout); err != nil {
		fail(logger, err)
	}
}

func fail(logger *log.Entry, err error) {
	logger.WithError(err).Error("unit import failed")
	os.Exit(1)
}
