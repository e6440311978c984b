package ingestion

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/jeovahfialho/trading-backend/internal/domain"
	"github.com/shopspring/decimal"
)

// Order is one line of a replay file: user_id;symbol;side;quantity.
type Order struct {
	Line     int
	UserID   int64
	Symbol   string
	Side     domain.Side
	Quantity int64
}

type Parser struct {
	batchSize int
	workers   int
}

func NewParser(batchSize, workers int) *Parser {
	if batchSize <= 0 {
		batchSize = 1000
	}
	if workers <= 0 {
		workers = 1
	}
	return &Parser{
		batchSize: batchSize,
		workers:   workers,
	}
}

type ParseResult[T any] struct {
	Records []T
	Errors  []error
}

type line struct {
	number int
	fields []string
}

type parsed[T any] struct {
	number int
	record T
}

// ParseCatalog reads symbol;company;price;change lines.
func (p *Parser) ParseCatalog(ctx context.Context, reader io.Reader) (*ParseResult[domain.Stock], error) {
	return parseFile(ctx, p, reader, parseStock)
}

// ParseOrders reads user_id;symbol;side;quantity lines. Orders keep file order.
func (p *Parser) ParseOrders(ctx context.Context, reader io.Reader) (*ParseResult[Order], error) {
	return parseFile(ctx, p, reader, parseOrder)
}

// parseFile fans lines out to p.workers goroutines and restores file order
// before returning. The first line is a header.
func parseFile[T any](ctx context.Context, p *Parser, reader io.Reader, parse func(line) (T, error)) (*ParseResult[T], error) {
	csvReader := csv.NewReader(reader)
	csvReader.Comma = ';'
	csvReader.LazyQuotes = true
	csvReader.FieldsPerRecord = -1
	csvReader.TrimLeadingSpace = true

	if _, err := csvReader.Read(); err != nil {
		if err == io.EOF {
			return &ParseResult[T]{}, nil
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	jobs := make(chan line, p.workers*2)
	batches := make(chan []parsed[T], p.workers)
	errs := &errorList{}

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			parseWorker(ctx, p.batchSize, jobs, batches, errs, parse)
		}()
	}

	go func() {
		defer close(jobs)

		number := 1
		for {
			record, err := csvReader.Read()
			if err == io.EOF {
				return
			}
			number++
			if err != nil {
				errs.add(fmt.Errorf("line %d: %w", number, err))
				continue
			}
			select {
			case <-ctx.Done():
				return
			case jobs <- line{number: number, fields: record}:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(batches)
	}()

	var collected []parsed[T]
	for batch := range batches {
		collected = append(collected, batch...)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(collected, func(i, j int) bool { return collected[i].number < collected[j].number })

	result := &ParseResult[T]{
		Records: make([]T, 0, len(collected)),
		Errors:  errs.items,
	}
	for _, c := range collected {
		result.Records = append(result.Records, c.record)
	}
	return result, nil
}

type errorList struct {
	mu    sync.Mutex
	items []error
}

func (l *errorList) add(err error) {
	l.mu.Lock()
	l.items = append(l.items, err)
	l.mu.Unlock()
}

func parseWorker[T any](ctx context.Context, batchSize int, jobs <-chan line,
	batches chan<- []parsed[T], errs *errorList, parse func(line) (T, error)) {

	batch := make([]parsed[T], 0, batchSize)

	flush := func() {
		if len(batch) > 0 {
			batches <- batch
			batch = make([]parsed[T], 0, batchSize)
		}
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case l, ok := <-jobs:
			if !ok {
				flush()
				return
			}

			record, err := parse(l)
			if err != nil {
				errs.add(fmt.Errorf("line %d: %w", l.number, err))
				continue
			}

			batch = append(batch, parsed[T]{number: l.number, record: record})
			if len(batch) >= batchSize {
				flush()
			}
		}
	}
}

func parseStock(l line) (domain.Stock, error) {
	r := l.fields
	if len(r) < 4 {
		return domain.Stock{}, fmt.Errorf("invalid record: %v", r)
	}

	symbol := domain.NormalizeSymbol(r[0])
	if symbol == "" {
		return domain.Stock{}, fmt.Errorf("empty symbol")
	}

	price, err := parseDecimal(r[2])
	if err != nil {
		return domain.Stock{}, fmt.Errorf("invalid price: %w", err)
	}
	if price.IsNegative() {
		return domain.Stock{}, fmt.Errorf("negative price %s", price)
	}

	change, err := parseDecimal(r[3])
	if err != nil {
		return domain.Stock{}, fmt.Errorf("invalid change: %w", err)
	}

	return domain.NewStock(symbol, strings.TrimSpace(r[1]), price, change), nil
}

func parseOrder(l line) (Order, error) {
	r := l.fields
	if len(r) < 4 {
		return Order{}, fmt.Errorf("invalid record: %v", r)
	}

	userID, err := strconv.ParseInt(strings.TrimSpace(r[0]), 10, 64)
	if err != nil {
		return Order{}, fmt.Errorf("invalid user id: %w", err)
	}

	side, ok := domain.ParseSide(r[2])
	if !ok {
		return Order{}, fmt.Errorf("invalid side %q", r[2])
	}

	quantity, err := strconv.ParseInt(strings.TrimSpace(r[3]), 10, 64)
	if err != nil {
		return Order{}, fmt.Errorf("invalid quantity: %w", err)
	}

	return Order{
		Line:     l.number,
		UserID:   userID,
		Symbol:   domain.NormalizeSymbol(r[1]),
		Side:     side,
		Quantity: quantity,
	}, nil
}

// parseDecimal accepts both "1,5" and "1.5".
func parseDecimal(raw string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.Replace(strings.TrimSpace(raw), ",", ".", -1))
}
