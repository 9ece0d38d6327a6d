package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"fintrack/internal/core"
	ports "fintrack/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const defaultRowCacheTTL = 5 * time.Minute

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	// Base sheet name without year (e.g. "Ledger"); rows land in "<year> <base>".
	sheetBase string

	// Next free row per sheet, so consecutive appends skip the column read.
	mu                 sync.Mutex
	rowCache           map[string]rowCacheEntry
	cacheValidDuration time.Duration
}

type rowCacheEntry struct {
	rowCount  int
	expiresAt time.Time
}

var _ ports.Exporter = (*Client)(nil)

// New creates a Sheets exporter authenticated with a service account key.
func New(ctx context.Context, spreadsheetID, sheetBase string, credentialsJSON []byte, opts ...goption.ClientOption) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if len(credentialsJSON) == 0 {
		return nil, errors.New("missing service account credentials")
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	opts = append([]goption.ClientOption{
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope),
	}, opts...)
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, spreadsheetID, sheetBase), nil
}

// NewWithService wraps an existing Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetBase string) *Client {
	sheetBase = strings.TrimSpace(sheetBase)
	if sheetBase == "" {
		sheetBase = "Ledger"
	}
	return &Client{
		svc:                svc,
		spreadsheetID:      spreadsheetID,
		sheetBase:          sheetBase,
		rowCache:           make(map[string]rowCacheEntry),
		cacheValidDuration: defaultRowCacheTTL,
	}
}

// Append writes the row into the sheet for the row's year and returns the
// A1 range it occupies.
func (c *Client) Append(ctx context.Context, row ports.LedgerRow) (string, error) {
	if err := row.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	sheet := yearPrefixedName(c.sheetBase, row.Date.Year())
	rowCount, err := c.rowCount(ctx, sheet)
	if err != nil {
		return "", err
	}
	nextRow := rowCount + 1

	rng := fmt.Sprintf("%s!A%d:G%d", sheet, nextRow, nextRow)
	vr := &gsheet.ValueRange{Values: [][]any{row.Values()}}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		c.invalidateRowCache(sheet)
		return "", fmt.Errorf("failed to update %s: %w", rng, err)
	}

	c.storeRowCount(sheet, nextRow)
	return rng, nil
}

// ListRows reads back the rows exported for year. Rows that do not parse
// (the header, blank lines) are skipped.
func (c *Client) ListRows(ctx context.Context, year int) ([]ports.LedgerRow, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:G", yearPrefixedName(c.sheetBase, year))
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	out := make([]ports.LedgerRow, 0, len(resp.Values))
	for _, values := range resp.Values {
		if row, ok := parseRow(values); ok {
			out = append(out, row)
		}
	}
	return out, nil
}

func (c *Client) rowCount(ctx context.Context, sheet string) (int, error) {
	c.mu.Lock()
	entry, ok := c.rowCache[sheet]
	c.mu.Unlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return entry.rowCount, nil
	}

	rng := fmt.Sprintf("%s!A:A", sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("failed to get sheet dimensions for %s: %w", sheet, err)
	}
	c.storeRowCount(sheet, len(resp.Values))
	return len(resp.Values), nil
}

func (c *Client) storeRowCount(sheet string, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rowCache[sheet] = rowCacheEntry{rowCount: n, expiresAt: time.Now().Add(c.cacheValidDuration)}
}

func (c *Client) invalidateRowCache(sheet string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rowCache, sheet)
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}

func parseRow(values []any) (ports.LedgerRow, bool) {
	cols := toStrings(values)
	if len(cols) < 5 {
		return ports.LedgerRow{}, false
	}
	date, err := core.ParseDate(cols[0])
	if err != nil {
		return ports.LedgerRow{}, false
	}
	cents, ok := parseAmountToCents(cols[4])
	if !ok {
		return ports.LedgerRow{}, false
	}
	row := ports.LedgerRow{
		Date:        date,
		Type:        core.TransactionType(strings.ToLower(cols[1])),
		Category:    cols[2],
		Description: cols[3],
		Amount:      core.Money{Cents: cents}.Decimal(),
		Source:      safeGet(cols, 5),
		EntityID:    safeGet(cols, 6),
	}
	return row, true
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}

// parseAmountToCents reads a positive amount cell, accepting a decimal comma.
func parseAmountToCents(s string) (int64, bool) {
	cents, err := core.ParseDecimalToCents(s)
	if err != nil {
		return 0, false
	}
	return cents, true
}
