package instrument

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Record is one row of the instrument master dump. The table is rebuilt
// wholesale on refresh; records are never mutated after load.
type Record struct {
	Token          int64
	ExchangeToken  int64
	TradingSymbol  string
	Name           string
	Expiry         string
	Strike         float64
	InstrumentType string
	Segment        string
	Exchange       string
}

// snapshot is one immutable generation of the table. Readers hold at most a
// pointer to a snapshot; a refresh swaps the pointer, never edits in place.
type snapshot struct {
	rows     []Record
	bySymbol map[string]int // uppercased trading symbol -> index into rows
}

// Table maps raw symbols to canonical trading symbols. All methods are safe
// for concurrent use; Resolve never fails, an empty or unloaded table just
// echoes its input.
type Table struct {
	snap atomic.Pointer[snapshot]
	sf   singleflight.Group
}

func NewTable() *Table {
	t := &Table{}
	t.snap.Store(&snapshot{bySymbol: map[string]int{}})
	return t
}

// Load reads the instrument CSV at path and atomically swaps it in.
// Concurrent loads of the same path are coalesced.
func (t *Table) Load(path string) error {
	_, err, _ := t.sf.Do(path, func() (any, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open instruments: %w", err)
		}
		defer f.Close()
		rows, err := ReadCSV(f)
		if err != nil {
			return nil, err
		}
		t.Swap(rows)
		return nil, nil
	})
	return err
}

// Swap replaces the whole table with rows.
func (t *Table) Swap(rows []Record) {
	next := &snapshot{rows: rows, bySymbol: make(map[string]int, len(rows))}
	for i, r := range rows {
		sym := strings.ToUpper(r.TradingSymbol)
		if _, dup := next.bySymbol[sym]; !dup {
			next.bySymbol[sym] = i
		}
	}
	t.snap.Store(next)
}

// Len reports the number of loaded records.
func (t *Table) Len() int { return len(t.snap.Load().rows) }

// Lookup returns the record for an exact trading symbol, if present.
func (t *Table) Lookup(symbol string) (Record, bool) {
	s := t.snap.Load()
	if i, ok := s.bySymbol[strings.ToUpper(strings.TrimSpace(symbol))]; ok {
		return s.rows[i], true
	}
	return Record{}, false
}

// Resolve maps a raw user symbol to a canonical trading symbol.
// Exact match wins; otherwise the first row (in table order) whose trading
// symbol contains the input is returned, a permissive heuristic that maps
// e.g. an index name to one of its derivative contracts. With multiple
// candidates the first-in-file-order match is the documented tie-break.
// No match echoes the normalized input unchanged.
func (t *Table) Resolve(raw string) string {
	sym := strings.ToUpper(strings.TrimSpace(raw))
	if sym == "" {
		return sym
	}
	s := t.snap.Load()
	if i, ok := s.bySymbol[sym]; ok {
		return s.rows[i].TradingSymbol
	}
	for _, r := range s.rows {
		if strings.Contains(strings.ToUpper(r.TradingSymbol), sym) {
			return r.TradingSymbol
		}
	}
	return sym
}

// Contract symbols end in a strike + CE/PE or a series + FUT. The digit
// anchor keeps cash symbols that merely end in CE (RELIANCE) out of NFO.
var derivRe = regexp.MustCompile(`[0-9](CE|PE|FUT)$`)

var months = []string{"JAN", "FEB", "MAR", "APR", "MAY", "JUN", "JUL", "AUG", "SEP", "OCT", "NOV", "DEC"}

// GuessExchange infers the exchange for a symbol. A caller-supplied hint
// wins; derivative-looking symbols (CE/PE/FUT suffix or an embedded month
// abbreviation) classify as NFO, everything else as NSE. The guess runs
// independently of the table and may be overridden once a data source
// reports the instrument's own exchange tag.
func GuessExchange(symbol, hint string) string {
	if hint != "" {
		return strings.ToUpper(hint)
	}
	s := strings.ToUpper(symbol)
	if derivRe.MatchString(s) {
		return "NFO"
	}
	for _, m := range months {
		if strings.Contains(s, m) {
			return "NFO"
		}
	}
	return "NSE"
}

// ReadCSV parses an instrument dump. The header row names the columns;
// unknown columns are ignored so richer dumps stay loadable.
func ReadCSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read instruments header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(strings.ToLower(h))] = i
	}
	if _, ok := col["tradingsymbol"]; !ok {
		return nil, fmt.Errorf("instruments csv: missing tradingsymbol column")
	}
	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	var rows []Record
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read instruments row: %w", err)
		}
		token, _ := strconv.ParseInt(field(rec, "instrument_token"), 10, 64)
		exToken, _ := strconv.ParseInt(field(rec, "exchange_token"), 10, 64)
		strike, _ := strconv.ParseFloat(field(rec, "strike"), 64)
		rows = append(rows, Record{
			Token:          token,
			ExchangeToken:  exToken,
			TradingSymbol:  strings.ToUpper(field(rec, "tradingsymbol")),
			Name:           field(rec, "name"),
			Expiry:         field(rec, "expiry"),
			Strike:         strike,
			InstrumentType: field(rec, "instrument_type"),
			Segment:        field(rec, "segment"),
			Exchange:       strings.ToUpper(field(rec, "exchange")),
		})
	}
	return rows, nil
}

// WriteCSV writes rows in the same column layout ReadCSV accepts.
func WriteCSV(w io.Writer, rows []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"instrument_token", "exchange_token", "tradingsymbol", "name", "expiry", "strike", "instrument_type", "segment", "exchange"}); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			strconv.FormatInt(r.Token, 10),
			strconv.FormatInt(r.ExchangeToken, 10),
			r.TradingSymbol,
			r.Name,
			r.Expiry,
			strconv.FormatFloat(r.Strike, 'f', -1, 64),
			r.InstrumentType,
			r.Segment,
			r.Exchange,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
