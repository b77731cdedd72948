// Package ledger keeps the append-only CSV record of every buy, sell and
// failed operation, used for tax reporting.
package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

const timeLayout = "02/01/2006 15:04:05"

var header = []string{
	"Timestamp",
	"Operation",
	"Pair",
	"Quantity",
	"Unit Price",
	"Total Value",
	"Fee",
	"Net Value",
	"Signal ID",
	"Status",
	"Note",
}

type Operation string

const (
	OperationBuy    Operation = "BUY"
	OperationSell   Operation = "SELL"
	OperationFailed Operation = "FAILED"
)

type Status string

const (
	StatusExecuted Status = "EXECUTED"
	StatusFailed   Status = "FAILED"
)

type SellKind string

const (
	SellTakeProfit SellKind = "TAKE_PROFIT"
	SellStopLoss   SellKind = "STOP_LOSS"
	SellManual     SellKind = "MANUAL"
)

type Record struct {
	Time       time.Time
	Operation  Operation
	Pair       string
	Quantity   decimal.Decimal
	Price      decimal.Decimal
	TotalValue decimal.Decimal
	Fee        decimal.Decimal
	SignalID   string
	Status     Status
	Note       string
}

func (r Record) row() []string {
	return []string{
		r.Time.Format(timeLayout),
		string(r.Operation),
		r.Pair,
		trim(r.Quantity),
		trim(r.Price),
		r.TotalValue.StringFixed(2),
		trim(r.Fee),
		r.TotalValue.Sub(r.Fee).StringFixed(2),
		r.SignalID,
		string(r.Status),
		r.Note,
	}
}

// trim formats with up to 8 decimals and no trailing zeros.
func trim(d decimal.Decimal) string {
	s := d.StringFixed(8)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	return s
}

// Ledger appends records to a CSV file. The header is written when the file
// is created.
type Ledger struct {
	path string
	lock sync.Mutex
	now  func() time.Time
}

func New(path string) (*Ledger, error) {
	l := &Ledger{path: path, now: time.Now}
	if _, err := os.Stat(path); err == nil {
		return l, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("ledger: couldn't stat %s: %w", path, err)
	}
	if err := l.append(header); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Ledger) append(row []string) error {
	l.lock.Lock()
	defer l.lock.Unlock()
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("ledger: couldn't open %s: %w", l.path, err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(row); err != nil {
		return fmt.Errorf("ledger: couldn't write: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("ledger: couldn't flush: %w", err)
	}
	return nil
}

func (l *Ledger) Record(r Record) error {
	if r.Time.IsZero() {
		r.Time = l.now()
	}
	return l.append(r.row())
}

func (l *Ledger) RecordBuy(pair string, quantity, price, fee decimal.Decimal, signalID string) error {
	return l.Record(Record{
		Operation:  OperationBuy,
		Pair:       pair,
		Quantity:   quantity,
		Price:      price,
		TotalValue: quantity.Mul(price),
		Fee:        fee,
		SignalID:   signalID,
		Status:     StatusExecuted,
		Note:       fmt.Sprintf("automatic buy - signal %s", signalID),
	})
}

func (l *Ledger) RecordSell(pair string, quantity, price, fee decimal.Decimal, signalID string, kind SellKind) error {
	note := "automatic sell"
	switch kind {
	case SellTakeProfit:
		note = "automatic sell - take profit"
	case SellStopLoss:
		note = "automatic sell - stop loss"
	case SellManual:
		note = "manual sell"
	}
	return l.Record(Record{
		Operation:  OperationSell,
		Pair:       pair,
		Quantity:   quantity,
		Price:      price,
		TotalValue: quantity.Mul(price),
		Fee:        fee,
		SignalID:   signalID,
		Status:     StatusExecuted,
		Note:       note,
	})
}

func (l *Ledger) RecordFailed(pair, signalID, reason string) error {
	return l.Record(Record{
		Operation: OperationFailed,
		Pair:      pair,
		SignalID:  signalID,
		Status:    StatusFailed,
		Note:      fmt.Sprintf("operation not executed: %s", reason),
	})
}

type Summary struct {
	Bought   decimal.Decimal
	Sold     decimal.Decimal
	Fees     decimal.Decimal
	Executed int
	Failed   int
}

// MonthlySummary aggregates the records of the given month.
func (l *Ledger) MonthlySummary(year int, month time.Month) (*Summary, error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("ledger: couldn't open %s: %w", l.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(header)
	s := &Summary{}
	for line := 0; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ledger: couldn't read: %w", err)
		}
		if line == 0 {
			continue
		}
		t, err := time.ParseInLocation(timeLayout, row[0], time.Local)
		if err != nil {
			return nil, fmt.Errorf("ledger: couldn't parse time %q: %w", row[0], err)
		}
		if t.Year() != year || t.Month() != month {
			continue
		}
		if Status(row[9]) != StatusExecuted {
			s.Failed++
			continue
		}
		s.Executed++
		fee, err := decimal.NewFromString(row[6])
		if err != nil {
			return nil, fmt.Errorf("ledger: couldn't parse fee %q: %w", row[6], err)
		}
		total, err := decimal.NewFromString(row[5])
		if err != nil {
			return nil, fmt.Errorf("ledger: couldn't parse total %q: %w", row[5], err)
		}
		s.Fees = s.Fees.Add(fee)
		switch Operation(row[1]) {
		case OperationBuy:
			s.Bought = s.Bought.Add(total)
		case OperationSell:
			s.Sold = s.Sold.Add(total)
		}
	}
	return s, nil
}
