// Package format renders dates and money for API responses. Presentation only.
package format

import (
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Formatter renders labels in the business timezone.
type Formatter struct {
	loc     *time.Location
	symbol  string
	printer *message.Printer
	now     func() time.Time
}

// New builds a Formatter. A nil location means UTC.
func New(loc *time.Location, currencySymbol string) *Formatter {
	if loc == nil {
		loc = time.UTC
	}
	return &Formatter{
		loc:     loc,
		symbol:  currencySymbol,
		printer: message.NewPrinter(language.English),
		now:     time.Now,
	}
}

// WithClock returns a copy using now as the reference time.
func (f *Formatter) WithClock(now func() time.Time) *Formatter {
	c := *f
	c.now = now
	return &c
}

// Location returns the business timezone.
func (f *Formatter) Location() *time.Location {
	return f.loc
}

// Date renders "3 Jan 2025".
func (f *Formatter) Date(t time.Time) string {
	return t.In(f.loc).Format("2 Jan 2006")
}

// Time renders "5:30 PM".
func (f *Formatter) Time(t time.Time) string {
	return t.In(f.loc).Format("3:04 PM")
}

// Relative renders "Today, 5:30 PM", "Yesterday, 5:30 PM", "3 Jan, 5:30 PM"
// within the current year and "3 Jan 2024, 5:30 PM" otherwise.
func (f *Formatter) Relative(t time.Time) string {
	local := t.In(f.loc)
	now := f.now().In(f.loc)
	day := truncateDay(local)
	today := truncateDay(now)
	switch {
	case day.Equal(today):
		return "Today, " + f.Time(local)
	case day.Equal(today.AddDate(0, 0, -1)):
		return "Yesterday, " + f.Time(local)
	case local.Year() == now.Year():
		return local.Format("2 Jan") + ", " + f.Time(local)
	default:
		return f.Date(local) + ", " + f.Time(local)
	}
}

// Amount renders "₹1,234.50".
func (f *Formatter) Amount(d decimal.Decimal) string {
	v, _ := d.Round(2).Float64()
	if v < 0 {
		return "-" + f.symbol + f.printer.Sprintf("%.2f", -v)
	}
	return f.symbol + f.printer.Sprintf("%.2f", v)
}

// Jugs renders "1 jug" or "3 jugs".
func Jugs(n int) string {
	if n == 1 || n == -1 {
		return message.NewPrinter(language.English).Sprintf("%d jug", n)
	}
	return message.NewPrinter(language.English).Sprintf("%d jugs", n)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
