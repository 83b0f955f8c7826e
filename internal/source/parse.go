package source

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/shinbukan/icsfeed"
	"github.com/shinbukan/icsfeed/temporal"
)

// MonthResult collects the records parsed from one monthly page together
// with its parse errors. A bad cell is reported, never fatal.
type MonthResult struct {
	Year  int
	Month time.Month

	Records []icsfeed.Record
	Errors  []error
}

// entry is a schedule line before identity assignment. Continuation text
// (red annotations on the page) may still be appended to the last entry, so
// records are materialized only after the whole month is walked.
type entry struct {
	day    int
	allDay bool
	fromH  int
	fromM  int
	toH    int
	toM    int
	text   string
}

type monthParser struct {
	res     *MonthResult
	entries []*entry
}

// ParseMonth extracts schedule entries from one monthly page. The page
// carries a single table with summary="日程" whose cells each start with a
// day number followed by schedule lines.
//
// Times use a 12-hour clock with no am/pm marker; hours below 8 mean the
// afternoon and are shifted by 12, matching the site's convention. Timed
// entries are anchored in loc.
func ParseMonth(year int, month time.Month, page string, loc *time.Location, pageURL string) MonthResult {
	res := MonthResult{Year: year, Month: month}
	p := &monthParser{res: &res}

	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		res.Errors = append(res.Errors, fmt.Errorf("parse page html: %w", err))
		return res
	}

	dim := temporal.DaysIn(year, month)
	parsedDays := make([]bool, dim)
	for _, cell := range scheduleCells(doc) {
		day, ok := p.parseCell(cell)
		if !ok {
			continue
		}
		if day < 1 || day > dim {
			res.Errors = append(res.Errors, fmt.Errorf("day %d out of range for %04d-%02d", day, year, month))
			continue
		}
		if parsedDays[day-1] {
			res.Errors = append(res.Errors, fmt.Errorf("parsed day %d twice", day))
			continue
		}
		parsedDays[day-1] = true
	}
	for day, seen := range parsedDays {
		if !seen {
			res.Errors = append(res.Errors, fmt.Errorf("did not parse day %d", day+1))
		}
	}

	for _, e := range p.entries {
		rec, err := e.record(year, month, loc, pageURL)
		if err != nil {
			res.Errors = append(res.Errors, err)
			continue
		}
		res.Records = append(res.Records, rec)
	}
	return res
}

// scheduleCells returns the td nodes of the schedule table.
func scheduleCells(doc *html.Node) []*html.Node {
	var table *html.Node
	var findTable func(*html.Node)
	findTable = func(n *html.Node) {
		if table != nil {
			return
		}
		if n.Type == html.ElementNode && n.Data == "table" && attr(n, "summary") == "日程" {
			table = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			findTable(c)
		}
	}
	findTable(doc)
	if table == nil {
		return nil
	}

	var cells []*html.Node
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "td" {
			cells = append(cells, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(table)
	return cells
}

// parseCell walks one day cell. It reports the day number when the cell is
// a day cell at all; padding cells around the month edges are skipped.
func (p *monthParser) parseCell(cell *html.Node) (int, bool) {
	c := cell.FirstChild
	if c == nil || c.Type != html.TextNode {
		return 0, false
	}
	day, err := strconv.Atoi(strings.TrimSpace(c.Data))
	if err != nil {
		return 0, false
	}

	for c = c.NextSibling; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.ElementNode:
			switch {
			case c.Data == "br":
			case c.Data == "font" && attr(c, "size") == "-1":
			case c.Data == "font" && attr(c, "color") == "red":
				// Red annotations continue the previous entry's text.
				p.appendToLast(day, collectText(c))
			default:
				p.res.Errors = append(p.res.Errors,
					fmt.Errorf("unexpected element <%s> while parsing day %d", c.Data, day))
			}
		case html.TextNode:
			txt := strings.TrimSpace(c.Data)
			if txt == "" {
				continue
			}
			p.parseLine(day, txt)
		}
	}
	return day, true
}

// parseLine splits one schedule line into a timed or full-day entry. Lines
// look like "18-20:30 稽古" (timed) or "休館日" (full-day).
func (p *monthParser) parseLine(day int, txt string) {
	clock, rest, found := strings.Cut(txt, " ")
	if !found {
		p.entries = append(p.entries, &entry{day: day, allDay: true, text: txt})
		return
	}
	i := strings.IndexAny(clock, "-~")
	if i < 0 {
		p.entries = append(p.entries, &entry{day: day, allDay: true, text: txt})
		return
	}

	fromH, fromM, err := parseClock(clock[:i])
	if err != nil {
		p.res.Errors = append(p.res.Errors, fmt.Errorf("day %d: %w", day, err))
		return
	}
	toH, toM, err := parseClock(clock[i+1:])
	if err != nil {
		p.res.Errors = append(p.res.Errors, fmt.Errorf("day %d: %w", day, err))
		return
	}

	// Afternoon hours are written on a bare 12-hour clock.
	if fromH < 8 {
		fromH += 12
	}
	if toH < 8 {
		toH += 12
	}
	p.entries = append(p.entries, &entry{
		day:   day,
		fromH: fromH, fromM: fromM,
		toH: toH, toM: toM,
		text: rest,
	})
}

func (p *monthParser) appendToLast(day int, txt string) {
	if txt == "" {
		return
	}
	if len(p.entries) == 0 {
		p.res.Errors = append(p.res.Errors,
			fmt.Errorf("day %d: continuation text %q with no preceding entry", day, txt))
		return
	}
	last := p.entries[len(p.entries)-1]
	last.text += " " + txt
}

// parseClock parses "HH" or "HH:MM".
func parseClock(s string) (hour, minute int, err error) {
	hs, ms, hasMinutes := strings.Cut(s, ":")
	hour, err = strconv.Atoi(hs)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed time %q", s)
	}
	if hasMinutes {
		minute, err = strconv.Atoi(ms)
		if err != nil {
			return 0, 0, fmt.Errorf("malformed time %q", s)
		}
	}
	return hour, minute, nil
}

func collectText(n *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if txt := strings.TrimSpace(n.Data); txt != "" {
				parts = append(parts, txt)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(parts, " ")
}

// record materializes the entry. The identity token is derived from the
// entry's content, so the same schedule line maps to the same token on
// every regeneration.
func (e *entry) record(year int, month time.Month, loc *time.Location, pageURL string) (icsfeed.Record, error) {
	rec := icsfeed.Record{
		Summary: e.text,
		URL:     pageURL,
	}

	if e.allDay {
		start, err := temporal.NewDate(year, month, e.day)
		if err != nil {
			return icsfeed.Record{}, fmt.Errorf("day %d: %w", e.day, err)
		}
		rec.Start = start
		rec.ID = start.Key() + "/" + e.text
		return rec, nil
	}

	start, err := temporal.NewDateTime(year, month, e.day, e.fromH, e.fromM, 0, loc)
	if err != nil {
		return icsfeed.Record{}, fmt.Errorf("day %d: %w", e.day, err)
	}
	end, err := temporal.NewDateTime(year, month, e.day, e.toH, e.toM, 0, loc)
	if err != nil {
		return icsfeed.Record{}, fmt.Errorf("day %d: %w", e.day, err)
	}
	rec.Start = start
	rec.End = end
	rec.ID = start.Key() + "/" + end.Key() + "/" + e.text
	return rec, nil
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}
