package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// QuoteRow is one line of the quote table; Err is shown in place of the
// numbers when the lookup failed.
type QuoteRow struct {
	Symbol string
	Quote  Quote
	Err    error
}

func newTableWriter(w io.Writer) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.Style().Options.SeparateRows = false
	return tw
}

func RenderQuotes(w io.Writer, rows []QuoteRow) {
	tw := newTableWriter(w)
	tw.AppendHeader(table.Row{"SYMBOL", "NAME", "PRICE", "CHANGE", "CHG%", "VOLUME", "P/E"})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, WidthMax: 30},
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignRight},
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignRight},
		{Number: 5, Align: text.AlignRight, AlignHeader: text.AlignRight},
		{Number: 6, Align: text.AlignRight, AlignHeader: text.AlignRight},
		{Number: 7, Align: text.AlignRight, AlignHeader: text.AlignRight},
	})

	for _, r := range rows {
		if r.Err != nil {
			tw.AppendRow(table.Row{r.Symbol, text.FgRed.Sprint(r.Err.Error()), "", "", "", "", ""})
			continue
		}
		q := r.Quote
		pe := "N/A"
		if q.PERatio != nil {
			pe = fmt.Sprintf("%.2f", *q.PERatio)
		}
		change := fmt.Sprintf("%+.2f", q.Change)
		pct := fmt.Sprintf("%+.2f%%", q.ChangePercent)
		switch {
		case q.Change > 0:
			change, pct = text.FgGreen.Sprint(change), text.FgGreen.Sprint(pct)
		case q.Change < 0:
			change, pct = text.FgRed.Sprint(change), text.FgRed.Sprint(pct)
		}
		tw.AppendRow(table.Row{q.Symbol, q.Name, fmt.Sprintf("%.2f", q.Price), change, pct, q.Volume, pe})
	}
	tw.Render()
}

func RenderNews(w io.Writer, items []NewsItem) {
	tw := newTableWriter(w)
	tw.AppendHeader(table.Row{"#", "TITLE", "SOURCE", "PUBLISHED"})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, WidthMax: 60},
		{Number: 3, WidthMax: 24},
	})
	for i, it := range items {
		tw.AppendRow(table.Row{i + 1, it.Title, it.Source, it.PublishedText})
	}
	tw.Render()
}

func RenderSuggestions(w io.Writer, matcher *StockSymbolMatcher, query string) {
	results := matcher.Suggest(query)
	if len(results) == 0 {
		fmt.Fprintf(w, "no symbols match %q\n", query)
		return
	}
	tw := newTableWriter(w)
	tw.AppendHeader(table.Row{"SYMBOL", "NAME"})
	for _, sym := range results {
		tw.AppendRow(table.Row{sym, matcher.DisplayName(sym)})
	}
	tw.Render()
}
