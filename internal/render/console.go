package render

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"currencycheck/internal/domain"
	"currencycheck/internal/search"
)

const clearSequence = "\033[H\033[2J"

// View narrows what the console shows.
type View struct {
	Mode      search.Mode
	Query     string
	Favorites []string
}

// ConsoleOptions configure a Console.
type ConsoleOptions struct {
	ClearScreen bool
	View        View
	Now         func() time.Time
}

// Console draws snapshots as a table. Patches redraw the table with the
// patched entries merged into the last rendered snapshot.
type Console struct {
	mu    sync.Mutex
	out   io.Writer
	clear bool
	now   func() time.Time

	view    View
	snap    domain.Snapshot
	has     bool
	errText string
}

// NewConsole builds a console presenter writing to out.
func NewConsole(out io.Writer, opts ConsoleOptions) *Console {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if opts.View.Mode == "" {
		opts.View.Mode = search.ModeAll
	}
	return &Console{out: out, clear: opts.ClearScreen, now: now, view: opts.View}
}

// IsTerminal reports whether f is attached to a terminal, in which case the
// console clears the screen between frames.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// SetView changes the filter and redraws.
func (c *Console) SetView(v View) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v.Mode == "" {
		v.Mode = search.ModeAll
	}
	c.view = v
	if c.has {
		c.draw()
	}
}

// Render replaces the current snapshot and redraws.
func (c *Console) Render(snap domain.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = snap.Clone()
	c.has = true
	c.draw()
}

// RenderWithError replaces the snapshot and the banner and draws one frame.
func (c *Console) RenderWithError(snap domain.Snapshot, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = snap.Clone()
	c.has = true
	c.errText = ""
	if err != nil {
		c.errText = sanitizeInline(err.Error())
	}
	c.draw()
}

// Patch merges entries into the current snapshot and redraws.
func (c *Console) Patch(entries []domain.Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.has {
		return
	}
	c.snap = c.snap.WithPatched(entries)
	c.draw()
}

// ShowError prints an error banner above the last table.
func (c *Console) ShowError(err error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errText = sanitizeInline(err.Error())
	c.draw()
}

// ClearError drops the banner from the next frame.
func (c *Console) ClearError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errText = ""
}

func (c *Console) draw() {
	if c.clear {
		fmt.Fprint(c.out, clearSequence)
	}

	fmt.Fprintf(c.out, "Updated %s\n", c.now().Format("15:04:05"))
	if c.errText != "" {
		fmt.Fprintf(c.out, "! %s\n", c.errText)
	}
	if !c.has {
		return
	}

	entries := search.Filter(c.snap.Sorted(), c.view.Favorites, c.view.Mode)
	res := search.Query(entries, c.view.Query)
	if len(res.Entries) == 0 {
		switch {
		case len(res.Suggestions) > 0:
			fmt.Fprintf(c.out, "no matches for %q; did you mean %s?\n", c.view.Query, strings.Join(res.Suggestions, ", "))
		case c.view.Mode == search.ModeFavorites:
			fmt.Fprintln(c.out, "no favorite currencies")
		default:
			fmt.Fprintln(c.out, "no data to display")
		}
		return
	}

	fav := make(map[string]struct{}, len(c.view.Favorites))
	for _, id := range c.view.Favorites {
		fav[id] = struct{}{}
	}

	writer := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, " \tSymbol\tName\tType\tPrice (USD)\t24h\tTier")
	for _, e := range res.Entries {
		star := " "
		if _, ok := fav[e.ID]; ok {
			star = "*"
		}
		change := domain.FormatChange(e.Change24h)
		if e.Class == domain.ClassFiat {
			change = "-"
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
			star, e.Symbol, e.Name, e.Class, domain.FormatEntryPrice(e), change, e.Priority)
	}
	writer.Flush()

	stats := domain.ComputeStatistics(c.snap)
	line := fmt.Sprintf("Active %d  Volume %s", stats.Active, domain.FormatLargeNumber(stats.TotalVolume))
	if stats.TopGainer != nil {
		line += fmt.Sprintf("  Top gainer %s %s", stats.TopGainer.Symbol, domain.FormatChange(stats.TopGainer.Change24h))
	}
	if stats.TopLoser != nil {
		line += fmt.Sprintf("  Top loser %s %s", stats.TopLoser.Symbol, domain.FormatChange(stats.TopLoser.Change24h))
	}
	fmt.Fprintln(c.out, line)
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
