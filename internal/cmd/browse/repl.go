package browse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/louisbranch/meteorfall/internal/services/browse/feed"
	"github.com/natefinch/atomic"
	"github.com/peterh/liner"
)

// LineReader reads commands. *liner.State satisfies it.
type LineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

const (
	prompt          = "meteors> "
	defaultShowRows = 20
	pollInterval    = 20 * time.Millisecond
)

var commands = []string{"more", "year", "all", "mass", "years", "show", "export", "help", "quit"}

func completeCommand(line string) []string {
	var out []string
	for _, cmd := range commands {
		if strings.HasPrefix(cmd, strings.ToLower(line)) {
			out = append(out, cmd)
		}
	}
	return out
}

type repl struct {
	session *feed.Session
	in      LineReader
	out     io.Writer
	settle  time.Duration
}

func (r *repl) run(ctx context.Context) error {
	fmt.Fprintln(r.out, "meteorfall catalog browser. Type 'help' for commands.")
	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := r.readLine(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(r.out, "Bye!")
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.in.AppendHistory(line)

		quit, err := r.execute(ctx, line)
		if err != nil {
			if errors.Is(err, feed.ErrClosed) {
				return nil
			}
			fmt.Fprintf(r.out, "error: %v\n", err)
		}
		if quit {
			fmt.Fprintln(r.out, "Bye!")
			return nil
		}
	}
}

// readLine returns when a line is read or ctx ends. Prompt cannot be
// interrupted, so on cancel the read is left behind and its result dropped.
func (r *repl) readLine(ctx context.Context) (string, error) {
	type result struct {
		line string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		line, err := r.in.Prompt(prompt)
		done <- result{line: line, err: err}
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-done:
		return res.line, res.err
	}
}

func (r *repl) execute(ctx context.Context, line string) (quit bool, err error) {
	fields := strings.Fields(line)
	cmd, args := strings.ToLower(fields[0]), fields[1:]
	switch cmd {
	case "quit", "exit", "q":
		return true, nil
	case "help", "?":
		r.printHelp()
		return false, nil
	case "more":
		err = r.session.SentinelVisible()
	case "year":
		if len(args) != 1 {
			return false, errors.New("usage: year <n>")
		}
		key, convErr := strconv.Atoi(args[0])
		if convErr != nil {
			return false, fmt.Errorf("invalid year %q", args[0])
		}
		err = r.session.SelectPartition(key)
	case "all":
		err = r.session.ClearPartition()
	case "mass":
		if len(args) != 1 {
			return false, errors.New("usage: mass <n>|off")
		}
		threshold, parseErr := parseThreshold(args[0])
		if parseErr != nil {
			return false, parseErr
		}
		err = r.session.SetThreshold(threshold)
	case "years":
		return false, r.printYears(ctx)
	case "show":
		rows := defaultShowRows
		if len(args) == 1 {
			n, convErr := strconv.Atoi(args[0])
			if convErr != nil || n <= 0 {
				return false, fmt.Errorf("invalid row count %q", args[0])
			}
			rows = n
		}
		return false, r.printRecords(ctx, rows)
	case "export":
		if len(args) != 1 {
			return false, errors.New("usage: export <path>")
		}
		return false, r.export(ctx, args[0])
	default:
		return false, fmt.Errorf("unknown command %q (type 'help' for commands)", cmd)
	}
	if err != nil {
		return false, err
	}
	view, err := r.waitSettled(ctx)
	if err != nil {
		return false, err
	}
	r.printStatus(view)
	return false, nil
}

func parseThreshold(raw string) (*float64, error) {
	if strings.EqualFold(raw, "off") {
		return nil, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value < 0 {
		return nil, fmt.Errorf("invalid mass %q", raw)
	}
	return &value, nil
}

// waitSettled polls the session until no fetch is in flight.
func (r *repl) waitSettled(ctx context.Context) (feed.View, error) {
	ctx, cancel := context.WithTimeout(ctx, r.settle)
	defer cancel()
	for {
		view, err := r.session.Snapshot(ctx)
		if err != nil {
			return feed.View{}, err
		}
		if !view.Busy {
			return view, nil
		}
		select {
		case <-ctx.Done():
			return view, fmt.Errorf("catalog still loading: %w", ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

func (r *repl) printStatus(view feed.View) {
	var mode string
	switch m := view.Mode.(type) {
	case feed.Incremental:
		mode = fmt.Sprintf("all years, scroll %s", view.Scroll)
	case feed.Partition:
		mode = fmt.Sprintf("year %d", m.Key)
	}
	filter := "no mass filter"
	if view.Threshold != nil {
		filter = fmt.Sprintf("mass > %g", *view.Threshold)
	}
	fmt.Fprintf(r.out, "%s, %s: %d of %d loaded record(s) visible\n", mode, filter, len(view.Records), view.Loaded)
}

func (r *repl) printYears(ctx context.Context) error {
	view, err := r.waitSettled(ctx)
	if err != nil {
		return err
	}
	if len(view.Choices) == 0 {
		fmt.Fprintln(r.out, "no years available")
		return nil
	}
	choices := append([]feed.PartitionSummary(nil), view.Choices...)
	sort.Slice(choices, func(i, j int) bool { return choices[i].Key < choices[j].Key })
	for _, choice := range choices {
		fmt.Fprintf(r.out, "%6d  max %g g\n", choice.Key, choice.Max)
	}
	return nil
}

func (r *repl) printRecords(ctx context.Context, rows int) error {
	view, err := r.waitSettled(ctx)
	if err != nil {
		return err
	}
	records := view.Records
	if len(records) > rows {
		records = records[:rows]
	}
	for _, record := range records {
		class := "-"
		if record.RecClass != nil {
			class = *record.RecClass
		}
		fmt.Fprintf(r.out, "%8d  %-24s %6d  %12g g  %s\n", record.ID, record.Name, record.Year, record.Mass, class)
	}
	if len(view.Records) > rows {
		fmt.Fprintf(r.out, "... %d more\n", len(view.Records)-rows)
	}
	return nil
}

func (r *repl) export(ctx context.Context, path string) error {
	view, err := r.waitSettled(ctx)
	if err != nil {
		return err
	}
	records := view.Records
	if records == nil {
		records = []feed.Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	data = append(data, '\n')
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(r.out, "wrote %d record(s) to %s\n", len(records), path)
	return nil
}

func (r *repl) printHelp() {
	fmt.Fprint(r.out, `Commands:
  more           load the next page of all years
  year <n>       show every fall of year n
  all            return to all years
  mass <n>|off   only show falls heavier than n grams
  years          list years (restricted by the mass filter)
  show [n]       print the first n visible falls (default 20)
  export <path>  write the visible falls as JSON
  help           show this help
  quit           exit
`)
}
