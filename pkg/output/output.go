package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/fatih/color"
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/term"

	"github.com/zfogg/nearby/cli/pkg/config"
	"github.com/zfogg/nearby/cli/pkg/loading"
	"github.com/zfogg/nearby/cli/pkg/toast"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Out receives command output; Err receives toasts and the loading line.
var (
	Out io.Writer = color.Output
	Err io.Writer = color.Error
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatTable OutputFormat = "table"
	FormatText  OutputFormat = "text"
)

// GetOutputFormat returns the configured output format
func GetOutputFormat() OutputFormat {
	format := config.GetString("output.format")
	switch format {
	case "json":
		return FormatJSON
	case "table":
		return FormatTable
	default:
		return FormatText
	}
}

// ValidateOutputFormat checks if format is valid
func ValidateOutputFormat(format string) bool {
	return format == "json" || format == "table" || format == "text"
}

// Print outputs data in the configured format with optional title
func Print(title string, data interface{}) error {
	if GetOutputFormat() == FormatJSON {
		return printJSON(data)
	}
	if title != "" {
		fmt.Fprintf(Out, "%s:\n", title)
	}
	pretty, err := FormatAsPrettyJSON(data)
	if err != nil {
		return err
	}
	fmt.Fprintln(Out, pretty)
	return nil
}

// PrintList outputs a list. JSON output encodes items; table and text
// output render rows under headers.
func PrintList(title string, items interface{}, headers []string, rows [][]string) error {
	switch GetOutputFormat() {
	case FormatJSON:
		return printJSON(items)
	case FormatTable:
		printTable(headers, rows)
		return nil
	default:
		if title != "" {
			color.New(color.Bold).Fprintln(Out, title)
		}
		if len(rows) == 0 {
			fmt.Fprintln(Out, "  (none)")
			return nil
		}
		printRows(rows)
		return nil
	}
}

// PrintRecord outputs a single record in the configured format. Keys are
// printed in sorted order.
func PrintRecord(title string, record map[string]interface{}) error {
	keys := make([]string, 0, len(record))
	for k := range record {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	switch GetOutputFormat() {
	case FormatJSON:
		return printJSON(record)
	case FormatTable:
		rows := make([][]string, 0, len(keys))
		for _, k := range keys {
			rows = append(rows, []string{k, fmt.Sprintf("%v", record[k])})
		}
		printTable([]string{"Field", "Value"}, rows)
		return nil
	default:
		if title != "" {
			fmt.Fprintf(Out, "%s:\n", title)
		}
		bold := color.New(color.Bold)
		for _, k := range keys {
			bold.Fprint(Out, k+": ")
			fmt.Fprintf(Out, "%v\n", record[k])
		}
		return nil
	}
}

// PrintSuccess prints a success message
func PrintSuccess(msg string, args ...interface{}) {
	color.New(color.FgGreen).Fprintf(Out, msg+"\n", args...)
}

// PrintError prints an error message
func PrintError(msg string, args ...interface{}) {
	color.New(color.FgRed).Fprintf(Err, "Error: "+msg+"\n", args...)
}

// PrintInfo prints an info message
func PrintInfo(msg string, args ...interface{}) {
	color.New(color.FgCyan).Fprintf(Out, msg+"\n", args...)
}

// PrintWarning prints a warning message
func PrintWarning(msg string, args ...interface{}) {
	color.New(color.FgYellow).Fprintf(Err, "Warning: "+msg+"\n", args...)
}

// ToastSink shows toasts on Err, one line each, with the suggestion of a
// failure on a second line.
func ToastSink() toast.Sink {
	return toast.SinkFunc(func(t toast.Toast) {
		switch t.Kind {
		case toast.KindSuccess:
			color.New(color.FgGreen).Fprintf(Err, "✓ %s\n", t.Message)
		case toast.KindFailure:
			color.New(color.FgRed).Fprintf(Err, "✗ %s: %s\n", t.Title, t.Message)
			if t.Suggestion != "" {
				color.New(color.FgYellow).Fprintf(Err, "  💡 %s\n", t.Suggestion)
			}
		default:
			color.New(color.FgCyan).Fprintf(Err, "• %s\n", t.Message)
		}
	})
}

// LoadingLine returns a listener that keeps one status line on Err listing
// what set is busy with. It does nothing unless stderr is a terminal.
func LoadingLine(set *loading.Set[loading.Tag]) loading.Listener[loading.Tag] {
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		return func(loading.Tag, bool) {}
	}
	var mu sync.Mutex
	dim := color.New(color.Faint)
	return func(loading.Tag, bool) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprint(Err, "\r\033[K")
		active := loading.Sorted(set)
		if len(active) == 0 {
			return
		}
		names := make([]string, len(active))
		for i, tag := range active {
			names[i] = tag.String()
		}
		dim.Fprintf(Err, "⏳ %s…", strings.Join(names, ", "))
	}
}

func printJSON(data interface{}) error {
	encoder := json.NewEncoder(Out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func printRows(rows [][]string) {
	w := tabwriter.NewWriter(Out, 0, 0, 2, ' ', 0)
	for _, row := range rows {
		fmt.Fprintln(w, "  "+strings.Join(row, "\t"))
	}
	w.Flush()
}

func printTable(headers []string, rows [][]string) {
	w := tabwriter.NewWriter(Out, 0, 0, 2, ' ', 0)
	bold := color.New(color.Bold)

	for i, h := range headers {
		bold.Fprint(w, h)
		if i < len(headers)-1 {
			fmt.Fprint(w, "\t")
		}
	}
	fmt.Fprintln(w)

	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}

	w.Flush()
}

// FormatAsJSON converts data to a compact JSON string
func FormatAsJSON(data interface{}) (string, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return string(jsonData), nil
}

// FormatAsPrettyJSON converts data to an indented JSON string
func FormatAsPrettyJSON(data interface{}) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonData), nil
}
