package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/turtacn/molmatch/internal/application/matching"
	mtypes "github.com/turtacn/molmatch/pkg/types/molecule"
)

// Output formats accepted by --output.
const (
	outputText  = "text"
	outputJSON  = "json"
	outputYAML  = "yaml"
	outputTable = "table"
)

func validOutput(format string) bool {
	switch strings.ToLower(format) {
	case outputText, outputJSON, outputYAML, outputTable:
		return true
	}
	return false
}

// PrintResult writes one match result to stdout in the selected format.
func PrintResult(cmd *cobra.Command, res *mtypes.MatchResponse) error {
	format := outputJSON
	if cliCtx, err := GetCLIContext(cmd); err == nil {
		format = strings.ToLower(cliCtx.OutputFormat)
	}
	w := cmd.OutOrStdout()

	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case outputYAML:
		return writeYAML(w, res)
	case outputTable:
		fmt.Fprintln(w, headline(res))
		return writeMappingTable(w, res.Mappings)
	default:
		fmt.Fprintln(w, headline(res))
		for i, m := range res.Mappings {
			fmt.Fprintf(w, "  #%d atoms %s", i+1, formatPairs(m.Atoms))
			if len(m.Bonds) > 0 {
				fmt.Fprintf(w, " bonds %s", formatPairs(m.Bonds))
			}
			fmt.Fprintln(w)
		}
		return nil
	}
}

func writeYAML(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// headline summarises a result on one line.
func headline(res *mtypes.MatchResponse) string {
	switch {
	case res.Error != "":
		return fmt.Sprintf("%s %s: %s", color.RedString("ERROR"), res.TargetID, res.Error)
	case res.Matched:
		return fmt.Sprintf("%s %s in %s: %d mapping(s) in %.3fms",
			color.GreenString("MATCH"), res.QueryID, res.TargetID, res.Count, res.DurationMS)
	default:
		return fmt.Sprintf("%s %s in %s (%d nodes)",
			color.YellowString("NO MATCH"), res.QueryID, res.TargetID, res.Stats.Nodes)
	}
}

// formatPairs renders pairs as "q->t" separated by spaces.
func formatPairs(pairs []mtypes.Pair) string {
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = strconv.Itoa(p.Query) + "->" + strconv.Itoa(p.Target)
	}
	return strings.Join(parts, " ")
}

func writeMappingTable(w io.Writer, mappings []mtypes.MappingDocument) error {
	if len(mappings) == 0 {
		return nil
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Atoms", "Bonds"})
	table.SetAutoWrapText(false)
	for i, m := range mappings {
		table.Append([]string{strconv.Itoa(i + 1), formatPairs(m.Atoms), formatPairs(m.Bonds)})
	}
	table.Render()
	return nil
}

// batchRecord is one streamed batch result.
type batchRecord struct {
	Index                int `json:"index" yaml:"index"`
	mtypes.MatchResponse `yaml:",inline"`
}

// batchWriter streams batch results in the selected format.  Table output
// is buffered and rendered by Close.
type batchWriter struct {
	w       io.Writer
	format  string
	enc     *json.Encoder
	records []batchRecord
}

func newBatchWriter(w io.Writer, format string) *batchWriter {
	return &batchWriter{w: w, format: strings.ToLower(format), enc: json.NewEncoder(w)}
}

func (b *batchWriter) Put(index int, res *mtypes.MatchResponse) error {
	rec := batchRecord{Index: index, MatchResponse: *res}
	switch b.format {
	case outputJSON:
		return b.enc.Encode(rec)
	case outputYAML:
		fmt.Fprintln(b.w, "---")
		return writeYAML(b.w, rec)
	case outputTable:
		b.records = append(b.records, rec)
		return nil
	default:
		_, err := fmt.Fprintf(b.w, "[%d] %s\n", index, headline(res))
		return err
	}
}

// Close renders buffered output in target order.
func (b *batchWriter) Close() error {
	if b.format != outputTable || len(b.records) == 0 {
		return nil
	}
	sort.Slice(b.records, func(i, j int) bool { return b.records[i].Index < b.records[j].Index })
	table := tablewriter.NewWriter(b.w)
	table.SetHeader([]string{"Index", "Target", "Matched", "Mappings", "Nodes", "Error"})
	table.SetAutoWrapText(false)
	for _, r := range b.records {
		table.Append([]string{
			strconv.Itoa(r.Index),
			r.TargetID,
			strconv.FormatBool(r.Matched),
			strconv.Itoa(r.Count),
			strconv.FormatInt(r.Stats.Nodes, 10),
			r.Error,
		})
	}
	table.Render()
	return nil
}

var _ matching.Sink = (*batchWriter)(nil)

// printSummary writes a batch summary to w.
func printSummary(w io.Writer, s *matching.BatchSummary) {
	if s == nil {
		return
	}
	failed := strconv.Itoa(s.Failed)
	if s.Failed > 0 {
		failed = color.RedString(failed)
	}
	fmt.Fprintf(w, "targets=%d matched=%s failed=%s elapsed=%s\n",
		s.Targets, color.GreenString(strconv.Itoa(s.Matched)), failed, s.Duration.Round(time.Microsecond))
}
