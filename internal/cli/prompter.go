package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hbenedict/airlock/internal/analysis"
	"github.com/hbenedict/airlock/internal/model"
)

// Prompter walks a user through outlier suggestions one at a time. Exclusion
// is never applied silently: every flag needs an explicit confirmation here
// before the cleanup workflow persists anything.
type Prompter struct {
	writer io.Writer
	reader *NonBlockingReader
}

// NewPrompter creates a prompter over the given streams, defaulting to
// stdin/stdout.
func NewPrompter(reader io.Reader, writer io.Writer) *Prompter {
	if reader == nil {
		reader = os.Stdin
	}
	if writer == nil {
		writer = os.Stdout
	}
	return &Prompter{
		reader: NewNonBlockingReader(reader),
		writer: writer,
	}
}

// ReviewOutliers presents the detector's suggestions and returns the flags
// the user accepted. Supported answers: y (exclude), n (keep), a (exclude
// this and all remaining), q (stop, keeping decisions so far).
func (p *Prompter) ReviewOutliers(ctx context.Context, result analysis.OutlierResult) ([]model.OutlierFlag, error) {
	if result.TotalFlagged == 0 {
		fmt.Fprintln(p.writer, FormatInfo("No outliers detected. Readings look clean."))
		return nil, nil
	}

	fmt.Fprintln(p.writer, RenderBox("Cleanup Review", p.formatSummary(result)))

	flags := make([]model.OutlierFlag, 0, result.TotalFlagged)
	flags = append(flags, result.HeadOutliers...)
	flags = append(flags, result.TailOutliers...)
	flags = append(flags, result.MidLogOutliers...)

	var accepted []model.OutlierFlag
	acceptAll := false
	for i, flag := range flags {
		if acceptAll {
			accepted = append(accepted, flag)
			continue
		}

		fmt.Fprintf(p.writer, "\n[%d/%d] %s\n", i+1, len(flags), p.formatFlag(flag))
		fmt.Fprintln(p.writer, FormatPrompt("Exclude this reading? [y/n/a/q]"))

		answer, err := p.reader.ReadLine(ctx)
		if err != nil {
			return accepted, err
		}

		switch strings.ToLower(answer) {
		case "y", "yes":
			accepted = append(accepted, flag)
		case "a", "all":
			accepted = append(accepted, flag)
			acceptAll = true
		case "q", "quit":
			return accepted, nil
		default:
			// Anything else keeps the reading.
		}
	}
	return accepted, nil
}

func (p *Prompter) formatSummary(result analysis.OutlierResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d readings flagged: %d head, %d tail, %d mid-run\n",
		result.TotalFlagged, len(result.HeadOutliers),
		len(result.TailOutliers), len(result.MidLogOutliers))

	if result.CleanRangeStart != nil {
		fmt.Fprintf(&sb, "Suggested clean range start: %s\n",
			result.CleanRangeStart.Local().Format("Jan 2 15:04"))
	}
	if result.CleanRangeEnd != nil {
		fmt.Fprintf(&sb, "Suggested clean range end: %s\n",
			result.CleanRangeEnd.Local().Format("Jan 2 15:04"))
	}
	sb.WriteString(SubtleStyle.Render("Exclusions are reversible; no readings are deleted."))
	return sb.String()
}

func (p *Prompter) formatFlag(flag model.OutlierFlag) string {
	return fmt.Sprintf("%s  gravity %.4f  deviation %+.4f  (%s)",
		flag.RecordedAt.Local().Format("Jan 2 15:04"),
		flag.Gravity, flag.Deviation, describeReason(flag.Reason))
}

func describeReason(reason model.ExcludeReason) string {
	switch reason {
	case model.ExcludeHeadTrim:
		return "settling transient at start"
	case model.ExcludeTailTrim:
		return "transient at end"
	case model.ExcludeOutlierAuto:
		return "mid-run spike"
	default:
		return string(reason)
	}
}
