package walkforward

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
)

// Summary renders one row per window followed by the validated patterns
func (r *Report) Summary(w io.Writer) error {
	var out bytes.Buffer

	windows := tablewriter.NewWriter(&out)
	windows.SetHeader([]string{"Window", "Train", "Test", "Patterns", "Validated", "Status"})
	for _, wr := range r.Windows {
		status := "ok"
		if wr.Err != nil {
			status = wr.Err.Error()
		}
		windows.Append([]string{
			strconv.Itoa(wr.Window.Number),
			fmt.Sprintf("%s .. %s", wr.TrainFrom.Format("2006-01-02"), wr.TrainTo.Format("2006-01-02")),
			fmt.Sprintf("%s .. %s", wr.TestFrom.Format("2006-01-02"), wr.TestTo.Format("2006-01-02")),
			strconv.Itoa(wr.Discovered),
			strconv.Itoa(wr.Validated),
			status,
		})
	}
	windows.Render()

	if len(r.Validated) > 0 {
		fmt.Fprintln(&out, "\n------ VALIDATED -------")
		validated := tablewriter.NewWriter(&out)
		validated.SetHeader([]string{"Window", "Conditions", "Trades", "Return", "Sharpe", "Max DD"})
		for _, v := range r.Validated {
			validated.Append([]string{
				strconv.Itoa(v.Window),
				v.Pattern.Conditions.String(),
				strconv.Itoa(v.Result.TotalTrades),
				fmt.Sprintf("%.2f %%", v.Result.TotalReturn*100),
				fmt.Sprintf("%.3f", v.Result.SharpeRatio),
				fmt.Sprintf("%.2f %%", v.Result.MaxDrawdown*100),
			})
		}
		validated.Render()
	}

	fmt.Fprintf(&out, "\nPATTERN TESTS   = %d\n", len(r.All))
	fmt.Fprintf(&out, "VALIDATED       = %d (%d distinct)\n", len(r.Validated), len(r.ValidatedKeys()))

	_, err := w.Write(out.Bytes())
	return err
}
