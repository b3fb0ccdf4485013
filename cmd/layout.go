package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/smazurov/videomixer/internal/compositor"
	"github.com/smazurov/videomixer/internal/layout"
	"github.com/spf13/cobra"
)

type channelReport struct {
	ID      string         `json:"id"`
	ZOrder  int            `json:"zorder"`
	Source  string         `json:"source,omitempty"`
	Input   string         `json:"input,omitempty"`
	Regions layout.Regions `json:"regions"`
}

type layoutReport struct {
	Output   string            `json:"output"`
	Result   compositor.Result `json:"result"`
	Channels []channelReport   `json:"channels"`
}

// CreateLayoutCmd creates the layout command.
func CreateLayoutCmd() *cobra.Command {
	var configFile string
	var layoutFile string
	var frame uint64
	var asJSON bool
	var verbose bool

	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Show the regions computed for a layout file",
		Long: `Loads the layout file, runs one aggregation pass without a blit engine and ` +
			`prints each channel's inner, outer and total region together with the ` +
			`decision whether the output had to be cleared.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			initCommandLogging(configFile, verbose)

			o, err := newOffline(layoutFile, "noop", frame)
			if err != nil {
				return err
			}
			defer o.Close()

			res, err := o.mixer.Step()
			if err != nil {
				return fmt.Errorf("aggregate: %w", err)
			}

			desc, _ := o.comp.Output()
			report := layoutReport{Output: desc.String(), Result: res}
			for _, h := range o.comp.Channels() {
				r := channelReport{
					ID:      h.ID(),
					ZOrder:  h.ZOrder(),
					Source:  o.layout.Channels[h.ID()].Source,
					Regions: h.Regions(),
				}
				if src := h.Source(); src.Width > 0 {
					r.Input = fmt.Sprintf("%dx%d %s", src.Width, src.Height, src.Format)
				}
				report.Channels = append(report.Channels, r)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}

			fmt.Fprintf(out, "output: %s\n", report.Output)
			fmt.Fprintf(out, "cleared: %t  blits: %d\n\n", res.Cleared, res.Blits)

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CHANNEL\tZ\tINPUT\tINNER\tOUTER\tTOTAL\tFILLS")
			for _, r := range report.Channels {
				input := r.Input
				if input == "" {
					input = "-"
				}
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%t\n",
					r.ID, r.ZOrder, input,
					r.Regions.Inner, r.Regions.Outer, r.Regions.Total,
					r.Regions.TotalFillsOutput)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "config.toml", "Configuration file for logging settings")
	cmd.Flags().StringVarP(&layoutFile, "layout", "l", "layout.toml", "Layout file")
	cmd.Flags().Uint64Var(&frame, "frame", 0, "Source frame number")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	return cmd
}
