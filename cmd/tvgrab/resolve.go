package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vmunix/tvgrab/internal/download"
	"github.com/vmunix/tvgrab/internal/resolver"
)

// selectionFlags are shared by get and resolve.
type selectionFlags struct {
	season  int
	episode int
	limit   int
	url     string
}

func (f *selectionFlags) bind(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.season, "season", "s", 0, "Only this season (1-based)")
	cmd.Flags().IntVarP(&f.episode, "episode", "e", 0, "Only this episode of each selected season (1-based)")
	cmd.Flags().IntVarP(&f.limit, "limit", "n", 0, "At most this many episodes per season")
	cmd.Flags().StringVar(&f.url, "url", "", "Series page URL; skips the search")
}

func (f *selectionFlags) selection() resolver.Selection {
	return resolver.Selection{Season: f.season, Episode: f.episode, Limit: f.limit}
}

var resolveSel selectionFlags

var resolveCmd = &cobra.Command{
	Use:   "resolve <series title>",
	Short: "Print the download links of a series without downloading",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runResolveCmd,
}

func init() {
	rootCmd.AddCommand(resolveCmd)
	resolveSel.bind(resolveCmd)
}

func runResolveCmd(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	res, err := resolveTitle(cmd.Context(), a, strings.Join(args, " "), &resolveSel)
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(toResolveOutput(res))
		return nil
	}
	printTasks(res)
	return nil
}

// resolveTitle runs the resolver for title, or for the --url page when set.
func resolveTitle(ctx context.Context, a *app, title string, sel *selectionFlags) (*resolver.Result, error) {
	r, err := a.newResolver()
	if err != nil {
		return nil, err
	}

	var res *resolver.Result
	if sel.url != "" {
		res, err = r.ResolveURL(ctx, title, sel.url, sel.selection())
	} else {
		res, err = r.Resolve(ctx, title, sel.selection())
	}
	if err != nil {
		var nf *resolver.NotFoundError
		if errors.As(err, &nf) && len(nf.Candidates) > 0 {
			fmt.Fprintf(os.Stderr, "No series titled %q. Did you mean:\n", nf.Title)
			for _, c := range nf.Candidates {
				fmt.Fprintf(os.Stderr, "  %s\n", c)
			}
		}
		return nil, err
	}

	for _, w := range res.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w.Error())
	}
	return res, nil
}

type resolveOutput struct {
	Series    string          `json:"series"`
	SeriesURL string          `json:"series_url"`
	Seasons   int             `json:"seasons"`
	Tasks     []download.Task `json:"tasks"`
	Warnings  []warningOutput `json:"warnings,omitempty"`
}

type warningOutput struct {
	Kind    string `json:"kind"`
	Scope   string `json:"scope"`
	Message string `json:"message"`
}

func toResolveOutput(res *resolver.Result) resolveOutput {
	out := resolveOutput{
		Series:    res.Series,
		SeriesURL: res.SeriesURL,
		Seasons:   res.Seasons,
		Tasks:     res.Tasks,
	}
	if out.Tasks == nil {
		out.Tasks = []download.Task{}
	}
	for _, w := range res.Warnings {
		out.Warnings = append(out.Warnings, warningOutput{Kind: w.Kind, Scope: w.Scope, Message: w.Err.Error()})
	}
	return out
}

func printTasks(res *resolver.Result) {
	if len(res.Tasks) == 0 {
		fmt.Println("No episodes resolved")
		return
	}
	fmt.Printf("%s (%d seasons listed)\n\n", res.Series, res.Seasons)
	fmt.Printf("  %-4s %-40s %s\n", "#", "NAME", "URL")
	fmt.Println("  " + strings.Repeat("-", 80))
	for i, t := range res.Tasks {
		fmt.Printf("  %-4d %-40s %s\n", i+1, truncate(t.Name, 40), t.URL)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
