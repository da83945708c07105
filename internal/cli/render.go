package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/prt-busca/prt-busca/internal/massivesearch"
	"github.com/prt-busca/prt-busca/internal/tools/internetsearch/unified"
)

var (
	bold   = color.New(color.Bold).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	blue   = color.New(color.FgBlue).SprintFunc()
)

// RenderMassive prints a massive search result
func (r *Runner) RenderMassive(result *massivesearch.Result) error {
	if r.output == OutputJSON {
		return writeJSON(r.out, result)
	}

	s := result.Statistics
	fmt.Fprintf(r.out, "%s %s  (session %s)\n\n", bold("Massive search:"), result.Query, result.SessionID)

	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "API sources\t%d\n", s.APISources)
	fmt.Fprintf(w, "Pages navigated\t%d\t%s\n", s.WebsailorPages, stageNote(result.WebsailorResults.Err))
	fmt.Fprintf(w, "Social posts\t%d\t%s\n", s.SocialPosts, stageNote(result.SocialResults.Err))
	fmt.Fprintf(w, "Screenshots\t%d\n", s.ScreenshotsCount)
	fmt.Fprintf(w, "Images\t%d\n", s.ImagesCount)
	fmt.Fprintf(w, "Leads\t%d\t%s\n", s.LeadsCount, stageNote(result.LeadsError))
	fmt.Fprintf(w, "%s\t%d\n", bold("Total sources"), s.TotalSources)
	fmt.Fprintf(w, "Duration\t%.2fs\n", s.SearchDuration)
	if err := w.Flush(); err != nil {
		return err
	}

	if len(result.ConsolidatedURLs) > 0 {
		fmt.Fprintf(r.out, "\n%s\n", bold("URLs"))
		for _, u := range result.ConsolidatedURLs {
			fmt.Fprintf(r.out, "  %s\n", blue(u))
		}
	}

	if len(result.LeadsExtracted) > 0 {
		fmt.Fprintf(r.out, "\n%s\n", bold("Leads"))
		w = tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
		for _, l := range result.LeadsExtracted {
			contact := firstNonEmpty(l.Email, l.Phone, instagramHandle(l.Instagram))
			fmt.Fprintf(w, "  %s\t%s\t%s\n", l.Name, contact, l.Domain)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	if result.Error != "" {
		fmt.Fprintf(r.out, "\n%s %s\n", red("error:"), result.Error)
	}
	return nil
}

// RenderOutcome prints an interleaved search outcome
func (r *Runner) RenderOutcome(outcome *unified.Outcome) error {
	if r.output == OutputJSON {
		return writeJSON(r.out, outcome)
	}

	fmt.Fprintf(r.out, "%s %s  (%s ok, %s failed)\n",
		bold("Interleaved search:"), outcome.Query,
		green(outcome.Successful), failedCount(outcome.Failed))

	for _, pr := range outcome.AllResults {
		fmt.Fprintf(r.out, "\n%s\n", bold(pr.Provider))
		for _, item := range pr.Items {
			fmt.Fprintf(r.out, "  %s\n    %s\n", item.Title, blue(item.URL))
		}
	}
	for _, f := range outcome.Failures {
		fmt.Fprintf(r.out, "\n%s %s: %s\n", red("failed"), f.Provider, f.Error())
	}
	return nil
}

// RenderProviders prints the provider report
func (r *Runner) RenderProviders(report []unified.ProviderStatus) error {
	if r.output == OutputJSON {
		return writeJSON(r.out, report)
	}
	if len(report) == 0 {
		fmt.Fprintln(r.out, yellow("No search providers configured. Set <PROVIDER>_API_KEY, e.g. SERPER_API_KEY."))
		return nil
	}

	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROVIDER\tKEYS\tREQUESTS\tSUCCESSES\tFAILURES")
	for _, p := range report {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\n", p.Provider, p.Keys, p.Requests, p.Successes, p.Failures)
	}
	return w.Flush()
}

func stageNote(err string) string {
	if err == "" {
		return ""
	}
	return yellow("(" + err + ")")
}

func failedCount(n int) string {
	if n == 0 {
		return fmt.Sprint(n)
	}
	return red(n)
}

func instagramHandle(h string) string {
	if h == "" {
		return ""
	}
	return "@" + h
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
