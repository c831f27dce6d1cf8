package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/civicdesk/triage-service/internal/display"
	"github.com/civicdesk/triage-service/internal/domain"
	"github.com/civicdesk/triage-service/internal/filter"
	"github.com/civicdesk/triage-service/internal/service"
)

type dashboardAPI interface {
	Overview(ctx context.Context, session *domain.Session, criteria filter.Criteria) *service.Overview
	ListReports(ctx context.Context, session *domain.Session, criteria filter.Criteria, limit int) service.ReportList
}

type triageAPI interface {
	ApplyStatusChange(ctx context.Context, session *domain.Session, reportID, newStatus string) (*domain.Report, error)
	AssignStaff(ctx context.Context, session *domain.Session, reportID, staff string) (*domain.Report, error)
	AppendComment(ctx context.Context, session *domain.Session, reportID, text string) (*domain.Report, error)
}

type changeFeed interface {
	Subscribe(onChange func()) (unsubscribe func())
}

type services struct {
	dashboard dashboardAPI
	triage    triageAPI
	changes   changeFeed
	// listen feeds backend change events into changes until ctx ends. Optional.
	listen func(ctx context.Context) error
}

type serviceLoader func(ctx context.Context) (*services, func(), error)

type rootOptions struct {
	actor      string
	department string
	jsonOutput bool

	svc     *services
	cleanup func()
}

type filterOptions struct {
	status   string
	priority string
	category string
	search   string
}

func (o *rootOptions) session() *domain.Session {
	return &domain.Session{UserID: o.actor, Name: o.actor, Department: o.department, Role: domain.StaffRoleAdmin}
}

func (o *rootOptions) criteria(f filterOptions) filter.Criteria {
	return filter.Criteria{
		Status:     f.status,
		Priority:   f.priority,
		Category:   f.category,
		Search:     f.search,
		Department: o.department,
	}
}

func (o *rootOptions) close() {
	if o.cleanup != nil {
		o.cleanup()
		o.cleanup = nil
	}
}

func newRootCmd(opts *rootOptions, load serviceLoader) *cobra.Command {
	root := &cobra.Command{
		Use:          "triagectl",
		Short:        "Operate the civic report triage dashboard from the terminal",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if opts.svc != nil {
				return nil
			}
			svc, cleanup, err := load(cmd.Context())
			if err != nil {
				return err
			}
			opts.svc, opts.cleanup = svc, cleanup
			return nil
		},
	}
	root.PersistentFlags().StringVar(&opts.actor, "actor", "triagectl", "User id recorded on changes")
	root.PersistentFlags().StringVar(&opts.department, "department", "", "Limit results to one department")
	root.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "Print JSON instead of text")

	reports := &cobra.Command{
		Use:   "reports",
		Short: "List and triage reports",
	}
	reports.AddCommand(
		newReportsListCmd(opts),
		newReportsStatusCmd(opts),
		newReportsAssignCmd(opts),
		newReportsCommentCmd(opts),
	)

	root.AddCommand(newStatsCmd(opts), reports, newWatchCmd(opts))
	return root
}

func addFilterFlags(cmd *cobra.Command, f *filterOptions) {
	cmd.Flags().StringVar(&f.status, "status", "", "Filter by status")
	cmd.Flags().StringVar(&f.priority, "priority", "", "Filter by priority")
	cmd.Flags().StringVar(&f.category, "category", "", "Filter by category")
	cmd.Flags().StringVar(&f.search, "search", "", "Search title, address and description")
}

func newStatsCmd(opts *rootOptions) *cobra.Command {
	var f filterOptions
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print dashboard statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			overview := opts.svc.dashboard.Overview(cmd.Context(), opts.session(), opts.criteria(f))
			return printOverview(cmd.OutOrStdout(), overview, opts.jsonOutput)
		},
	}
	addFilterFlags(cmd, &f)
	return cmd
}

func newReportsListCmd(opts *rootOptions) *cobra.Command {
	var (
		f     filterOptions
		limit int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reports, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list := opts.svc.dashboard.ListReports(cmd.Context(), opts.session(), opts.criteria(f), limit)
			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				return writeJSON(out, map[string]any{"reports": list.Reports, "notices": list.Notices})
			}
			printNotices(out, list.Notices)
			return printReports(out, list.Reports)
		},
	}
	addFilterFlags(cmd, &f)
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of reports")
	return cmd
}

func newReportsStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <report-id> <status>",
		Short: "Move a report to a new status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := opts.svc.triage.ApplyStatusChange(cmd.Context(), opts.session(), args[0], args[1])
			if err != nil {
				return err
			}
			return printChanged(cmd.OutOrStdout(), report, opts.jsonOutput)
		},
	}
}

func newReportsAssignCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "assign <report-id> [staff]",
		Short: "Assign a report, or clear the assignee when staff is omitted",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			staff := ""
			if len(args) == 2 {
				staff = args[1]
			}
			report, err := opts.svc.triage.AssignStaff(cmd.Context(), opts.session(), args[0], staff)
			if err != nil {
				return err
			}
			return printChanged(cmd.OutOrStdout(), report, opts.jsonOutput)
		},
	}
}

func newReportsCommentCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "comment <report-id> <text...>",
		Short: "Append a comment to a report",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args[1:], " ")
			report, err := opts.svc.triage.AppendComment(cmd.Context(), opts.session(), args[0], text)
			if err != nil {
				return err
			}
			return printChanged(cmd.OutOrStdout(), report, opts.jsonOutput)
		},
	}
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var f filterOptions
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Reprint statistics whenever reports change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			out := cmd.OutOrStdout()

			refresh := make(chan struct{}, 1)
			unsubscribe := opts.svc.changes.Subscribe(func() {
				select {
				case refresh <- struct{}{}:
				default:
				}
			})
			defer unsubscribe()

			listenErr := make(chan error, 1)
			if opts.svc.listen != nil {
				go func() { listenErr <- opts.svc.listen(ctx) }()
			}

			if err := printOverview(out, opts.svc.dashboard.Overview(ctx, opts.session(), opts.criteria(f)), opts.jsonOutput); err != nil {
				return err
			}
			for {
				select {
				case <-ctx.Done():
					return nil
				case err := <-listenErr:
					if err != nil && !errors.Is(err, context.Canceled) {
						return err
					}
					return nil
				case <-refresh:
					fmt.Fprintln(out, "---")
					if err := printOverview(out, opts.svc.dashboard.Overview(ctx, opts.session(), opts.criteria(f)), opts.jsonOutput); err != nil {
						return err
					}
				}
			}
		},
	}
	addFilterFlags(cmd, &f)
	return cmd
}

func printOverview(out io.Writer, o *service.Overview, asJSON bool) error {
	if asJSON {
		return writeJSON(out, o)
	}
	printNotices(out, o.Notices)
	s := o.Stats
	fmt.Fprintf(out, "Total reports:      %d\n", s.TotalReports)
	fmt.Fprintf(out, "Resolved:           %d\n", s.ResolvedReports)
	fmt.Fprintf(out, "Pending:            %d\n", s.PendingReports)
	fmt.Fprintf(out, "Active users:       %d\n", s.ActiveUsers)
	fmt.Fprintf(out, "Avg response (h):   %.1f\n", s.AverageResponseTime)
	fmt.Fprintf(out, "Resolution rate:    %.1f%%\n", s.ResolutionRate)

	fmt.Fprintln(out, "\nCategories:")
	for _, c := range o.Categories {
		fmt.Fprintf(out, "  %-20s %3d%%\n", c.Name, c.Percentage)
	}
	fmt.Fprintln(out, "\nStatus:")
	for _, status := range domain.AllStatuses {
		fmt.Fprintf(out, "  %-20s %d\n", display.StatusLabel(status), o.StatusCounts[status])
	}
	return nil
}

func printReports(out io.Writer, reports []domain.Report) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tPRIORITY\tCATEGORY\tCREATED\tTITLE")
	for i := range reports {
		r := &reports[i]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID,
			display.StatusLabel(r.Status),
			display.PriorityLabel(r.Priority),
			r.Category,
			display.FormatDate(r.CreatedAt),
			r.Title,
		)
	}
	return tw.Flush()
}

func printChanged(out io.Writer, r *domain.Report, asJSON bool) error {
	if asJSON {
		return writeJSON(out, r)
	}
	assignee := "unassigned"
	if r.AssignedTo != nil && *r.AssignedTo != "" {
		assignee = *r.AssignedTo
	}
	fmt.Fprintf(out, "%s  %s  %s  %d comment(s)\n", r.ID, display.StatusLabel(r.Status), assignee, len(r.Comments))
	return nil
}

func printNotices(out io.Writer, notices []string) {
	for _, n := range notices {
		fmt.Fprintf(out, "! %s\n", n)
	}
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
