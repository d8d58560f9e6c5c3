package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/supportsphere/helpdesk/internal/bootstrap"
	"github.com/supportsphere/helpdesk/internal/changefeed"
	"github.com/supportsphere/helpdesk/internal/domain"
	"github.com/supportsphere/helpdesk/internal/gateway"
	"github.com/supportsphere/helpdesk/internal/identity"
	"github.com/supportsphere/helpdesk/internal/ticket"
)

var ticketsCmd = &cobra.Command{
	Use:   "tickets",
	Short: "Inspect tickets as a given user",
}

var ticketsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tickets visible to --as",
	RunE:  runTicketsList,
}

var ticketsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print the ticket list again whenever tickets change",
	Long: `watch subscribes to ticket change signals and re-lists after each one.
It only sees changes from other processes when CHANGEFEED_DRIVER is postgres
or redis.`,
	RunE: runTicketsWatch,
}

var (
	ticketsAsFlag       string
	ticketsStatusFlag   string
	ticketsPriorityFlag string
	ticketsAgentFlag    string
	ticketsTeamFlag     string
	ticketsSearchFlag   string
)

func init() {
	for _, c := range []*cobra.Command{ticketsListCmd, ticketsWatchCmd} {
		c.Flags().StringVar(&ticketsAsFlag, "as", "", "User id to act as (required)")
		c.Flags().StringVar(&ticketsStatusFlag, "status", "", "Comma separated statuses")
		c.Flags().StringVar(&ticketsPriorityFlag, "priority", "", "Comma separated priorities")
		c.Flags().StringVar(&ticketsAgentFlag, "agent", "", "Assigned agent id")
		c.Flags().StringVar(&ticketsTeamFlag, "team", "", "Assigned team id")
		c.Flags().StringVar(&ticketsSearchFlag, "search", "", "Case-insensitive title/description match")
		_ = c.MarkFlagRequired("as")
		ticketsCmd.AddCommand(c)
	}
	rootCmd.AddCommand(ticketsCmd)
}

func runTicketsList(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	repo, err := ticketsRepository(cmd.Context(), s.rt, ticketsAsFlag, filterFromFlags())
	if err != nil {
		return err
	}
	defer repo.Close()

	tickets, err := repo.List(cmd.Context(), repo.Filter())
	if err != nil {
		return err
	}
	return printTickets(cmd.OutOrStdout(), tickets)
}

func runTicketsWatch(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()
	s.rt.Start(cmd.Context())

	repo, err := ticketsRepository(cmd.Context(), s.rt, ticketsAsFlag, filterFromFlags())
	if err != nil {
		return err
	}
	defer repo.Close()

	return watchTickets(cmd.Context(), s.rt.Hub, repo, cmd.OutOrStdout())
}

// watchTickets prints the current list, then again after every change signal,
// until ctx is done.
func watchTickets(ctx context.Context, feed changefeed.Feed, repo *ticket.Repository, out io.Writer) error {
	render := func(ctx context.Context) {
		repo.Refresh(ctx)
		snap := repo.Snapshot()
		if snap.Error != "" {
			fmt.Fprintln(out, "error:", snap.Error)
			return
		}
		_ = printTickets(out, snap.Tickets)
	}

	var watches changefeed.Watches
	defer watches.Close()
	if _, err := watches.Start(ctx, feed, changefeed.Topic{Table: changefeed.TableTickets}, render); err != nil {
		return err
	}
	render(ctx)
	<-ctx.Done()
	return nil
}

func ticketsRepository(ctx context.Context, rt *bootstrap.Runtime, userID string, filter ticket.Filter) (*ticket.Repository, error) {
	profile, err := rt.Gateway.Directory().Profile(ctx, userID)
	if err != nil {
		if gateway.IsNotFound(err) {
			return nil, fmt.Errorf("no profile for user %q", userID)
		}
		return nil, err
	}
	session := identity.Authenticated(domain.ActorFromProfile(profile))
	return ticket.NewRepository(session, filter, ticket.Deps{
		Gateway:  rt.Gateway,
		Feed:     rt.Hub,
		Recorder: rt.Recorder,
	}), nil
}

func filterFromFlags() ticket.Filter {
	filter := ticket.Filter{Search: strings.TrimSpace(ticketsSearchFlag)}
	for _, s := range splitFlag(ticketsStatusFlag) {
		filter.Statuses = append(filter.Statuses, domain.TicketStatus(s))
	}
	for _, p := range splitFlag(ticketsPriorityFlag) {
		filter.Priorities = append(filter.Priorities, domain.TicketPriority(p))
	}
	if ticketsAgentFlag != "" {
		filter.AssignedAgent = &ticketsAgentFlag
	}
	if ticketsTeamFlag != "" {
		filter.AssignedTeam = &ticketsTeamFlag
	}
	return filter
}

func splitFlag(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func printTickets(out io.Writer, tickets []domain.Ticket) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tSTATUS\tPRIORITY\tTITLE")
	for i := range tickets {
		t := &tickets[i]
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.DisplayKey(), t.Status, t.Priority, t.Title)
	}
	return w.Flush()
}
