package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jkdigital/servicehub/internal/app/domain/request"
	"github.com/jkdigital/servicehub/internal/client"
)

func (rc *rootContext) adminCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administrator commands",
	}
	cmd.AddCommand(
		rc.adminLoginCommand(),
		rc.adminStatsCommand(),
		rc.adminUsersCommand(),
		rc.adminCreateUserCommand(),
		rc.adminBlockCommand("block", true),
		rc.adminBlockCommand("unblock", false),
		rc.adminWalletCommand(),
		rc.adminPriceCommand(),
		rc.adminPricesCommand(),
		rc.adminCatalogCommand(),
		rc.adminRequestsCommand(),
		rc.adminRespondCommand(),
		rc.adminAuditCommand(),
	)
	return cmd
}

// adminRun wraps fn with the administrator session lookup.
func (rc *rootContext) adminRun(fn func(cmd *cobra.Command, c *client.Client, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		_, c, err := rc.adminSession()
		if err != nil {
			return err
		}
		return rc.handleAuthError(fn(cmd, c, args))
	}
}

func parseAmount(s, what string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", what)
	}
	return v, nil
}

func (rc *rootContext) adminStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show dashboard counters",
		Args:  cobra.NoArgs,
		RunE: rc.adminRun(func(cmd *cobra.Command, c *client.Client, args []string) error {
			stats, err := c.DashboardStats(cmd.Context())
			if err != nil {
				return err
			}
			table := newTable(cmd.OutOrStdout(), "Metric", "Value")
			table.AppendBulk([][]string{
				{"Requests today", strconv.Itoa(stats.TodayRequests)},
				{"Amount today", money(stats.TodayAmount)},
				{"Total requests", strconv.Itoa(stats.TotalRequests)},
				{"Pending requests", strconv.Itoa(stats.PendingRequests)},
				{"Successful requests", strconv.Itoa(stats.SuccessRequests)},
				{"Users", strconv.Itoa(stats.TotalUsers)},
				{"Services", strconv.Itoa(stats.TotalServices)},
			})
			table.Render()
			return nil
		}),
	}
}

func (rc *rootContext) adminUsersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List customers",
		Args:  cobra.NoArgs,
		RunE: rc.adminRun(func(cmd *cobra.Command, c *client.Client, args []string) error {
			users, err := c.Users(cmd.Context())
			if err != nil {
				return err
			}
			table := newTable(cmd.OutOrStdout(), "ID", "Name", "Mobile", "Balance", "Status", "Created")
			for _, u := range users {
				status := "active"
				if u.IsBlocked {
					status = "blocked"
				}
				table.Append([]string{u.ID, u.Name, u.Mobile, money(u.WalletBalance), statusText(status), shortTime(u.CreatedAt)})
			}
			table.Render()
			return nil
		}),
	}
}

func (rc *rootContext) adminCreateUserCommand() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "create-user <name> <mobile>",
		Short: "Register a customer",
		Args:  cobra.ExactArgs(2),
		RunE: rc.adminRun(func(cmd *cobra.Command, c *client.Client, args []string) error {
			pw, err := readSecret(cmd, password, "Password for the new user: ")
			if err != nil {
				return err
			}
			user, err := c.CreateUser(cmd.Context(), args[0], args[1], pw)
			if err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), "User %s created with id %s", user.Name, user.ID)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "initial password")
	return cmd
}

func (rc *rootContext) adminBlockCommand(use string, blocked bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <user-id>",
		Short: strings.ToUpper(use[:1]) + use[1:] + " a customer",
		Args:  cobra.ExactArgs(1),
		RunE: rc.adminRun(func(cmd *cobra.Command, c *client.Client, args []string) error {
			msg, err := c.SetUserBlocked(cmd.Context(), args[0], blocked)
			if err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), "%s", msg)
			return nil
		}),
	}
}

func (rc *rootContext) adminWalletCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "wallet <user-id> <balance>",
		Short: "Set a customer's wallet balance",
		Args:  cobra.ExactArgs(2),
		RunE: rc.adminRun(func(cmd *cobra.Command, c *client.Client, args []string) error {
			balance, err := parseAmount(args[1], "balance")
			if err != nil {
				return err
			}
			got, err := c.UpdateWallet(cmd.Context(), args[0], balance)
			if err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), "Wallet balance updated to %s", money(got))
			return nil
		}),
	}
}

func (rc *rootContext) adminPriceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "price <user-id> <service-id> <price>",
		Short: "Set a customer's price for a service",
		Args:  cobra.ExactArgs(3),
		RunE: rc.adminRun(func(cmd *cobra.Command, c *client.Client, args []string) error {
			price, err := parseAmount(args[2], "price")
			if err != nil {
				return err
			}
			msg, err := c.SetServicePrice(cmd.Context(), args[0], args[1], price)
			if err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), "%s", msg)
			return nil
		}),
	}
}

func (rc *rootContext) adminPricesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "prices <user-id>",
		Short: "Show a customer's price for every service",
		Args:  cobra.ExactArgs(1),
		RunE: rc.adminRun(func(cmd *cobra.Command, c *client.Client, args []string) error {
			prices, err := c.UserServicePrices(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			table := newTable(cmd.OutOrStdout(), "Service ID", "Service", "Price")
			for _, p := range prices {
				table.Append([]string{p.ServiceID, p.ServiceName, money(p.Price)})
			}
			table.Render()
			return nil
		}),
	}
}

func (rc *rootContext) adminCatalogCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the service catalog",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List every service",
		Args:  cobra.NoArgs,
		RunE: rc.adminRun(func(cmd *cobra.Command, c *client.Client, args []string) error {
			services, err := c.AllServices(cmd.Context())
			if err != nil {
				return err
			}
			table := newTable(cmd.OutOrStdout(), "ID", "Name", "Default Price", "Status", "Fields")
			for _, s := range services {
				status := "active"
				if !s.IsActive {
					status = "inactive"
				}
				table.Append([]string{s.ID, s.Name, money(s.DefaultPrice), statusText(status), describeFields(s.Fields)})
			}
			table.Render()
			return nil
		}),
	}

	var in client.ServiceInput
	var fieldSpecs []string
	create := &cobra.Command{
		Use:     "create <name>",
		Short:   "Add a service",
		Example: `  hubctl admin catalog create "PAN Card" --price 150 --field aadhaar:text:required --field email`,
		Args:    cobra.ExactArgs(1),
		RunE: rc.adminRun(func(cmd *cobra.Command, c *client.Client, args []string) error {
			fields, err := parseFieldSpecs(fieldSpecs)
			if err != nil {
				return err
			}
			in.Name = args[0]
			in.Fields = fields
			svc, err := c.CreateService(cmd.Context(), in)
			if err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), "Service %s created with id %s", svc.Name, svc.ID)
			return nil
		}),
	}
	create.Flags().Float64Var(&in.DefaultPrice, "price", 0, "default price")
	create.Flags().StringVar(&in.Description, "description", "", "description")
	create.Flags().StringArrayVar(&fieldSpecs, "field", nil, "input field as name[:type[:required]] (repeatable)")

	toggle := func(use string, active bool) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <service-id>",
			Short: strings.ToUpper(use[:1]) + use[1:] + " a service",
			Args:  cobra.ExactArgs(1),
			RunE: rc.adminRun(func(cmd *cobra.Command, c *client.Client, args []string) error {
				msg, err := c.SetServiceActive(cmd.Context(), args[0], active)
				if err != nil {
					return err
				}
				printSuccess(cmd.OutOrStdout(), "%s", msg)
				return nil
			}),
		}
	}

	remove := &cobra.Command{
		Use:   "delete <service-id>",
		Short: "Delete a service and its custom prices",
		Args:  cobra.ExactArgs(1),
		RunE: rc.adminRun(func(cmd *cobra.Command, c *client.Client, args []string) error {
			msg, err := c.DeleteService(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), "%s", msg)
			return nil
		}),
	}

	cmd.AddCommand(list, create, toggle("enable", true), toggle("disable", false), remove)
	return cmd
}

// parseFieldSpecs reads name[:type[:required]] definitions.
func parseFieldSpecs(specs []string) ([]client.FieldInput, error) {
	fields := make([]client.FieldInput, 0, len(specs))
	for _, spec := range specs {
		parts := strings.Split(spec, ":")
		f := client.FieldInput{Name: strings.TrimSpace(parts[0]), Type: "text"}
		if f.Name == "" {
			return nil, fmt.Errorf("field %q has no name", spec)
		}
		if len(parts) > 1 && parts[1] != "" {
			f.Type = parts[1]
		}
		if len(parts) > 2 {
			if parts[2] != "required" {
				return nil, fmt.Errorf("field %q: third part must be 'required'", spec)
			}
			f.Required = true
		}
		if len(parts) > 3 {
			return nil, fmt.Errorf("field %q has too many parts", spec)
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func (rc *rootContext) adminRequestsCommand() *cobra.Command {
	var pendingOnly bool
	cmd := &cobra.Command{
		Use:   "requests",
		Short: "List customer requests",
		Args:  cobra.NoArgs,
		RunE: rc.adminRun(func(cmd *cobra.Command, c *client.Client, args []string) error {
			requests, err := c.ServiceRequests(cmd.Context())
			if err != nil {
				return err
			}
			table := newTable(cmd.OutOrStdout(), "ID", "User", "Mobile", "Service", "Price", "Status", "Created")
			for _, r := range requests {
				if pendingOnly && r.Status != request.StatusPending {
					continue
				}
				table.Append([]string{
					r.ID, r.UserName, r.UserMobile, r.ServiceName, money(r.ServicePrice),
					statusText(string(r.Status)), shortTime(r.CreatedAt),
				})
			}
			table.Render()
			return nil
		}),
	}
	cmd.Flags().BoolVar(&pendingOnly, "pending", false, "only show requests awaiting a decision")
	return cmd
}

func (rc *rootContext) adminRespondCommand() *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "respond <request-id> <success|failed>",
		Short: "Decide a pending request; failing it refunds the customer",
		Args:  cobra.ExactArgs(2),
		RunE: rc.adminRun(func(cmd *cobra.Command, c *client.Client, args []string) error {
			status := request.Status(strings.ToLower(args[1]))
			if _, err := request.ParseResponse(string(status)); err != nil {
				return errors.New("status must be 'success' or 'failed'")
			}
			msg, err := c.RespondToRequest(cmd.Context(), args[0], status, message)
			if err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), "%s", msg)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "message shown to the customer")
	return cmd
}

func (rc *rootContext) adminAuditCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent administrator changes",
		Args:  cobra.NoArgs,
		RunE: rc.adminRun(func(cmd *cobra.Command, c *client.Client, args []string) error {
			entries, err := c.Audit(cmd.Context(), limit)
			if err != nil {
				return err
			}
			table := newTable(cmd.OutOrStdout(), "Time", "Admin", "Method", "Route", "Status")
			for _, e := range entries {
				table.Append([]string{shortTime(e.Time), e.Admin, e.Method, e.Route, strconv.Itoa(e.Status)})
			}
			table.Render()
			return nil
		}),
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "number of entries")
	return cmd
}
