package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jkdigital/servicehub/internal/app/domain/catalog"
)

func (rc *rootContext) servicesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "services",
		Short: "List the services you can order and their prices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, c, err := rc.userSession()
			if err != nil {
				return err
			}
			services, err := c.Services(cmd.Context(), sess.User.ID)
			if err != nil {
				return rc.handleAuthError(err)
			}
			table := newTable(cmd.OutOrStdout(), "ID", "Name", "Price", "Fields")
			for _, svc := range services {
				table.Append([]string{svc.ID, svc.Name, money(svc.UserPrice), describeFields(svc.Fields)})
			}
			table.Render()
			return nil
		},
	}
}

func describeFields(fields []catalog.Field) string {
	if len(fields) == 0 {
		return "-"
	}
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		name := f.Name
		if f.Required {
			name += "*"
		}
		names = append(names, name)
	}
	return strings.Join(names, ", ")
}

func (rc *rootContext) requestCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "request",
		Short: "Submit and track service requests",
	}

	var fields []string
	submit := &cobra.Command{
		Use:     "submit <service-id>",
		Short:   "Submit a request; the price is debited from your wallet",
		Example: `  hubctl request submit 6512ab --field aadhaar=123412341234 --field name="Ravi Kumar"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := parseFields(fields)
			if err != nil {
				return err
			}
			sess, c, err := rc.userSession()
			if err != nil {
				return err
			}
			services, err := c.Services(cmd.Context(), sess.User.ID)
			if err != nil {
				return rc.handleAuthError(err)
			}
			var svc catalog.Service
			for _, s := range services {
				if s.ID == args[0] {
					svc = s.Service
				}
			}
			if svc.ID == "" {
				return fmt.Errorf("service %s is not available", args[0])
			}

			res, err := c.SubmitRequest(cmd.Context(), sess.User.ID, svc, data)
			if err != nil {
				return rc.handleAuthError(err)
			}
			_ = rc.store.ApplyBalance(res.NewWalletBalance)
			out := cmd.OutOrStdout()
			printSuccess(out, "%s (request %s)", res.Message, res.RequestID)
			printBalance(out, res.NewWalletBalance)
			return nil
		},
	}
	submit.Flags().StringArrayVarP(&fields, "field", "f", nil, "field value as name=value (repeatable)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List your requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, c, err := rc.userSession()
			if err != nil {
				return err
			}
			requests, err := c.Requests(cmd.Context(), sess.User.ID)
			if err != nil {
				return rc.handleAuthError(err)
			}
			table := newTable(cmd.OutOrStdout(), "ID", "Service", "Price", "Status", "Message", "Created")
			for _, r := range requests {
				table.Append([]string{
					r.ID, r.ServiceName, money(r.ServicePrice), statusText(string(r.Status)),
					r.AdminMessage, shortTime(r.CreatedAt),
				})
			}
			table.Render()
			return nil
		},
	}

	cmd.AddCommand(submit, list)
	return cmd
}

// parseFields turns name=value pairs into request field data.
func parseFields(pairs []string) (map[string]interface{}, error) {
	data := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("field %q must look like name=value", pair)
		}
		data[name] = value
	}
	return data, nil
}

func (rc *rootContext) historyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Show your wallet ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, c, err := rc.userSession()
			if err != nil {
				return err
			}
			entries, err := c.PaymentHistory(cmd.Context(), sess.User.ID)
			if err != nil {
				return rc.handleAuthError(err)
			}
			table := newTable(cmd.OutOrStdout(), "Date", "Type", "Amount", "Balance", "Description")
			for _, e := range entries {
				table.Append([]string{
					shortTime(e.CreatedAt), string(e.TransactionType), money(e.Amount),
					money(e.BalanceAfter), e.Description,
				})
			}
			table.Render()
			return nil
		},
	}
}

func (rc *rootContext) topupCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "topup <amount>",
		Short:   "Open a UPI order to add money to your wallet",
		Long:    "Creates a payment order. Pay with the UPI link or QR code; the wallet is credited once the gateway confirms the payment.",
		Example: "  hubctl topup 500",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseFloat(strings.TrimSpace(args[0]), 64)
			if err != nil {
				return errors.New("amount must be a number")
			}
			sess, c, err := rc.userSession()
			if err != nil {
				return err
			}
			order, err := c.CreateOrder(cmd.Context(), sess.User.ID, amount)
			if err != nil {
				return rc.handleAuthError(err)
			}
			out := cmd.OutOrStdout()
			printSuccess(out, "Payment order %s created for %s", order.TransactionID, money(order.Amount))
			fmt.Fprintf(out, "  UPI ID:   %s\n  pay link: %s\n  QR code:  %s\n", order.UPIID, order.PaymentLink, order.QRCodeURL)
			printInfo(out, "Run 'hubctl refresh' after paying to see the new balance")
			return nil
		},
	}
}

func (rc *rootContext) ordersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "orders",
		Short: "List your top-up orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, c, err := rc.userSession()
			if err != nil {
				return err
			}
			orders, err := c.GatewayHistory(cmd.Context(), sess.User.ID)
			if err != nil {
				return rc.handleAuthError(err)
			}
			table := newTable(cmd.OutOrStdout(), "Transaction", "Amount", "Status", "Created")
			for _, o := range orders {
				table.Append([]string{o.TransactionID, money(o.Amount), statusText(string(o.Status)), shortTime(o.CreatedAt)})
			}
			table.Render()
			return nil
		},
	}
}
