package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jkdigital/servicehub/internal/app/domain/dlpdf"
)

func (rc *rootContext) dlCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dl",
		Short: "Generate driving licence PDFs",
	}

	var req dlpdf.Request
	var output string
	generate := &cobra.Command{
		Use:     "generate <service-id> <dl-number>",
		Short:   "Generate a licence PDF; the price is debited from your wallet",
		Example: "  hubctl dl generate 6512ab JK0120200001234 --blood B+ -o licence.pdf",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, c, err := rc.userSession()
			if err != nil {
				return err
			}
			req.DLNo = args[1]
			spin := NewSpinner(cmd.ErrOrStderr(), "Generating PDF...", rc.interactive)
			spin.Start()
			res, err := c.GenerateDLPDF(cmd.Context(), sess.User.ID, args[0], req)
			spin.Stop()
			if err != nil {
				return rc.handleAuthError(err)
			}
			_ = rc.store.ApplyBalance(res.NewWalletBalance)

			out := cmd.OutOrStdout()
			printSuccess(out, "%s for %s (born %s)", res.Message, res.Name, res.DOB)
			printBalance(out, res.NewWalletBalance)
			if output != "" {
				if err := writePDF(output, res.PDFData); err != nil {
					return err
				}
				printSuccess(out, "Saved %s", output)
			}
			return nil
		},
	}
	generate.Flags().StringVar(&req.Type, "type", "type1", "PDF template")
	generate.Flags().StringVar(&req.Blood, "blood", "O+", "blood group")
	generate.Flags().StringVar(&req.AddrType, "addr-type", "perm", "address type (perm or temp)")
	generate.Flags().StringVarP(&output, "output", "o", "", "save the PDF to this file")

	list := &cobra.Command{
		Use:   "list",
		Short: "List your generated licences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, c, err := rc.userSession()
			if err != nil {
				return err
			}
			records, err := c.DLPDFs(cmd.Context(), sess.User.ID)
			if err != nil {
				return rc.handleAuthError(err)
			}
			table := newTable(cmd.OutOrStdout(), "ID", "DL No", "Name", "DOB", "Price", "Created")
			for _, r := range records {
				table.Append([]string{r.ID, r.DLNo, r.Name, r.DOB, money(r.ServicePrice), shortTime(r.CreatedAt)})
			}
			table.Render()
			return nil
		},
	}

	var downloadTo string
	download := &cobra.Command{
		Use:   "download <id>",
		Short: "Save a generated licence PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, c, err := rc.userSession()
			if err != nil {
				return err
			}
			dl, err := c.DownloadDLPDF(cmd.Context(), args[0])
			if err != nil {
				return rc.handleAuthError(err)
			}
			path := downloadTo
			if path == "" {
				path = fmt.Sprintf("DL_%s.pdf", dl.DLNo)
			}
			if err := writePDF(path, dl.PDFData); err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), "Saved %s", path)
			return nil
		},
	}
	download.Flags().StringVarP(&downloadTo, "output", "o", "", "output file (default DL_<number>.pdf)")

	cmd.AddCommand(generate, list, download)
	return cmd
}
