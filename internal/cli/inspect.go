package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"table-scraper/internal/browser"
	"table-scraper/internal/browser/rod"
	"table-scraper/internal/inspect"
)

var (
	inspectURL    string
	inspectHeaded bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Report candidate table selectors for a page",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		b, err := rod.NewLauncher().Launch(ctx, browser.LaunchOptions{Headless: !inspectHeaded})
		if err != nil {
			return err
		}
		defer b.Close()

		bctx, err := b.NewContext(nil)
		if err != nil {
			return err
		}
		pg, err := bctx.NewPage(ctx)
		if err != nil {
			return err
		}
		if err := pg.Goto(ctx, inspectURL); err != nil {
			return err
		}
		html, err := pg.Content()
		if err != nil {
			return err
		}

		tables, err := inspect.Tables(html)
		if err != nil {
			return err
		}
		fmt.Print(inspect.Report(tables))
		return nil
	},
}

func init() {
	inspectCmd.Flags().StringVar(&inspectURL, "url", "", "page to inspect")
	inspectCmd.Flags().BoolVar(&inspectHeaded, "headed", false, "show the browser window")
	_ = inspectCmd.MarkFlagRequired("url")
}
