package cli

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/zalando/go-keyring"

	"table-scraper/internal/config"
	"table-scraper/internal/results"
	"table-scraper/internal/scraper"
)

var (
	scrapeConfigPath string
	scrapeCSVPath    string
	scrapeJSONLPath  string
	scrapeUser       string
	ssoUsername      string
	ssoPassword      string
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Run one scrape job from a config file",
	RunE:  runScrape,
}

func init() {
	scrapeCmd.Flags().StringVarP(&scrapeConfigPath, "config", "c", "", "path to the job config (json or yaml)")
	scrapeCmd.Flags().StringVar(&scrapeCSVPath, "csv", "", "write the result table to a CSV file")
	scrapeCmd.Flags().StringVar(&scrapeJSONLPath, "jsonl", "", "write the result as newline-delimited records")
	scrapeCmd.Flags().StringVar(&scrapeUser, "user", "", "session user, overrides the config")
	scrapeCmd.Flags().StringVar(&ssoUsername, "sso-username", "", "SSO username (or SCRAPER_SSO_USERNAME)")
	scrapeCmd.Flags().StringVar(&ssoPassword, "sso-password", "", "SSO password (or SCRAPER_SSO_PASSWORD, or the OS keyring)")
	_ = scrapeCmd.MarkFlagRequired("config")
}

func runScrape(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(scrapeConfigPath)
	if err != nil {
		return err
	}
	if scrapeUser != "" {
		cfg.Session.User = scrapeUser
	}

	auth := buildAuth(cfg)

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("scraping"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSpinnerType(14),
	)

	s, err := scraper.New(cmd.Context(), cfg,
		scraper.WithLogger(logger),
		scraper.WithAuth(auth),
		scraper.WithProgress(func(page, rows int) {
			bar.Describe(fmt.Sprintf("page %d, %d rows", page, rows))
			_ = bar.Add(1)
		}),
	)
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := s.Run(cmd.Context())
	_ = bar.Finish()
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return err
	}

	fmt.Printf("scraped %d rows x %d cols across %d page(s)\n", len(res.Rows), res.Width(), res.PageCount)
	if scrapeCSVPath != "" {
		if err := results.ExportCSV(scrapeCSVPath, res); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", scrapeCSVPath)
	}
	if scrapeJSONLPath != "" {
		if err := results.ExportJSONL(scrapeJSONLPath, res); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", scrapeJSONLPath)
	}
	return nil
}

// buildAuth resolves SSO credentials from flags, environment, then the OS
// keyring. Without both pieces the run proceeds unauthenticated.
func buildAuth(cfg *config.RunConfig) scraper.AuthStrategy {
	username := ssoUsername
	if username == "" {
		username = os.Getenv("SCRAPER_SSO_USERNAME")
	}
	password := ssoPassword
	if password == "" {
		password = os.Getenv("SCRAPER_SSO_PASSWORD")
	}
	if username != "" && password == "" {
		if v, err := keyring.Get(keyringService, username+"@"+cfg.Session.SiteHost); err == nil {
			password = v
		}
	}
	if username == "" || password == "" {
		return scraper.NoopAuth{}
	}
	return scraper.NewMicrosoftSSO(username, password, scraper.WithSSOLogger(logger))
}
