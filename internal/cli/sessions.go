package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"table-scraper/internal/session"
)

var sessionsClearAll bool

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage stored login sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored session states",
	RunE: func(cmd *cobra.Command, args []string) error {
		infos, err := session.List(session.DefaultBaseDir())
		if err != nil {
			return err
		}
		if len(infos) == 0 {
			fmt.Println("no stored sessions")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "HOST\tUSER\tAGE\tSIZE")
		for _, info := range infos {
			fmt.Fprintf(w, "%s\t%s\t%s\t%dB\n",
				info.Host, info.User, time.Since(info.ModTime).Round(time.Minute), info.Size)
		}
		return w.Flush()
	},
}

var sessionsClearCmd = &cobra.Command{
	Use:   "clear [host]",
	Short: "Delete stored session states",
	RunE: func(cmd *cobra.Command, args []string) error {
		infos, err := session.List(session.DefaultBaseDir())
		if err != nil {
			return err
		}
		if !sessionsClearAll && len(args) == 0 {
			return fmt.Errorf("name a host or pass --all")
		}
		removed := 0
		for _, info := range infos {
			if !sessionsClearAll && info.Host != args[0] {
				continue
			}
			if err := os.Remove(info.Path); err != nil {
				return fmt.Errorf("remove %s: %w", info.Path, err)
			}
			removed++
		}
		fmt.Printf("removed %d session(s)\n", removed)
		return nil
	},
}

func init() {
	sessionsClearCmd.Flags().BoolVar(&sessionsClearAll, "all", false, "delete every stored session")
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsClearCmd)
}
