// internal/cli/cookies.go
package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/law-makers/mediacrawl/internal/ui"
	"github.com/law-makers/mediacrawl/pkg/models"
)

var assumeYes bool

// cookiesCmd represents the cookies command
var cookiesCmd = &cobra.Command{
	Use:   "cookies",
	Short: "Manage saved cookie jars",
	Long: `List, view, and clear the cookie jars crawls reuse.

Each site has one jar. It is refreshed after every page load and kept until
you clear it here.`,
	Example: `  # List jars
  mediacrawl cookies list

  # Show the instagram jar
  mediacrawl cookies view instagram

  # Forget the rarbg session
  mediacrawl cookies clear rarbg`,
}

var cookiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the cookie jar of every site",
	Args:  cobra.NoArgs,
	RunE:  runCookiesList,
}

var cookiesViewCmd = &cobra.Command{
	Use:   "view <site>",
	Short: "Show the cookies saved for a site",
	Args:  cobra.ExactArgs(1),
	RunE:  runCookiesView,
}

var cookiesClearCmd = &cobra.Command{
	Use:   "clear <site>",
	Short: "Delete the cookies saved for a site",
	Args:  cobra.ExactArgs(1),
	RunE:  runCookiesClear,
}

func init() {
	rootCmd.AddCommand(cookiesCmd)
	cookiesCmd.AddCommand(cookiesListCmd)
	cookiesCmd.AddCommand(cookiesViewCmd)
	cookiesCmd.AddCommand(cookiesClearCmd)

	cookiesClearCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation")
}

func loadJar(cmd *cobra.Command, site models.Site) ([]models.Cookie, string, error) {
	store, err := GetApp(cmd).CookieStore(site)
	if err != nil {
		return nil, "", err
	}
	jar, err := store.Load(cmd.Context())
	return jar, store.Location(), err
}

func runCookiesList(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n%s\n\n", ui.Bold("Cookie jars"))

	for _, site := range models.Sites {
		jar, loc, err := loadJar(cmd, site)
		if err != nil {
			fmt.Fprintf(out, "  %-10s %s\n", site, ui.Error("error: "+err.Error()))
			continue
		}
		fmt.Fprintf(out, "  %s%-10s%s %3d cookies  %s%s%s\n",
			ui.ColorCyan, site, ui.ColorReset, len(jar),
			ui.ColorDim, loc, ui.ColorReset)
	}
	fmt.Fprintln(out)
	return nil
}

func runCookiesView(cmd *cobra.Command, args []string) error {
	site, err := parseSite(args[0])
	if err != nil {
		return err
	}
	jar, loc, err := loadJar(cmd, site)
	if err != nil {
		return fmt.Errorf("failed to load cookies for %s: %w", site, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n%s\n", ui.Bold(fmt.Sprintf("Cookies for %s (%d)", site, len(jar))))
	fmt.Fprintf(out, "%s\n\n", ui.ColorDim+loc+ui.ColorReset)

	now := time.Now()
	for _, c := range jar {
		status := "session"
		if c.Expires > 0 {
			exp := time.Unix(int64(c.Expires), 0)
			status = "expires " + exp.Format(time.RFC1123)
			if c.Expired(now) {
				status = ui.Error("expired")
			}
		}
		fmt.Fprintf(out, "  • %s (domain: %s, %s)\n", c.Name, c.Domain, status)
	}
	fmt.Fprintln(out)
	return nil
}

func runCookiesClear(cmd *cobra.Command, args []string) error {
	site, err := parseSite(args[0])
	if err != nil {
		return err
	}

	if !assumeYes {
		fmt.Printf("\nClear the %s cookie jar? [y/N]: ", site)
		var confirm string
		fmt.Scanln(&confirm)
		if confirm != "y" && confirm != "Y" {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	store, err := GetApp(cmd).CookieStore(site)
	if err != nil {
		return err
	}
	if err := store.Clear(cmd.Context()); err != nil {
		return fmt.Errorf("failed to clear cookies: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), ui.Success(fmt.Sprintf("✓ Cookies for %s cleared.", site)))
	return nil
}
