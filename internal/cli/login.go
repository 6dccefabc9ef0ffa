// internal/cli/login.go
package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/law-makers/mediacrawl/internal/ui"
	"github.com/law-makers/mediacrawl/pkg/models"
)

// loginCmd represents the login command
var loginCmd = &cobra.Command{
	Use:   "login <site>",
	Short: "Log in through a browser window and save the cookies",
	Long: `Opens a visible browser window on the site's home page. Log in by hand,
then come back to the terminal and press Enter. The browser's cookies for
the site are written to the cookie store and reused by every later crawl
until you clear them.`,
	Example: `  mediacrawl login instagram
  mediacrawl login rarbg --cookie-store keyring`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: siteNames(),
	RunE:      runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)
}

func siteNames() []string {
	names := make([]string, 0, len(models.Sites))
	for _, s := range models.Sites {
		names = append(names, string(s))
	}
	return names
}

func parseSite(name string) (models.Site, error) {
	for _, s := range models.Sites {
		if strings.EqualFold(string(s), name) {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown site %q (one of %s)", name, strings.Join(siteNames(), ", "))
}

func runLogin(cmd *cobra.Command, args []string) error {
	site, err := parseSite(args[0])
	if err != nil {
		return err
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return fmt.Errorf("login needs an interactive terminal")
	}

	fmt.Printf("\n%s\n", ui.Bold("Interactive Login: "+string(site)))
	fmt.Printf("%s\n\n", ui.ColorDim+"Log in in the browser window, then press Enter here."+ui.ColorReset)

	n, err := GetApp(cmd).Login(cmd.Context(), site, waitForEnter)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	fmt.Println(ui.Success(fmt.Sprintf("\n✓ Saved %d cookies for %s", n, site)))
	return nil
}

// waitForEnter blocks until a line is read from stdin or ctx ends.
func waitForEnter(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		_, err := bufio.NewReader(os.Stdin).ReadString('\n')
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
