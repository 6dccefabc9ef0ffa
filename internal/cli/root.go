// internal/cli/root.go
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/law-makers/mediacrawl/internal/app"
	"github.com/law-makers/mediacrawl/internal/config"
	"github.com/law-makers/mediacrawl/internal/engine"
	"github.com/law-makers/mediacrawl/internal/ui"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mediacrawl <url>",
	Short: "Crawl Instagram profiles and RARBG searches through a real browser",
	Long: `mediacrawl drives a Chrome browser through an Instagram profile or a RARBG
search listing and archives what it finds.

Instagram profiles are scrolled to the end; every post, carousel child and
IGTV video is saved as JSON and its media is downloaded. RARBG searches are
followed page by page; each torrent's detail page is visited and its magnet
link is merged into a per-search magnet file.

Pages behind a challenge or threat-defense check wait until you solve them
in the browser window.`,
	Example: `  # Archive a profile
  mediacrawl https://www.instagram.com/nasa/

  # Collect magnets of a search, browser hidden
  mediacrawl "https://rarbgprx.org/torrents.php?search=dune&category[]=14" --headless

  # Persist a download proxy
  mediacrawl set proxy 127.0.0.1:8080`,
	Version:       "0.1.0",
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runCrawl,
}

// Execute runs the CLI and returns the process exit code.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) int {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, ui.Error("Error: "+err.Error()))
		return 1
	}
	return 0
}

func init() {
	config.RegisterFlags(rootCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetHelpFunc(customHelpFunc)

	// Lazily initialize the application before running commands (avoid starting app for -h/help)
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if GetApp(cmd) != nil {
			return nil
		}

		cfg, err := config.Load(cmd)
		if err != nil {
			return err
		}

		a, err := app.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		if cfg.LogLevel != "error" {
			fmt.Fprintln(os.Stderr, ui.Info("data dir: "+cfg.DataDir))
		}

		SetApp(cmd, a)
		return nil
	}

	// Ensure app is closed after command runs
	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		a := GetApp(cmd)
		if a == nil {
			return nil
		}
		return a.Close(cmd.Context())
	}
}

func runCrawl(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return cmd.Help()
	}
	a := GetApp(cmd)
	if a.Config.Proxy != "" {
		fmt.Fprintln(os.Stderr, ui.Info("using proxy for download: "+a.Config.Proxy))
	}

	err := a.Run(cmd.Context(), args[0])
	if err == nil {
		return nil
	}
	if isFatal(err) {
		return err
	}

	// Partial output has been written; report and exit cleanly.
	log.Warn().Err(err).Str("url", args[0]).Msg("Crawl finished with errors")
	return nil
}

// isFatal reports whether err means nothing useful was done: an unsupported
// target, a browser that could not start, or an unusable cookie store.
func isFatal(err error) bool {
	return errors.Is(err, engine.ErrUnsupported) ||
		errors.Is(err, engine.ErrBrowser) ||
		errors.Is(err, engine.ErrCookie)
}
