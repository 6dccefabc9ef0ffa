package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/law-makers/mediacrawl/internal/ui"
)

// customHelpFunc provides a colorized help output
func customHelpFunc(cmd *cobra.Command, args []string) {
	w := os.Stdout

	fmt.Fprintf(w, "\n%s\n", ui.Bold(ui.ColorCyan+strings.ToUpper(cmd.Name())))
	if cmd.Short != "" {
		fmt.Fprintln(w, cmd.Short)
	}
	if cmd.Long != "" && cmd.Long != cmd.Short {
		fmt.Fprintf(w, "\n%s\n", cmd.Long)
	}

	section(w, "Usage")
	if cmd.Runnable() {
		fmt.Fprintf(w, "  %s%s%s\n", ui.ColorCyan, cmd.UseLine(), ui.ColorReset)
	}
	if cmd.HasAvailableSubCommands() {
		fmt.Fprintf(w, "  %s%s%s %s<command>%s %s[flags]%s\n",
			ui.ColorCyan, cmd.CommandPath(), ui.ColorReset,
			ui.ColorYellow, ui.ColorReset,
			ui.ColorDim, ui.ColorReset)
	}

	if cmd.HasExample() {
		section(w, "Examples")
		for _, line := range strings.Split(cmd.Example, "\n") {
			line = strings.TrimSpace(line)
			switch {
			case line == "":
				fmt.Fprintln(w)
			case strings.HasPrefix(line, "#"):
				fmt.Fprintf(w, "  %s%s%s\n", ui.ColorDim, line, ui.ColorReset)
			default:
				fmt.Fprintf(w, "  %s$ %s%s\n", ui.ColorGreen, line, ui.ColorReset)
			}
		}
	}

	if cmd.HasAvailableSubCommands() {
		section(w, "Commands")
		width := 0
		for _, c := range cmd.Commands() {
			if c.IsAvailableCommand() && len(c.Name()) > width {
				width = len(c.Name())
			}
		}
		for _, c := range cmd.Commands() {
			if !c.IsAvailableCommand() || c.Name() == "help" {
				continue
			}
			fmt.Fprintf(w, "  %s%-*s%s  %s%s%s\n",
				ui.ColorCyan, width, c.Name(), ui.ColorReset,
				ui.ColorDim, c.Short, ui.ColorReset)
		}
	}

	if cmd.HasAvailableLocalFlags() {
		section(w, "Flags")
		printFlags(w, cmd.LocalFlags().FlagUsages())
	}
	if cmd.HasAvailableInheritedFlags() {
		section(w, "Global Flags")
		printFlags(w, cmd.InheritedFlags().FlagUsages())
	}
	fmt.Fprintln(w)
}

func section(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s%s%s\n", ui.ColorBold+ui.ColorWhite, title, ui.ColorReset)
}

// printFlags colors the flag column of pflag's usage text
func printFlags(w io.Writer, usages string) {
	for _, line := range strings.Split(usages, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		parts := strings.SplitN(trimmed, "   ", 2)
		if len(parts) != 2 {
			fmt.Fprintf(w, "  %s%s%s\n", ui.ColorGreen, trimmed, ui.ColorReset)
			continue
		}
		fmt.Fprintf(w, "  %s%-36s%s %s%s%s\n",
			ui.ColorGreen, strings.TrimSpace(parts[0]), ui.ColorReset,
			ui.ColorDim, strings.TrimSpace(parts[1]), ui.ColorReset)
	}
}
