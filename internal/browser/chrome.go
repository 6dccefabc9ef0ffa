// internal/browser/chrome.go
package browser

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/rs/zerolog/log"
)

// ExecutableTable maps a GOOS value to candidate browser executables, in
// order of preference.
type ExecutableTable map[string][]string

// PathNames are the executable names searched in PATH when no table entry matches.
var PathNames = []string{
	"google-chrome-stable",
	"google-chrome",
	"chromium",
	"chromium-browser",
	"chrome",
	"msedge",
	"brave",
	"brave-browser",
}

// lookPath and statFile are swapped out in tests
var (
	lookPath = exec.LookPath
	statFile = os.Stat
)

// DefaultExecutables returns the standard install locations per platform.
func DefaultExecutables() ExecutableTable {
	table := ExecutableTable{
		"darwin": {
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
			"/Applications/Google Chrome Canary.app/Contents/MacOS/Google Chrome Canary",
			"/Applications/Microsoft Edge.app/Contents/MacOS/Microsoft Edge",
			"/Applications/Brave Browser.app/Contents/MacOS/Brave Browser",
		},
		"linux": {
			"/usr/bin/google-chrome-stable",
			"/usr/bin/google-chrome",
			"/usr/bin/chromium-browser",
			"/usr/bin/chromium",
			"/snap/bin/chromium",
			"/usr/bin/microsoft-edge",
			"/usr/bin/brave-browser",
			"/usr/bin/brave",
		},
	}

	for _, base := range []string{os.Getenv("ProgramFiles"), os.Getenv("ProgramFiles(x86)"), os.Getenv("LocalAppData")} {
		if base == "" {
			continue
		}
		table["windows"] = append(table["windows"],
			filepath.Join(base, "Google", "Chrome", "Application", "chrome.exe"),
			filepath.Join(base, "Chromium", "Application", "chrome.exe"),
			filepath.Join(base, "Microsoft", "Edge", "Application", "msedge.exe"),
			filepath.Join(base, "BraveSoftware", "Brave-Browser", "Application", "brave.exe"),
		)
	}
	if len(table["windows"]) == 0 {
		table["windows"] = []string{`C:\Program Files\Google\Chrome\Application\chrome.exe`}
	}

	if home, err := os.UserHomeDir(); err == nil {
		table["darwin"] = append(table["darwin"],
			filepath.Join(home, "Applications/Google Chrome.app/Contents/MacOS/Google Chrome"),
			filepath.Join(home, "Applications/Chromium.app/Contents/MacOS/Chromium"),
		)
		table["linux"] = append(table["linux"],
			filepath.Join(home, ".local/share/flatpak/exports/bin/com.google.Chrome"),
			filepath.Join(home, ".local/share/flatpak/exports/bin/org.chromium.Chromium"),
		)
	}

	return table
}

// Find returns the first usable executable for goos, falling back to a PATH
// search. An empty result lets the engine use its own default.
func (t ExecutableTable) Find(goos string) string {
	for _, path := range t[goos] {
		if isExecutable(path, goos) {
			log.Debug().Str("path", path).Str("os", goos).Msg("Browser found at standard location")
			return path
		}
	}

	for _, name := range PathNames {
		if path, err := lookPath(name); err == nil {
			log.Debug().Str("path", path).Msg("Browser found in PATH")
			return path
		}
	}

	log.Warn().Str("os", goos).Msg("Browser not found, engine default will be used")
	return ""
}

// FindCurrent resolves for the running platform.
func (t ExecutableTable) FindCurrent() string {
	return t.Find(runtime.GOOS)
}

func isExecutable(path, goos string) bool {
	info, err := statFile(path)
	if err != nil {
		return false
	}
	if goos == "windows" {
		return !info.IsDir()
	}
	return !info.IsDir() && info.Mode()&0111 != 0
}
