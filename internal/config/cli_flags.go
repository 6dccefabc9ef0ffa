package config

import (
	"github.com/spf13/cobra"

	"github.com/law-makers/mediacrawl/internal/utils/headers"
)

// RegisterFlags registers common CLI flags on the provided root command
func RegisterFlags(cmd *cobra.Command) {
	if cmd == nil {
		return
	}

	pf := cmd.PersistentFlags()
	pf.BoolP("verbose", "v", false, "Enable debug logging")
	pf.BoolP("quiet", "q", false, "Suppress all output except errors")
	pf.Bool("json", false, "Log in JSON format")
	pf.String("data-dir", "", "Directory for settings, cookies and crawl output")
	pf.StringArrayP("header", "H", nil, "Extra header for media downloads (\"Key: Value\"), repeatable")

	d := Default()
	for _, s := range settings {
		switch p := s.field(d).(type) {
		case *string:
			pf.String(s.key, *p, s.usage)
		case *bool:
			pf.Bool(s.key, *p, s.usage)
		case *int:
			pf.Int(s.key, *p, s.usage)
		default:
			pf.String(s.key, formatValue(s, d), s.usage)
		}
	}
}

// applyFlags copies flags the user actually passed, so an unset flag never
// masks the settings file or the environment.
func applyFlags(cfg *Config, cmd *cobra.Command) error {
	flags := cmd.Flags()
	for _, s := range settings {
		f := flags.Lookup(s.key)
		if f == nil || !f.Changed {
			continue
		}
		if err := s.apply(cfg, f.Value.String()); err != nil {
			return err
		}
	}

	if hs, _ := flags.GetStringArray("header"); len(hs) > 0 {
		h, err := headers.Parse(hs)
		if err != nil {
			return err
		}
		cfg.Headers = h
	}

	if v, _ := flags.GetBool("json"); v {
		cfg.JSONLog = true
	}
	if v, _ := flags.GetBool("quiet"); v {
		cfg.LogLevel = "error"
	}
	if v, _ := flags.GetBool("verbose"); v {
		cfg.LogLevel = "debug"
	}
	return nil
}
