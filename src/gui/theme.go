package gui

import (
	"log"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

// SystemDefaultFont is the font choice that keeps fyne's bundled font.
const SystemDefaultFont = "System default"

// fontTheme swaps the regular text font and defers everything else to the base theme.
type fontTheme struct {
	fyne.Theme
	regular fyne.Resource
}

func (t *fontTheme) Font(style fyne.TextStyle) fyne.Resource {
	if t.regular == nil || style.Monospace || style.Symbol {
		return t.Theme.Font(style)
	}
	return t.regular
}

// themeForFont loads the font file at path; an empty path or unreadable file gives
// the default theme.
func themeForFont(path string) fyne.Theme {
	base := theme.DefaultTheme()
	if path == "" {
		return base
	}
	res, err := fyne.LoadResourceFromPath(path)
	if err != nil {
		log.Printf("Results: cannot load font %s: %v", path, err)
		return base
	}
	return &fontTheme{Theme: base, regular: res}
}

// fontOptions puts the system default first, followed by the enumerated families.
func fontOptions(families []string) []string {
	opts := make([]string, 0, len(families)+1)
	opts = append(opts, SystemDefaultFont)
	for _, f := range families {
		if f != SystemDefaultFont {
			opts = append(opts, f)
		}
	}
	return opts
}
