package fonts

import (
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/image/font/sfnt"
)

// Catalog maps a font family name to one file that provides it.
type Catalog map[string]string

// Families returns the normalized family list.
func (c Catalog) Families() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	return Normalize(names)
}

// Path returns a file for family, if known.
func (c Catalog) Path(family string) (string, bool) {
	p, ok := c[family]
	return p, ok
}

// Normalize strips quote characters, trims, drops empties, de-duplicates and sorts.
func Normalize(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(strings.ReplaceAll(n, `"`, ""))
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// SystemDirs lists the font directories for the current OS.
func SystemDirs() []string {
	home, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "windows":
		dirs := []string{filepath.Join(os.Getenv("WINDIR"), "Fonts")}
		if local := os.Getenv("LOCALAPPDATA"); local != "" {
			dirs = append(dirs, filepath.Join(local, "Microsoft", "Windows", "Fonts"))
		}
		return dirs
	case "darwin":
		return []string{"/System/Library/Fonts", "/Library/Fonts", filepath.Join(home, "Library", "Fonts")}
	default:
		return []string{"/usr/share/fonts", "/usr/local/share/fonts", filepath.Join(home, ".fonts"), filepath.Join(home, ".local", "share", "fonts")}
	}
}

// Scan walks dirs and reads the family name of every TrueType/OpenType file found.
// Unreadable directories and files are skipped.
func Scan(dirs []string) Catalog {
	cat := make(Catalog)
	var buf sfnt.Buffer
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			for _, family := range familiesOf(path, &buf) {
				if _, exists := cat[family]; !exists {
					cat[family] = path
				}
			}
			return nil
		})
	}
	log.Printf("Fonts: found %d families", len(cat))
	return cat
}

func familiesOf(path string, buf *sfnt.Buffer) []string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".ttf", ".otf", ".ttc", ".otc":
	default:
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	if ext == ".ttc" || ext == ".otc" {
		coll, err := sfnt.ParseCollection(data)
		if err != nil {
			return nil
		}
		var names []string
		for i := 0; i < coll.NumFonts(); i++ {
			f, err := coll.Font(i)
			if err != nil {
				continue
			}
			if name := familyName(f, buf); name != "" {
				names = append(names, name)
			}
		}
		return names
	}

	f, err := sfnt.Parse(data)
	if err != nil {
		return nil
	}
	if name := familyName(f, buf); name != "" {
		return []string{name}
	}
	return nil
}

func familyName(f *sfnt.Font, buf *sfnt.Buffer) string {
	for _, id := range []sfnt.NameID{sfnt.NameIDTypographicFamily, sfnt.NameIDFamily} {
		name, err := f.Name(buf, id)
		if err == nil && name != "" {
			return name
		}
	}
	return ""
}
