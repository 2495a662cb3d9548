// Package catalog maintains the human language translation catalog: an
// indentation structured text file mapping original string literals, optionally
// qualified by source file, class, hint and parameter bindings, to translations.
package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"cppmunge/internal/diag"
	"cppmunge/internal/textutil"

	"github.com/rs/zerolog/log"
	"github.com/viant/afs"
)

// FormatVersion is the newest catalog format this package reads and writes.
const FormatVersion = 1

// DefaultLang is used when the catalog declares no language ids.
const DefaultLang = "LANG"

// Placeholder is stored for phrases that still need translating.
const Placeholder = `"!TODO! enter translation here"`

// ErrTooNew is returned for catalogs written by a newer format version.
var ErrTooNew = errors.New("translation file format is too new")

// Catalog is a loaded translation file together with the bookkeeping needed to
// decide whether, and whether it is safe, to write it back.
type Catalog struct {
	translations *Translations
	langIDs      []string
	inputName    string
	needsUpdate  bool
	altered      bool
	disabled     bool
	reporter     *diag.Reporter
	now          func() string
}

// New creates an empty catalog collecting literals from inputName.
func New(inputName string, reporter *diag.Reporter) *Catalog {
	return &Catalog{
		translations: NewTranslations(),
		inputName:    inputName,
		reporter:     reporter,
		now:          lastUpdated,
	}
}

// Disabled returns a catalog that ignores literals and never writes.
func Disabled(inputName string) *Catalog {
	c := New(inputName, nil)
	c.disabled = true
	return c
}

// Translations exposes the phrase store.
func (c *Catalog) Translations() *Translations { return c.translations }

// LangIDs returns the declared language ids in declaration order.
func (c *Catalog) LangIDs() []string { return append([]string(nil), c.langIDs...) }

// Altered reports whether the catalog changed since it was loaded.
func (c *Catalog) Altered() bool { return c.altered }

// IsDisabled reports whether the catalog must not be written.
func (c *Catalog) IsDisabled() bool { return c.disabled }

// NeedsUpdate reports whether untranslated placeholders remain.
func (c *Catalog) NeedsUpdate() bool { return c.needsUpdate }

// SetClock overrides the "Last updated" timestamp source.
func (c *Catalog) SetClock(now func() string) { c.now = now }

// scope tracks modifier values per indentation level. A value set for level n
// is visible to every deeper line until a line at level n-1 or shallower.
type scope map[string][]string

func (s scope) set(name, value string, level int) {
	list := s[name]
	for len(list) <= level {
		list = append(list, "")
	}
	list[level] = value
	s[name] = list
}

func (s scope) get(name string) string {
	list := s[name]
	for i := len(list) - 1; i >= 0; i-- {
		if list[i] != "" {
			return list[i]
		}
	}
	return ""
}

func (s scope) trim(indent int) {
	for name, list := range s {
		if len(list) > indent+1 {
			s[name] = list[:indent+1]
		}
	}
}

func knownModifier(name string) bool {
	switch name {
	case "srcfile", "class", "hint":
		return true
	}
	if len(name) == 2 && name[0] == '%' && name[1] >= '0' && name[1] < '0'+MaxParams {
		return true
	}
	return false
}

// Load parses a catalog. Recoverable problems are reported through reporter and
// leave the catalog disabled for writing; only a too-new format version or a
// read failure is returned as an error.
func Load(r io.Reader, filename, inputName string, reporter *diag.Reporter) (*Catalog, error) {
	c := New(inputName, reporter)
	lexer := NewLexer(r)
	state := scope{}
	lastLine := 0
	skipIndented := false

	fail := func(tok Token, format string, args ...any) {
		c.disabled = true
		c.reporter.Errorf(diag.Position{File: filename, Line: tok.Line}, format, args...)
	}

	for {
		tok, err := lexer.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		if tok.Line != lastLine {
			lastLine = tok.Line
			if skipIndented && tok.Indent == 0 {
				skipIndented = false
			}
			state.trim(tok.Indent)
		}
		if skipIndented {
			continue
		}

		switch tok.Kind {
		case TokenError:
			fail(tok, "%s", tok.Value)

		case TokenModifier:
			switch tok.Name {
			case "version":
				v, err := strconv.Atoi(tok.Value)
				if err != nil {
					fail(tok, "Bad version %q", tok.Value)
					continue
				}
				if v > FormatVersion {
					fail(tok, "Translation file format is too new for me")
					return nil, fmt.Errorf("%w: version %d", ErrTooNew, v)
				}
			case "needsupdating":
				c.needsUpdate = tok.Value != "No"
			case "langids":
				for _, id := range strings.Split(textutil.Unquote(tok.Value), ",") {
					if id = strings.TrimSpace(id); id != "" {
						c.addLangID(id)
					}
				}
			default:
				if !knownModifier(tok.Name) {
					fail(tok, "Unknown modifier '%s'", tok.Name)
					continue
				}
				state.set(tok.Name, tok.Value, tok.Indent+1)
			}

		case TokenOriginal:
			if !strings.HasPrefix(tok.Name, `"`) || !strings.HasSuffix(tok.Name, `"`) || len(tok.Name) < 2 {
				fail(tok, "Expected original string")
				skipIndented = true
				continue
			}
			state.set("origtxt", tok.Name, 1)

		case TokenTranslation:
			orig := state.get("origtxt")
			if orig == "" {
				fail(tok, "Expected original string")
				continue
			}
			if !c.hasLang(tok.Name) {
				fail(tok, "WARNING: Unknown language id '%s' - discarding", tok.Name)
				continue
			}
			var params []Param
			for n := 0; n < MaxParams; n++ {
				name := "%" + strconv.Itoa(n)
				if v := state.get(name); v != "" {
					params = append(params, Param{Name: name, Value: v})
				}
			}
			text := tok.Value
			if text == Inherit {
				master, ok := c.translations.Fetch(orig, "", "", "", tok.Name)
				if !ok {
					fail(tok, "WARNING: No master translation available for this language")
					continue
				}
				text = master
			}
			if err := c.translations.Add(orig, state.get("srcfile"), state.get("class"), state.get("hint"), tok.Name, text, params); err != nil {
				fail(tok, "%v", err)
			}
		}
	}

	log.Debug().
		Str("file", filename).
		Int("phrases", c.translations.Len()).
		Strs("langids", c.langIDs).
		Bool("disabled", c.disabled).
		Msg("Loaded translation catalog")
	return c, nil
}

// Open loads the catalog at path. An empty path yields a disabled catalog; a
// missing file yields an empty catalog that will be created on Save.
func Open(ctx context.Context, fs afs.Service, path, inputName string, reporter *diag.Reporter) (*Catalog, error) {
	if path == "" {
		return Disabled(inputName), nil
	}
	exists, err := fs.Exists(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("stat catalog %s: %w", path, err)
	}
	if !exists {
		log.Warn().Str("file", path).Msg("Failed to open language file for reading, a new one will be created")
		c := New(inputName, reporter)
		c.altered = true
		return c, nil
	}
	data, err := fs.DownloadWithURL(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Load(bytes.NewReader(data), path, inputName, reporter)
}

func (c *Catalog) hasLang(id string) bool {
	for _, l := range c.langIDs {
		if l == id {
			return true
		}
	}
	return false
}

func (c *Catalog) addLangID(id string) {
	if !c.hasLang(id) {
		c.langIDs = append(c.langIDs, id)
	}
}

// AddLang declares a language id.
func (c *Catalog) AddLang(lang string) {
	c.addLangID(lang)
	c.altered = true
}

// AddIfMissing records a literal found in the current source file, adding a
// placeholder translation for every language that lacks one. It returns true
// when anything was added.
func (c *Catalog) AddIfMissing(text, class, hint string) bool {
	if c.disabled {
		return false
	}
	if len(c.langIDs) == 0 {
		c.langIDs = append(c.langIDs, DefaultLang)
	}
	srcFile := textutil.Quote(c.inputName)
	added := false
	for _, lang := range c.langIDs {
		if c.translations.Has(text, srcFile, class, hint, lang) {
			continue
		}
		// Placeholders never carry parameters, so Add cannot fail here.
		_ = c.translations.Add(text, srcFile, class, hint, lang, Placeholder, nil)
		added = true
	}
	if added {
		c.altered = true
		c.needsUpdate = true
	}
	return added
}

// Save writes the catalog to path when it was altered and is safe to write.
func (c *Catalog) Save(ctx context.Context, fs afs.Service, path string) (bool, error) {
	if path == "" || !c.altered || c.disabled {
		return false, nil
	}
	var buf bytes.Buffer
	if err := c.Write(&buf); err != nil {
		return false, err
	}
	if err := fs.Upload(ctx, path, 0644, &buf); err != nil {
		return false, fmt.Errorf("write catalog %s: %w", path, err)
	}
	log.Info().Str("file", path).Int("phrases", c.translations.Len()).Msg("Translation catalog written")
	return true, nil
}
