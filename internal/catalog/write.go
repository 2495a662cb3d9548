package catalog

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

func lastUpdated() string {
	return time.Now().UTC().Format("Mon, 02 Jan 2006 15:04:05 +0000")
}

// Write serialises the catalog. Entries are grouped by original text in key
// order so that re-reading the output yields the same store.
func (c *Catalog) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)

	bw.WriteString("# Human language string literal translation file\n")
	fmt.Fprintf(bw, "# Last updated: %s\n\n", c.now())
	fmt.Fprintf(bw, "version=%d:\n\n", FormatVersion)
	bw.WriteString("# If the line below says =Yes, then there are still text literals in here\n" +
		"# which have not been translated yet. Search for \"!TODO!\" to find them\n\n")
	if c.needsUpdate {
		bw.WriteString("needsupdating=Yes:\n")
	} else {
		bw.WriteString("needsupdating=No:\n")
	}
	bw.WriteString("\n# Enter the list of all language ids used in the file\n\n")
	fmt.Fprintf(bw, "langids=\"%s\":\n\n", strings.Join(c.langIDs, ","))

	keys := c.translations.Keys()
	for start := 0; start < len(keys); {
		end := start + 1
		for end < len(keys) && keys[end].Text == keys[start].Text {
			end++
		}

		fmt.Fprintf(bw, "%s:\n", keys[start].Text)
		for _, key := range keys[start:end] {
			entry := c.translations.entries[key]
			indent := 1
			if mod := modifierLine(key, entry); mod != "" {
				writeIndented(bw, indent, mod)
				indent++
			}
			for _, lang := range c.orderLangs(entry) {
				writeIndented(bw, indent, lang+": "+entry.Translations[lang])
			}
		}
		bw.WriteString("\n")
		start = end
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write catalog: %w", err)
	}
	return nil
}

func writeIndented(w *bufio.Writer, indent int, s string) {
	for i := 0; i < indent; i++ {
		w.WriteByte('\t')
	}
	w.WriteString(s)
	w.WriteByte('\n')
}

func modifierLine(key Key, entry *Entry) string {
	var b strings.Builder
	if key.SrcFile != "" {
		b.WriteString("srcfile=" + key.SrcFile + ":")
	}
	if key.Class != "" {
		b.WriteString("class=" + key.Class + ":")
	}
	if key.Hint != "" {
		b.WriteString("hint=" + key.Hint + ":")
	}
	for _, p := range entry.Params {
		b.WriteString(p.Name + "=" + p.Value + ":")
	}
	return b.String()
}

// orderLangs lists an entry's languages in declaration order, followed by any
// undeclared ones alphabetically.
func (c *Catalog) orderLangs(entry *Entry) []string {
	seen := make(map[string]bool, len(entry.Translations))
	var langs []string
	for _, l := range c.langIDs {
		if _, ok := entry.Translations[l]; ok {
			langs = append(langs, l)
			seen[l] = true
		}
	}
	var rest []string
	for l := range entry.Translations {
		if !seen[l] {
			rest = append(rest, l)
		}
	}
	sort.Strings(rest)
	return append(langs, rest...)
}

// Row is one (key, language) pair of the catalog, flattened for external
// stores.
type Row struct {
	Key
	Params      []Param
	Lang        string
	Translation string
	Inherited   bool
}

// Rows flattens the catalog in key order, resolving inherit markers.
func (c *Catalog) Rows() []Row {
	var rows []Row
	for _, key := range c.translations.Keys() {
		entry := c.translations.entries[key]
		for _, lang := range c.orderLangs(entry) {
			text, _ := c.translations.Resolve(key, lang)
			rows = append(rows, Row{
				Key:         key,
				Params:      entry.Params,
				Lang:        lang,
				Translation: text,
				Inherited:   entry.Translations[lang] == Inherit,
			})
		}
	}
	return rows
}
