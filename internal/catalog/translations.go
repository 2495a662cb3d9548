package catalog

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Inherit is stored instead of a translation that is identical to the master
// entry's translation for the same language.
const Inherit = "up"

// MaxParams is the number of positional parameters (%0..%8) a site may bind.
const MaxParams = 9

// Key identifies one translatable phrase instance. Text, SrcFile, Class and
// Hint hold the literals including their quotes; an empty field is absent.
type Key struct {
	Text       string
	SrcFile    string
	Class      string
	Hint       string
	ParamsHash int
}

// IsMaster reports whether k carries no qualifiers.
func (k Key) IsMaster() bool {
	return k.SrcFile == "" && k.Class == "" && k.Hint == "" && k.ParamsHash == 0
}

func (k Key) less(o Key) bool {
	if k.Text != o.Text {
		return k.Text < o.Text
	}
	if k.SrcFile != o.SrcFile {
		return k.SrcFile < o.SrcFile
	}
	if k.Class != o.Class {
		return k.Class < o.Class
	}
	if k.Hint != o.Hint {
		return k.Hint < o.Hint
	}
	return k.ParamsHash < o.ParamsHash
}

// Param binds a positional parameter such as %1 to a value.
type Param struct {
	Name  string
	Value string
}

// ParamsHash folds parameter bindings into the integer used in keys.
func ParamsHash(params []Param) (int, error) {
	hash := 0
	for _, p := range params {
		if !strings.HasPrefix(p.Name, "%") {
			return 0, fmt.Errorf("parameter %q: expected %%N", p.Name)
		}
		n, err := strconv.Atoi(p.Name[1:])
		if err != nil {
			return 0, fmt.Errorf("parameter %q: %w", p.Name, err)
		}
		v, err := strconv.Atoi(p.Value)
		if err != nil {
			return 0, fmt.Errorf("parameter %s value %q: %w", p.Name, p.Value, err)
		}
		hash += n<<16 + v
	}
	return hash, nil
}

// Entry holds the parameter bindings and per-language translations of a key.
type Entry struct {
	Params       []Param
	Translations map[string]string
}

// Translations is the in-memory phrase store.
type Translations struct {
	entries map[Key]*Entry
}

// NewTranslations creates an empty store.
func NewTranslations() *Translations {
	return &Translations{entries: make(map[Key]*Entry)}
}

// Has reports whether a parameterless key has a translation for lang.
func (t *Translations) Has(text, srcFile, class, hint, lang string) bool {
	e, ok := t.entries[Key{Text: text, SrcFile: srcFile, Class: class, Hint: hint}]
	if !ok {
		return false
	}
	_, ok = e.Translations[lang]
	return ok
}

// Fetch returns the stored translation of a parameterless key for lang, which
// may be Inherit.
func (t *Translations) Fetch(text, srcFile, class, hint, lang string) (string, bool) {
	e, ok := t.entries[Key{Text: text, SrcFile: srcFile, Class: class, Hint: hint}]
	if !ok {
		return "", false
	}
	s, ok := e.Translations[lang]
	return s, ok
}

// Resolve returns the effective translation of key for lang, following the
// inherit marker to the master entry.
func (t *Translations) Resolve(key Key, lang string) (string, bool) {
	e, ok := t.entries[key]
	if !ok {
		return "", false
	}
	s, ok := e.Translations[lang]
	if !ok {
		return "", false
	}
	if s == Inherit && !key.IsMaster() {
		return t.Fetch(key.Text, "", "", "", lang)
	}
	return s, true
}

// Add stores a translation. When the master entry already holds the same text
// for lang, the inherit marker is stored instead.
func (t *Translations) Add(text, srcFile, class, hint, lang, translated string, params []Param) error {
	hash, err := ParamsHash(params)
	if err != nil {
		return err
	}
	key := Key{Text: text, SrcFile: srcFile, Class: class, Hint: hint, ParamsHash: hash}
	e, ok := t.entries[key]
	if !ok {
		e = &Entry{Translations: make(map[string]string)}
		t.entries[key] = e
	}
	e.Params = append([]Param(nil), params...)

	if !key.IsMaster() {
		if master, ok := t.Fetch(text, "", "", "", lang); ok && master == translated {
			e.Translations[lang] = Inherit
			return nil
		}
	}
	e.Translations[lang] = translated
	return nil
}

// Entry returns the entry stored under key.
func (t *Translations) Entry(key Key) (*Entry, bool) {
	e, ok := t.entries[key]
	return e, ok
}

// Keys returns all keys sorted by (text, srcfile, class, hint, params hash).
func (t *Translations) Keys() []Key {
	keys := make([]Key, 0, len(t.entries))
	for k := range t.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })
	return keys
}

// Len returns the number of keys.
func (t *Translations) Len() int { return len(t.entries) }
