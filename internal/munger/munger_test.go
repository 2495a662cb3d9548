package munger

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"cppmunge/internal/catalog"
	"cppmunge/internal/diag"
	"cppmunge/internal/errcodes"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const plainSource = `#include "Foo.h"

namespace FX {

Foo::~Foo()
{
	delete p;
}

void Foo::bar()
{
	FXERRH(p, "msg", 0, MY_NEW_CODE);
}

}
`

const instrumentedSource = `#include "Foo.h"

namespace FX {

Foo::~Foo()
{ FXEXCEPTIONDESTRUCT1 {
	delete p;
} FXEXCEPTIONDESTRUCT2; }

void Foo::bar()
{
	FXERRH(p, "msg", 0, MY_NEW_CODE);
}

}
`

func munge(t *testing.T, src string, flags Flags) (string, *Munger) {
	t.Helper()
	codes, err := errcodes.Parse("", "Foo.cxx")
	require.NoError(t, err)
	m := New("Foo.cxx", flags, codes, nil, nil)
	out, err := m.Process(SplitLines(src))
	require.NoError(t, err)
	return strings.Join(out, ""), m
}

func TestDestructorInstrumented(t *testing.T) {
	out, m := munge(t, plainSource, 0)
	assert.Equal(t, instrumentedSource, out)
	assert.True(t, m.Changed())
	assert.Equal(t, 1, m.Destructors())
	assert.Equal(t, []string{"MY_NEW_CODE"}, m.NewCodes())
	assert.Equal(t, 15, m.Line())
}

func TestIdempotent(t *testing.T) {
	out, m := munge(t, instrumentedSource, 0)
	assert.Equal(t, instrumentedSource, out)
	assert.False(t, m.Changed())
	assert.Zero(t, m.Destructors())

	sameLine := "Foo::~Foo() {\n\tclose();\n}\n"
	first, _ := munge(t, sameLine, 0)
	assert.Equal(t, "Foo::~Foo() { FXEXCEPTIONDESTRUCT1 {\n\tclose();\n} FXEXCEPTIONDESTRUCT2; }\n", first)

	second, m := munge(t, first, 0)
	assert.Equal(t, first, second)
	assert.False(t, m.Changed())
}

func TestInlineDestructorInstrumented(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "class on one line",
			src:  "class Foo { ~Foo() { /*body*/ } };\n",
			want: "class Foo { ~Foo() { FXEXCEPTIONDESTRUCT1 { /*body*/ } FXEXCEPTIONDESTRUCT2; } };\n",
		},
		{
			name: "body on one line",
			src:  "class Foo {\n\t~Foo() { /*body*/ }\n};\n",
			want: "class Foo {\n\t~Foo() { FXEXCEPTIONDESTRUCT1 { /*body*/ } FXEXCEPTIONDESTRUCT2; }\n};\n",
		},
		{
			name: "multi-line body",
			src:  "class Foo\n{\npublic:\n\t~Foo()\n\t{\n\t\tx();\n\t}\n};\n",
			want: "class Foo\n{\npublic:\n\t~Foo()\n\t{ FXEXCEPTIONDESTRUCT1 {\n\t\tx();\n} FXEXCEPTIONDESTRUCT2; \t}\n};\n",
		},
		{
			name: "struct with base and export macro",
			src:  "struct FXAPI Foo : public Bar {\n\tvirtual ~Foo() {}\n};\n",
			want: "struct FXAPI Foo : public Bar {\n\tvirtual ~Foo() { FXEXCEPTIONDESTRUCT1 {} FXEXCEPTIONDESTRUCT2; }\n};\n",
		},
		{
			name: "definition on one line",
			src:  "Foo::~Foo() { close(); }\n",
			want: "Foo::~Foo() { FXEXCEPTIONDESTRUCT1 { close(); } FXEXCEPTIONDESTRUCT2; }\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, m := munge(t, tt.src, 0)
			assert.Equal(t, tt.want, out)
			assert.True(t, m.Changed())
			assert.Equal(t, 1, m.Destructors())
			assert.Equal(t, 1, strings.Count(out, DestructOpen))
			assert.Equal(t, 1, strings.Count(out, DestructClose))

			again, m := munge(t, out, 0)
			assert.Equal(t, out, again)
			assert.False(t, m.Changed())
		})
	}
}

func TestInlineDestructorSkipped(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{name: "declaration only", src: "class Foo {\n\t~Foo();\n};\nvoid Foo::f()\n{\n}\n"},
		{name: "defaulted", src: "class Foo {\n\t~Foo() = default;\n\tvoid f() { g(); }\n};\n"},
		{name: "throw spec", src: "class Foo {\n\t~Foo() throw() { close(); }\n};\n"},
		{name: "forward declaration", src: "class Foo;\nstruct Bar;\n~Foo() { }\n"},
		{name: "other class", src: "class Foo {\n\t~Bar() { close(); }\n};\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, m := munge(t, tt.src, 0)
			assert.Equal(t, tt.src, out)
			assert.False(t, m.Changed())
		})
	}
}

func TestDestructorSuppressed(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		flags Flags
	}{
		{name: "throw spec", src: "Foo::~Foo() throw()\n{\n\tclose();\n}\n"},
		{name: "marker comment", src: "Foo::~Foo() // FXERRH_NODESTRUCTORMOD\n{\n\tclose();\n}\n"},
		{name: "marker on brace line", src: "Foo::~Foo()\n{ // FXERRH_NODESTRUCTORMOD\n\tclose();\n}\n"},
		{name: "flag", src: "Foo::~Foo()\n{\n\tclose();\n}\n", flags: NoDestructorCatches},
		{name: "constructor", src: "Foo::Foo()\n{\n\tinit();\n}\n"},
		{name: "other class", src: "Bar::~Foo()\n{\n}\n"},
		{name: "free function", src: "void cleanup()\n{\n\tfree(p);\n}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, m := munge(t, tt.src, tt.flags)
			assert.Equal(t, tt.src, out)
			assert.False(t, m.Changed())
		})
	}
}

func TestNestedQualifiedDestructor(t *testing.T) {
	out, m := munge(t, "Outer::Inner::~Inner()\n{\n\tif(x)\n\t{\n\t\treset();\n\t}\n}\n", 0)
	assert.Equal(t, "Outer::Inner::~Inner()\n{ FXEXCEPTIONDESTRUCT1 {\n\tif(x)\n\t{\n\t\treset();\n\t}\n} FXEXCEPTIONDESTRUCT2; }\n", out)
	assert.Equal(t, 1, m.Destructors())
}

func TestDefinitionName(t *testing.T) {
	tests := []struct {
		line   string
		class  string
		method string
		ok     bool
	}{
		{line: "Foo::~Foo()", class: "Foo", method: "~Foo", ok: true},
		{line: "void Foo::bar(int a)", class: "Foo", method: "bar", ok: true},
		{line: "const char *FX::Foo::name() const", class: "Foo", method: "name", ok: true},
		{line: "FXString &Foo::text()", class: "Foo", method: "text", ok: true},
		{line: "int main(int argc, char **argv)"},
		{line: "namespace FX {"},
		{line: "::free(p);"},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			class, method, ok := definitionName(tt.line)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.class, class)
			assert.Equal(t, tt.method, method)
		})
	}
}

func TestExtractionToggles(t *testing.T) {
	src := "// CPPMUNGE_NOEXTRACTERRORCODES\n" +
		"FXERRG(a, \"msg\", SKIPPED_CODE);\n" +
		"// CPPMUNGE_EXTRACTERRORCODES\n" +
		"FXERRG(a, \"msg\", WANTED_CODE);\n"

	_, m := munge(t, src, 0)
	assert.Equal(t, []string{"WANTED_CODE"}, m.NewCodes())

	_, m = munge(t, src, NoErrorCodes)
	assert.Empty(t, m.NewCodes())
}

func TestLiteralsUseCurrentClass(t *testing.T) {
	literals := catalog.New("Foo.cxx", nil)
	m := New("src/Foo.cxx", 0, nil, literals, nil)

	_, err := m.Process(SplitLines("void MyWidget::init()\n{\n\tlabel->setText(tr(\"Hello\"));\n}\ntr(\"Free\");\n"))
	require.NoError(t, err)

	store := literals.Translations()
	assert.True(t, store.Has(`"Hello"`, `"Foo.cxx"`, `"MyWidget"`, "", catalog.DefaultLang))
	assert.True(t, store.Has(`"Free"`, `"Foo.cxx"`, "", "", catalog.DefaultLang))
}

func TestOneLineBodyEndsMethod(t *testing.T) {
	literals := catalog.New("Foo.cxx", nil)
	m := New("Foo.cxx", 0, nil, literals, nil)

	src := "int Foo::get() const { return x; }\n" +
		"void Foo::label() { setText(tr(\"B\")); }\n" +
		"static const char *names[] = {\n" +
		"\ttr(\"A\"),\n" +
		"};\n"
	_, err := m.Process(SplitLines(src))
	require.NoError(t, err)

	store := literals.Translations()
	assert.True(t, store.Has(`"B"`, `"Foo.cxx"`, `"Foo"`, "", catalog.DefaultLang))
	assert.True(t, store.Has(`"A"`, `"Foo.cxx"`, "", "", catalog.DefaultLang))
	assert.False(t, store.Has(`"A"`, `"Foo.cxx"`, `"Foo"`, "", catalog.DefaultLang))
}

func TestClassHead(t *testing.T) {
	tests := []struct {
		line string
		name string
		ok   bool
	}{
		{line: "class Foo {", name: "Foo", ok: true},
		{line: "class FXAPI QThread : public QMutex", name: "QThread", ok: true},
		{line: "struct Foo final {", name: "Foo", ok: true},
		{line: "template<class T> class Vec {", name: "Vec", ok: true},
		{line: "class Foo;"},
		{line: "struct stat st;"},
		{line: "enum class Mode {"},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			name, ok := classHead(tt.line)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.name, name)
			}
		})
	}
}

func TestFatalError(t *testing.T) {
	var out bytes.Buffer
	reporter := diag.NewReporter(&out, diag.GNU)
	m := New("src/Foo.cxx", 0, nil, catalog.New("Foo.cxx", reporter), reporter)

	_, err := m.Process(SplitLines("int a;\nsetText(tr(\"Hello\",\n\t\"more\"));\n"))
	require.Error(t, err)

	var fatal *FatalError
	require.True(t, errors.As(err, &fatal))
	assert.Equal(t, 2, fatal.Line)
	assert.Equal(t, "src/Foo.cxx", fatal.File)
	assert.ErrorIs(t, err, catalog.ErrMultiLineCall)
}

func TestSplitLines(t *testing.T) {
	assert.Equal(t, []string{"a\n", "b"}, SplitLines("a\nb"))
	assert.Equal(t, []string{"a\r\n", "\n"}, SplitLines("a\r\n\n"))
	assert.Empty(t, SplitLines(""))
}
