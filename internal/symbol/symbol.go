// Package symbol implements an interned-string table for identifiers.
//
// A Symbol compares equal to another Symbol only if they were interned from
// the same string content; the comparison itself is a plain integer compare,
// not a string compare, since each distinct string maps to exactly one
// Symbol value.
package symbol

import "sync"

// Kind classifies the equivalence class a Symbol belongs to.
type Kind int

const (
	// KindNone is an ordinary interned identifier.
	KindNone Kind = iota
	// KindKeyword is one of the fixed reserved words.
	KindKeyword
	// KindArgument is one of argument0..argument15.
	KindArgument
)

// Symbol is an interned string. The zero Symbol is the empty string.
type Symbol struct {
	id int
}

type entry struct {
	text  string
	kind  Kind
	index int // argument index, valid only when kind == KindArgument
}

type interner struct {
	mu      sync.RWMutex
	byText  map[string]int
	entries []entry
}

var global = newInterner()

func newInterner() *interner {
	in := &interner{byText: make(map[string]int)}
	in.insert("", KindNone, 0) // id 0 is always Empty
	for _, kw := range keywordList {
		in.insert(kw, KindKeyword, 0)
	}
	for i, arg := range argumentNames {
		in.insert(arg, KindArgument, i)
	}
	return in
}

func (in *interner) insert(text string, kind Kind, index int) int {
	id := len(in.entries)
	in.entries = append(in.entries, entry{text: text, kind: kind, index: index})
	in.byText[text] = id
	return id
}

func (in *interner) intern(text string) int {
	in.mu.RLock()
	id, ok := in.byText[text]
	in.mu.RUnlock()
	if ok {
		return id
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	if id, ok := in.byText[text]; ok {
		return id
	}
	return in.insert(text, KindNone, 0)
}

// Intern returns the Symbol for text, interning it if this is the first
// occurrence. Two calls with equal strings always return equal Symbols.
func Intern(text string) Symbol {
	return Symbol{id: global.intern(text)}
}

// Empty is the Symbol for the empty string, and the zero value of Symbol.
var Empty = Symbol{id: 0}

// ID returns the Symbol's interner index, stable for the life of the
// process. internal/value packs this into a NaN-boxed string Value.
func (s Symbol) ID() uint32 { return uint32(s.id) }

// FromID reconstructs a Symbol from an index previously returned by ID.
func FromID(id uint32) Symbol { return Symbol{id: int(id)} }

// String returns the underlying text.
func (s Symbol) String() string {
	global.mu.RLock()
	defer global.mu.RUnlock()
	return global.entries[s.id].text
}

// IsKeyword reports whether s was interned as one of the fixed reserved words.
func (s Symbol) IsKeyword() bool {
	global.mu.RLock()
	defer global.mu.RUnlock()
	return global.entries[s.id].kind == KindKeyword
}

// IsArgument reports whether s is one of argument0..argument15.
func (s Symbol) IsArgument() bool {
	global.mu.RLock()
	defer global.mu.RUnlock()
	return global.entries[s.id].kind == KindArgument
}

// AsArgument returns the argument index and true if s is argument0..argument15.
func (s Symbol) AsArgument() (int, bool) {
	global.mu.RLock()
	defer global.mu.RUnlock()
	e := global.entries[s.id]
	if e.kind != KindArgument {
		return 0, false
	}
	return e.index, true
}

// FromArgument returns the Symbol for argumentN, 0 <= n <= 15.
func FromArgument(n int) Symbol {
	return Keyword.Argument[n]
}

// keywordSet exposes every reserved word as a named field, mirroring the
// fixed keyword table of the scripting language.
type keywordSet struct {
	True, False                                      Symbol
	Self, Other, All, NoOne, Global, Local            Symbol
	Var, GlobalVar                                    Symbol
	If, Then, Else, Repeat, While, Do, Until, For      Symbol
	With, Switch, Case, Default                       Symbol
	Break, Continue, Exit, Return                     Symbol
	Begin, End                                        Symbol
	Not, Div, Mod, And, Or, Xor                       Symbol
	Argument [16]Symbol
}

var keywordList = []string{
	"true", "false",
	"self", "other", "all", "noone", "global", "local",
	"var", "globalvar",
	"if", "then", "else", "repeat", "while", "do", "until", "for",
	"with", "switch", "case", "default",
	"break", "continue", "exit", "return",
	"begin", "end",
	"not", "div", "mod", "and", "or", "xor",
}

var argumentNames = func() [16]string {
	var names [16]string
	for i := range names {
		names[i] = "argument" + itoa(i)
	}
	return names
}()

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [4]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// Keyword holds every reserved-word Symbol, interned once at package init.
var Keyword = keywordSet{
	True: Intern("true"), False: Intern("false"),

	Self: Intern("self"), Other: Intern("other"), All: Intern("all"),
	NoOne: Intern("noone"), Global: Intern("global"), Local: Intern("local"),

	Var: Intern("var"), GlobalVar: Intern("globalvar"),

	If: Intern("if"), Then: Intern("then"), Else: Intern("else"),
	Repeat: Intern("repeat"), While: Intern("while"), Do: Intern("do"),
	Until: Intern("until"), For: Intern("for"),

	With: Intern("with"), Switch: Intern("switch"),
	Case: Intern("case"), Default: Intern("default"),

	Break: Intern("break"), Continue: Intern("continue"),
	Exit: Intern("exit"), Return: Intern("return"),

	Begin: Intern("begin"), End: Intern("end"),

	Not: Intern("not"), Div: Intern("div"), Mod: Intern("mod"),
	And: Intern("and"), Or: Intern("or"), Xor: Intern("xor"),

	Argument: func() [16]Symbol {
		var a [16]Symbol
		for i := range a {
			a[i] = Intern(argumentNames[i])
		}
		return a
	}(),
}
