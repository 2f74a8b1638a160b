// Copyright The Rye Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//       http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package predicate

import (
	"regexp"
	"strings"
	"sync"
)

// LikeTerm evaluates a SQL LIKE match with optional escape character.
// Both pattern and source may be NULL, which yields UNKNOWN.
type LikeTerm struct {
	Source, Pattern *ReguVariable
	Escape          *ReguVariable // nil means no escape char
}

func (t *LikeTerm) Eval(b *Binding) Result {
	sv, err := t.Source.Fetch(b)
	if err != nil {
		return Err
	}
	pv, err := t.Pattern.Fetch(b)
	if err != nil {
		return Err
	}
	if sv.IsNull() || pv.IsNull() {
		return Unknown
	}
	var escape rune
	hasEscape := false
	if t.Escape != nil {
		ev, err := t.Escape.Fetch(b)
		if err != nil {
			return Err
		}
		if ev.IsNull() {
			return Unknown
		}
		if len(ev.S) > 0 {
			escape = []rune(ev.S)[0]
			hasEscape = true
		}
	}
	re, err := compileLikePattern(pv.S, escape, hasEscape)
	if err != nil {
		return Err
	}
	return boolResult(re.MatchString(sv.S))
}

// compileLikePattern translates a SQL LIKE pattern (% = any run, _ = any
// single char, escape char literalizes the next wildcard) into an anchored
// regexp.
func compileLikePattern(pattern string, escape rune, hasEscape bool) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteString("^")
	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if hasEscape && r == escape && i+1 < len(runes) {
			i++
			sb.WriteString(regexp.QuoteMeta(string(runes[i])))
			continue
		}
		switch r {
		case '%':
			sb.WriteString(".*")
		case '_':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	return regexp.Compile(sb.String())
}

// RlikeTerm is RLIKE. It carries a mutable cell for the compiled pattern
// state: on first evaluation the pattern is compiled and cached in that
// cell, and subsequent evaluations reuse the cached compile as long as the
// pattern string is unchanged. Case-sensitivity is a third operand
// evaluated per call, so it is not part of the cache key beyond being
// folded into the compiled pattern's (?i) flag.
//
// Plans are single-threaded during execution and the compile cell is
// normally mutated under the caller's plan-level latch; the mutex here
// covers callers that don't honor that discipline.
type RlikeTerm struct {
	Source, Pattern, CaseSensitive *ReguVariable

	mu            sync.Mutex
	compiledFor   string
	compiledCI    bool
	compiled      *regexp.Regexp
}

func (t *RlikeTerm) Eval(b *Binding) Result {
	sv, err := t.Source.Fetch(b)
	if err != nil {
		return Err
	}
	pv, err := t.Pattern.Fetch(b)
	if err != nil {
		return Err
	}
	if sv.IsNull() || pv.IsNull() {
		return Unknown
	}
	caseSensitive := true
	if t.CaseSensitive != nil {
		cv, err := t.CaseSensitive.Fetch(b)
		if err != nil {
			return Err
		}
		if !cv.IsNull() {
			caseSensitive = cv.B
		}
	}

	re, err := t.compiledPattern(pv.S, !caseSensitive)
	if err != nil {
		return Err
	}
	return boolResult(re.MatchString(sv.S))
}

func (t *RlikeTerm) compiledPattern(pattern string, ci bool) (*regexp.Regexp, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.compiled != nil && t.compiledFor == pattern && t.compiledCI == ci {
		return t.compiled, nil
	}
	expr := pattern
	if ci {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	t.compiled = re
	t.compiledFor = pattern
	t.compiledCI = ci
	return re, nil
}
