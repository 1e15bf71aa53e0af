/*
PURPOSE:
  Extracts a structured test identity (origin module, class, method) from the
  free-form descriptor handed to the reporter.

REQUIREMENTS:
  User-specified:
  - Conventional shape is "method (module.Class)".
  - Unmatched parts degrade to "" instead of failing.

  Implementation-discovered:
  - go test descriptors look like "TestAdd/case_1.5 (example.com/calc)", so the
    module/class patterns only look at the parenthesized tail. A dot inside a
    subtest name must not leak into the class.

ARCHITECTURE INTEGRATION:
  - Used by: internal/report (BeginTest), internal/engine (descriptor format)

ERROR HANDLING:
  - None. Identity strings are labels, not protocol data.

IMPLEMENTATION RULES:
  - Non-greedy patterns on literal delimiters only: space, parentheses, dot.
  - No side effects.

USAGE:
  id := identity.Parse("test_add (pkg.module.CalcTest)")
  id.Method        // "test_add"
  id.ThreadGroup() // "pkg.module.CalcTest"

RELATED FILES:
  - internal/model/sample.go

MAINTENANCE:
  - Nested parentheses are not interpreted. Extend the patterns only with a
    fixture showing the new shape.
*/

package identity

import (
	"regexp"
	"strings"
)

var (
	methodPattern = regexp.MustCompile(`^(.*?) `)
	modulePattern = regexp.MustCompile(`\((.*?)\.`)
	classPattern  = regexp.MustCompile(`\.(.*?)\)`)
)

// Identity is the parsed form of a test descriptor.
type Identity struct {
	Module string
	Class  string
	Method string
}

// Parse splits a descriptor of the form "method (module.Class)".
func Parse(descriptor string) Identity {
	var id Identity

	if m := methodPattern.FindStringSubmatch(descriptor); m != nil {
		id.Method = m[1]
	}

	// Only the origin after the method is searched, subtest names may carry parens.
	tail := descriptor
	if i := strings.Index(tail, " "); i >= 0 {
		tail = tail[i:]
	}
	if i := strings.Index(tail, "("); i >= 0 {
		tail = tail[i:]
	}
	if m := modulePattern.FindStringSubmatch(tail); m != nil {
		id.Module = m[1]
	}
	if m := classPattern.FindStringSubmatch(tail); m != nil {
		id.Class = m[1]
	}

	return id
}

// ThreadGroup returns the module-qualified class, used to group samples.
func (id Identity) ThreadGroup() string {
	switch {
	case id.Module != "" && id.Class != "":
		return id.Module + "." + id.Class
	case id.Module != "":
		return id.Module
	default:
		return id.Class
	}
}

// Descriptor formats a method and its origin in the shape Parse expects.
func Descriptor(method, origin string) string {
	return method + " (" + origin + ")"
}
