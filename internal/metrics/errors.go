package metrics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"unicode"
)

// statusCoder is implemented by errors that carry a protocol status, such as
// an HTTP response outside the 2xx range.
type statusCoder interface {
	HTTPStatus() int
}

// ErrorName labels err for the per-operation error breakdown. Well known
// causes get a fixed label anywhere in the wrap chain; anything else is named
// after the first error in the chain that is not a plain fmt.Errorf wrapper.
func ErrorName(err error) string {
	if err == nil {
		return ""
	}

	var status statusCoder
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "Timeout"
	case errors.Is(err, context.Canceled):
		return "Canceled"
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, net.ErrClosed):
		return "Connection closed"
	case errors.As(err, &status):
		return fmt.Sprintf("HTTP %d", status.HTTPStatus())
	case errors.As(err, &netErr):
		if netErr.Timeout() {
			return "Timeout"
		}
		return "Network error"
	}

	name := fmt.Sprintf("%T", err)
	for name == "*fmt.wrapError" {
		next := errors.Unwrap(err)
		if next == nil {
			break
		}
		err = next
		name = fmt.Sprintf("%T", err)
	}
	return typeLabel(name)
}

// typeLabel turns a type name like "*websocket.CloseError" into
// "Close Error (websocket)". Plain errors.New and fmt.Errorf values are
// reported as scenario errors.
func typeLabel(typeName string) string {
	name := strings.TrimPrefix(strings.TrimSpace(typeName), "*")
	switch name {
	case "":
		return "Unknown error"
	case "errors.errorString", "fmt.wrapError", "fmt.wrapErrors":
		return "Scenario error"
	}
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	pkg, typ, found := strings.Cut(name, ".")
	if !found {
		pkg, typ = "", name
	}
	words := splitCamel(typ)
	if pkg == "" || pkg == "main" {
		return words
	}
	return fmt.Sprintf("%s (%s)", words, pkg)
}

// splitCamel inserts spaces at camel-case boundaries, keeping acronyms such
// as "HTTP" together, and upper-cases the first letter.
func splitCamel(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if i > 0 {
			prev := runes[i-1]
			lowerNext := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsUpper(r) && (unicode.IsLower(prev) || unicode.IsUpper(prev) && lowerNext) ||
				unicode.IsDigit(r) && !unicode.IsDigit(prev) {
				b.WriteByte(' ')
			}
		}
		if i == 0 {
			r = unicode.ToUpper(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
