// Package serialize implements the six value-serialization backends
// shared by the reformatter and the reference exporters in
// internal/exportfmt: canonical TSV nested form, typed JSON, natural
// JSON, XML, SQL literal, and MessagePack (plus its SQL-BLOB-wrapped
// hex form). All six share the same recursion-depth guard.
package serialize

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/pieczasz/tabularium/internal/value"
	"github.com/vmihailenco/msgpack/v5"
)

// MaxDepth mirrors internal/tableliteral.MaxDepth and internal/typespec's
// parser depth guard; all recursive walks in this repository share one
// bound.
const MaxDepth = 10

var errDepth = fmt.Errorf("Maximal depth reached!")

// CanonicalTSV renders v as the reformatter writes it back into a TSV
// cell: double-quoted escaped strings, "{k=v,...}" maps/records,
// "{v1,v2,...}" arrays/tuples, plain numbers.
func CanonicalTSV(v value.Value) (string, error) {
	return canonicalTSV(v, 0)
}

func canonicalTSV(v value.Value, depth int) (string, error) {
	if depth > MaxDepth {
		return "", errDepth
	}
	switch v.Kind {
	case value.KindNil:
		return "", nil
	case value.KindBool:
		if v.Bool {
			return "true", nil
		}
		return "false", nil
	case value.KindNumber:
		return formatNumber(v), nil
	case value.KindString:
		return quoteTSVString(v.Str), nil
	case value.KindArray:
		parts := make([]string, len(v.Items))
		for i, it := range v.Items {
			s, err := canonicalTSV(it, depth+1)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return "{" + strings.Join(parts, ",") + "}", nil
	case value.KindMap:
		entries := v.SortedEntries()
		parts := make([]string, len(entries))
		for i, e := range entries {
			s, err := canonicalTSV(e.Val, depth+1)
			if err != nil {
				return "", err
			}
			parts[i] = e.Key + "=" + s
		}
		return "{" + strings.Join(parts, ",") + "}", nil
	default:
		return "", fmt.Errorf("unknown value kind %d", v.Kind)
	}
}

func formatNumber(v value.Value) string {
	switch v.Spec {
	case value.SpecialNaN:
		return "nan"
	case value.SpecialInf:
		return "inf"
	case value.SpecialNegInf:
		return "-inf"
	}
	if v.IsInt {
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	}
	s := strconv.FormatFloat(v.Num, 'f', -1, 64)
	if v.ForceDecimal && !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func quoteTSVString(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			sb.WriteString(`\\`)
		case '"':
			sb.WriteString(`\"`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

// TypedJSON renders v as a JSON value that disambiguates integers from
// floats and preserves container shape: sequences as
// "[size, elem, elem, ...]", maps as "[0, ["k","v"], ...]", mixed
// tables as "[seq_size, ...seq items..., ["k","v"], ...]".
func TypedJSON(v value.Value) (string, error) {
	return typedJSON(v, 0)
}

func typedJSON(v value.Value, depth int) (string, error) {
	if depth > MaxDepth {
		return "", errDepth
	}
	switch v.Kind {
	case value.KindNil:
		return "null", nil
	case value.KindBool:
		if v.Bool {
			return "true", nil
		}
		return "false", nil
	case value.KindNumber:
		return typedNumber(v), nil
	case value.KindString:
		return jsonQuote(v.Str), nil
	case value.KindArray:
		parts := make([]string, 0, len(v.Items)+1)
		parts = append(parts, strconv.Itoa(len(v.Items)))
		for _, it := range v.Items {
			s, err := typedJSON(it, depth+1)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return "[" + strings.Join(parts, ",") + "]", nil
	case value.KindMap:
		parts := []string{"0"}
		for _, e := range v.Entries {
			s, err := typedJSON(e.Val, depth+1)
			if err != nil {
				return "", err
			}
			parts = append(parts, "["+jsonQuote(e.Key)+","+s+"]")
		}
		return "[" + strings.Join(parts, ",") + "]", nil
	default:
		return "", fmt.Errorf("unknown value kind %d", v.Kind)
	}
}

func typedNumber(v value.Value) string {
	switch v.Spec {
	case value.SpecialNaN:
		return `{"float":"nan"}`
	case value.SpecialInf:
		return `{"float":"inf"}`
	case value.SpecialNegInf:
		return `{"float":"-inf"}`
	}
	if v.IsInt {
		return `{"int":"` + strconv.FormatFloat(v.Num, 'f', -1, 64) + `"}`
	}
	s := strconv.FormatFloat(v.Num, 'f', -1, 64)
	if v.ForceDecimal && !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func jsonQuote(s string) string {
	b, _ := jsonMarshalString(s)
	return b
}

// jsonMarshalString hand-rolls JSON string escaping rather than
// round-tripping through encoding/json, since every other backend in
// this file is hand-rolled for the same reason: each has a slightly
// different escaping contract than encoding/json's defaults.
func jsonMarshalString(s string) (string, error) {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			sb.WriteString(`\\`)
		case '"':
			sb.WriteString(`\"`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		case '\r':
			sb.WriteString(`\r`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String(), nil
}

// NaturalJSON renders v as plain, human-shaped JSON: arrays as "[...]",
// objects as "{"k":v,...}" with keys sorted, integers as plain numbers,
// special floats as uppercase "NAN"/"INF"/"-INF".
func NaturalJSON(v value.Value) (string, error) {
	return naturalJSON(v, 0)
}

func naturalJSON(v value.Value, depth int) (string, error) {
	if depth > MaxDepth {
		return "", errDepth
	}
	switch v.Kind {
	case value.KindNil:
		return "null", nil
	case value.KindBool:
		if v.Bool {
			return "true", nil
		}
		return "false", nil
	case value.KindNumber:
		switch v.Spec {
		case value.SpecialNaN:
			return `"NAN"`, nil
		case value.SpecialInf:
			return `"INF"`, nil
		case value.SpecialNegInf:
			return `"-INF"`, nil
		}
		if v.IsInt {
			return strconv.FormatFloat(v.Num, 'f', -1, 64), nil
		}
		s := strconv.FormatFloat(v.Num, 'f', -1, 64)
		if v.ForceDecimal && !strings.Contains(s, ".") {
			s += ".0"
		}
		return s, nil
	case value.KindString:
		return jsonQuote(v.Str), nil
	case value.KindArray:
		parts := make([]string, len(v.Items))
		for i, it := range v.Items {
			s, err := naturalJSON(it, depth+1)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return "[" + strings.Join(parts, ",") + "]", nil
	case value.KindMap:
		entries := v.SortedEntries()
		parts := make([]string, len(entries))
		for i, e := range entries {
			s, err := naturalJSON(e.Val, depth+1)
			if err != nil {
				return "", err
			}
			parts[i] = jsonQuote(e.Key) + ":" + s
		}
		return "{" + strings.Join(parts, ",") + "}", nil
	default:
		return "", fmt.Errorf("unknown value kind %d", v.Kind)
	}
}

// XML renders v per the tag-per-kind scheme: <string>, <integer>,
// <number>, <true/>, <false/>, <null/>, <table> with <key_value><key/>
// <value/></key_value> children for maps, sorted by key.
func XML(v value.Value) (string, error) {
	return xmlValue(v, 0)
}

func xmlValue(v value.Value, depth int) (string, error) {
	if depth > MaxDepth {
		return "", errDepth
	}
	switch v.Kind {
	case value.KindNil:
		return "<null/>", nil
	case value.KindBool:
		if v.Bool {
			return "<true/>", nil
		}
		return "<false/>", nil
	case value.KindNumber:
		if v.IsInt {
			return "<integer>" + formatNumber(v) + "</integer>", nil
		}
		return "<number>" + xmlEscape(formatNumber(v)) + "</number>", nil
	case value.KindString:
		return "<string>" + xmlEscape(v.Str) + "</string>", nil
	case value.KindArray:
		var sb strings.Builder
		sb.WriteString("<table>")
		for _, it := range v.Items {
			s, err := xmlValue(it, depth+1)
			if err != nil {
				return "", err
			}
			sb.WriteString(s)
		}
		sb.WriteString("</table>")
		return sb.String(), nil
	case value.KindMap:
		var sb strings.Builder
		sb.WriteString("<table>")
		for _, e := range v.SortedEntries() {
			val, err := xmlValue(e.Val, depth+1)
			if err != nil {
				return "", err
			}
			sb.WriteString("<key_value><key>")
			sb.WriteString(xmlEscape(e.Key))
			sb.WriteString("</key><value>")
			sb.WriteString(val)
			sb.WriteString("</value></key_value>")
		}
		sb.WriteString("</table>")
		return sb.String(), nil
	default:
		return "", fmt.Errorf("unknown value kind %d", v.Kind)
	}
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

func xmlEscape(s string) string { return xmlEscaper.Replace(s) }

// SQLLiteral renders v as a MySQL-safe literal: NULL, single-quoted
// strings with doubled quotes and backslashes and null bytes stripped,
// 1/0 booleans. Nested tables are serialized through sub and quoted.
func SQLLiteral(v value.Value, sub func(value.Value) (string, error)) (string, error) {
	return sqlLiteral(v, sub, 0)
}

func sqlLiteral(v value.Value, sub func(value.Value) (string, error), depth int) (string, error) {
	if depth > MaxDepth {
		return "", errDepth
	}
	switch v.Kind {
	case value.KindNil:
		return "NULL", nil
	case value.KindBool:
		if v.Bool {
			return "1", nil
		}
		return "0", nil
	case value.KindNumber:
		return formatNumber(v), nil
	case value.KindString:
		return quoteSQLString(v.Str), nil
	case value.KindArray, value.KindMap:
		inner, err := sub(v)
		if err != nil {
			return "", err
		}
		return quoteSQLString(inner), nil
	default:
		return "", fmt.Errorf("unknown value kind %d", v.Kind)
	}
}

func quoteSQLString(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "'", "''")
	return "'" + s + "'"
}

// MessagePack encodes v through vmihailenco/msgpack after first
// reducing it to a depth-checked, msgpack-friendly shape. Maps are
// handed to the encoder as Go maps, so the key order of an encoded map
// is not fixed.
func MessagePack(v value.Value) ([]byte, error) {
	shaped, err := toMsgpackShape(v, 0)
	if err != nil {
		return nil, err
	}
	return msgpack.Marshal(shaped)
}

// SQLBlobMessagePack wraps MessagePack's output in the MySQL hex-blob
// literal form "X'...'".
func SQLBlobMessagePack(v value.Value) (string, error) {
	b, err := MessagePack(v)
	if err != nil {
		return "", err
	}
	return "X'" + strings.ToUpper(hexEncode(b)) + "'", nil
}

func hexEncode(b []byte) string {
	const digits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = digits[c>>4]
		out[i*2+1] = digits[c&0x0f]
	}
	return string(out)
}

func toMsgpackShape(v value.Value, depth int) (interface{}, error) {
	if depth > MaxDepth {
		return nil, errDepth
	}
	switch v.Kind {
	case value.KindNil:
		return nil, nil
	case value.KindBool:
		return v.Bool, nil
	case value.KindNumber:
		if v.Spec != value.SpecialNone {
			switch v.Spec {
			case value.SpecialNaN:
				return math.NaN(), nil
			case value.SpecialInf:
				return math.Inf(1), nil
			case value.SpecialNegInf:
				return math.Inf(-1), nil
			}
		}
		if v.IsInt {
			return int64(v.Num), nil
		}
		return v.Num, nil
	case value.KindString:
		return v.Str, nil
	case value.KindArray:
		out := make([]interface{}, len(v.Items))
		for i, it := range v.Items {
			shaped, err := toMsgpackShape(it, depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = shaped
		}
		return out, nil
	case value.KindMap:
		entries := v.SortedEntries()
		keys := make([]string, len(entries))
		for i, e := range entries {
			keys[i] = e.Key
		}
		sort.Strings(keys)
		m := make(map[string]interface{}, len(entries))
		for _, e := range entries {
			shaped, err := toMsgpackShape(e.Val, depth+1)
			if err != nil {
				return nil, err
			}
			m[e.Key] = shaped
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown value kind %d", v.Kind)
	}
}
