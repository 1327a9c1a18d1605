package registry

import (
	"strconv"
	"strings"

	"github.com/pieczasz/tabularium/internal/predicate"
	"github.com/pieczasz/tabularium/internal/reporter"
	"github.com/pieczasz/tabularium/internal/serialize"
	"github.com/pieczasz/tabularium/internal/tableliteral"
	"github.com/pieczasz/tabularium/internal/value"
)

// primitiveDef describes one bootstrap primitive: its parent (empty
// for the structural leaves) and its parse function.
type primitiveDef struct {
	name   string
	parent string
	parse  ParseFunc
}

func reformatOf(v value.Value) string {
	s, err := serialize.CanonicalTSV(v)
	if err != nil {
		return ""
	}
	return s
}

func simpleOK(v value.Value) (value.Value, string, bool) {
	return v, reformatOf(v), true
}

func bootstrapPrimitives() []primitiveDef {
	return []primitiveDef{
		{name: "string", parse: func(bad *reporter.BadVal, in string, ctx Context) (value.Value, string, bool) {
			// A double-quoted cell (the canonical form reformatOf writes)
			// is unescaped, so a reformatted cell re-parses to the same string.
			if len(in) >= 2 && in[0] == '"' {
				if u, err := strconv.Unquote(in); err == nil {
					in = u
				}
			}
			return simpleOK(value.String(in))
		}},
		{name: "number", parse: func(bad *reporter.BadVal, in string, ctx Context) (value.Value, string, bool) {
			if in == "" {
				return value.Nil(), "", true
			}
			if spec, ok := parseSpecialFloat(in); ok {
				return simpleOK(value.SpecialFloat(spec))
			}
			n, err := strconv.ParseFloat(in, 64)
			if err != nil {
				return value.Nil(), "", bad.Fail("number", in, "not numeric")
			}
			return simpleOK(value.Number(n))
		}},
		{name: "boolean", parse: func(bad *reporter.BadVal, in string, ctx Context) (value.Value, string, bool) {
			switch strings.ToLower(in) {
			case "true":
				return simpleOK(value.Bool(true))
			case "false":
				return simpleOK(value.Bool(false))
			default:
				return value.Nil(), "", bad.Fail("boolean", in, "not true/false")
			}
		}},
		{name: "nil", parse: func(bad *reporter.BadVal, in string, ctx Context) (value.Value, string, bool) {
			if in != "" {
				return value.Nil(), "", bad.Fail("nil", in, "nil must be empty")
			}
			return value.Nil(), "", true
		}},
		{name: "integer", parent: "number", parse: func(bad *reporter.BadVal, in string, ctx Context) (value.Value, string, bool) {
			if in == "" {
				return value.Nil(), "", true
			}
			if !predicate.IsIntegerValue(in) {
				return value.Nil(), "", bad.Fail("integer", in, "not an integer")
			}
			n, _ := strconv.ParseInt(in, 10, 64)
			return simpleOK(value.Int(float64(n)))
		}},
		{name: "ubyte", parent: "integer", parse: rangedInt("ubyte", 0, 255)},
		{name: "uint", parent: "integer", parse: rangedInt("uint", 0, 0)},
		{name: "long", parent: "number", parse: func(bad *reporter.BadVal, in string, ctx Context) (value.Value, string, bool) {
			if in == "" {
				return value.Nil(), "", true
			}
			if !predicate.IsIntegerValue(in) {
				return value.Nil(), "", bad.Fail("long", in, "not an integer")
			}
			n, _ := strconv.ParseInt(in, 10, 64)
			return simpleOK(value.Int(float64(n)))
		}},
		{name: "float", parent: "number", parse: func(bad *reporter.BadVal, in string, ctx Context) (value.Value, string, bool) {
			if in == "" {
				return value.Nil(), "", true
			}
			if spec, ok := parseSpecialFloat(in); ok {
				return simpleOK(value.SpecialFloat(spec))
			}
			n, err := strconv.ParseFloat(in, 64)
			if err != nil {
				return value.Nil(), "", bad.Fail("float", in, "not numeric")
			}
			return simpleOK(value.Float(n))
		}},
		{name: "percent", parent: "number", parse: func(bad *reporter.BadVal, in string, ctx Context) (value.Value, string, bool) {
			if in == "" {
				return value.Nil(), "", true
			}
			if !predicate.IsPercent(in) {
				return value.Nil(), "", bad.Fail("percent", in, "not a percent or ratio")
			}
			n, ok := parsePercentValue(in)
			if !ok {
				return value.Nil(), "", bad.Fail("percent", in, "not a percent or ratio")
			}
			v := value.Number(n)
			return v, in, true
		}},
		{name: "ascii", parent: "string", parse: asciiParse("ascii")},
		{name: "name", parent: "ascii", parse: func(bad *reporter.BadVal, in string, ctx Context) (value.Value, string, bool) {
			if !predicate.IsValidASCII(in) || !predicate.IsName(in) {
				return value.Nil(), "", bad.Fail("name", in, "not a dotted identifier")
			}
			return simpleOK(value.String(in))
		}},
		{name: "identifier", parent: "name", parse: func(bad *reporter.BadVal, in string, ctx Context) (value.Value, string, bool) {
			if !predicate.IsIdentifier(in) {
				return value.Nil(), "", bad.Fail("identifier", in, "not an identifier")
			}
			return simpleOK(value.String(in))
		}},
		{name: "text", parent: "string", parse: passthroughString("text")},
		{name: "markdown", parent: "text", parse: passthroughString("markdown")},
		{name: "comment", parent: "string", parse: passthroughString("comment")},
		{name: "asciitext", parent: "ascii", parse: asciiParse("asciitext")},
		{name: "asciimarkdown", parent: "asciitext", parse: asciiParse("asciimarkdown")},
		{name: "hexbytes", parent: "ascii", parse: func(bad *reporter.BadVal, in string, ctx Context) (value.Value, string, bool) {
			if !predicate.IsHexBytes(in) {
				return value.Nil(), "", bad.Fail("hexbytes", in, "not hex bytes")
			}
			return simpleOK(value.String(strings.ToLower(in)))
		}},
		{name: "base64bytes", parent: "ascii", parse: func(bad *reporter.BadVal, in string, ctx Context) (value.Value, string, bool) {
			if !predicate.IsBase64(in) {
				return value.Nil(), "", bad.Fail("base64bytes", in, "not base64")
			}
			return simpleOK(value.String(in))
		}},
		{name: "version", parse: func(bad *reporter.BadVal, in string, ctx Context) (value.Value, string, bool) {
			if !predicate.IsVersion(in) {
				return value.Nil(), "", bad.Fail("version", in, "not a semantic version")
			}
			return simpleOK(value.String(in))
		}},
		{name: "cmp_version", parse: func(bad *reporter.BadVal, in string, ctx Context) (value.Value, string, bool) {
			if !predicate.IsCmpVersion(in) {
				return value.Nil(), "", bad.Fail("cmp_version", in, "not a version comparison")
			}
			return simpleOK(value.String(in))
		}},
		{name: "http", parse: func(bad *reporter.BadVal, in string, ctx Context) (value.Value, string, bool) {
			if !predicate.IsHTTPURL(in) {
				return value.Nil(), "", bad.Fail("http", in, "not an http(s) URL")
			}
			return simpleOK(value.String(in))
		}},
		{name: "regex", parse: func(bad *reporter.BadVal, in string, ctx Context) (value.Value, string, bool) {
			if !predicate.IsRegex(in) {
				return value.Nil(), "", bad.Fail("regex", in, "not a valid regular expression")
			}
			return simpleOK(value.String(in))
		}},
		{name: "ratio", parse: func(bad *reporter.BadVal, in string, ctx Context) (value.Value, string, bool) {
			parts := strings.SplitN(in, "/", 2)
			if len(parts) != 2 {
				return value.Nil(), "", bad.Fail("ratio", in, "not a ratio")
			}
			den, err := strconv.Atoi(parts[1])
			if err != nil || den == 0 {
				return value.Nil(), "", bad.Fail("ratio", in, "not a ratio")
			}
			if _, err := strconv.Atoi(parts[0]); err != nil {
				return value.Nil(), "", bad.Fail("ratio", in, "not a ratio")
			}
			return simpleOK(value.String(in))
		}},
		{name: "raw", parse: func(bad *reporter.BadVal, in string, ctx Context) (value.Value, string, bool) {
			return value.String(in), in, true
		}},
		{name: "any", parse: func(bad *reporter.BadVal, in string, ctx Context) (value.Value, string, bool) {
			if strings.HasPrefix(strings.TrimSpace(in), "{") {
				v, err := tableliteral.Parse(in)
				if err != nil {
					return value.Nil(), "", bad.Fail("any", in, err.Error())
				}
				return simpleOK(v)
			}
			return simpleOK(value.String(in))
		}},
		{name: "table", parse: func(bad *reporter.BadVal, in string, ctx Context) (value.Value, string, bool) {
			if in == "" {
				return simpleOK(value.Array(nil))
			}
			v, err := tableliteral.Parse(in)
			if err != nil {
				return value.Nil(), "", bad.Fail("table", in, err.Error())
			}
			return simpleOK(v)
		}},
	}
}

func passthroughString(kind string) ParseFunc {
	return func(bad *reporter.BadVal, in string, ctx Context) (value.Value, string, bool) {
		return simpleOK(value.String(in))
	}
}

func asciiParse(kind string) ParseFunc {
	return func(bad *reporter.BadVal, in string, ctx Context) (value.Value, string, bool) {
		if !predicate.IsValidASCII(in) {
			return value.Nil(), "", bad.Fail(kind, in, "not ASCII")
		}
		return simpleOK(value.String(in))
	}
}

func rangedInt(kind string, min, max float64) ParseFunc {
	hasMax := max != 0
	return func(bad *reporter.BadVal, in string, ctx Context) (value.Value, string, bool) {
		if in == "" {
			return value.Nil(), "", true
		}
		if !predicate.IsIntegerValue(in) {
			return value.Nil(), "", bad.Fail(kind, in, "not an integer")
		}
		n, _ := strconv.ParseInt(in, 10, 64)
		f := float64(n)
		if f < min || (hasMax && f > max) {
			return value.Nil(), "", bad.Fail(kind, in, "out of range")
		}
		return simpleOK(value.Int(f))
	}
}

func parseSpecialFloat(in string) (value.Special, bool) {
	switch strings.ToLower(in) {
	case "nan":
		return value.SpecialNaN, true
	case "inf", "+inf":
		return value.SpecialInf, true
	case "-inf":
		return value.SpecialNegInf, true
	default:
		return value.SpecialNone, false
	}
}

func parsePercentValue(in string) (float64, bool) {
	if strings.HasSuffix(in, "%") {
		n, err := strconv.ParseFloat(strings.TrimSuffix(in, "%"), 64)
		if err != nil {
			return 0, false
		}
		return n / 100, true
	}
	parts := strings.SplitN(in, "/", 2)
	if len(parts) == 2 {
		num, err1 := strconv.ParseFloat(parts[0], 64)
		den, err2 := strconv.ParseFloat(parts[1], 64)
		if err1 != nil || err2 != nil || den == 0 {
			return 0, false
		}
		return num / den, true
	}
	return 0, false
}
