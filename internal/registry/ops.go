package registry

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pieczasz/tabularium/internal/reporter"
	"github.com/pieczasz/tabularium/internal/typespec"
	"github.com/pieczasz/tabularium/internal/validator"
	"github.com/pieczasz/tabularium/internal/value"
)

// RegisterAlias resolves targetSpec and stores name as pointing at its
// canonical spec. Re-registering the same name with the same target is
// a no-op; a different target is a conflict error.
func (r *Registry) RegisterAlias(name, targetSpec string) error {
	target, err := r.ParseType(targetSpec)
	if err != nil {
		return err
	}
	if existing, ok := r.names[name]; ok {
		if existing == target.CanonicalSpec {
			return nil
		}
		return fmt.Errorf("alias %q already registered to a different type", name)
	}
	r.names[name] = target.CanonicalSpec
	return nil
}

// RegisterEnum lowercases and sorts labels, registers (or reuses) the
// resulting {enum:...} type, and optionally names it.
func (r *Registry) RegisterEnum(labels []string, aliasName string) (*ParserEntry, error) {
	norm := make([]string, len(labels))
	for i, l := range labels {
		norm[i] = strings.ToLower(l)
	}
	sort.Strings(norm)
	entry, err := r.compile(typespec.Enum{Labels: norm})
	if err != nil {
		return nil, err
	}
	if aliasName != "" {
		if err := r.bindName(aliasName, entry.CanonicalSpec); err != nil {
			return nil, err
		}
	}
	return entry, nil
}

func (r *Registry) bindName(name, canon string) error {
	if existing, ok := r.names[name]; ok {
		if existing == canon {
			return nil
		}
		return fmt.Errorf("name %q already registered to a different type", name)
	}
	r.names[name] = canon
	return nil
}

func autoRestrictionKey(kind, parent string, parts ...string) string {
	return kind + ":" + parent + ":" + strings.Join(parts, ":")
}

func fmtBoundNum(f *float64) string {
	if f == nil {
		return "_"
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

// RestrictNumber builds a numeric restriction over parent, which must
// extend (or be) "number". A nil min or max does not constrain. The
// entry is keyed by parent and both bounds (a min of 0 included); no
// alias name is generated when aliasName is empty.
func (r *Registry) RestrictNumber(parent string, min, max *float64, aliasName string) (*ParserEntry, error) {
	parentEntry, ok := r.resolveEntry(parent)
	if !ok {
		return nil, fmt.Errorf("unknown parent type %q", parent)
	}
	if parent != "number" && !r.ExtendsOrRestrict(parent, "number") {
		return nil, fmt.Errorf("restrict_number: parent %q does not extend number", parent)
	}
	key := autoRestrictionKey("restrictnum", parentEntry.CanonicalSpec, fmtBoundNum(min), fmtBoundNum(max))
	if existing, ok := r.entries[key]; ok {
		if aliasName != "" {
			if err := r.bindName(aliasName, key); err != nil {
				return nil, err
			}
		}
		return existing, nil
	}
	entry := &ParserEntry{
		Kind:       KindRestriction,
		ParentSpec: parentEntry.CanonicalSpec,
		Min:        min,
		Max:        max,
		HasMin:     min != nil,
		HasMax:     max != nil,
	}
	entry.Parse = func(bad *reporter.BadVal, in string, ctx Context) (value.Value, string, bool) {
		v, rf, ok := parentEntry.Parse(bad, in, ctx)
		if !ok || v.IsNil() {
			return v, rf, ok
		}
		if entry.HasMin && v.Num < *entry.Min {
			return value.Nil(), "", bad.Fail("restricted number", in, "below minimum")
		}
		if entry.HasMax && v.Num > *entry.Max {
			return value.Nil(), "", bad.Fail("restricted number", in, "above maximum")
		}
		return v, rf, true
	}
	entry.Compare = parentEntry.Compare
	entry.Default = parentEntry.Default
	entry.CanonicalSpec = key
	r.entries[key] = entry
	if aliasName != "" {
		if err := r.bindName(aliasName, key); err != nil {
			return nil, err
		}
	}
	return entry, nil
}

// RestrictString builds a length/pattern restriction over parent,
// which must extend (or be) "string". A pattern alone, with no length
// bound, is rejected.
func (r *Registry) RestrictString(parent string, minLen, maxLen *int, pattern, aliasName string) (*ParserEntry, error) {
	parentEntry, ok := r.resolveEntry(parent)
	if !ok {
		return nil, fmt.Errorf("unknown parent type %q", parent)
	}
	if parent != "string" && !r.ExtendsOrRestrict(parent, "string") {
		return nil, fmt.Errorf("restrict_string: parent %q does not extend string", parent)
	}
	if pattern != "" && minLen == nil && maxLen == nil {
		return nil, fmt.Errorf("restrict_string: pattern requires min_len or max_len")
	}
	var re *regexp.Regexp
	if pattern != "" {
		var err error
		re, err = regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("restrict_string: invalid pattern: %w", err)
		}
	}
	minStr, maxStr := "_", "_"
	if minLen != nil {
		minStr = strconv.Itoa(*minLen)
	}
	if maxLen != nil {
		maxStr = strconv.Itoa(*maxLen)
	}
	key := autoRestrictionKey("restrictstr", parentEntry.CanonicalSpec, minStr, maxStr, pattern)
	entry := &ParserEntry{
		Kind:       KindRestriction,
		ParentSpec: parentEntry.CanonicalSpec,
		MinLen:     minLen,
		MaxLen:     maxLen,
		Pattern:    re,
	}
	entry.Parse = func(bad *reporter.BadVal, in string, ctx Context) (value.Value, string, bool) {
		v, rf, ok := parentEntry.Parse(bad, in, ctx)
		if !ok || v.IsNil() {
			return v, rf, ok
		}
		if minLen != nil && len(v.Str) < *minLen {
			return value.Nil(), "", bad.Fail("restricted string", in, "shorter than minimum length")
		}
		if maxLen != nil && len(v.Str) > *maxLen {
			return value.Nil(), "", bad.Fail("restricted string", in, "longer than maximum length")
		}
		if re != nil && !re.MatchString(v.Str) {
			return value.Nil(), "", bad.Fail("restricted string", in, "does not match pattern")
		}
		return v, rf, true
	}
	entry.Compare = parentEntry.Compare
	entry.Default = parentEntry.Default
	entry.CanonicalSpec = key
	r.entries[key] = entry
	if aliasName != "" {
		if err := r.bindName(aliasName, key); err != nil {
			return nil, err
		}
	}
	return entry, nil
}

// RestrictWithValidator attaches an arbitrary predicate to parent.
func (r *Registry) RestrictWithValidator(parent, aliasName string, predicateFn func(value.Value) bool) (*ParserEntry, error) {
	parentEntry, ok := r.resolveEntry(parent)
	if !ok {
		return nil, fmt.Errorf("unknown parent type %q", parent)
	}
	key := autoRestrictionKey("restrictpred", parentEntry.CanonicalSpec, aliasName)
	entry := &ParserEntry{Kind: KindRestriction, ParentSpec: parentEntry.CanonicalSpec, ValidatorFn: predicateFn, ValidatorExprLabel: aliasName}
	entry.Parse = func(bad *reporter.BadVal, in string, ctx Context) (value.Value, string, bool) {
		v, rf, ok := parentEntry.Parse(bad, in, ctx)
		if !ok || v.IsNil() {
			return v, rf, ok
		}
		if !predicateFn(v) {
			return value.Nil(), "", bad.Fail("restricted value", in, "failed validator")
		}
		return v, rf, true
	}
	entry.Compare = parentEntry.Compare
	entry.Default = parentEntry.Default
	entry.CanonicalSpec = key
	r.entries[key] = entry
	if aliasName != "" {
		if err := r.bindName(aliasName, key); err != nil {
			return nil, err
		}
	}
	return entry, nil
}

// registerValidatorRestriction backs the "validate" category of
// register_types_from_spec: expr is a validator expression (§4.9
// syntax) evaluated with the candidate value bound to self. The
// expression is compiled once up front so a malformed row fails at
// registration rather than on the first parsed cell, then wrapped as a
// RestrictWithValidator predicate reusing the validator package's own
// pass/fail interpretation (true/"" passes; false, a non-empty string,
// or a runtime error all fail).
func (r *Registry) registerValidatorRestriction(parent, aliasName, expr string) (*ParserEntry, error) {
	if err := validator.Compile(expr); err != nil {
		return nil, fmt.Errorf("register_types_from_spec: row %q has invalid validate expression: %w", aliasName, err)
	}
	spec := validator.NewSpec(expr, "")
	predicateFn := func(v value.Value) bool {
		out := validator.RunRow([]validator.Spec{spec}, v, 0, "", nil)
		return len(out) > 0 && out[0].Passed
	}
	return r.RestrictWithValidator(parent, aliasName, predicateFn)
}

// RestrictEnum narrows a registered enum to a subset of its labels.
func (r *Registry) RestrictEnum(parentEnum string, allowed []string, aliasName string) (*ParserEntry, error) {
	parentEntry, ok := r.resolveEntry(parentEnum)
	if !ok || parentEntry.Kind != KindEnum {
		return nil, fmt.Errorf("restrict_enum: %q is not a registered enum", parentEnum)
	}
	allowedLower := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		allowedLower[strings.ToLower(a)] = true
	}
	parentLower := map[string]bool{}
	for _, l := range parentEntry.EnumLabels {
		parentLower[strings.ToLower(l)] = true
	}
	for a := range allowedLower {
		if !parentLower[a] {
			return nil, fmt.Errorf("restrict_enum: %q is not among parent labels", a)
		}
	}
	labels := make([]string, 0, len(allowedLower))
	for _, l := range parentEntry.EnumLabels {
		if allowedLower[strings.ToLower(l)] {
			labels = append(labels, strings.ToLower(l))
		}
	}
	key := autoRestrictionKey("restrictenum", parentEntry.CanonicalSpec, strings.Join(labels, "|"))
	entry := &ParserEntry{Kind: KindEnum, ParentSpec: parentEntry.CanonicalSpec, EnumLabels: labels, RestrictedValues: labels}
	entry.Parse = func(bad *reporter.BadVal, in string, ctx Context) (value.Value, string, bool) {
		if in == "" {
			return value.Nil(), "", true
		}
		lower := strings.ToLower(in)
		for _, l := range labels {
			if l == lower {
				return value.String(l), l, true
			}
		}
		return value.Nil(), "", bad.Fail("enum", in, "not one of the restricted labels")
	}
	entry.Compare = func(a, b value.Value) int { return enumLabelOrder(labels, a, b) }
	entry.Default = value.Nil()
	entry.CanonicalSpec = key
	r.entries[key] = entry
	if aliasName != "" {
		if err := r.bindName(aliasName, key); err != nil {
			return nil, err
		}
	}
	return entry, nil
}

// RestrictUnion narrows a registered union to a subset of its members,
// preserving the parent's member order.
func (r *Registry) RestrictUnion(parentUnion string, allowedSpecs []string, aliasName string) (*ParserEntry, error) {
	parentEntry, ok := r.resolveEntry(parentUnion)
	if !ok || parentEntry.Kind != KindUnion {
		return nil, fmt.Errorf("restrict_union: %q is not a registered union", parentUnion)
	}
	allowedCanon := map[string]bool{}
	for _, spec := range allowedSpecs {
		e, ok := r.resolveEntry(spec)
		if !ok {
			return nil, fmt.Errorf("restrict_union: unknown member type %q", spec)
		}
		allowedCanon[e.CanonicalSpec] = true
	}
	var members []string
	for _, m := range parentEntry.UnionSpecs {
		if allowedCanon[m] {
			members = append(members, m)
		}
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("restrict_union: allowed members must be a subset of parent union")
	}
	key := autoRestrictionKey("restrictunion", parentEntry.CanonicalSpec, strings.Join(members, "|"))
	resolved := make([]*ParserEntry, len(members))
	for i, m := range members {
		resolved[i], _ = r.Lookup(m)
	}
	entry := &ParserEntry{Kind: KindUnion, ParentSpec: parentEntry.CanonicalSpec, UnionSpecs: members}
	entry.Parse = func(bad *reporter.BadVal, in string, ctx Context) (value.Value, string, bool) {
		probe := reporter.NullBadVal()
		for _, m := range resolved {
			v, rf, ok := m.Parse(probe, in, ctx)
			if ok {
				return v, rf, true
			}
		}
		return value.Nil(), "", bad.Fail("union", in, "matched no union member")
	}
	entry.Compare = func(a, b value.Value) int { return 0 }
	if len(resolved) > 0 {
		entry.Default = resolved[0].Default
	}
	entry.CanonicalSpec = key
	r.entries[key] = entry
	if aliasName != "" {
		if err := r.bindName(aliasName, key); err != nil {
			return nil, err
		}
	}
	return entry, nil
}

// RegisterTypeTag registers (or merges into) a named type tag: a set
// of member type names that must each extend ancestorSpec.
func (r *Registry) RegisterTypeTag(name, ancestorSpec string, members []string) (*ParserEntry, error) {
	ancestorEntry, ok := r.resolveEntry(ancestorSpec)
	if !ok {
		return nil, fmt.Errorf("unknown ancestor type %q", ancestorSpec)
	}
	for _, m := range members {
		if m == ancestorEntry.CanonicalSpec {
			continue
		}
		if !r.ExtendsOrRestrict(m, ancestorEntry.CanonicalSpec) {
			return nil, fmt.Errorf("type tag %q: member %q does not extend %q", name, m, ancestorSpec)
		}
	}
	key := "typetag:" + name
	if existing, ok := r.entries[key]; ok {
		if existing.ParentSpec != ancestorEntry.CanonicalSpec {
			return nil, fmt.Errorf("type tag %q already registered with a different ancestor", name)
		}
		existing.Members = mergeUnique(existing.Members, members)
		return existing, nil
	}
	entry := &ParserEntry{Kind: KindTypeTag, ParentSpec: ancestorEntry.CanonicalSpec, Members: append([]string(nil), members...)}
	entry.Parse = func(bad *reporter.BadVal, in string, ctx Context) (value.Value, string, bool) {
		if in == "" {
			return value.Nil(), "", true
		}
		if !r.typeTagAccepts(entry, in) {
			return value.Nil(), "", bad.Fail("type_tag", in, "not a member of "+name)
		}
		return simpleOK(value.String(in))
	}
	entry.Compare = func(a, b value.Value) int { return strings.Compare(a.Str, b.Str) }
	entry.Default = value.Nil()
	entry.CanonicalSpec = key
	r.entries[key] = entry
	r.names[name] = key
	return entry, nil
}

func mergeUnique(existing, extra []string) []string {
	seen := map[string]bool{}
	out := append([]string(nil), existing...)
	for _, e := range existing {
		seen[e] = true
	}
	for _, e := range extra {
		if !seen[e] {
			seen[e] = true
			out = append(out, e)
		}
	}
	return out
}

// typeTagAccepts checks whether typeName extends one of tag's members,
// recursing through members that are themselves type tags.
func (r *Registry) typeTagAccepts(tag *ParserEntry, typeName string) bool {
	for _, m := range tag.Members {
		if typeName == m || r.ExtendsOrRestrict(typeName, m) {
			return true
		}
		if me, ok := r.entries[m]; ok && me.Kind == KindTypeTag {
			if r.typeTagAccepts(me, typeName) {
				return true
			}
		}
	}
	return false
}

// TypeSpecRow is one row of a register_types_from_spec batch (§4.6.2),
// typically sourced from a custom_type_def manifest file. Exactly one
// of the constraint categories may be populated; the rest are zero
// values.
type TypeSpecRow struct {
	Name     string
	Parent   string
	Min      *float64
	Max      *float64
	MinLen   *int
	MaxLen   *int
	Pattern  string
	Values   []string
	Members  []string
	Validate string
}

func (row TypeSpecRow) category() (string, error) {
	has := map[string]bool{
		"minmax":  row.Min != nil || row.Max != nil,
		"strlen":  row.MinLen != nil || row.MaxLen != nil || row.Pattern != "",
		"values":  len(row.Values) > 0,
		"members": len(row.Members) > 0,
		"validate": row.Validate != "",
	}
	found := ""
	count := 0
	for k, v := range has {
		if v {
			count++
			found = k
		}
	}
	if count > 1 {
		return "", fmt.Errorf("register_types_from_spec: row %q mixes constraint categories", row.Name)
	}
	return found, nil
}

// RegisterTypesFromSpec batch-registers rows, dispatching each to the
// matching single-category operation, or a plain alias when none of
// the categories are populated.
func (r *Registry) RegisterTypesFromSpec(rows []TypeSpecRow) ([]*ParserEntry, error) {
	out := make([]*ParserEntry, 0, len(rows))
	for _, row := range rows {
		cat, err := row.category()
		if err != nil {
			return nil, err
		}
		var entry *ParserEntry
		switch cat {
		case "minmax":
			entry, err = r.RestrictNumber(row.Parent, row.Min, row.Max, row.Name)
		case "strlen":
			entry, err = r.RestrictString(row.Parent, row.MinLen, row.MaxLen, row.Pattern, row.Name)
		case "values":
			entry, err = r.RegisterEnum(row.Values, row.Name)
		case "members":
			entry, err = r.RegisterTypeTag(row.Name, row.Parent, row.Members)
		case "validate":
			entry, err = r.registerValidatorRestriction(row.Parent, row.Name, row.Validate)
		default:
			err = r.RegisterAlias(row.Name, row.Parent)
			if err == nil {
				entry, _ = r.Lookup(row.Name)
			}
		}
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}
