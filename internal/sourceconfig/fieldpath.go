package sourceconfig

import (
	"regexp"
	"strconv"
	"strings"
)

// Navigate walks a decoded-JSON value (map[string]any / []any / scalars)
// using the field-path grammar (§4.1):
//
//   - dot paths:        a.b.c, with numeric segments meaning array index: items.0.x
//   - array filter:     items[key=value].field — first element whose key equals value
//   - array slice:      [start:end] or [n] as a standalone leading segment
//
// Navigate returns (nil, false) when any segment fails to resolve.
func Navigate(data any, path string) (any, bool) {
	if path == "" {
		return data, true
	}
	segments := splitPath(path)
	cur := data
	for _, seg := range segments {
		next, ok := navigateSegment(cur, seg)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

var filterSegmentRe = regexp.MustCompile(`^([^\[\]]*)\[([^=\[\]]+)=([^\[\]]+)\]$`)
var sliceSegmentRe = regexp.MustCompile(`^\[(\d*):(\d*)\]$`)
var indexSegmentRe = regexp.MustCompile(`^\[(\d+)\]$`)

// splitPath splits a dotted path into segments, keeping bracket groups
// attached to the segment they qualify (e.g. "items[key=value]" stays one
// segment, a leading "[0:5]" stays its own segment).
func splitPath(path string) []string {
	var segments []string
	var cur strings.Builder
	depth := 0
	for _, r := range path {
		switch r {
		case '[':
			depth++
			cur.WriteRune(r)
		case ']':
			depth--
			cur.WriteRune(r)
		case '.':
			if depth == 0 {
				segments = append(segments, cur.String())
				cur.Reset()
				continue
			}
			cur.WriteRune(r)
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		segments = append(segments, cur.String())
	}
	return segments
}

func navigateSegment(cur any, seg string) (any, bool) {
	if seg == "" {
		return cur, true
	}

	if m := sliceSegmentRe.FindStringSubmatch(seg); m != nil {
		arr, ok := cur.([]any)
		if !ok {
			return nil, false
		}
		start, end := 0, len(arr)
		if m[1] != "" {
			start, _ = strconv.Atoi(m[1])
		}
		if m[2] != "" {
			end, _ = strconv.Atoi(m[2])
		}
		if start < 0 || end > len(arr) || start > end {
			return nil, false
		}
		return arr[start:end], true
	}

	if m := indexSegmentRe.FindStringSubmatch(seg); m != nil {
		arr, ok := cur.([]any)
		if !ok {
			return nil, false
		}
		idx, _ := strconv.Atoi(m[1])
		if idx < 0 || idx >= len(arr) {
			return nil, false
		}
		return arr[idx], true
	}

	if m := filterSegmentRe.FindStringSubmatch(seg); m != nil {
		base, key, value := m[1], m[2], m[3]
		var target any = cur
		if base != "" {
			var ok bool
			target, ok = navigateByKeyOrIndex(cur, base)
			if !ok {
				return nil, false
			}
		}
		arr, ok := target.([]any)
		if !ok {
			return nil, false
		}
		for _, el := range arr {
			obj, ok := el.(map[string]any)
			if !ok {
				continue
			}
			if v, ok := obj[key]; ok {
				if toString(v) == value {
					return el, true
				}
			}
		}
		return nil, false
	}

	return navigateByKeyOrIndex(cur, seg)
}

func navigateByKeyOrIndex(cur any, seg string) (any, bool) {
	if idx, err := strconv.Atoi(seg); err == nil {
		arr, ok := cur.([]any)
		if !ok {
			return nil, false
		}
		if idx < 0 || idx >= len(arr) {
			return nil, false
		}
		return arr[idx], true
	}
	obj, ok := cur.(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := obj[seg]
	return v, ok
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

// CSSSelector is a parsed "a.class@href" / ".title@data-id" style selector
// (§4.1): a bare CSS selector plus an optional attribute to extract instead
// of text content.
type CSSSelector struct {
	Selector  string
	Attribute string // empty means "use collapsed text content"
}

// ParseCSSSelector splits a selector on the last '@' that is not part of an
// attribute-selector bracket (e.g. a[href] has no extraction '@').
func ParseCSSSelector(raw string) CSSSelector {
	if idx := strings.LastIndex(raw, "@"); idx >= 0 && !strings.Contains(raw[idx:], "]") {
		return CSSSelector{Selector: raw[:idx], Attribute: raw[idx+1:]}
	}
	return CSSSelector{Selector: raw}
}
