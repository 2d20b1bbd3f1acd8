package urlutil

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrInvalidFormat = errors.New("invalid template format")

var formatPattern = regexp.MustCompile(`^%(0[0-9]*)?[dxu]$`)

const defaultFormat = "%01d"

// TemplateValues are the substitutions available to a segment URL template.
type TemplateValues struct {
	RepresentationID string
	Number           uint32
	Bandwidth        uint32
	Time             uint64
}

// BuildTemplate expands $RepresentationID$, $Number$, $Bandwidth$ and $Time$
// identifiers, each numeric one optionally carrying a printf width such as
// $Number%05d$. "$$" is a literal dollar sign. Unknown identifiers are kept
// as written.
func BuildTemplate(tmpl string, v TemplateValues) (string, error) {
	tokens := strings.Split(tmpl, "$")

	var sb strings.Builder
	sb.Grow(len(tmpl) + 16)
	for i, token := range tokens {
		// Even tokens are literal text, odd ones sit between a pair of '$'.
		if i%2 == 0 || i == len(tokens)-1 {
			if i%2 == 1 {
				// Unterminated identifier.
				sb.WriteByte('$')
			}
			sb.WriteString(token)
			continue
		}

		out, err := expand(token, v)
		if nil != err {
			return "", fmt.Errorf("expand %q in template %q: %w", token, tmpl, err)
		}
		sb.WriteString(out)
	}

	return sb.String(), nil
}

func expand(token string, v TemplateValues) (string, error) {
	switch {
	case token == "":
		return "$", nil
	case token == "RepresentationID":
		return v.RepresentationID, nil
	case strings.HasPrefix(token, "Number"):
		return format(strings.TrimPrefix(token, "Number"), uint64(v.Number))
	case strings.HasPrefix(token, "Bandwidth"):
		return format(strings.TrimPrefix(token, "Bandwidth"), uint64(v.Bandwidth))
	case strings.HasPrefix(token, "Time"):
		return format(strings.TrimPrefix(token, "Time"), v.Time)
	default:
		return "$" + token + "$", nil
	}
}

func format(spec string, n uint64) (string, error) {
	if spec == "" {
		spec = defaultFormat
	}
	if !formatPattern.MatchString(spec) {
		return "", ErrInvalidFormat
	}

	if spec[len(spec)-1] == 'u' {
		spec = spec[:len(spec)-1] + "d"
	}

	return fmt.Sprintf(spec, n), nil
}
