// Package colors parses CSS-style color strings and assigns categorical
// colors to groups of graph elements.
package colors

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/colornames"
)

// ErrInvalidColor is returned for strings that are not a supported color
var ErrInvalidColor = errors.New("invalid color")

// RGBA is a parsed color with straight (non-premultiplied) alpha in [0,1]
type RGBA struct {
	colorful.Color
	A float64
}

// Black is what unparseable colors resolve to
var Black = RGBA{Color: colorful.Color{}, A: 1}

// Parse understands #rgb, #rgba, #rrggbb, #rrggbbaa, rgb(), rgba(), hsl(),
// hsla(), "transparent" and the SVG 1.1 color keywords.
func Parse(s string) (RGBA, error) {
	str := strings.ToLower(strings.TrimSpace(s))
	if str == "" {
		return Black, fmt.Errorf("%w: empty string", ErrInvalidColor)
	}

	if str == "transparent" {
		return RGBA{A: 0}, nil
	}

	if strings.HasPrefix(str, "#") {
		return parseHex(str)
	}

	if open := strings.IndexByte(str, '('); open > 0 && strings.HasSuffix(str, ")") {
		return parseFunc(str[:open], str[open+1:len(str)-1])
	}

	if named, ok := colornames.Map[str]; ok {
		c, _ := colorful.MakeColor(named)
		return RGBA{Color: c, A: 1}, nil
	}

	// Bare hex digits are accepted as well
	if len(str) == 3 || len(str) == 6 {
		if rgba, err := parseHex("#" + str); err == nil {
			return rgba, nil
		}
	}

	return Black, fmt.Errorf("%w: %q", ErrInvalidColor, s)
}

func parseHex(str string) (RGBA, error) {
	digits := str[1:]
	switch len(digits) {
	case 3, 6:
		c, err := colorful.Hex(str)
		if err != nil {
			return Black, fmt.Errorf("%w: %q", ErrInvalidColor, str)
		}
		return RGBA{Color: c, A: 1}, nil
	case 4, 8:
		alphaDigits := digits[len(digits)*3/4:]
		rgb := "#" + digits[:len(digits)*3/4]
		c, err := colorful.Hex(rgb)
		if err != nil {
			return Black, fmt.Errorf("%w: %q", ErrInvalidColor, str)
		}
		if len(alphaDigits) == 1 {
			alphaDigits += alphaDigits
		}
		a, err := strconv.ParseUint(alphaDigits, 16, 8)
		if err != nil {
			return Black, fmt.Errorf("%w: %q", ErrInvalidColor, str)
		}
		return RGBA{Color: c, A: float64(a) / 255}, nil
	default:
		return Black, fmt.Errorf("%w: %q", ErrInvalidColor, str)
	}
}

func parseFunc(name, args string) (RGBA, error) {
	parts := strings.FieldsFunc(args, func(r rune) bool {
		return r == ',' || r == ' ' || r == '/'
	})

	var alpha = 1.0
	switch name {
	case "rgb", "rgba", "hsl", "hsla":
	default:
		return Black, fmt.Errorf("%w: unknown function %q", ErrInvalidColor, name)
	}

	if len(parts) != 3 && len(parts) != 4 {
		return Black, fmt.Errorf("%w: %s() takes 3 or 4 components", ErrInvalidColor, name)
	}
	if len(parts) == 4 {
		a, err := component(parts[3], 1)
		if err != nil {
			return Black, err
		}
		alpha = clamp01(a)
	}

	if strings.HasPrefix(name, "rgb") {
		var rgb [3]float64
		for i := 0; i < 3; i++ {
			v, err := component(parts[i], 255)
			if err != nil {
				return Black, err
			}
			rgb[i] = clamp01(v / 255)
		}
		return RGBA{Color: colorful.Color{R: rgb[0], G: rgb[1], B: rgb[2]}, A: alpha}, nil
	}

	h, err := strconv.ParseFloat(strings.TrimSuffix(parts[0], "deg"), 64)
	if err != nil {
		return Black, fmt.Errorf("%w: hue %q", ErrInvalidColor, parts[0])
	}
	sat, err := component(parts[1], 1)
	if err != nil {
		return Black, err
	}
	light, err := component(parts[2], 1)
	if err != nil {
		return Black, err
	}
	h = math.Mod(math.Mod(h, 360)+360, 360)
	return RGBA{Color: colorful.Hsl(h, clamp01(sat), clamp01(light)).Clamped(), A: alpha}, nil
}

// component parses a number or percentage; percentages are scaled to max
func component(s string, max float64) (float64, error) {
	if strings.HasSuffix(s, "%") {
		v, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: component %q", ErrInvalidColor, s)
		}
		return v / 100 * max, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: component %q", ErrInvalidColor, s)
	}
	return v, nil
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// MustParse is Parse that resolves invalid input to opaque black
func MustParse(s string) RGBA {
	c, err := Parse(s)
	if err != nil {
		return Black
	}
	return c
}

// Alpha returns the alpha channel of s, 1 for unparseable input
func Alpha(s string) float64 {
	return MustParse(s).A
}

// Hex returns the #rrggbb form of s, dropping alpha
func Hex(s string) string {
	return MustParse(s).Color.Hex()
}

// Equal compares two colors at 8-bit precision
func (c RGBA) Equal(o RGBA) bool {
	r1, g1, b1 := c.Color.RGB255()
	r2, g2, b2 := o.Color.RGB255()
	return r1 == r2 && g1 == g2 && b1 == b2 && math.Abs(c.A-o.A) < 1.0/512
}
