package braille

// letters maps dot patterns to lowercase letters (Grade 1).
var letters = map[string]rune{
	"1":     'a',
	"12":    'b',
	"14":    'c',
	"145":   'd',
	"15":    'e',
	"124":   'f',
	"1245":  'g',
	"125":   'h',
	"24":    'i',
	"245":   'j',
	"13":    'k',
	"123":   'l',
	"134":   'm',
	"1345":  'n',
	"135":   'o',
	"1234":  'p',
	"12345": 'q',
	"1235":  'r',
	"234":   's',
	"2345":  't',
	"136":   'u',
	"1236":  'v',
	"2456":  'w',
	"1346":  'x',
	"13456": 'y',
	"1356":  'z',
	// Full cell. Kept as y so a six-key slam still yields a letter.
	"123456": 'y',
}

var byRune map[rune]Cell

func init() {
	byRune = make(map[rune]Cell, len(letters))
	for p, r := range letters {
		c, _ := ParsePattern(p)
		if prev, ok := byRune[r]; ok && prev.Len() < c.Len() {
			continue
		}
		byRune[r] = c
	}
}

// Lookup returns the letter for c and whether one is assigned.
func Lookup(c Cell) (rune, bool) {
	r, ok := letters[c.Pattern()]
	return r, ok
}

// Character returns the letter for c, or Unknown.
func Character(c Cell) rune {
	if r, ok := Lookup(c); ok {
		return r
	}
	return Unknown
}

// CellOf returns the cell for a lowercase letter.
func CellOf(r rune) (Cell, bool) {
	c, ok := byRune[r]
	return c, ok
}
