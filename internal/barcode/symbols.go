// Package barcode decodes Code 39 symbols from captured edge intervals.
//
// Each character is nine alternating bar/space elements, three of them wide.
// Frames are framed by the '*' start/stop character and may carry an optional
// modulo-43 check character in front of the stop character.
package barcode

// Sentinel characters.
const (
	StartStop = '*'
	Unknown   = '?'
)

type symbol struct {
	char    byte
	pattern string
	value   int
}

// symbols lists the supported alphabet. Value is the modulo-43 check value;
// the start/stop character has none.
var symbols = [...]symbol{
	{'0', "NNNWWNWNN", 0},
	{'1', "WNNWNNNNW", 1},
	{'2', "NNWWNNNNW", 2},
	{'3', "WNWWNNNNN", 3},
	{'4', "NNNWWNNNW", 4},
	{'5', "WNNWWNNNN", 5},
	{'6', "NNWWWNNNN", 6},
	{'7', "NNNWNNWNW", 7},
	{'8', "WNNWNNWNN", 8},
	{'9', "NNWWNNWNN", 9},
	{'A', "WNNNNWNNW", 10},
	{'B', "NNWNNWNNW", 11},
	{'C', "WNWNNWNNN", 12},
	{'D', "NNNNWWNNW", 13},
	{'E', "WNNNWWNNN", 14},
	{'F', "NNWNWWNNN", 15},
	{'G', "NNNNNWWNW", 16},
	{'H', "WNNNNWWNN", 17},
	{'I', "NNWNNWWNN", 18},
	{'J', "NNNNWWWNN", 19},
	{'K', "WNNNNNNWW", 20},
	{'L', "NNWNNNNWW", 21},
	{'M', "WNWNNNNWN", 22},
	{'N', "NNNNWNNWW", 23},
	{'O', "WNNNWNNWN", 24},
	{'P', "NNWNWNNWN", 25},
	{'Q', "NNNNNNWWW", 26},
	{'R', "WNNNNNWWN", 27},
	{'S', "NNWNNNWWN", 28},
	{'T', "NNNNWNWWN", 29},
	{'U', "WWNNNNNNW", 30},
	{'V', "NWWNNNNNW", 31},
	{'W', "WWWNNNNNN", 32},
	{'X', "NWNNWNNNW", 33},
	{'Y', "WWNNWNNNN", 34},
	{'Z', "NWWNWNNNN", 35},
	{StartStop, "NWNNWNWNN", -1},
}

var (
	byPattern = map[string]byte{}
	byChar    = map[byte]symbol{}
	byValue   = map[int]byte{}
)

func init() {
	for _, s := range symbols {
		byPattern[s.pattern] = s.char
		byChar[s.char] = s
		if s.value >= 0 {
			byValue[s.value] = s.char
		}
	}
}

// Lookup returns the character for a nine element N/W pattern, or Unknown.
func Lookup(pattern string) byte {
	if c, ok := byPattern[pattern]; ok {
		return c
	}
	return Unknown
}

// Value returns the check value of c. The start/stop and unknown characters
// have none.
func Value(c byte) (int, bool) {
	s, ok := byChar[c]
	if !ok || s.value < 0 {
		return 0, false
	}
	return s.value, true
}

// Pattern returns the N/W pattern of c.
func Pattern(c byte) (string, bool) {
	s, ok := byChar[c]
	return s.pattern, ok
}

// Checksum sums the check values of data modulo 43. It fails when data holds
// a character without a value.
func Checksum(data string) (int, bool) {
	sum := 0
	for i := 0; i < len(data); i++ {
		v, ok := Value(data[i])
		if !ok {
			return 0, false
		}
		sum += v
	}
	return sum % 43, true
}
