package xl

import (
	"strconv"
	"strings"
)

// MaxColumns is the widest column a worksheet grid can address ("XFD").
const MaxColumns = 16384

// IndexToLetters returns the letter address for column number n.
// Column numbering is bijective base-26 with no zero digit: A=1, Z=26,
// AA=27. n must be in [1, MaxColumns].
func IndexToLetters(n int) (string, error) {
	if n < 1 || n > MaxColumns {
		return "", &OutOfRangeError{Value: strconv.Itoa(n)}
	}
	var buf [3]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('A' + (n-1)%26)
		n = (n - 1) / 26
	}
	return string(buf[i:]), nil
}

// LettersToIndex returns the column number for a letter address.
// Matching is case-insensitive; any character outside A-Z is rejected.
func LettersToIndex(letters string) (int, error) {
	if letters == "" {
		return 0, &InvalidFormatError{Input: letters}
	}
	num := 0
	for _, c := range strings.ToUpper(letters) {
		if c < 'A' || c > 'Z' {
			return 0, &InvalidFormatError{Input: letters}
		}
		num = num*26 + int(c-'A') + 1
	}
	if num < 1 || num > MaxColumns {
		return 0, &OutOfRangeError{Value: letters}
	}
	return num, nil
}
