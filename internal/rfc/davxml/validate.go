package davxml

import (
	"strconv"
	"strings"
)

// ValidateCharRefs scans raw XML for numeric character references
// (&#NNN; and &#xHHHH;) and rejects any that name a code point outside the
// set the XML 1.0 grammar allows: U+9, U+A, U+D, U+20-U+D7FF, U+E000-U+FFFD,
// U+10000-U+10FFFF.
func ValidateCharRefs(raw []byte) error {
	s := string(raw)
	for {
		idx := strings.Index(s, "&#")
		if idx < 0 {
			return nil
		}
		rest := s[idx+2:]
		end := strings.IndexByte(rest, ';')
		if end < 0 {
			return newErr(ErrEncodingError, "unterminated character reference")
		}
		body := rest[:end]
		var cp int64
		var err error
		if strings.HasPrefix(body, "x") || strings.HasPrefix(body, "X") {
			cp, err = strconv.ParseInt(body[1:], 16, 32)
		} else {
			cp, err = strconv.ParseInt(body, 10, 32)
		}
		if err != nil {
			return newErr(ErrEncodingError, "malformed character reference &#%s;", body)
		}
		if !isValidXMLChar(rune(cp)) {
			return newErr(ErrEncodingError, "character reference &#%s; names an invalid XML character", body)
		}
		s = rest[end+1:]
	}
}

func isValidXMLChar(r rune) bool {
	switch {
	case r == 0x9, r == 0xA, r == 0xD:
		return true
	case r >= 0x20 && r <= 0xD7FF:
		return true
	case r >= 0xE000 && r <= 0xFFFD:
		return true
	case r >= 0x10000 && r <= 0x10FFFF:
		return true
	default:
		return false
	}
}
