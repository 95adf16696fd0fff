package recognition

import (
	"errors"
	"strings"
	"unicode"
)

var (
	ErrEmptyCode       = errors.New("recognition: empty code")
	ErrInvalidChecksum = errors.New("recognition: invalid check digit")
	ErrInvalidCode     = errors.New("recognition: invalid characters in code")
)

// ParseCode turns a typed code into a Candidate. Numeric codes of GTIN
// length must carry a valid check digit and are tagged with the retail
// format matching their length (14 digits are tagged ITF, the carrier used
// for GTIN-14). An 8-digit code that fails as EAN-8 is tried as UPC-E,
// whose check digit covers the expanded UPC-A. Any other printable ASCII
// code is tagged CODE_128.
func ParseCode(raw string) (Candidate, error) {
	code := strings.TrimSpace(raw)
	if code == "" {
		return Candidate{}, ErrEmptyCode
	}
	if isDigits(code) {
		var f Format
		switch len(code) {
		case 8:
			if ValidGTIN(code) {
				return Candidate{Code: code, Format: FormatEAN8}, nil
			}
			if upca, ok := ExpandUPCE(code); ok && ValidGTIN(upca) {
				return Candidate{Code: code, Format: FormatUPCE}, nil
			}
			return Candidate{}, ErrInvalidChecksum
		case 12:
			f = FormatUPCA
		case 13:
			f = FormatEAN13
		case 14:
			f = FormatITF
		default:
			return Candidate{Code: code, Format: FormatCode128}, nil
		}
		if !ValidGTIN(code) {
			return Candidate{}, ErrInvalidChecksum
		}
		return Candidate{Code: code, Format: f}, nil
	}
	for _, r := range code {
		if r > unicode.MaxASCII || !unicode.IsPrint(r) {
			return Candidate{}, ErrInvalidCode
		}
	}
	return Candidate{Code: code, Format: FormatCode128}, nil
}

// ValidGTIN reports whether the last digit of code is the GS1 mod-10 check
// digit of the preceding ones.
func ValidGTIN(code string) bool {
	if len(code) < 2 || !isDigits(code) {
		return false
	}
	sum := 0
	// weights alternate 3,1 starting from the digit left of the check digit
	for i, w := len(code)-2, 3; i >= 0; i-- {
		sum += int(code[i]-'0') * w
		w = 4 - w
	}
	return int(code[len(code)-1]-'0') == (10-sum%10)%10
}

// ExpandUPCE returns the UPC-A form of an 8-digit UPC-E code (number
// system, six data digits, check digit). Only number systems 0 and 1 exist.
func ExpandUPCE(code string) (string, bool) {
	if len(code) != 8 || !isDigits(code) || (code[0] != '0' && code[0] != '1') {
		return "", false
	}
	d := code[1:7]
	var body string
	switch d[5] {
	case '0', '1', '2':
		body = d[0:2] + d[5:6] + "0000" + d[2:5]
	case '3':
		body = d[0:3] + "00000" + d[3:5]
	case '4':
		body = d[0:4] + "00000" + d[4:5]
	default:
		body = d[0:5] + "0000" + d[5:6]
	}
	return code[0:1] + body + code[7:8], true
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
