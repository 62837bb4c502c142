package edgar

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// cikWidth is the canonical zero-padded width of a CIK.
const cikWidth = 10

var nonDigits = regexp.MustCompile(`\D`)

// NormalizeCIK canonicalizes a company identifier: strips non-digit
// characters, keeps the trailing ten digits when the input is longer
// (inputs occasionally carry junk prefixes), and zero-pads to ten digits.
func NormalizeCIK(cik string) (string, error) {
	digits := nonDigits.ReplaceAllString(cik, "")
	if digits == "" {
		return "", fmt.Errorf("invalid CIK %q", cik)
	}
	if len(digits) > cikWidth {
		digits = digits[len(digits)-cikWidth:]
	}
	return strings.Repeat("0", cikWidth-len(digits)) + digits, nil
}

// CIKDirSegment renders a canonical CIK without leading zeros, matching the
// directory naming used under /Archives/edgar/data.
func CIKDirSegment(cik10 string) string {
	n, err := strconv.ParseUint(cik10, 10, 64)
	if err != nil {
		return strings.TrimLeft(cik10, "0")
	}
	return strconv.FormatUint(n, 10)
}

// AccessionCompact removes the embedded dashes from an accession number,
// yielding the folder-name form used in filing directory URLs.
func AccessionCompact(accessionNo string) string {
	return strings.ReplaceAll(accessionNo, "-", "")
}
