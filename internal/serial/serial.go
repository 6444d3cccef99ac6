// Package serial encodes and decodes credit serial numbers.
//
// Layout: CC-SCOPE-PROJECT-YEAR-START-END, for example
//
//	LK-14-0007-2023-1001-1250
//
// CC is an ISO 3166-1 alpha-2 country code, SCOPE the sectoral scope code,
// PROJECT the project number zero-padded to the codec width (wider numbers
// widen the field, they are never truncated), YEAR the four digit issuance
// year, and START/END the inclusive credit block range in plain decimal.
//
// Encoding is deterministic and Parse only accepts canonical strings, so
// Encode(Parse(s)) == s and distinct field tuples never share a serial.
package serial

import (
	"fmt"
	"strconv"
	"strings"

	dErrors "carbonregistry/pkg/domain-errors"
)

const (
	// DefaultProjectWidth is the minimum number of digits of the project field.
	DefaultProjectWidth = 4

	separator     = "-"
	maxScopeLen   = 8
	segmentCount  = 6
	maxIssuedYear = 9999
)

// Fields are the structured inputs of a serial number.
type Fields struct {
	CountryCode   string
	SectoralScope string
	ProjectNumber int64
	Year          int
	StartBlock    int64
	EndBlock      int64
}

// Codec encodes serial numbers with a fixed project field width.
type Codec struct {
	projectWidth int
}

// New returns a codec padding project numbers to width digits.
// Non-positive widths fall back to DefaultProjectWidth.
func New(width int) Codec {
	if width <= 0 {
		width = DefaultProjectWidth
	}
	return Codec{projectWidth: width}
}

// PadProjectID renders a project number with the codec's zero padding.
func (c Codec) PadProjectID(n int64) string {
	return fmt.Sprintf("%0*d", c.width(), n)
}

func (c Codec) width() int {
	if c.projectWidth <= 0 {
		return DefaultProjectWidth
	}
	return c.projectWidth
}

// Encode renders f as a serial number.
//
// Errors: CodeInvalidInput for malformed country or scope codes, negative
// numbers, or StartBlock > EndBlock; CodeEncodingOverflow when the year does
// not fit four digits.
func (c Codec) Encode(f Fields) (string, error) {
	if err := validateCountry(f.CountryCode); err != nil {
		return "", err
	}
	if err := validateScope(f.SectoralScope); err != nil {
		return "", err
	}
	if f.ProjectNumber < 0 || f.StartBlock < 0 || f.EndBlock < 0 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "serial number fields must be non-negative")
	}
	if f.StartBlock > f.EndBlock {
		return "", dErrors.New(dErrors.CodeInvalidInput,
			fmt.Sprintf("start block %d is after end block %d", f.StartBlock, f.EndBlock))
	}
	if f.Year < 0 || f.Year > maxIssuedYear {
		return "", dErrors.New(dErrors.CodeEncodingOverflow,
			fmt.Sprintf("year %d does not fit four digits", f.Year))
	}

	return strings.Join([]string{
		f.CountryCode,
		f.SectoralScope,
		c.PadProjectID(f.ProjectNumber),
		fmt.Sprintf("%04d", f.Year),
		strconv.FormatInt(f.StartBlock, 10),
		strconv.FormatInt(f.EndBlock, 10),
	}, separator), nil
}

// Parse decodes a canonical serial number produced by Encode with the same width.
func (c Codec) Parse(s string) (Fields, error) {
	parts := strings.Split(s, separator)
	if len(parts) != segmentCount {
		return Fields{}, invalidSerial(s, "expected 6 segments")
	}

	f := Fields{CountryCode: parts[0], SectoralScope: parts[1]}
	if err := validateCountry(f.CountryCode); err != nil {
		return Fields{}, err
	}
	if err := validateScope(f.SectoralScope); err != nil {
		return Fields{}, err
	}

	project := parts[2]
	if len(project) < c.width() || (len(project) > c.width() && project[0] == '0') {
		return Fields{}, invalidSerial(s, "project field is not canonically padded")
	}
	n, err := parseDigits(project)
	if err != nil {
		return Fields{}, invalidSerial(s, "project field: "+err.Error())
	}
	f.ProjectNumber = n

	if len(parts[3]) != 4 {
		return Fields{}, invalidSerial(s, "year must have four digits")
	}
	year, err := parseDigits(parts[3])
	if err != nil {
		return Fields{}, invalidSerial(s, "year: "+err.Error())
	}
	f.Year = int(year)

	if f.StartBlock, err = parseCanonical(parts[4]); err != nil {
		return Fields{}, invalidSerial(s, "start block: "+err.Error())
	}
	if f.EndBlock, err = parseCanonical(parts[5]); err != nil {
		return Fields{}, invalidSerial(s, "end block: "+err.Error())
	}
	if f.StartBlock > f.EndBlock {
		return Fields{}, invalidSerial(s, "start block after end block")
	}
	return f, nil
}

// Check validates the caller-supplied parts of a serial so a request can be
// refused before any number is allocated for it.
func Check(countryCode, sectoralScope string, year int) error {
	if err := validateCountry(countryCode); err != nil {
		return err
	}
	if err := validateScope(sectoralScope); err != nil {
		return err
	}
	if year < 0 || year > maxIssuedYear {
		return dErrors.New(dErrors.CodeEncodingOverflow, fmt.Sprintf("year %d does not fit four digits", year))
	}
	return nil
}

// Encode and Parse with the default width.
func Encode(f Fields) (string, error) { return New(DefaultProjectWidth).Encode(f) }
func Parse(s string) (Fields, error)  { return New(DefaultProjectWidth).Parse(s) }

func validateCountry(cc string) error {
	if len(cc) != 2 || !isUpper(cc[0]) || !isUpper(cc[1]) {
		return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("country code %q must be two upper-case letters", cc))
	}
	return nil
}

func validateScope(scope string) error {
	if scope == "" || len(scope) > maxScopeLen {
		return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("sectoral scope %q must be 1-%d characters", scope, maxScopeLen))
	}
	for i := 0; i < len(scope); i++ {
		if !isUpper(scope[i]) && !isDigit(scope[i]) {
			return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("sectoral scope %q must be upper-case alphanumeric", scope))
		}
	}
	return nil
}

// parseCanonical parses a non-negative decimal without leading zeros.
func parseCanonical(s string) (int64, error) {
	if len(s) > 1 && s[0] == '0' {
		return 0, fmt.Errorf("leading zero in %q", s)
	}
	return parseDigits(s)
}

func parseDigits(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty number")
	}
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return 0, fmt.Errorf("non-digit in %q", s)
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("out of range %q", s)
	}
	return n, nil
}

func invalidSerial(s, reason string) error {
	return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("invalid serial number %q: %s", s, reason))
}

func isUpper(b byte) bool { return b >= 'A' && b <= 'Z' }
func isDigit(b byte) bool { return b >= '0' && b <= '9' }
