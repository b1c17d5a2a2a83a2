// internal/otpextract/extract.go
// Heuristic extraction of one-time passcodes from free-form SMS text.
// Pure function, no vendor coupling: a 6-digit amount or reference number can
// be misidentified as an OTP, which is a known limitation of the heuristic.

package otpextract

import "regexp"

var (
	// Labeled pattern: an explicit OTP/code/verification label followed by
	// 4-6 digits, optionally spaced or dashed ("OTP: 845-213")
	labeledPattern = regexp.MustCompile(`(?i)(?:otp|code|verification|password|pin)(?:\s+is)?\s*[:\-]?\s*([0-9][0-9\- ]{2,9}[0-9])`)

	// Bare pattern: any standalone 4-6 digit run
	barePattern = regexp.MustCompile(`\b[0-9]{4,6}\b`)

	nonDigit = regexp.MustCompile(`[^0-9]`)
)

// Extract scans raw SMS text and returns candidate numeric codes, labeled
// matches first, deduplicated by value in first-seen order. Only results of
// 4-6 digits survive normalization.
func Extract(text string) []string {
	var codes []string
	seen := make(map[string]bool)

	add := func(raw string) {
		code := nonDigit.ReplaceAllString(raw, "")
		if len(code) < 4 || len(code) > 6 {
			return
		}
		if seen[code] {
			return
		}
		seen[code] = true
		codes = append(codes, code)
	}

	// Labeled matches are tried before bare digit runs so a message containing
	// both noise digits and an explicit label surfaces the labeled code first
	for _, match := range labeledPattern.FindAllStringSubmatch(text, -1) {
		add(match[1])
	}
	for _, match := range barePattern.FindAllString(text, -1) {
		add(match)
	}

	return codes
}
