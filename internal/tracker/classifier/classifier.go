package classifier

import (
	"regexp"
	"strings"
)

// A single negative match vetoes the message no matter how many positive
// phrases are present.

var tagRe = regexp.MustCompile(`<[^>]*>`)

var positivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`thank(?:s| you) for applying`),
	regexp.MustCompile(`thank you for your application`),
	regexp.MustCompile(`application (?:was |has been )?received`),
	regexp.MustCompile(`received your application`),
	regexp.MustCompile(`application (?:was|has been) (?:submitted|sent)`),
	regexp.MustCompile(`successfully submitted your application`),
}

var negativePatterns = []*regexp.Regexp{
	regexp.MustCompile(`job alerts?`),
	regexp.MustCompile(`jobs? (?:for you|you may be interested in)`),
	regexp.MustCompile(`\d+ new .{0,60}(?:roles?|jobs?|positions?|opportunit)`),
	regexp.MustCompile(`newsletter`),
	regexp.MustCompile(`webinar`),
	regexp.MustCompile(`(?:upcoming|virtual|join us for (?:an|our|the)) event`),
	regexp.MustCompile(`cron(?: job)?.{0,40}fail`),
	// Job-feed formatting: a quoted posting title followed by a colon.
	regexp.MustCompile(`"[^"]{2,80}"\s*:`),
}

// IsConfirmation reports whether the message text reads like a job
// application confirmation. Empty subject and body are fine and classify
// as false.
func IsConfirmation(subject, body string) bool {
	text := Normalize(subject) + " " + Normalize(body)

	positive := false
	for _, re := range positivePatterns {
		if re.MatchString(text) {
			positive = true
			break
		}
	}
	if !positive {
		return false
	}

	for _, re := range negativePatterns {
		if re.MatchString(text) {
			return false
		}
	}
	return true
}

// Normalize flattens markup and typography so the pattern sets only have to
// deal with plain lower-case text.
func Normalize(s string) string {
	s = tagRe.ReplaceAllString(s, " ")

	replacer := strings.NewReplacer(
		"&nbsp;", " ",
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"‘", "'",
		"’", "'",
		"“", `"`,
		"”", `"`,
	)
	s = replacer.Replace(s)

	s = strings.Join(strings.Fields(s), " ")
	return strings.ToLower(s)
}
