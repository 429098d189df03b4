package source

import "strings"

// blockMarkers are phrases that anti-bot interstitials put in their title or
// body. Matching is diagnostic only.
var blockMarkers = []string{
	"captcha",
	"access denied",
	"are you a robot",
	"unusual traffic",
	"verify you are human",
	"security check",
	"request blocked",
	"just a moment",
	"attention required",
	"pardon our interruption",
}

// DetectBlock reports whether a page looks like a bot-detection block page
// and returns the marker that matched.
func DetectBlock(title, body string) (string, bool) {
	hay := strings.ToLower(title + "\n" + body)
	for _, m := range blockMarkers {
		if strings.Contains(hay, m) {
			return m, true
		}
	}
	return "", false
}
