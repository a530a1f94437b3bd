// Package sentinel watches live audio transcripts for safety keywords.
// Transcription itself is an external collaborator; this package owns the
// keyword set, transcript hygiene, buffering, and alert decisions.
package sentinel

import (
	"strings"

	"urbanflow/internal/logging"
)

// DefaultKeywords is always active regardless of user configuration.
var DefaultKeywords = []string{"help", "emergency", "save me"}

// transcription artifacts that show up on silence or music; a transcript
// containing one is discarded wholesale.
var hallucinationMarkers = []string{
	"thank you", "subtitles by", "captioned by",
	"copyright", "audio", "amara.org", "community",
}

// shortWhitelist: the only transcripts below the minimum length worth keeping.
var shortWhitelist = map[string]bool{"no": true, "go": true}

// CleanKeywords normalizes a user's stored keyword list: quotes stripped,
// whitespace trimmed, empties dropped, defaults merged in, duplicates
// removed. Order is deterministic: defaults first, then user keywords in
// input order. A nil defaults slice falls back to DefaultKeywords.
func CleanKeywords(defaults, userKeywords []string) []string {
	if defaults == nil {
		defaults = DefaultKeywords
	}
	seen := make(map[string]bool)
	out := make([]string, 0, len(defaults)+len(userKeywords))
	for _, k := range defaults {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" && !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	for _, k := range userKeywords {
		clean := strings.TrimSpace(strings.NewReplacer(`"`, "", `'`, "").Replace(k))
		clean = strings.ToLower(clean)
		if clean == "" || seen[clean] {
			continue
		}
		seen[clean] = true
		out = append(out, clean)
	}
	return out
}

// FilterTranscript discards hallucinated or too-short transcripts. Returns
// the trimmed transcript, or "" when it should be ignored.
func FilterTranscript(raw string, minLen int) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}
	lower := strings.ToLower(text)
	for _, marker := range hallucinationMarkers {
		if strings.Contains(lower, marker) {
			logging.SentinelWarn("discarding hallucinated transcript: %q", text)
			return ""
		}
	}
	if len(lower) < minLen && !shortWhitelist[lower] {
		return ""
	}
	return text
}

// MatchKeyword returns the first active keyword present in the transcript,
// case-insensitive, or "" when none match.
func MatchKeyword(transcript string, keywords []string) string {
	lower := strings.ToLower(transcript)
	for _, k := range keywords {
		if k != "" && strings.Contains(lower, strings.ToLower(k)) {
			return k
		}
	}
	return ""
}
