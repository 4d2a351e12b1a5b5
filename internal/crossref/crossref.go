// Package crossref finds issue keys mentioned in free text such as mail
// subjects.
package crossref

import (
	"regexp"
	"strings"
)

// keyPattern matches issue keys (e.g., TST-123, AB2-1).
var keyPattern = regexp.MustCompile(`\b([A-Z][A-Z0-9]+-\d+)\b`)

// ExtractIssueKeys returns the issue keys found in text, deduplicated and in
// order of first occurrence.
func ExtractIssueKeys(text string) []string {
	matches := keyPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool)
	var result []string
	for _, m := range matches {
		if seen[m] {
			continue
		}
		seen[m] = true
		result = append(result, m)
	}
	return result
}

// ProjectKey returns the project part of an issue key.
func ProjectKey(issueKey string) string {
	i := strings.LastIndexByte(issueKey, '-')
	if i < 0 {
		return ""
	}
	return issueKey[:i]
}

// FirstKey returns the first key found in any of the texts that belongs to
// one of projects. An empty projects set accepts every key.
func FirstKey(projects map[string]bool, texts ...string) (string, bool) {
	for _, text := range texts {
		for _, key := range ExtractIssueKeys(text) {
			if len(projects) == 0 || projects[ProjectKey(key)] {
				return key, true
			}
		}
	}
	return "", false
}
