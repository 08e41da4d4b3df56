package lifecycle

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// GenerateProjectKey builds a short display key from a project name: the
// first three alphanumeric characters uppercased ("PRJ" when the name has
// none), a hyphen, then suffixLen uppercase hex characters from a random
// UUID. Keys are not checked for uniqueness.
func GenerateProjectKey(name string, suffixLen int) string {
	var prefix []rune
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			prefix = append(prefix, unicode.ToUpper(r))
			if len(prefix) == 3 {
				break
			}
		}
	}
	if len(prefix) == 0 {
		prefix = []rune("PRJ")
	}

	hex := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	if suffixLen > len(hex) {
		suffixLen = len(hex)
	}

	return string(prefix) + "-" + hex[:suffixLen]
}
