package httpscenario

import (
	"strconv"
	"strings"
)

// expand replaces {{session}}, {{worker}} and {{token}} in template with the
// session's values. Other placeholders are left unchanged.
func (s *session) expand(template string, workerID int) string {
	if !strings.Contains(template, "{{") {
		return template
	}
	values := map[string]string{
		"session": s.id,
		"worker":  strconv.Itoa(workerID),
		"token":   s.token,
	}
	result := template
	for key, value := range values {
		result = strings.ReplaceAll(result, "{{"+key+"}}", value)
	}
	return result
}
