// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package rag

import (
	"strings"
	"unicode"
)

// repairJSON fixes the quoting mistake small models make most often: an
// object key missing its opening quote, as in `{standalone_question": "x"}`.
// Anything it does not recognize passes through unchanged.
func repairJSON(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s) + 16)

	i := 0
	for i < len(runes) {
		ch := runes[i]
		b.WriteRune(ch)
		i++
		if ch != '{' && ch != ',' {
			continue
		}

		// Keys can only start after { or , and optional whitespace.
		for i < len(runes) && unicode.IsSpace(runes[i]) {
			b.WriteRune(runes[i])
			i++
		}
		if i >= len(runes) || runes[i] == '"' || !isKeyRune(runes[i]) {
			continue
		}

		start := i
		for i < len(runes) && (isKeyRune(runes[i]) || runes[i] == ' ') {
			i++
		}
		key := string(runes[start:i])

		// An unquoted run ending in ": is a key that lost its opening quote.
		if i+1 < len(runes) && runes[i] == '"' && runes[i+1] == ':' {
			b.WriteRune('"')
			b.WriteString(strings.TrimRight(key, " "))
		} else {
			b.WriteString(key)
		}
	}

	return b.String()
}

func isKeyRune(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}
