// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package llm

import "regexp"

var thinkBlock = regexp.MustCompile(`(?is)<think>.*?</think>`)

// StripThinking removes interleaved <think>...</think> segments that some
// reasoning-family models interleave with their answer. Case-insensitive,
// multiline. Must be applied at every adapter boundary, including the
// justifier.
func StripThinking(s string) string {
	return thinkBlock.ReplaceAllString(s, "")
}
