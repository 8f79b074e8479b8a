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


// Package session keeps conversation history close at hand.
//
// Store layers a ristretto cache over the durable session repository. Each
// cached entry holds the most recent window of one session's messages plus
// the last query rewrite, so the common read pattern of an interactive
// conversation (load a short tail, append a turn, repeat) rarely touches
// disk. Writes are durable first: a message enters the cache only after the
// repository accepted it.
package session
