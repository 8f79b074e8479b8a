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


// Package rag answers conversational questions over the knowledge base.
//
// Orchestrator is the entry point. One request flows through validation,
// permission resolution, history loading, query rewriting, hybrid dense and
// sparse retrieval, fusion, hydration, cross-encoder reranking, adaptive
// truncation, context assembly, generation, the no-information guardrail
// and session persistence.
//
// The pipeline degrades rather than fails wherever it can. Only three
// things stop a request: invalid input (core.ErrValidation), a generation
// failure (core.ErrGeneration) and a session write failure
// (core.ErrPersistence). Retrieval-side faults, including a dead embedding
// or rerank service, reduce the candidate set and leave the rest of the
// request running; with nothing retrieved the guardrail pins the answer to
// NoInformationAnswer.
//
// All model traffic runs on one bounded worker pool, so concurrent
// requests cannot open more upstream connections than the pool allows.
package rag
