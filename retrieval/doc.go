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


// Package retrieval provides the candidate production half of the answer
// pipeline: dense and sparse retrieval, fusion, hydration, and adaptive
// truncation.
//
// The stages compose in a fixed order:
//   - DenseRetriever: inner-product search over segment vectors, with
//     parent promotion for hierarchical corpora
//   - SparseRetriever: BM25 lexical scoring over an in-process index
//   - FuseCandidates: order-preserving merge with (doc, segment) dedup
//   - Hydrator: batched content lookup with a server-side permission
//     recheck
//   - AdaptiveRanker: relevance threshold plus score-cliff truncation
//     over cross-encoder scores
//
// Every stage honors the caller's core.SegmentFilter, so a candidate the
// caller may not read never survives past the stage that notices.
package retrieval
