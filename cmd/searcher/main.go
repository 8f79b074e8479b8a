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


package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/poiesic/askit"
	"github.com/poiesic/askit/core"
	"github.com/poiesic/askit/rag"
)

var (
	dbPath = flag.String("db", "./askit_db", "path to the database directory")
	perms  = flag.String("perms", "eng,hr,sales", "comma-separated permission tokens")
)

func init() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})
	slog.SetDefault(slog.New(handler))
	flag.Parse()
}

// stageMonitor prints what each retrieval stage produced.
type stageMonitor struct{}

func (m *stageMonitor) Start(query string) {
	fmt.Printf("query: %q\n", query)
}

func (m *stageMonitor) AfterResolve(scope core.PermissionScope, allowedDocs int) {
	if scope.IsUnrestricted() {
		fmt.Printf("scope: unrestricted, %d documents\n", allowedDocs)
		return
	}
	fmt.Printf("scope: [%s], %d documents in scope\n", strings.Join(scope.Tokens(), " "), allowedDocs)
}

func (m *stageMonitor) AfterRewrite(_, rewritten string) {
	fmt.Printf("rewritten: %q\n", rewritten)
}

func (m *stageMonitor) AfterRetrieve(denseHits, sparseHits, fused int) {
	fmt.Printf("retrieved: %d dense, %d sparse, %d fused\n", denseHits, sparseHits, fused)
}

func (m *stageMonitor) AfterHydrate(candidates []core.HydratedCandidate) {
	fmt.Printf("hydrated: %d candidates\n", len(candidates))
}

func (m *stageMonitor) AfterRerank(candidates []core.RankedCandidate) {
	fmt.Printf("reranked: %d candidates\n", len(candidates))
	for i, c := range candidates {
		fmt.Printf("  %d: [%0.3f] %s\n", i, c.RerankScore, snippet(c.Content))
	}
}

func (m *stageMonitor) AfterSelect(kept []core.RankedCandidate) {
	fmt.Printf("kept: %d past the score cliff\n", len(kept))
}

func (m *stageMonitor) AfterGuardrail(_ bool) {}

func (m *stageMonitor) Finish(_ *rag.Answer, _ error) {}

// snippet flattens and truncates content for one-line display.
func snippet(content string) string {
	flat := strings.Join(strings.Fields(content), " ")
	if len(flat) > 72 {
		return flat[:69] + "..."
	}
	return flat
}

func main() {
	engine, err := askit.Open(*dbPath)
	if err != nil {
		panic(err)
	}
	defer engine.Close()

	query := "maintenance window slack tide"
	if flag.NArg() > 0 {
		query = strings.Join(flag.Args(), " ")
	}

	var permissions []string
	if *perms != "" {
		permissions = strings.Split(*perms, ",")
	}

	ctx := context.Background()
	kept, err := engine.Retrieve(ctx, query, permissions, &stageMonitor{})
	if err != nil {
		panic(err)
	}

	fmt.Printf("\nFound %d hits\n", len(kept))
	for i, hit := range kept {
		fmt.Printf("%d: '%s' (%s)[%0.3f]\n", i, snippet(hit.Content), hit.DocumentSource, hit.RerankScore)
	}
}
