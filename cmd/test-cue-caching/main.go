package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/dpup/prefab/logging"

	"github.com/dpup/geonav/server/internal/cache"
	"github.com/dpup/geonav/server/internal/lib/guidance"
)

// slowCondenser stands in for OpenAI so caching can be tested without an API key
type slowCondenser struct {
	calls int
}

func (m *slowCondenser) Condense(ctx context.Context, instruction string) (guidance.Cue, error) {
	// Simulate model latency
	time.Sleep(100 * time.Millisecond)
	m.calls++

	cue, err := guidance.NewRuleCondenser().Condense(ctx, instruction)
	cue.Source = guidance.SourceOpenAI
	return cue, err
}

func (m *slowCondenser) HealthCheck(ctx context.Context) error {
	return nil
}

func main() {
	fmt.Println("Testing Content-Based Cue Caching")

	// Initialize cache
	mainCache := cache.NewCache()
	cueCache := cache.NewCueCacheAdapter(mainCache)
	hasher := guidance.NewContentHasher()

	// Same step, different markup, case and abbreviations
	instruction1 := "Turn <b>left</b> onto <b>Ocean Ave</b>"
	instruction2 := "TURN LEFT ONTO OCEAN AVENUE"
	instruction3 := "Turn <b>right</b> onto <b>Main St</b>"

	hash1 := hasher.HashInstruction(instruction1)
	hash2 := hasher.HashInstruction(instruction2)
	hash3 := hasher.HashInstruction(instruction3)

	fmt.Printf("Instruction 1 hash: %s\n", hash1[:8])
	fmt.Printf("Instruction 2 hash: %s\n", hash2[:8])
	fmt.Printf("Instruction 3 hash: %s\n", hash3[:8])

	if hash1 == hash2 {
		fmt.Println("✅ Equivalent instructions correctly share a hash")
	} else {
		fmt.Println("❌ Equivalent instructions have different hashes")
	}

	if hash1 != hash3 {
		fmt.Println("✅ Different instructions correctly have different hashes")
	} else {
		fmt.Println("❌ Different instructions incorrectly share a hash")
	}

	fmt.Println("\nTesting Cached Condenser:")

	model := &slowCondenser{}
	condenser := guidance.NewCachedCondenser(model, cueCache, guidance.DefaultCueTTL)
	ctx := logging.EnsureLogger(context.Background())

	for i, instruction := range []string{instruction1, instruction2, instruction3, instruction1} {
		start := time.Now()
		cue, err := condenser.Condense(ctx, instruction)
		if err != nil {
			log.Fatalf("Condense failed: %v", err)
		}
		fmt.Printf("  %d. %-40q -> %-28q %s\n", i+1, instruction, cue.Text, time.Since(start).Round(time.Millisecond))
	}

	if model.calls == 2 {
		fmt.Println("✅ Content deduplication working - model called once per distinct step")
	} else {
		fmt.Printf("❌ Expected 2 model calls, got %d\n", model.calls)
	}

	if cueCache.IsCueCached(hash3) {
		fmt.Println("✅ Condensed cue found in cache")
	} else {
		fmt.Println("❌ Condensed cue missing from cache")
	}

	stats := mainCache.Stats()
	fmt.Printf("\nCache stats: %d entries, %d hits, %d misses\n", stats.TotalEntries, stats.Hits, stats.Misses)

	fmt.Println("\n🎉 Cue caching test completed")
}
