package registry

import (
	"fmt"
	"strings"

	"github.com/sawpanic/llmconsensus/internal/provider"
)

// DisplayStartupBanner prints a box-drawn summary of every registered
// adapter's health, the same operator-facing view the teacher prints at
// boot, adapted from per-exchange rate-limit/budget columns down to the
// state this registry actually tracks.
func (r *Registry) DisplayStartupBanner() {
	adapters := r.All()

	fmt.Println()
	fmt.Println("┌─────────────────────────────────────────────┐")
	fmt.Println("│         LLM Consensus — Provider Health      │")
	fmt.Println("└─────────────────────────────────────────────┘")
	fmt.Println()

	active := 0
	for _, a := range adapters {
		switch a.Status().State() {
		case provider.StateActive, provider.StateDegraded:
			active++
		}
	}
	fmt.Printf("System: %d/%d providers available\n\n", active, len(adapters))

	fmt.Println(strings.Repeat("─", 55))
	fmt.Printf("%-12s │ %-14s │ %-10s │ %s\n", "Provider", "State", "Weight", "Requests")
	fmt.Println(strings.Repeat("─", 55))

	for _, a := range adapters {
		snap := a.Status().Snapshot()
		fmt.Printf("%-12s │ %-14s │ %-10.2f │ %d (%.1f%% err)\n",
			a.Name(), snap.State, a.Weight(), snap.RequestsTotal, snap.ErrorRate*100)
	}
	fmt.Println(strings.Repeat("─", 55))
	fmt.Println()
}
