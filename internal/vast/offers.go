package vast

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/vastctl/vastctl/internal/slogger"
)

// OfferQuery describes a GPU offer search. GPUType accepts user-facing
// aliases ("RTX5090", "a100") which are expanded to the marketplace's
// gpu_name spellings before querying.
type OfferQuery struct {
	GPUType        string
	NumGPUs        int
	MinBandwidth   float64 // Mbps
	MaxPrice       float64 // $/hr
	MinReliability float64 // 0..1
	DiskGB         int
}

// CPUQuery describes a CPU-only offer search.
type CPUQuery struct {
	MinCPUs        int
	MinRAMGB       int
	MaxPrice       float64
	MinReliability float64
	DiskGB         int
}

// gpuVariants maps normalized user input to the gpu_name values the
// marketplace actually uses ("RTX 3090", "H100 SXM", "A100-SXM4-80GB").
var gpuVariants = map[string][]string{
	"A100":      {"A100", "A100 SXM", "A100 PCIE", "A100-SXM4-80GB", "A100-PCIE-40GB"},
	"H200":      {"H200", "H200 SXM", "H200 NVL"},
	"H100":      {"H100", "H100 SXM", "H100 PCIE", "H100 NVL"},
	"L40S":      {"L40S"},
	"RTX5090":   {"RTX 5090"},
	"RTX5080":   {"RTX 5080"},
	"RTX5070TI": {"RTX 5070 Ti"},
	"RTX5070":   {"RTX 5070"},
	"RTX4090":   {"RTX 4090"},
	"RTX4080S":  {"RTX 4080S"},
	"RTX4080":   {"RTX 4080"},
	"RTX4070TI": {"RTX 4070 Ti", "RTX 4070S Ti"},
	"RTX4070":   {"RTX 4070", "RTX 4070S"},
	"RTX3090":   {"RTX 3090"},
}

// GPUVariants expands a user-facing GPU type into the marketplace's
// gpu_name spellings. Unknown types pass through unchanged.
func GPUVariants(gpuType string) []string {
	key := strings.ReplaceAll(strings.ToUpper(gpuType), " ", "")
	if variants, ok := gpuVariants[key]; ok {
		return variants
	}
	return []string{gpuType}
}

// KnownGPUTypes returns the user-facing GPU aliases, sorted.
func KnownGPUTypes() []string {
	types := make([]string, 0, len(gpuVariants))
	for k := range gpuVariants {
		types = append(types, k)
	}
	sort.Strings(types)
	return types
}

// SearchOffers queries every variant of the requested GPU type and merges
// the results, deduplicating by offer ID. Individual variant queries that
// fail are skipped; an error is returned only when every variant failed.
// Results are sorted by hourly price ascending.
func (a *api) SearchOffers(ctx context.Context, q OfferQuery) ([]Offer, error) {
	log := slogger.FromContext(ctx)
	variants := GPUVariants(q.GPUType)

	var (
		merged  []Offer
		seen    = make(map[int64]struct{})
		lastErr error
		failed  int
	)

	for _, variant := range variants {
		offers, err := a.searchVariant(ctx, variant, q)
		if err != nil {
			log.Warn("offer search failed for variant", "gpu", variant, "error", err)
			lastErr = err
			failed++
			continue
		}
		for _, offer := range offers {
			if _, ok := seen[offer.ID]; ok {
				continue
			}
			seen[offer.ID] = struct{}{}
			merged = append(merged, offer)
		}
	}

	if failed == len(variants) && lastErr != nil {
		return nil, fmt.Errorf("search offers for %q: %w", q.GPUType, lastErr)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Price() < merged[j].Price()
	})
	return merged, nil
}

func (a *api) searchVariant(ctx context.Context, gpuName string, q OfferQuery) ([]Offer, error) {
	params := map[string]any{
		"verified": map[string]any{"eq": true},
		"rentable": map[string]any{"eq": true},
		"gpu_name": map[string]any{"eq": gpuName},
		"num_gpus": map[string]any{"eq": q.NumGPUs},
	}
	if q.DiskGB > 0 {
		params["disk_space"] = map[string]any{"gte": q.DiskGB}
	}
	if q.MinBandwidth > 0 {
		params["inet_down"] = map[string]any{"gte": q.MinBandwidth}
	}
	if q.MaxPrice > 0 {
		params["dph_total"] = map[string]any{"lte": q.MaxPrice}
	}
	if q.MinReliability > 0 {
		params["reliability2"] = map[string]any{"gte": q.MinReliability}
	}

	var resp struct {
		Offers []Offer `json:"offers"`
	}
	if err := a.client.do(ctx, http.MethodPost, "/bundles/", nil, params, &resp); err != nil {
		return nil, err
	}
	return resp.Offers, nil
}

// SearchCPUOffers queries CPU-only offers. The marketplace sometimes
// returns listings below the requested floor, so requirements are
// re-checked client-side. cpu_ram is MB on the wire.
func (a *api) SearchCPUOffers(ctx context.Context, q CPUQuery) ([]Offer, error) {
	minRAMMB := float64(q.MinRAMGB) * 1024

	params := map[string]any{
		"verified":  map[string]any{"eq": true},
		"rentable":  map[string]any{"eq": true},
		"cpu_cores": map[string]any{"gte": q.MinCPUs},
		"cpu_ram":   map[string]any{"gte": minRAMMB},
	}
	if q.DiskGB > 0 {
		params["disk_space"] = map[string]any{"gte": q.DiskGB}
	}
	if q.MaxPrice > 0 {
		params["dph_total"] = map[string]any{"lte": q.MaxPrice}
	}
	if q.MinReliability > 0 {
		params["reliability2"] = map[string]any{"gte": q.MinReliability}
	}

	var resp struct {
		Offers []Offer `json:"offers"`
	}
	if err := a.client.do(ctx, http.MethodPost, "/bundles/", nil, params, &resp); err != nil {
		return nil, fmt.Errorf("search cpu offers: %w", err)
	}

	var filtered []Offer
	for _, offer := range resp.Offers {
		if offer.Cores() >= float64(q.MinCPUs) && offer.CPURAM >= minRAMMB && offer.Reliability >= q.MinReliability {
			filtered = append(filtered, offer)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Price() < filtered[j].Price()
	})
	return filtered, nil
}

// ScoreOffer computes the effective price of an offer. Bandwidth discounts
// up to 30% and reliability up to 20%, so a slightly pricier offer on a
// fast, dependable host can outrank the cheapest listing.
func ScoreOffer(o Offer) float64 {
	bandwidthBonus := o.InetDown / 1000
	if bandwidthBonus > 0.3 {
		bandwidthBonus = 0.3
	}
	reliabilityBonus := o.Reliability * 0.2
	return o.Price() * (1 - bandwidthBonus - reliabilityBonus)
}

// RankOffers sorts offers in place by effective price ascending, breaking
// ties in favor of higher bandwidth.
func RankOffers(offers []Offer) {
	sort.SliceStable(offers, func(i, j int) bool {
		si, sj := ScoreOffer(offers[i]), ScoreOffer(offers[j])
		if si != sj {
			return si < sj
		}
		return offers[i].InetDown > offers[j].InetDown
	})
}
