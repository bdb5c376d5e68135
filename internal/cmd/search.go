package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vastctl/vastctl/internal/vast"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search GPU offers on the marketplace",
	Long: `Search rentable GPU offers and rank them the same way 'start' does:
by hourly price adjusted for bandwidth and host reliability. The top
offer here is the one 'start' would rent.`,
	Example: `  # Offers for the configured default GPU
  vastctl search

  # 4x RTX 4090 under $2/hr
  vastctl search --gpu-type RTX4090 --num-gpus 4 --price-max 2`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := requireConfig(cmd.Context())
		if err != nil {
			return err
		}
		api, err := newAPI(cfg)
		if err != nil {
			return err
		}

		gpuType, _ := cmd.Flags().GetString("gpu-type")
		if gpuType == "" {
			gpuType = cfg.DefaultGPUType
		}
		numGPUs, _ := cmd.Flags().GetInt("num-gpus")
		priceMax, _ := cmd.Flags().GetFloat64("price-max")
		if priceMax == 0 {
			priceMax = cfg.Defaults.PriceMax
		}
		bandwidthMin, _ := cmd.Flags().GetFloat64("bandwidth-min")
		if bandwidthMin == 0 {
			bandwidthMin = cfg.Defaults.BandwidthMin
		}
		reliabilityMin, _ := cmd.Flags().GetFloat64("reliability-min")
		if reliabilityMin == 0 {
			reliabilityMin = cfg.Defaults.ReliabilityMin
		}
		disk, _ := cmd.Flags().GetInt("disk")
		if disk == 0 {
			disk = cfg.DefaultDiskGB
		}

		offers, err := api.SearchOffers(cmd.Context(), vast.OfferQuery{
			GPUType:        gpuType,
			NumGPUs:        numGPUs,
			MinBandwidth:   bandwidthMin,
			MaxPrice:       priceMax,
			MinReliability: reliabilityMin,
			DiskGB:         disk,
		})
		if err != nil {
			return fmt.Errorf("search offers: %w", err)
		}

		limit, _ := cmd.Flags().GetInt("limit")
		return printOffers(offers, limit)
	},
}

var searchCPUCmd = &cobra.Command{
	Use:   "search-cpu",
	Short: "Search CPU-only offers on the marketplace",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := requireConfig(cmd.Context())
		if err != nil {
			return err
		}
		api, err := newAPI(cfg)
		if err != nil {
			return err
		}

		cpus, _ := cmd.Flags().GetInt("cpus")
		ram, _ := cmd.Flags().GetInt("ram")
		priceMax, _ := cmd.Flags().GetFloat64("price-max")
		if priceMax == 0 {
			priceMax = cfg.Defaults.PriceMax
		}
		disk, _ := cmd.Flags().GetInt("disk")
		if disk == 0 {
			disk = cfg.DefaultDiskGB
		}

		reliabilityMin, _ := cmd.Flags().GetFloat64("reliability-min")
		if reliabilityMin == 0 {
			reliabilityMin = cfg.Defaults.ReliabilityMin
		}

		offers, err := api.SearchCPUOffers(cmd.Context(), vast.CPUQuery{
			MinCPUs:        cpus,
			MinRAMGB:       ram,
			MaxPrice:       priceMax,
			MinReliability: reliabilityMin,
			DiskGB:         disk,
		})
		if err != nil {
			return fmt.Errorf("search cpu offers: %w", err)
		}

		limit, _ := cmd.Flags().GetInt("limit")
		return printOffers(offers, limit)
	},
}

func printOffers(offers []vast.Offer, limit int) error {
	if len(offers) == 0 {
		fmt.Println("No offers found")
		return nil
	}

	vast.RankOffers(offers)
	if limit > 0 && len(offers) > limit {
		offers = offers[:limit]
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "OFFER\tGPU\tCPU\tRAM\tPRICE\tDOWN\tRELIABILITY\tLOCATION")
	for _, o := range offers {
		gpuCol := "-"
		if o.GPUName != "" {
			gpuCol = fmt.Sprintf("%dx %s", o.NumGPUs, o.GPUName)
		}
		fmt.Fprintf(w, "%d\t%s\t%.0f\t%.0f GB\t$%.3f/hr\t%.0f Mbps\t%.2f\t%s\n",
			o.ID, gpuCol, o.Cores(), o.CPURAM/1024, o.Price(), o.InetDown, o.Reliability, o.Geolocation)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(searchCPUCmd)

	searchCmd.Flags().StringP("gpu-type", "g", "", "GPU type to search for")
	searchCmd.Flags().IntP("num-gpus", "n", 1, "number of GPUs")
	searchCmd.Flags().Float64("price-max", 0, "maximum hourly price in dollars")
	searchCmd.Flags().Float64("bandwidth-min", 0, "minimum download bandwidth in Mbps")
	searchCmd.Flags().Float64("reliability-min", 0, "minimum host reliability (0..1)")
	searchCmd.Flags().IntP("disk", "d", 0, "disk size in GB")
	searchCmd.Flags().Int("limit", 20, "maximum offers to show")

	searchCPUCmd.Flags().Int("cpus", 16, "minimum CPU cores")
	searchCPUCmd.Flags().Int("ram", 64, "minimum RAM in GB")
	searchCPUCmd.Flags().Float64("price-max", 0, "maximum hourly price in dollars")
	searchCPUCmd.Flags().Float64("reliability-min", 0, "minimum host reliability (0..1)")
	searchCPUCmd.Flags().IntP("disk", "d", 0, "disk size in GB")
	searchCPUCmd.Flags().Int("limit", 20, "maximum offers to show")
}
