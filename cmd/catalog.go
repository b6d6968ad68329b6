package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"storefront-service/internal/domain"
	"storefront-service/internal/pricing"
	"storefront-service/internal/store"
)

var (
	catalogCategory string
	catalogFeatured string
	catalogSort     string
	catalogCurrency string
	catalogJSON     bool
)

// catalogCmd groups read-only catalog commands.
var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect the product catalog",
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List products, optionally filtered and sorted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := listFilter(catalogCategory, catalogFeatured, catalogSort)
		if err != nil {
			return err
		}
		products, err := openCatalog()
		if err != nil {
			return err
		}
		list, err := products.ListProducts(cmd.Context(), filter)
		if err != nil {
			return err
		}
		return printProducts(cmd.OutOrStdout(), list)
	},
}

var catalogSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search products by name, description or category",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		products, err := openCatalog()
		if err != nil {
			return err
		}
		list, err := products.SearchProducts(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		return printProducts(cmd.OutOrStdout(), list)
	},
}

var catalogShowCmd = &cobra.Command{
	Use:   "show <id-or-slug>",
	Short: "Show one product by id or slug",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		products, err := openCatalog()
		if err != nil {
			return err
		}
		p, err := store.GetProduct(cmd.Context(), products, args[0])
		if err != nil {
			return err
		}
		return printProduct(cmd.OutOrStdout(), p)
	},
}

func init() {
	catalogListCmd.Flags().StringVar(&catalogCategory, "category", "", "Filter by category (hoodies, tees, jackets, accessories)")
	catalogListCmd.Flags().StringVar(&catalogFeatured, "featured", "", "Filter by featured flag (true or false)")
	catalogListCmd.Flags().StringVar(&catalogSort, "sort", "", "Sort order: "+sortChoices())
	catalogCmd.PersistentFlags().StringVar(&catalogCurrency, "currency", "", "Display currency (GBP, USD, EUR); defaults to DISPLAY_CURRENCY")
	catalogCmd.PersistentFlags().BoolVar(&catalogJSON, "json", false, "Print JSON instead of a table")

	catalogCmd.AddCommand(catalogListCmd)
	catalogCmd.AddCommand(catalogSearchCmd)
	catalogCmd.AddCommand(catalogShowCmd)
}

func openCatalog() (*store.MemoryCatalog, error) {
	products, err := loadProducts(cfg)
	if err != nil {
		return nil, err
	}
	return store.NewMemoryCatalog(products)
}

// listFilter builds a store filter from the list flags.
func listFilter(category, featured, sortBy string) (store.ProductFilter, error) {
	var filter store.ProductFilter
	category = strings.ToLower(strings.TrimSpace(category))
	if category != "" && category != "all" {
		c := domain.Category(category)
		if !c.Valid() {
			return filter, fmt.Errorf("unknown category %q", category)
		}
		filter.Category = &c
	}
	switch strings.ToLower(strings.TrimSpace(featured)) {
	case "":
	case "true":
		v := true
		filter.Featured = &v
	case "false":
		v := false
		filter.Featured = &v
	default:
		return filter, fmt.Errorf("--featured must be true or false, got %q", featured)
	}
	filter.Sort = strings.ToLower(strings.TrimSpace(sortBy))
	if !slices.Contains(store.SortOptions, filter.Sort) {
		return filter, fmt.Errorf("--sort must be one of %s, got %q", sortChoices(), sortBy)
	}
	return filter, nil
}

// sortChoices lists the named sort orders for help and error text.
func sortChoices() string {
	var names []string
	for _, opt := range store.SortOptions {
		if opt != store.SortDefault {
			names = append(names, opt)
		}
	}
	return strings.Join(names, ", ")
}

func displayCurrency() (pricing.Currency, error) {
	if catalogCurrency == "" {
		return cfg.Currency(), nil
	}
	return pricing.ParseCurrency(catalogCurrency)
}

func printProducts(w io.Writer, products []domain.Product) error {
	if catalogJSON {
		return writeJSON(w, products)
	}
	currency, err := displayCurrency()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSLUG\tNAME\tCATEGORY\tPRICE\tFEATURED")
	for _, p := range products {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%t\n",
			p.ID, p.Slug, p.Name, p.Category, pricing.Format(p.Price, currency), p.Featured)
	}
	return tw.Flush()
}

func printProduct(w io.Writer, p *domain.Product) error {
	if catalogJSON {
		return writeJSON(w, p)
	}
	currency, err := displayCurrency()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\t%s\n", p.ID)
	fmt.Fprintf(tw, "Slug\t%s\n", p.Slug)
	fmt.Fprintf(tw, "Name\t%s\n", p.Name)
	fmt.Fprintf(tw, "Category\t%s\n", p.Category)
	fmt.Fprintf(tw, "Price\t%s\n", pricing.Format(p.Price, currency))
	if p.CompareAtPrice != nil {
		fmt.Fprintf(tw, "Was\t%s\n", pricing.Format(*p.CompareAtPrice, currency))
	}
	fmt.Fprintf(tw, "Sizes\t%s\n", strings.Join(sizeCodes(p.Sizes), ", "))
	fmt.Fprintf(tw, "Colors\t%s\n", strings.Join(colorNames(p.Colors), ", "))
	fmt.Fprintf(tw, "Stock\t%d\n", p.Stock)
	fmt.Fprintf(tw, "Featured\t%t\n", p.Featured)
	fmt.Fprintf(tw, "Description\t%s\n", p.Description)
	return tw.Flush()
}

func sizeCodes(sizes []domain.Size) []string {
	out := make([]string, 0, len(sizes))
	for _, s := range sizes {
		code := s.Code
		if !s.InStock {
			code += " (sold out)"
		}
		out = append(out, code)
	}
	return out
}

func colorNames(colors []domain.Color) []string {
	out := make([]string, 0, len(colors))
	for _, c := range colors {
		name := c.Name
		if !c.InStock {
			name += " (sold out)"
		}
		out = append(out, name)
	}
	return out
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
