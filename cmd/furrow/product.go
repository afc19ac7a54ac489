package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/aretw0/furrow"
	"github.com/aretw0/furrow/internal/catalog"
	"github.com/aretw0/furrow/pkg/core"
	"github.com/aretw0/furrow/pkg/paging"
	"github.com/aretw0/furrow/pkg/service"
)

var (
	actor string

	addSKU   string
	addName  string
	addPrice int64

	getView bool

	listPage   int
	listSize   int
	listActive bool
	listName   string

	updSKU   string
	updName  string
	updPrice int64
)

var productCmd = &cobra.Command{
	Use:   "product",
	Short: "Manage catalog products",
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid product id %q", arg)
	}
	return id, nil
}

func products(s *session, u *furrow.UnitOfWork) *furrow.Service[*catalog.Product, int64] {
	return furrow.NewService[*catalog.Product, int64](s.Engine, u)
}

var productAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a product",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		in := catalog.ProductInput{SKU: addSKU, Name: addName, PriceCents: addPrice}
		return scoped(cmd.Context(), func(s *session, u *furrow.UnitOfWork) error {
			id, err := products(s, u).Add(cmd.Context(), service.Mapped[*catalog.Product](in), true, actor).Unwrap()
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), map[string]int64{"id": id})
		})
	},
}

var productGetCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Show a product",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return scoped(cmd.Context(), func(s *session, u *furrow.UnitOfWork) error {
			svc := products(s, u)
			if getView {
				v, err := service.GetAs[catalog.ProductView](cmd.Context(), svc.ReadService, id, true).Unwrap()
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), v)
			}
			p, err := svc.Get(cmd.Context(), id).Unwrap()
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), p)
		})
	},
}

func listSpec() core.Spec {
	spec := core.Spec{}
	if listActive {
		spec = catalog.Active()
	}
	if listName != "" {
		spec = spec.And(catalog.Named(listName).Where...)
	}
	return spec
}

var productListCmd = &cobra.Command{
	Use:   "list",
	Short: "List products one page at a time",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return scoped(ctx, func(s *session, u *furrow.UnitOfWork) error {
			svc := products(s, u)
			filter := s.PageFilter(listPage, listSize)
			spec := listSpec()

			total, err := svc.LongCount(ctx, &spec).Unwrap()
			if err != nil {
				return err
			}
			data, err := service.GetBySpecAs[catalog.ProductView](ctx, svc.ReadService, filter.Spec(spec.Asc("id")), true).Unwrap()
			if err != nil {
				return err
			}
			resp, err := paging.New(data, filter, total, s.Links(), "products")
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), resp)
		})
	},
}

var productUpdateCmd = &cobra.Command{
	Use:   "update [id]",
	Short: "Change the SKU, name or price of a product",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		return scoped(cmd.Context(), func(s *session, u *furrow.UnitOfWork) error {
			svc := products(s, u)
			p, err := svc.Get(cmd.Context(), id).Unwrap()
			if err != nil {
				return err
			}
			if flags.Changed("sku") {
				p.SKU = updSKU
			}
			if flags.Changed("name") {
				p.Name = updName
			}
			if flags.Changed("price") {
				p.PriceCents = updPrice
			}
			if err := svc.BeginUpdate(service.Direct(p), false).AsError(); err != nil {
				return err
			}
			n, err := svc.Commit(cmd.Context(), actor).Unwrap()
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), map[string]int{"changes": n})
		})
	},
}

var productDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a product permanently",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return scoped(cmd.Context(), func(s *session, u *furrow.UnitOfWork) error {
			return products(s, u).DeleteByID(cmd.Context(), id, true, actor).AsError()
		})
	},
}

var productDisableCmd = &cobra.Command{
	Use:   "disable [id]",
	Short: "Mark a product inactive, keeping its row",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return scoped(cmd.Context(), func(s *session, u *furrow.UnitOfWork) error {
			return products(s, u).DisableByID(cmd.Context(), id, true, actor).AsError()
		})
	},
}

var productCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Count products",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return scoped(cmd.Context(), func(s *session, u *furrow.UnitOfWork) error {
			spec := listSpec()
			n, err := products(s, u).LongCount(cmd.Context(), &spec).Unwrap()
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), map[string]int64{"count": n})
		})
	},
}

func init() {
	rootCmd.AddCommand(productCmd)
	productCmd.AddCommand(productAddCmd, productGetCmd, productListCmd, productUpdateCmd,
		productDeleteCmd, productDisableCmd, productCountCmd)

	productCmd.PersistentFlags().StringVarP(&actor, "user", "u", "", "Acting user recorded on audited commits")

	productAddCmd.Flags().StringVar(&addSKU, "sku", "", "Stock keeping unit (required)")
	productAddCmd.Flags().StringVar(&addName, "name", "", "Product name (required)")
	productAddCmd.Flags().Int64Var(&addPrice, "price", 0, "Price in cents")
	_ = productAddCmd.MarkFlagRequired("sku")
	_ = productAddCmd.MarkFlagRequired("name")

	productGetCmd.Flags().BoolVar(&getView, "view", false, "Show the public view instead of the full record")

	productListCmd.Flags().IntVar(&listPage, "page", 1, "Page number")
	productListCmd.Flags().IntVar(&listSize, "size", 0, "Page size (0 uses the configured default)")
	for _, c := range []*cobra.Command{productListCmd, productCountCmd} {
		c.Flags().BoolVar(&listActive, "active", false, "Only products that are not disabled")
		c.Flags().StringVar(&listName, "name", "", "Only products whose name contains this text")
	}

	productUpdateCmd.Flags().StringVar(&updSKU, "sku", "", "New stock keeping unit")
	productUpdateCmd.Flags().StringVar(&updName, "name", "", "New name")
	productUpdateCmd.Flags().Int64Var(&updPrice, "price", 0, "New price in cents")
}
