package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/s0up4200/reqflow/field"
	"github.com/s0up4200/reqflow/filter"
	"github.com/s0up4200/reqflow/request"
)

var (
	itemsPath string
	pageParam string
	maxPages  int
)

// pageCmd walks a paged listing
var pageCmd = &cobra.Command{
	Use:   "page <endpoint>",
	Short: "Walk a paged listing and print every item",
	Long: `Request page 1, 2, ... of a listing endpoint until a page comes back
empty, and print the collected items as one JSON list.

  reqflow page orders --items data.list --where 'status == "open"' --max 5`,
	Args:    cobra.ExactArgs(1),
	PreRunE: initializeClient,
	RunE:    runPage,
}

func init() {
	rootCmd.AddCommand(pageCmd)

	pageCmd.Flags().StringVarP(&method, "method", "X", "GET", "HTTP method")
	pageCmd.Flags().StringArrayVarP(&dataArgs, "data", "d", nil, "request data as key.path=value")
	pageCmd.Flags().StringArrayVarP(&headerArgs, "header", "H", nil, "request header as name:value")
	pageCmd.Flags().StringVar(&jqExpr, "jq", "", "jq filter applied to the collected items")
	pageCmd.Flags().StringVar(&where, "where", "", "keep items matching this expression")
	pageCmd.Flags().DurationVar(&timeout, "timeout", 0, "transport timeout per page (default from config)")
	pageCmd.Flags().StringVar(&itemsPath, "items", "list", "dotted path of the items in each page")
	pageCmd.Flags().StringVar(&pageParam, "param", "page", "data key carrying the page number")
	pageCmd.Flags().IntVar(&maxPages, "max", 0, "stop after this many pages; 0 walks to the end")
}

func runPage(cmd *cobra.Command, args []string) error {
	opts, err := callOptions(args[0])
	if err != nil {
		return err
	}

	pagerOpts := []request.PagerOption{
		request.WithItems(field.Path(strings.Split(itemsPath, ".")...)),
		request.WithPageParam(pageParam),
	}
	if where != "" {
		f, err := filter.Compile(where)
		if err != nil {
			return err
		}
		pagerOpts = append(pagerOpts, request.WithTransform(f.Transform(logger)))
	}

	ctx := cmd.Context()
	pager := client.Pager(opts, pagerOpts...)
	if _, err := pager.Reload(ctx); err != nil {
		return fmt.Errorf("failed to load page 1: %w", err)
	}
	for !pager.Done() && (maxPages <= 0 || pager.Page() < maxPages) {
		if _, err := pager.Next(ctx); err != nil {
			return fmt.Errorf("failed to load page %d: %w", pager.Page()+1, err)
		}
	}

	logger.Debug().Int("pages", pager.Page()).Msg("Listing walked")
	return printResult(cmd.OutOrStdout(), pager.Items(), jqExpr)
}
