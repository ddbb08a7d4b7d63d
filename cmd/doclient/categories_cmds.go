package main

import (
	"fmt"

	doclient "github.com/goliatone/go-doclient"
	"github.com/spf13/cobra"
)

func newCategoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "categories",
		Short:       "List and manage categories",
		Annotations: requiresAuth,
	}
	cmd.AddCommand(
		newCategoriesListCmd(),
		newCategoryWriteCmd("create", "Create a category", false),
		newCategoryWriteCmd("update", "Rename a category", true),
		newCategoriesDeleteCmd(),
	)
	return cmd
}

func newCategoriesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			categories := clientFrom(cmd).Categories
			if err := categories.FetchCategories(cmd.Context()); err != nil {
				return failure(categories.LastError(), err)
			}
			return render(cmd, categories.Items())
		},
	}
}

func newCategoryWriteCmd(action, short string, withID bool) *cobra.Command {
	var in doclient.CategoryInput

	use, argCheck := action, cobra.NoArgs
	if withID {
		use, argCheck = action+" ID", cobra.ExactArgs(1)
	}

	cmd := &cobra.Command{
		Use:         use,
		Short:       short,
		Args:        argCheck,
		Annotations: requiresAdmin,
		RunE: func(cmd *cobra.Command, args []string) error {
			categories := clientFrom(cmd).Categories

			var err error
			if withID {
				var id int64
				if id, err = parseID(args[0]); err != nil {
					return err
				}
				err = categories.UpdateCategory(cmd.Context(), id, in)
			} else {
				err = categories.CreateCategory(cmd.Context(), in)
			}
			if err != nil {
				return failure(categories.LastError(), err)
			}
			return render(cmd, categories.Items())
		},
	}

	cmd.Flags().StringVarP(&in.Name, "name", "n", "", "category name")
	cmd.Flags().StringVarP(&in.Description, "description", "d", "", "category description")
	return cmd
}

func newCategoriesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "delete ID",
		Short:       "Delete an empty category",
		Args:        cobra.ExactArgs(1),
		Annotations: requiresAdmin,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			categories := clientFrom(cmd).Categories
			if err := categories.DeleteCategory(cmd.Context(), id); err != nil {
				return failure(categories.LastError(), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted category %d\n", id)
			return nil
		},
	}
}
