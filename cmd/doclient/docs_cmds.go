package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	doclient "github.com/goliatone/go-doclient"
	"github.com/spf13/cobra"
)

func newDocsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "docs",
		Aliases:     []string{"documents"},
		Short:       "List and manage documents",
		Annotations: requiresAuth,
	}
	cmd.AddCommand(
		newDocsListCmd(),
		newDocsGetCmd(),
		newDocsPreviewCmd(),
		newDocsUploadCmd(),
		newDocsUpdateCmd(),
		newDocsDeleteCmd(),
		newDocsDownloadCmd(),
	)
	return cmd
}

func newDocsListCmd() *cobra.Command {
	var params doclient.ListParams

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List one page of documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			docs := clientFrom(cmd).Documents
			if err := docs.FetchDocuments(cmd.Context(), params); err != nil {
				return failure(docs.LastError(), err)
			}
			return render(cmd, map[string]any{
				"documents":  docs.Items(),
				"pagination": docs.Pagination(),
			})
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&params.Page, "page", 0, "page number")
	flags.IntVar(&params.PerPage, "limit", 0, "documents per page")
	flags.StringVarP(&params.Keyword, "keyword", "k", "", "match title or description")
	flags.Int64Var(&params.CategoryID, "category", 0, "category id")
	flags.StringVar(&params.FileType, "type", "", "file extension")
	flags.BoolVar(&params.MyDocuments, "mine", false, "only documents I created")
	return cmd
}

func newDocsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show one document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			docs := clientFrom(cmd).Documents
			doc, err := docs.FetchDocument(cmd.Context(), id)
			if err != nil {
				return failure(docs.LastError(), err)
			}
			return render(cmd, doc)
		},
	}
}

func newDocsPreviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preview ID",
		Short: "Print the text of a document, or where to fetch it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			docs := clientFrom(cmd).Documents
			preview, err := docs.PreviewDocument(cmd.Context(), id)
			if err != nil {
				return failure(docs.LastError(), err)
			}
			if preview.Inline() {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), preview.Content)
				return err
			}
			return render(cmd, preview)
		},
	}
}

func newDocsUploadCmd() *cobra.Command {
	var payload doclient.UploadPayload

	cmd := &cobra.Command{
		Use:   "upload FILE",
		Short: "Upload a file as a new document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			payload.FileName = filepath.Base(args[0])
			payload.File = f

			docs := clientFrom(cmd).Documents
			if err := docs.UploadDocument(cmd.Context(), payload); err != nil {
				return failure(docs.LastError(), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s\n", payload.FileName)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&payload.Title, "title", "t", "", "document title, defaults to the file name")
	flags.StringVarP(&payload.Description, "description", "d", "", "document description")
	flags.Int64Var(&payload.CategoryID, "category", 0, "category id")
	flags.BoolVar(&payload.IsPrivate, "private", false, "hide the document from other users")
	return cmd
}

func newDocsUpdateCmd() *cobra.Command {
	var (
		title, description string
		category           int64
		private            bool
	)

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Edit the metadata of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			var update doclient.DocumentUpdate
			flags := cmd.Flags()
			if flags.Changed("title") {
				update.Title = &title
			}
			if flags.Changed("description") {
				update.Description = &description
			}
			if flags.Changed("category") {
				update.CategoryID = &category
			}
			if flags.Changed("private") {
				update.IsPrivate = &private
			}

			docs := clientFrom(cmd).Documents
			if err := docs.UpdateDocument(cmd.Context(), id, update); err != nil {
				return failure(docs.LastError(), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated document %d\n", id)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&title, "title", "t", "", "new title")
	flags.StringVarP(&description, "description", "d", "", "new description")
	flags.Int64Var(&category, "category", 0, "new category id")
	flags.BoolVar(&private, "private", false, "hide the document from other users")
	return cmd
}

func newDocsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			docs := clientFrom(cmd).Documents
			if err := docs.DeleteDocument(cmd.Context(), id); err != nil {
				return failure(docs.LastError(), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted document %d\n", id)
			return nil
		},
	}
}

func newDocsDownloadCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "download ID",
		Short: "Download the file of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			docs := clientFrom(cmd).Documents
			n, err := docs.DownloadDocument(cmd.Context(), id, w)
			if err != nil {
				return failure(docs.LastError(), err)
			}
			if output != "-" {
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d bytes to %s\n", n, output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "-", "destination file, - for stdout")
	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
