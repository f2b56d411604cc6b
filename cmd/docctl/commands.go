package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"polisense-backend/internal/extract"
	"polisense-backend/internal/queries"
	"polisense-backend/internal/rag"
	"polisense-backend/internal/shared/config"
)

type ragFlags struct {
	baseURL string
	token   string
	timeout time.Duration
}

func newRootCmd() *cobra.Command {
	cfg := config.Load()
	flags := &ragFlags{}

	root := &cobra.Command{
		Use:           "docctl",
		Short:         "Inspect document extraction and drive the RAG service",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&flags.baseURL, "rag-url", cfg.RAGBaseURL, "RAG service base URL")
	root.PersistentFlags().StringVar(&flags.token, "rag-token", cfg.RAGBearerToken, "RAG bearer token")
	root.PersistentFlags().DurationVar(&flags.timeout, "timeout", cfg.RAGTimeout, "RAG request timeout")

	root.AddCommand(
		newExtractCmd(),
		newQueryCmd(flags),
		newClearCmd(flags),
		newHealthCmd(flags),
	)
	return root
}

func (f *ragFlags) client() *rag.Client {
	return rag.NewClient(f.baseURL, f.token, f.timeout)
}

func newExtractCmd() *cobra.Command {
	var mimeType string
	var emailText bool

	cmd := &cobra.Command{
		Use:   "extract FILE",
		Short: "Run the extraction pipeline on a local file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			if mimeType == "" {
				mimeType = guessMimeType(path, emailText)
			}
			return runExtract(cmd.Context(), cmd.OutOrStdout(), extract.Input{
				Data:        data,
				MimeType:    mimeType,
				FileName:    filepath.Base(path),
				IsEmailText: emailText,
			})
		},
	}
	cmd.Flags().StringVar(&mimeType, "mime", "", "declared MIME type (guessed from the extension when empty)")
	cmd.Flags().BoolVar(&emailText, "email-text", false, "treat the file as pasted email text")
	return cmd
}

func runExtract(ctx context.Context, w io.Writer, in extract.Input) error {
	if ctx == nil {
		ctx = context.Background()
	}
	res := extract.Extract(ctx, in)
	docMime := in.MimeType
	if in.IsEmailText {
		docMime = extract.MimeEmailText
	}
	fmt.Fprintf(w, "extractor:     %s\n", displayKind(res.Kind))
	fmt.Fprintf(w, "document type: %s\n", extract.DocumentType(docMime))
	if res.Err != nil {
		fmt.Fprintf(w, "error:         %v\n", res.Err)
	}
	if res.Text == nil {
		fmt.Fprintln(w, "text:          (none)")
		return nil
	}
	fmt.Fprintf(w, "\n%s\n", *res.Text)
	if res.Failed {
		return errors.New("extraction failed")
	}
	return nil
}

func displayKind(k extract.Kind) string {
	if k == extract.KindNone {
		return "none"
	}
	return string(k)
}

func guessMimeType(path string, emailText bool) string {
	if emailText {
		return extract.MimePlainText
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return extract.MimePDF
	case ".docx":
		return extract.MimeDOCX
	case ".eml":
		return extract.MimeRFC822
	}
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "application/octet-stream"
}

func newQueryCmd(flags *ragFlags) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "query QUESTION",
		Short: "Ask the RAG service a question for one owner",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := &queries.Service{RAG: flags.client()}
			answer, err := svc.Ask(cmd.Context(), strings.Join(args, " "), userID)
			if errors.Is(err, queries.ErrInvalidInput) {
				return err
			}
			if encErr := writeJSON(cmd.OutOrStdout(), answer); encErr != nil {
				return encErr
			}
			return err
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "owner id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newClearCmd(flags *ragFlags) *cobra.Command {
	var userID string
	var all bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop indexed documents from the RAG service",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := flags.client()
			switch {
			case all:
				if err := c.ClearAllDocuments(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "cleared all documents")
			case strings.TrimSpace(userID) != "":
				if err := c.ClearUserDocuments(cmd.Context(), userID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "cleared documents for %s\n", userID)
			default:
				return errors.New("either --user or --all is required")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "owner id")
	cmd.Flags().BoolVar(&all, "all", false, "clear every owner's documents")
	return cmd
}

func newHealthCmd(flags *ragFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Probe the RAG service health endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := flags.client().Health(cmd.Context())
			if err != nil {
				return err
			}
			var v any
			if json.Unmarshal(raw, &v) != nil {
				fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(string(raw)))
				return nil
			}
			return writeJSON(cmd.OutOrStdout(), v)
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
