package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgallion1/checkmate/internal/draft"
	"github.com/dgallion1/checkmate/internal/normalizer"
)

type options struct {
	format    string
	asJSON    bool
	maxTokens int
}

type output struct {
	Filename        string `json:"filename"`
	Format          string `json:"format"`
	Text            string `json:"text"`
	Chars           int    `json:"chars"`
	EstimatedTokens int    `json:"estimated_tokens"`
	Trimmed         bool   `json:"trimmed,omitempty"`
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "normalize FILE",
		Short: "Extract plain text from a .txt, .pdf or .docx draft",
		Long: "Reads a draft in one of the supported formats and prints the text that would be " +
			"sent for evaluation. Use --max-tokens to preview how the draft is shortened to fit the prompt.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNormalize(cmd, args[0], opts)
		},
	}
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "Input format (text, pdf, docx); detected from the file when empty")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print a JSON object instead of bare text")
	cmd.Flags().IntVar(&opts.maxTokens, "max-tokens", 0, "Shorten the text to this many estimated tokens (0 keeps all of it)")
	return cmd
}

func runNormalize(cmd *cobra.Command, path string, opts options) error {
	format := normalizer.FormatUnknown
	if opts.format != "" {
		f, err := normalizer.ParseFormat(opts.format)
		if err != nil {
			return err
		}
		format = f
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	res, err := normalizer.Normalize(normalizer.Document{
		Filename: filepath.Base(path),
		Content:  content,
		Format:   format,
	})
	if err != nil {
		return err
	}

	text, trimmed := res.Text, false
	if opts.maxTokens > 0 {
		text, trimmed = draft.Fit(text, opts.maxTokens)
	}
	if strings.TrimSpace(text) == "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: no text found in %s (scanned document?)\n", path)
	}

	out := cmd.OutOrStdout()
	if !opts.asJSON {
		_, err := fmt.Fprintln(out, text)
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(output{
		Filename:        filepath.Base(path),
		Format:          res.Format.String(),
		Text:            text,
		Chars:           len([]rune(text)),
		EstimatedTokens: draft.EstimateTokens(text),
		Trimmed:         trimmed,
	})
}
