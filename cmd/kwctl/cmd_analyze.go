package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/john-revops11/keyword-gemini-insight/internal/app"
	"github.com/john-revops11/keyword-gemini-insight/internal/config"
	"github.com/john-revops11/keyword-gemini-insight/internal/enrich"
	"github.com/john-revops11/keyword-gemini-insight/internal/ingest"
	"github.com/john-revops11/keyword-gemini-insight/internal/searchvolume"
	"github.com/john-revops11/keyword-gemini-insight/internal/tokenstore"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

var (
	analyzeToken  string
	analyzeCode   string
	analyzeStdin  bool
	analyzeFormat string
)

// analyzeCmd runs keywords through the enrichment pipeline
var analyzeCmd = &cobra.Command{
	Use:   "analyze [KEYWORD...]",
	Short: "Estimate volume, difficulty and intent for keywords",
	Long: `Runs each keyword through the Search Console lookup and the model estimate
and prints the fused result per keyword.

Without --token the first keyword is looked up alone. If Search Console needs
authorization, the authorization URL is printed; open it, then re-run with
--code set to the code from the redirect.`,
	RunE: runAnalyze,
}

// batchAnalyzer is the part of the pipeline the analyze command drives.
type batchAnalyzer interface {
	Authorize(ctx context.Context, code string) (searchvolume.TokensIssued, error)
	AnalyzeBatch(ctx context.Context, keywords []string) *enrich.BatchResult
}

// newPipeline builds the pipeline for one run; tests replace it.
var newPipeline = func(ctx context.Context, cfg *config.Config, logger *zap.Logger, token string) batchAnalyzer {
	tokens := tokenstore.New()
	if token != "" {
		tokens.Set(token)
	}
	return enrich.New(
		app.NewVolumeClient(cfg, logger),
		app.NewEstimateClient(ctx, cfg, nil, logger),
		tokens,
		enrich.WithMaxConcurrency(cfg.AnalyzeMaxConcurrency),
		enrich.WithLogger(logger.Named("enrich")),
	)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	format := strings.ToLower(analyzeFormat)
	if format != formatJSON && format != formatYAML {
		return fmt.Errorf("unknown format %q (want json or yaml)", analyzeFormat)
	}

	keywords := args
	if analyzeStdin {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		keywords = append(keywords, ingest.ParseKeywordInput(string(data))...)
	}
	keywords = ingest.CleanKeywords(keywords)
	if len(keywords) == 0 {
		return errors.New("no keywords given")
	}

	ctx := cmd.Context()
	p := newPipeline(ctx, cfg, logger, analyzeToken)

	if analyzeCode != "" {
		issued, err := p.Authorize(ctx, analyzeCode)
		if err != nil {
			return fmt.Errorf("failed to exchange authorization code: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Search Console authorized. Reuse the access token with --token %s\n", issued.AccessToken)
	}

	res := p.AnalyzeBatch(ctx, keywords)
	if err := writeBatch(cmd.OutOrStdout(), format, res); err != nil {
		return err
	}

	if res.Authorization != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Search Console authorization required. Open:\n  %s\nthen re-run with --code CODE\n", res.Authorization.URL)
	}
	if res.Summary.Failed > 0 {
		return fmt.Errorf("%d of %d keywords failed", res.Summary.Failed, res.Summary.TotalKeywords)
	}
	return nil
}

func writeBatch(w io.Writer, format string, res *enrich.BatchResult) error {
	if format == formatYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(res); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("failed to encode json: %w", err)
	}
	return nil
}
