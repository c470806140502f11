package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ternarybob/finsight/internal/interfaces"
	"github.com/ternarybob/finsight/internal/services/entities"
	"github.com/ternarybob/finsight/internal/services/llm"
	"github.com/ternarybob/finsight/internal/services/screener"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the API key, entity table and Screener.in access",
	RunE:  runCheck,
}

var checkLive bool

func init() {
	checkCmd.Flags().BoolVar(&checkLive, "live", false, "Also fetch one company page and call the narrative provider")
}

func runCheck(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	failed := false

	report := func(name string, err error) {
		if err != nil {
			failed = true
			fmt.Fprintf(out, "✗ %s: %v\n", name, err)
			return
		}
		fmt.Fprintf(out, "✓ %s\n", name)
	}

	_, err := config.ProviderAPIKey()
	report(fmt.Sprintf("%s API key configured", config.Narrative.Provider), err)

	index, err := entities.Load(config.Entities, logger)
	report("entity table loaded", err)

	if index != nil {
		record, ok := index.Resolve("reliance")
		if ok {
			report(fmt.Sprintf("'reliance' resolves to %s (%s)", record.Name, record.Slug), nil)
		} else {
			report("'reliance' resolves", errors.New("not found"))
		}

		if checkLive && ok {
			report("company page scraped", checkScrape(cmd.Context(), index, "reliance"))
			report("narrative provider reachable", checkProvider(cmd.Context()))
		}
	}

	if failed {
		return errors.New("setup check failed")
	}
	fmt.Fprintln(out, "\nAll checks passed")
	return nil
}

func checkScrape(ctx context.Context, index *entities.Index, query string) error {
	client, err := screener.NewClientFromConfig(config.Screener, logger)
	if err != nil {
		return err
	}

	extractor := screener.NewExtractor(config.Screener.Currency, logger)
	metrics := screener.NewService(index, client, extractor, logger).GetStockData(ctx, query)
	if metrics.HasError() {
		return errors.New(metrics.ErrorMessage())
	}
	return nil
}

func checkProvider(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	provider, err := llm.NewTextProvider(ctx, config, logger)
	if err != nil {
		return err
	}
	defer provider.Close()

	result := llm.NewRetryPolicy(1, 0).Run(ctx, func(ctx context.Context) (string, error) {
		return provider.GenerateText(ctx, &interfaces.GenerationRequest{
			Prompt:          "Reply with the single word OK.",
			Temperature:     0,
			MaxOutputTokens: 10,
		})
	})
	if !result.Succeeded() {
		return fmt.Errorf("%s: %w", result.Kind, result.Err)
	}
	return nil
}
