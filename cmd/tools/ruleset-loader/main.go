// cmd/tools/ruleset-loader/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"visabuddy-engine/internal/catalog"
	"visabuddy-engine/internal/common/config"
	"visabuddy-engine/internal/common/database"
	"visabuddy-engine/internal/common/logger"
	"visabuddy-engine/internal/models"
	resolverules "visabuddy-engine/internal/workers/checklist/resolve-rules"
)

// ruleSetFile is the authoring format: one country/visa rule set per JSON
// file. Version is assigned by the store on save.
type ruleSetFile struct {
	CountryCode    string                        `json:"countryCode"`
	VisaType       string                        `json:"visaType"`
	Documents      []models.RequiredDocumentRule `json:"documents"`
	FinancialRule  *models.FinancialRule         `json:"financialRule,omitempty"`
	ProcessingRule *models.ProcessingRule        `json:"processingRule,omitempty"`
}

func main() {
	loadCmd := flag.NewFlagSet("load", flag.ExitOnError)
	approveCmd := flag.NewFlagSet("approve", flag.ExitOnError)

	// Load command flags
	loadPath := loadCmd.String("path", "", "Rule set JSON file, or a directory of them")
	approveOnLoad := loadCmd.Bool("approve", false, "Mark loaded rule sets as approved immediately")
	dryRun := loadCmd.Bool("dry-run", false, "Parse and validate only, do not write to the database")

	// Approve command flags
	country := approveCmd.String("country", "", "Country code (e.g., US)")
	visaType := approveCmd.String("visaType", "", "Visa type (e.g., tourist)")
	version := approveCmd.Int("version", 0, "Rule set version to approve")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "load":
		loadCmd.Parse(os.Args[2:])
		if *loadPath == "" {
			fmt.Println("Error: path is required for load.")
			loadCmd.Usage()
			os.Exit(1)
		}
		if err := runLoad(*loadPath, *approveOnLoad, *dryRun); err != nil {
			fmt.Printf("Error loading rule sets: %v\n", err)
			os.Exit(1)
		}

	case "approve":
		approveCmd.Parse(os.Args[2:])
		if *country == "" || *visaType == "" || *version == 0 {
			fmt.Println("Error: country, visaType, and version are required for approve.")
			approveCmd.Usage()
			os.Exit(1)
		}
		if err := runApprove(*country, *visaType, *version); err != nil {
			fmt.Printf("Error approving rule set: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Approved %s/%s version %d\n", *country, *visaType, *version)

	case "help":
		fallthrough
	default:
		help()
	}
}

func runLoad(path string, approve, dryRun bool) error {
	files, err := collectFiles(path)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no .json files found under %s", path)
	}

	// Conditions are compiled up front so a broken expression never reaches
	// the database.
	evaluator, err := resolverules.NewEvaluator()
	if err != nil {
		return fmt.Errorf("failed to build condition evaluator: %w", err)
	}

	var ruleSets []*models.RuleSet
	for _, file := range files {
		rs, err := parseRuleSetFile(file, evaluator)
		if err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
		ruleSets = append(ruleSets, rs)
		fmt.Printf("Validated %s (%s/%s, %d documents)\n", file, rs.CountryCode, rs.VisaType, len(rs.Documents))
	}

	if dryRun {
		fmt.Printf("Dry run: %d rule set(s) valid, nothing written.\n", len(ruleSets))
		return nil
	}

	store, cache, closeFn, err := openStore()
	if err != nil {
		return err
	}
	defer closeFn()

	ctx := context.Background()
	for _, rs := range ruleSets {
		rs.Approved = approve
		if err := store.Save(ctx, rs); err != nil {
			return fmt.Errorf("save %s/%s: %w", rs.CountryCode, rs.VisaType, err)
		}
		if rs.Approved {
			invalidateCache(ctx, cache, rs.CountryCode, rs.VisaType)
		}
		fmt.Printf("Saved %s/%s as version %d (approved=%t)\n", rs.CountryCode, rs.VisaType, rs.Version, rs.Approved)
	}
	return nil
}

func runApprove(country, visaType string, version int) error {
	store, cache, closeFn, err := openStore()
	if err != nil {
		return err
	}
	defer closeFn()

	ctx := context.Background()
	if err := store.Approve(ctx, country, visaType, version); err != nil {
		return err
	}
	invalidateCache(ctx, cache, country, visaType)
	return nil
}

func invalidateCache(ctx context.Context, cache *catalog.CachedStore, country, visaType string) {
	if cache == nil {
		return
	}
	if err := cache.Invalidate(ctx, country, visaType); err != nil {
		fmt.Printf("Warning: cache invalidation for %s/%s failed: %v\n", country, visaType, err)
	}
}

func collectFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		files = append(files, filepath.Join(path, entry.Name()))
	}
	return files, nil
}

func parseRuleSetFile(path string, evaluator *resolverules.Evaluator) (*models.RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file ruleSetFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	if file.CountryCode == "" || file.VisaType == "" {
		return nil, fmt.Errorf("countryCode and visaType are required")
	}
	if len(file.Documents) == 0 {
		return nil, fmt.Errorf("rule set has no documents")
	}

	seen := make(map[string]bool)
	activation := resolverules.Activation(&models.CanonicalContext{})
	for i, doc := range file.Documents {
		if doc.DocumentType == "" {
			return nil, fmt.Errorf("document %d has no documentType", i)
		}
		if seen[doc.DocumentType] {
			return nil, fmt.Errorf("duplicate documentType %s", doc.DocumentType)
		}
		seen[doc.DocumentType] = true

		if !models.ValidCategory(string(doc.Category)) {
			return nil, fmt.Errorf("document %s has invalid category %q", doc.DocumentType, doc.Category)
		}
		if doc.Condition != "" {
			if _, err := evaluator.Evaluate(doc.Condition, activation); err != nil {
				return nil, fmt.Errorf("document %s has a broken condition: %w", doc.DocumentType, err)
			}
		}
	}

	return &models.RuleSet{
		CountryCode:    file.CountryCode,
		VisaType:       file.VisaType,
		Documents:      file.Documents,
		FinancialRule:  file.FinancialRule,
		ProcessingRule: file.ProcessingRule,
	}, nil
}

func openStore() (*catalog.Store, *catalog.CachedStore, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("config load failed: %w", err)
	}

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("postgres connection failed: %w", err)
	}
	if err := pg.Ping(context.Background()); err != nil {
		pg.Close()
		return nil, nil, nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	log := logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format)
	store := catalog.NewStore(pg, log, time.Duration(cfg.Catalog.QueryTimeout)*time.Millisecond)

	// Workers serve rule sets through the Redis cache, so a write here must
	// drop the cached entry. A missing invalidation is not fatal: the entry
	// expires on its own TTL.
	redisClient, err := database.NewRedis(cfg.Database.Redis)
	if err != nil {
		fmt.Printf("Warning: redis unavailable, cached rule sets expire on TTL instead: %v\n", err)
		return store, nil, func() { pg.Close() }, nil
	}
	cache := catalog.NewCachedStore(store, redisClient, log, time.Duration(cfg.Catalog.CacheTTL)*time.Second)
	return store, cache, func() {
		redisClient.Close()
		pg.Close()
	}, nil
}

func help() {
	fmt.Print(`
Usage: ruleset-loader <command> [flags]

Commands:
  load     Validate rule set JSON files and insert them as new versions
  approve  Mark a specific rule set version as approved (servable)
  help     Show this help message

Examples:
  ruleset-loader load -path rulesets/us-tourist.json -approve
  ruleset-loader load -path rulesets/ -dry-run
  ruleset-loader approve -country US -visaType tourist -version 3

Use 'ruleset-loader <command> -h' for more information about a command.
`)
}
