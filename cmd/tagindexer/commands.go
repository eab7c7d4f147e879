package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/tagsearch/internal/config"
	"github.com/kailas-cloud/tagsearch/internal/dataset"
	dbRedis "github.com/kailas-cloud/tagsearch/internal/db/redis"
	"github.com/kailas-cloud/tagsearch/internal/domain"
	domstage "github.com/kailas-cloud/tagsearch/internal/domain/stage"
	"github.com/kailas-cloud/tagsearch/internal/domain/tagfield"
	logpkg "github.com/kailas-cloud/tagsearch/internal/logger"
	"github.com/kailas-cloud/tagsearch/internal/metrics"
	indexrepo "github.com/kailas-cloud/tagsearch/internal/repository/index"
	productrepo "github.com/kailas-cloud/tagsearch/internal/repository/product"
	tagrepo "github.com/kailas-cloud/tagsearch/internal/repository/tag"
	batchuc "github.com/kailas-cloud/tagsearch/internal/usecase/batch"
	recognizeuc "github.com/kailas-cloud/tagsearch/internal/usecase/recognize"
	"github.com/kailas-cloud/tagsearch/internal/usecase/tagindex"
)

// deps is the wiring shared by the commands.
type deps struct {
	cfg       config.Config
	tagFields tagfield.Config
	stages    domstage.Config
	store     *dbRedis.Store
	tags      *tagrepo.Repo
	products  *productrepo.Repo
	indexes   *indexrepo.Repo
}

func connect(c *cli.Context) (*deps, error) {
	cfg, err := config.Load(c.String("env"))
	if err != nil {
		return nil, err
	}
	tagFields, err := config.LoadTagFields(cfg.Semantic.TagFieldsPath)
	if err != nil {
		return nil, err
	}
	stages, err := config.LoadStages(cfg.Semantic.StagesPath)
	if err != nil {
		return nil, err
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("create database store: %w", err)
	}
	if err := store.WaitForReady(c.Context, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("database not ready: %w", err)
	}

	return &deps{
		cfg:       cfg,
		tagFields: tagFields,
		stages:    stages,
		store:     store,
		tags: tagrepo.New(store, tagrepo.Options{
			Index:        cfg.Search.TagIndex,
			Prefix:       cfg.Search.TagPrefix,
			LookupSize:   cfg.Search.LookupSize,
			QueryTimeout: cfg.Search.QueryTimeout(),
			BatchSize:    cfg.Search.UpsertBatchSize,
			Latency:      metrics.StoreQueryDuration,
		}),
		products: productrepo.New(store, productrepo.Options{
			Index:        cfg.Search.ProductIndex,
			Prefix:       cfg.Search.ProductPrefix,
			QueryTimeout: cfg.Search.QueryTimeout(),
			BatchSize:    cfg.Search.UpsertBatchSize,
			Latency:      metrics.StoreQueryDuration,
		}),
		indexes: indexrepo.New(store, cfg.Search.LastRunKey()),
	}, nil
}

// commandContext attaches the command logger so use cases log through it.
func commandContext(c *cli.Context, name string) context.Context {
	return logpkg.ContextWithLogger(c.Context, loggerFrom(c).With(zap.String("command", name)))
}

func createIndexesCommand(c *cli.Context) error {
	d, err := connect(c)
	if err != nil {
		return err
	}
	defer d.store.Close()

	tagDef, err := indexrepo.TagIndex(d.cfg.Search.TagIndex, d.cfg.Search.TagPrefix)
	if err != nil {
		return err
	}
	var records []dataset.Record
	if path := c.String("snapshot"); path != "" {
		if records, err = dataset.ReadFile(path); err != nil {
			return err
		}
	}
	variants := productVariants(d.stages, d.tagFields, records)
	productDef, err := indexrepo.ProductIndex(d.cfg.Search.ProductIndex, d.cfg.Search.ProductPrefix, variants)
	if err != nil {
		return err
	}

	ctx := commandContext(c, "create-indexes")
	if c.Bool("recreate") {
		if err := d.indexes.Recreate(ctx, tagDef, productDef); err != nil {
			return err
		}
		loggerFrom(c).Info("Indexes recreated", zap.Strings("indexes", []string{tagDef.Name, productDef.Name}))
		return nil
	}

	created, err := d.indexes.Ensure(ctx, tagDef, productDef)
	if err != nil {
		return err
	}
	loggerFrom(c).Info("Indexes ready", zap.Strings("created", created))
	return nil
}

func indexTagsCommand(c *cli.Context) error {
	path := c.String("snapshot")
	records, err := dataset.ReadFile(path)
	if err != nil {
		return err
	}

	d, err := connect(c)
	if err != nil {
		return err
	}
	defer d.store.Close()

	extractor, err := tagindex.NewExtractor(d.tagFields, d.cfg.Search.ExtractWorkers)
	if err != nil {
		return err
	}
	defer extractor.Release()

	svc := tagindex.New(extractor, d.tags, d.indexes)
	outcome, err := svc.IndexTags(commandContext(c, "index-tags"), filepath.Base(path), dataset.Snapshot(records))
	if err != nil {
		return err
	}
	if err := printJSON(outcome); err != nil {
		return err
	}
	return outcome.Err(domain.ErrPartialIndexFailure)
}

func loadProductsCommand(c *cli.Context) error {
	records, err := dataset.ReadFile(c.String("snapshot"))
	if err != nil {
		return err
	}

	d, err := connect(c)
	if err != nil {
		return err
	}
	defer d.store.Close()

	svc := batchuc.New(d.products).WithMaxBatchSize(d.cfg.Search.UpsertBatchSize)
	outcome := svc.Load(commandContext(c, "load-products"), dataset.Products(records))
	loggerFrom(c).Info("Products loaded",
		zap.Int("written", outcome.Written),
		zap.Int("failed", outcome.Failed),
	)
	if err := printJSON(outcome); err != nil {
		return err
	}
	return outcome.Err(domain.ErrPartialIndexFailure)
}

func lastRunCommand(c *cli.Context) error {
	d, err := connect(c)
	if err != nil {
		return err
	}
	defer d.store.Close()

	run, ok, err := d.indexes.LastRun(c.Context)
	if err != nil {
		return err
	}
	if !ok {
		return cli.Exit("no indexing run recorded", 1)
	}
	return printJSON(run)
}

// productVariants is every field variant a product attribute is created for: the
// stages' static fields, every variant the tag-field table can tag, and the attribute
// keys seen in records.
func productVariants(stages domstage.Config, tagFields tagfield.Config, records []dataset.Record) []string {
	variants := stages.StaticFieldVariants()
	variants = append(variants, tagFields.Variants()...)
	return append(variants, dataset.AttributeVariants(records)...)
}

func recognizeCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("query is required: %w", domain.ErrInvalidRequest)
	}

	d, err := connect(c)
	if err != nil {
		return err
	}
	defer d.store.Close()

	svc := recognizeuc.New(d.tags, recognizeuc.Options{
		FuzzyAlways: d.cfg.Search.FuzzyMode == config.FuzzyAlways,
		Parallelism: d.cfg.Search.RecognizeParallelism,
		MaxTokens:   d.cfg.Search.MaxQueryTokens,
	})
	tags, err := svc.Recognize(commandContext(c, "recognize"), strings.Join(c.Args().Slice(), " "))
	if err != nil {
		return err
	}
	return printJSON(tags)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
