package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Beto18v/AdoptaFacil-sub000/internal/collector"
	"github.com/Beto18v/AdoptaFacil-sub000/internal/config"
	"github.com/Beto18v/AdoptaFacil-sub000/internal/decoder"
	"github.com/Beto18v/AdoptaFacil-sub000/internal/mapping"
	"github.com/Beto18v/AdoptaFacil-sub000/internal/pipeline"
	"github.com/Beto18v/AdoptaFacil-sub000/internal/types"
	"github.com/Beto18v/AdoptaFacil-sub000/pkg/utils"
)

// sessionFactory returns a constructor for import sessions configured from
// cfg. Every session shares one decoder and one submitter.
func sessionFactory(cfg *config.Config, submitter pipeline.Submitter, log *zap.Logger) (func() *pipeline.Session, error) {
	schema, err := mapping.SchemaFromConfig(cfg.Schema)
	if err != nil {
		return nil, err
	}
	mode, err := pipeline.ParseMode(cfg.Transform.Mode)
	if err != nil {
		return nil, err
	}

	dec := decoder.FromConfig(cfg.Decode, log.Named("decoder"))
	transformer := pipeline.NewTransformer(mode, cfg.MonthFirst(), log.Named("transform"))

	return func() *pipeline.Session {
		return pipeline.NewSession(dec, submitter,
			pipeline.WithSchema(schema),
			pipeline.WithTransformer(transformer),
			pipeline.WithTimeouts(cfg.Decode.Timeout, cfg.Collector.Timeout),
			pipeline.WithLogger(log.Named("session")),
		)
	}, nil
}

// newCollector builds the donations service client.
func newCollector(cfg *config.Config, log *zap.Logger) (*collector.Client, error) {
	client, err := collector.New(cfg.Collector, collector.WithLogger(log.Named("collector")))
	if err != nil {
		return nil, fmt.Errorf("failed to create collector client: %w", err)
	}
	return client, nil
}

// newFileManager returns the archiver configured from cfg.
func newFileManager(cfg *config.Config) *utils.FileManager {
	fm := utils.NewFileManager(cfg.InputDir, cfg.ArchiveDir)
	fm.ArchiveOnSuccess = cfg.ShouldArchive()
	return fm
}

// loadFile reads path from disk into sess.
func loadFile(ctx context.Context, sess *pipeline.Session, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return sess.Load(ctx, filepath.Base(path), data)
}

// =============================================================================
// ARGUMENT PARSING
// =============================================================================

// parseMapping parses "field=Header".
func parseMapping(s string) (types.Field, string, error) {
	name, header, ok := strings.Cut(s, "=")
	if !ok {
		return "", "", fmt.Errorf("invalid mapping %q (expected field=Header)", s)
	}
	field, ok := types.ParseField(strings.TrimSpace(name))
	if !ok {
		return "", "", fmt.Errorf("unknown field %q", name)
	}
	return field, strings.TrimSpace(header), nil
}

// recordEdit is one --set flag.
type recordEdit struct {
	index int
	field types.Field
	value string
}

// parseEdit parses "N.field=value" where N is a record number as listed,
// starting at 1.
func parseEdit(s string) (recordEdit, error) {
	target, value, ok := strings.Cut(s, "=")
	if !ok {
		return recordEdit{}, fmt.Errorf("invalid edit %q (expected N.field=value)", s)
	}
	num, name, ok := strings.Cut(target, ".")
	if !ok {
		return recordEdit{}, fmt.Errorf("invalid edit %q (expected N.field=value)", s)
	}
	index, err := recordNumber(num)
	if err != nil {
		return recordEdit{}, err
	}
	field, ok := types.ParseField(strings.TrimSpace(name))
	if !ok {
		return recordEdit{}, fmt.Errorf("unknown field %q", name)
	}
	return recordEdit{index: index, field: field, value: value}, nil
}

// recordNumber converts a 1-based record number into a batch index.
func recordNumber(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid record number %q", s)
	}
	return n - 1, nil
}

// checkRecord rejects record numbers outside the batch before they reach
// the session, so messages use the numbers the user typed.
func checkRecord(sess *pipeline.Session, index int) error {
	if n := len(sess.View().Records); index >= n {
		return fmt.Errorf("record %d does not exist (%d records)", index+1, n)
	}
	return nil
}
