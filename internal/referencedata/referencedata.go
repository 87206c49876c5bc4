// Package referencedata keeps the reference data of a workflow in step with
// the remote reference resolver.
package referencedata

import (
	"context"
	"fmt"
	"io/fs"
	"net/url"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/tidwall/gjson"

	"github.com/codebypatrickleung/folio-migration-cli/internal/common"
	"github.com/codebypatrickleung/folio-migration-cli/internal/logger"
	"github.com/codebypatrickleung/folio-migration-cli/internal/stage"
)

// Dir is the folder of a workflow holding reference data sets.
const Dir = "referenceData"

const collection = "referenceData"

// Client is the part of the remote resource client the synchronizer needs.
type Client interface {
	Create(ctx context.Context, collectionPath string, body any) ([]byte, error)
	Delete(ctx context.Context, resourcePath string) error
}

// Substitutor resolves template placeholders.
type Substitutor interface {
	Substitute(text string) string
}

// Record is one reference data record of a set file.
type Record struct {
	Set  string
	ID   string
	Body jsoniter.RawMessage
}

func (r Record) label() string {
	if r.ID == "" {
		return fmt.Sprintf("(no id) in %s", r.Set)
	}
	return fmt.Sprintf("%s in %s", r.ID, r.Set)
}

// Synchronizer provisions reference data sets.
type Synchronizer struct {
	client    Client
	templates Substitutor
	basePath  string
	logger    *logger.Logger
}

// NewSynchronizer creates a Synchronizer addressing the reference data
// collection under basePath.
func NewSynchronizer(client Client, templates Substitutor, basePath string, log *logger.Logger) *Synchronizer {
	return &Synchronizer{
		client:    client,
		templates: templates,
		basePath:  strings.TrimRight(basePath, "/"),
		logger:    log,
	}
}

// Sync clears and recreates every record found in the workflow's reference
// data sets. Clearing is best effort: a record that cannot be deleted, for
// instance because it does not exist remotely yet, does not stop the
// recreate step. Only local identities are cleared.
func (s *Synchronizer) Sync(ctx context.Context, workflowPath string) stage.Result {
	dir := filepath.Join(workflowPath, Dir)
	if !common.IsDir(dir) {
		return stage.Fail(fmt.Errorf("cannot find reference data at %s: %w", dir, fs.ErrNotExist))
	}
	files, err := common.ReadAll(dir, common.JSONExt)
	if err != nil {
		return stage.Fail(err)
	}
	if len(files) == 0 {
		s.logger.Info("no reference data to synchronize")
		return stage.OK()
	}

	var records []Record
	for _, f := range files {
		set, err := s.parseSet(f)
		if err != nil {
			return stage.Fail(err)
		}
		records = append(records, set...)
	}

	cleared := stage.RunAll(ctx, stage.BestEffort, records, s.clear)
	if cleared.Outcome == stage.Tolerated {
		s.logger.Warning("some reference data could not be cleared, recreating anyway")
	}
	created := stage.RunAll(ctx, stage.FailFast, records, s.create)
	return stage.Merge(cleared, created)
}

func (s *Synchronizer) parseSet(f common.File) ([]Record, error) {
	set := strings.TrimSuffix(filepath.Base(f.Path), common.JSONExt)
	doc := s.templates.Substitute(string(f.Content))
	if !gjson.Valid(doc) {
		return nil, fmt.Errorf("invalid JSON in reference data %s", f.Path)
	}
	data := gjson.Get(doc, "data")
	if !data.Exists() {
		return nil, nil
	}
	if !data.IsArray() {
		return nil, fmt.Errorf("data of reference data %s is not an array", f.Path)
	}

	var records []Record
	data.ForEach(func(_, value gjson.Result) bool {
		records = append(records, Record{
			Set:  set,
			ID:   value.Get("id").String(),
			Body: jsoniter.RawMessage(value.Raw),
		})
		return true
	})
	return records, nil
}

func (s *Synchronizer) clear(ctx context.Context, r Record) error {
	if r.ID == "" {
		s.logger.Debugf("reference data %s has no id, nothing to clear", r.label())
		return nil
	}
	if err := s.client.Delete(ctx, s.basePath+"/"+collection+"/"+url.PathEscape(r.ID)); err != nil {
		s.logger.Warningf("could not clear reference data %s: %v", r.label(), err)
		return err
	}
	s.logger.Successf("cleared reference data %s", r.label())
	return nil
}

func (s *Synchronizer) create(ctx context.Context, r Record) error {
	if _, err := s.client.Create(ctx, s.basePath+"/"+collection, r.Body); err != nil {
		s.logger.Errorf("failed to create reference data %s: %v", r.label(), err)
		return fmt.Errorf("reference data %s: %w", r.label(), err)
	}
	s.logger.Successf("created reference data %s", r.label())
	return nil
}
