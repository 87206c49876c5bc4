// Package workflow scaffolds, builds and drives FOLIO migration workflows.
package workflow

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/codebypatrickleung/folio-migration-cli/internal/common"
	"github.com/codebypatrickleung/folio-migration-cli/internal/config"
	"github.com/codebypatrickleung/folio-migration-cli/internal/enhancer"
	"github.com/codebypatrickleung/folio-migration-cli/internal/logger"
	"github.com/codebypatrickleung/folio-migration-cli/internal/referencedata"
	"github.com/codebypatrickleung/folio-migration-cli/internal/template"
)

// Layout of a workflow directory.
const (
	ExtractorsDir         = "extractors"
	SQLDir                = "sql"
	TasksDir              = "tasks"
	JSDir                 = "js"
	TriggersDir           = "triggers"
	ReferenceDataDir      = referencedata.Dir
	ReferenceLinkTypesDir = "referenceLinkTypes"
	WorkflowFile          = "workflow.json"
	SetupFile             = "setup.json"
	StartTriggerFile      = "startTrigger.json"
)

// Remote collections, relative to their module base.
const (
	extractorsCollection         = "extractors"
	workflowsCollection          = "workflows"
	triggersCollection           = "triggers"
	tasksCollection              = "tasks"
	referenceLinkTypesCollection = "referenceLinkTypes"
)

// Manager runs workflow operations for one configuration.
type Manager struct {
	config    *config.Config
	logger    *logger.Logger
	client    ResourceClient
	templates *template.Substitutor
	enhancers *enhancer.Registry
	refs      *referencedata.Synchronizer
}

// NewManager creates a new workflow manager.
func NewManager(cfg *config.Config, log *logger.Logger, client ResourceClient) (*Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	templates := template.New(cfg.Values)
	return &Manager{
		config:    cfg,
		logger:    log,
		client:    client,
		templates: templates,
		enhancers: enhancer.NewDefaultRegistry(templates),
		refs:      referencedata.NewSynchronizer(client, templates, cfg.ModExternalReferenceResolver, log),
	}, nil
}

// Path returns the directory of the named workflow.
func (m *Manager) Path(name string) string {
	return m.config.WorkflowPath(name)
}

func (m *Manager) requireWorkflow(name string) (string, error) {
	path := m.Path(name)
	if !common.IsDir(path) {
		return "", fmt.Errorf("cannot find workflow at %s: %w", path, fs.ErrNotExist)
	}
	return path, nil
}

func joinURL(base string, parts ...string) string {
	out := strings.TrimRight(base, "/")
	for _, p := range parts {
		out += "/" + strings.Trim(p, "/")
	}
	return out
}

func (m *Manager) workflowCollection(collection string) string {
	return joinURL(m.config.ModWorkflow, collection)
}

func missing(what, path string) error {
	return fmt.Errorf("cannot find %s at %s: %w", what, path, fs.ErrNotExist)
}

// List returns the names of the workflows under the working directory.
func (m *Manager) List() ([]string, error) {
	if !common.IsDir(m.config.WorkDir) {
		return nil, missing("working directory", m.config.WorkDir)
	}
	return common.ListDirs(m.config.WorkDir)
}

// LoadReferenceData merges the records in sourceDir into the named reference
// data set of a workflow.
func (m *Manager) LoadReferenceData(workflow, name, sourceDir string) (*referencedata.LoadResult, error) {
	return m.refs.Load(m.Path(workflow), filepath.Base(name), sourceDir)
}
