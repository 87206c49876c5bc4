package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	"github.com/tidwall/gjson"

	"github.com/codebypatrickleung/folio-migration-cli/internal/common"
	"github.com/codebypatrickleung/folio-migration-cli/internal/enhancer"
	"github.com/codebypatrickleung/folio-migration-cli/internal/stage"
)

// resourceFolder describes a stage that creates one remote resource per
// JSON file of a workflow sub-folder.
type resourceFolder struct {
	dir        string
	label      string
	kind       enhancer.Kind
	collection string
}

// buildStage is one step of the build pipeline.
type buildStage struct {
	name   string
	errMsg string
	run    func(ctx context.Context, path string) stage.Result
}

func (m *Manager) stages() []buildStage {
	folders := []resourceFolder{
		{ReferenceLinkTypesDir, "reference link type", "", joinURL(m.config.ModExternalReferenceResolver, referenceLinkTypesCollection)},
		{ExtractorsDir, "extractor", enhancer.KindExtractor, joinURL(m.config.ModDataExtractor, extractorsCollection)},
		{TriggersDir, "trigger", enhancer.KindScript, m.workflowCollection(triggersCollection)},
		{TasksDir, "task", enhancer.KindScript, m.workflowCollection(tasksCollection)},
	}
	forFolder := func(f resourceFolder) func(context.Context, string) stage.Result {
		return func(ctx context.Context, path string) stage.Result {
			return m.createResources(ctx, path, f)
		}
	}

	return []buildStage{
		{"Setup", "setup failed", m.setup},
		{"Reference Data", "reference data failed", m.refs.Sync},
		{"Reference Link Types", "reference link types failed", forFolder(folders[0])},
		{"Extractors", "extractors failed", forFolder(folders[1])},
		{"Triggers", "triggers failed", forFolder(folders[2])},
		{"Tasks", "tasks failed", forFolder(folders[3])},
		{"Workflow", "workflow failed", m.finalize},
	}
}

// Build provisions the named workflow. Stages run strictly in order and the
// first failing stage stops the pipeline; resources created by earlier
// stages are left in place, so a fixed workflow is built again from the start.
func (m *Manager) Build(ctx context.Context, name string) error {
	path, err := m.requireWorkflow(name)
	if err != nil {
		return err
	}
	m.logger.Infof("Building workflow %s from %s", name, path)

	for i, st := range m.stages() {
		m.logger.Step(i+1, st.name)
		res := st.run(ctx, path)
		switch res.Outcome {
		case stage.Failed:
			m.logger.Errorf("%s: %v", st.errMsg, res.Err)
			return fmt.Errorf("%s: %w", st.errMsg, res.Err)
		case stage.Tolerated:
			m.logger.Warningf("%s completed with tolerated failures: %v", st.name, res.Err)
		}
	}

	m.logger.Successf("Workflow %s built", name)
	return nil
}

func (m *Manager) setup(_ context.Context, path string) stage.Result {
	file := filepath.Join(path, SetupFile)
	if !common.Exists(file) {
		return stage.Fail(missing("setup", file))
	}
	m.logger.Debugf("found %s", file)
	return stage.OK()
}

func (m *Manager) createResources(ctx context.Context, path string, f resourceFolder) stage.Result {
	dir := filepath.Join(path, f.dir)
	if !common.IsDir(dir) {
		return stage.Fail(missing(f.dir, dir))
	}
	files, err := common.ListFiles(dir, common.JSONExt)
	if err != nil {
		return stage.Fail(err)
	}
	if len(files) == 0 {
		m.logger.Infof("no %s definitions in %s", f.label, dir)
	}

	return stage.RunAll(ctx, stage.FailFast, files, func(ctx context.Context, file string) error {
		content, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file, err)
		}
		if f.kind != "" {
			if content, err = m.enhancers.Enhance(f.kind, dir, content); err != nil {
				return fmt.Errorf("failed to enhance %s: %w", file, err)
			}
		}
		return m.create(ctx, f.label, f.collection, file, m.templates.SubstituteBytes(content))
	})
}

func (m *Manager) finalize(ctx context.Context, path string) stage.Result {
	file := filepath.Join(path, WorkflowFile)
	content, err := os.ReadFile(file)
	if err != nil {
		if os.IsNotExist(err) {
			return stage.Fail(missing("workflow definition", file))
		}
		return stage.Fail(fmt.Errorf("failed to read %s: %w", file, err))
	}
	if err := m.create(ctx, "workflow", m.workflowCollection(workflowsCollection), file, m.templates.SubstituteBytes(content)); err != nil {
		return stage.Fail(err)
	}
	return stage.OK()
}

// create parses a fully prepared definition and posts it to collection.
func (m *Manager) create(ctx context.Context, label, collection, file string, doc []byte) error {
	if !gjson.ValidBytes(doc) {
		m.logger.Errorf("invalid JSON in %s %s", label, file)
		return fmt.Errorf("invalid JSON in %s", file)
	}
	who := describe(doc, file)
	if _, err := m.client.Create(ctx, collection, jsoniter.RawMessage(doc)); err != nil {
		m.logger.Errorf("failed to create %s %s: %v", label, who, err)
		return fmt.Errorf("%s %s: %w", label, who, err)
	}
	m.logger.Successf("created %s %s", label, who)
	return nil
}

// describe names a definition for log lines.
func describe(doc []byte, file string) string {
	for _, field := range []string{"name", "id"} {
		if v := gjson.GetBytes(doc, field); v.Type == gjson.String && v.Str != "" {
			return v.Str
		}
	}
	return filepath.Base(file)
}
