package workflow

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/tidwall/pretty"

	"github.com/codebypatrickleung/folio-migration-cli/internal/common"
	"github.com/codebypatrickleung/folio-migration-cli/internal/referencedata"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ResourceType is what Add can insert into a workflow.
type ResourceType string

const (
	TypeExtractor  ResourceType = "extractor"
	TypeProcessor  ResourceType = "processor"
	TypeReferences ResourceType = "references"
)

type workflowDefinition struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Description       string   `json:"description"`
	VersionTag        string   `json:"versionTag"`
	HistoryTimeToLive int      `json:"historyTimeToLive"`
	Nodes             []string `json:"nodes"`
}

type triggerDefinition struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Method      string `json:"method"`
	PathPattern string `json:"pathPattern"`
}

type extractorDefinition struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	QueryTemplate string `json:"queryTemplate"`
}

type taskDefinition struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ScriptType  string `json:"scriptType"`
	Script      string `json:"script"`
}

func encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return pretty.Pretty(data), nil
}

// Scaffold creates the skeleton of a new workflow: every stage folder, an
// empty setup, a workflow definition and a start trigger.
func (m *Manager) Scaffold(name string) (string, error) {
	if name == "" || common.SanitizeName(name) == "" {
		return "", fmt.Errorf("invalid workflow name %q", name)
	}
	path := m.Path(name)
	if common.Exists(path) {
		return "", fmt.Errorf("workflow %s already exists at %s", name, path)
	}

	for _, dir := range []string{
		filepath.Join(ExtractorsDir, SQLDir),
		filepath.Join(TasksDir, JSDir),
		TriggersDir,
		ReferenceDataDir,
		ReferenceLinkTypesDir,
	} {
		if err := common.EnsureDir(filepath.Join(path, dir)); err != nil {
			return "", fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	workflow, err := encode(workflowDefinition{
		ID:                uuid.NewString(),
		Name:              name,
		Description:       fmt.Sprintf("%s migration workflow", name),
		VersionTag:        "1.0",
		HistoryTimeToLive: 90,
		Nodes:             []string{},
	})
	if err != nil {
		return "", err
	}
	trigger, err := encode(triggerDefinition{
		ID:          uuid.NewString(),
		Name:        fmt.Sprintf("%s start", name),
		Description: fmt.Sprintf("Starts the %s workflow", name),
		Type:        "PROCESS_START",
		Method:      "POST",
		PathPattern: fmt.Sprintf("/events/%s/start", common.SanitizeName(name)),
	})
	if err != nil {
		return "", err
	}

	files := []struct {
		path    string
		content []byte
	}{
		{filepath.Join(path, WorkflowFile), workflow},
		{filepath.Join(path, SetupFile), []byte("{}\n")},
		{filepath.Join(path, TriggersDir, StartTriggerFile), trigger},
	}
	for _, f := range files {
		if err := common.CreateFile(f.path, f.content); err != nil {
			return "", err
		}
	}

	m.logger.Successf("new workflow %s scaffolded at %s", name, path)
	return path, nil
}

// Add inserts a new definition of the given type into an existing workflow
// and returns the files it created.
func (m *Manager) Add(workflow string, kind ResourceType, name string) ([]string, error) {
	path, err := m.requireWorkflow(workflow)
	if err != nil {
		return nil, err
	}
	if name == "" || filepath.Base(name) != name {
		return nil, fmt.Errorf("invalid %s name %q", kind, name)
	}

	type file struct {
		path    string
		content []byte
	}
	var files []file
	switch kind {
	case TypeExtractor:
		def, err := encode(extractorDefinition{
			ID:            uuid.NewString(),
			Name:          name,
			QueryTemplate: name + ".sql",
		})
		if err != nil {
			return nil, err
		}
		files = []file{
			{filepath.Join(path, ExtractorsDir, name+common.JSONExt), def},
			{filepath.Join(path, ExtractorsDir, SQLDir, name+".sql"), nil},
		}
	case TypeProcessor:
		def, err := encode(taskDefinition{
			ID:         uuid.NewString(),
			Name:       name,
			ScriptType: "JS",
			Script:     name + ".js",
		})
		if err != nil {
			return nil, err
		}
		files = []file{
			{filepath.Join(path, TasksDir, name+common.JSONExt), def},
			{filepath.Join(path, TasksDir, JSDir, name+".js"), nil},
		}
	case TypeReferences:
		files = []file{
			{referencedata.SetPath(path, name), referencedata.DefaultSet()},
		}
	default:
		return nil, fmt.Errorf("%s not supported, expected %s, %s or %s", kind, TypeExtractor, TypeProcessor, TypeReferences)
	}

	created := make([]string, 0, len(files))
	for _, f := range files {
		if err := common.CreateFile(f.path, f.content); err != nil {
			return created, err
		}
		created = append(created, f.path)
	}
	m.logger.Successf("new %s %s added to %s", name, kind, workflow)
	return created, nil
}
