package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"
)

// definition reads a workflow file and resolves its placeholders.
func (m *Manager) definition(name string, parts ...string) (gjson.Result, error) {
	path, err := m.requireWorkflow(name)
	if err != nil {
		return gjson.Result{}, err
	}
	file := filepath.Join(append([]string{path}, parts...)...)
	content, err := os.ReadFile(file)
	if err != nil {
		if os.IsNotExist(err) {
			return gjson.Result{}, missing(filepath.Base(file), file)
		}
		return gjson.Result{}, fmt.Errorf("failed to read %s: %w", file, err)
	}
	doc := m.templates.Substitute(string(content))
	if !gjson.Valid(doc) {
		return gjson.Result{}, fmt.Errorf("invalid JSON in %s", file)
	}
	return gjson.Parse(doc), nil
}

func (m *Manager) workflowID(name string) (string, error) {
	def, err := m.definition(name, WorkflowFile)
	if err != nil {
		return "", err
	}
	id := def.Get("id").String()
	if id == "" {
		return "", fmt.Errorf("workflow %s has no id", name)
	}
	return id, nil
}

// Activate activates the named workflow on the remote service.
func (m *Manager) Activate(ctx context.Context, name string) error {
	return m.toggle(ctx, name, "activate")
}

// Deactivate deactivates the named workflow on the remote service.
func (m *Manager) Deactivate(ctx context.Context, name string) error {
	return m.toggle(ctx, name, "deactivate")
}

func (m *Manager) toggle(ctx context.Context, name, action string) error {
	id, err := m.workflowID(name)
	if err != nil {
		return err
	}
	if _, err := m.client.Update(ctx, joinURL(m.workflowCollection(workflowsCollection), id, action), map[string]any{}); err != nil {
		return fmt.Errorf("failed to %s workflow %s: %w", action, name, err)
	}
	m.logger.Successf("workflow %s %sd", name, action)
	return nil
}

// IsActive reports whether the named workflow is active remotely.
func (m *Manager) IsActive(ctx context.Context, name string) (bool, error) {
	id, err := m.workflowID(name)
	if err != nil {
		return false, err
	}
	body, err := m.client.Get(ctx, joinURL(m.workflowCollection(workflowsCollection), id))
	if err != nil {
		return false, fmt.Errorf("failed to fetch workflow %s: %w", name, err)
	}
	return gjson.GetBytes(body, "active").Bool(), nil
}

// Run fires the start trigger of the named workflow and returns the
// service's response.
func (m *Manager) Run(ctx context.Context, name string) ([]byte, error) {
	trigger, err := m.definition(name, TriggersDir, StartTriggerFile)
	if err != nil {
		return nil, err
	}
	pattern := trigger.Get("pathPattern").String()
	if pattern == "" {
		return nil, fmt.Errorf("start trigger of %s has no pathPattern", name)
	}
	resp, err := m.client.Create(ctx, joinURL(m.config.ModWorkflow, pattern), map[string]any{})
	if err != nil {
		return nil, fmt.Errorf("failed to run workflow %s: %w", name, err)
	}
	m.logger.Successf("workflow %s started", name)
	return resp, nil
}
