package referencedata

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"

	"github.com/codebypatrickleung/folio-migration-cli/internal/common"
)

// DefaultSet is the content of a new, empty reference data set.
func DefaultSet() []byte {
	return []byte("{\n  \"data\": []\n}\n")
}

// SetPath returns the file of the named reference data set of a workflow.
func SetPath(workflowPath, name string) string {
	return filepath.Join(workflowPath, Dir, name+common.JSONExt)
}

// LoadResult reports what a Load changed.
type LoadResult struct {
	Path       string
	Created    bool
	Added      []string
	Duplicates []string
	Invalid    []string
}

// Load merges every JSON record file in sourceDir into the named reference
// data set of the workflow at workflowPath, creating the set if needed. A
// record whose id is already in the set is skipped and reported. Nothing is
// sent to the remote service; the next build provisions the merged set.
func (s *Synchronizer) Load(workflowPath, name, sourceDir string) (*LoadResult, error) {
	if !common.Exists(sourceDir) {
		return nil, fmt.Errorf("%s does not exist: %w", sourceDir, fs.ErrNotExist)
	}
	if !common.IsDir(workflowPath) {
		return nil, fmt.Errorf("workflow %s does not exist: %w", workflowPath, fs.ErrNotExist)
	}

	result := &LoadResult{Path: SetPath(workflowPath, name)}
	if common.Exists(result.Path) {
		s.logger.Infof("adding to %s references of %s", name, filepath.Base(workflowPath))
	} else {
		if err := common.CreateFile(result.Path, DefaultSet()); err != nil {
			return nil, err
		}
		result.Created = true
		s.logger.Successf("new %s references added to %s", name, filepath.Base(workflowPath))
	}

	doc, err := os.ReadFile(result.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", result.Path, err)
	}
	if !gjson.ValidBytes(doc) {
		return nil, fmt.Errorf("invalid JSON in %s", result.Path)
	}
	data := gjson.GetBytes(doc, "data")
	if data.Exists() && !data.IsArray() {
		return nil, fmt.Errorf("data of %s is not an array", result.Path)
	}

	seen := make(map[string]struct{})
	for _, id := range data.Get("#.id").Array() {
		seen[id.String()] = struct{}{}
	}

	candidates, err := common.ReadAll(sourceDir, common.JSONExt)
	if err != nil {
		return nil, err
	}
	for _, c := range candidates {
		if !gjson.ValidBytes(c.Content) {
			s.logger.Warningf("%s is not valid JSON, skipped", c.Path)
			result.Invalid = append(result.Invalid, c.Path)
			continue
		}
		id := gjson.GetBytes(c.Content, "id")
		if !id.Exists() || id.String() == "" {
			s.logger.Warningf("%s has no id, skipped", c.Path)
			result.Invalid = append(result.Invalid, c.Path)
			continue
		}
		if _, dup := seen[id.String()]; dup {
			s.logger.Warningf("reference data with id %s already exists", id.String())
			result.Duplicates = append(result.Duplicates, id.String())
			continue
		}

		doc, err = sjson.SetRawBytes(doc, "data.-1", pretty.Ugly(c.Content))
		if err != nil {
			return nil, fmt.Errorf("failed to append %s: %w", c.Path, err)
		}
		seen[id.String()] = struct{}{}
		result.Added = append(result.Added, id.String())
		s.logger.Successf("added reference data %s", id.String())
	}

	if err := common.WriteFile(result.Path, pretty.Pretty(doc)); err != nil {
		return nil, err
	}
	s.logger.Successf("%s updated", result.Path)
	return result, nil
}
