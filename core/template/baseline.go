package template

import (
	_ "embed"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// BaselineName is the name of the built-in default template.
const BaselineName = "Standard Disciplinary Form"

//go:embed baseline.yaml
var baselineYAML []byte

// Baseline returns the built-in template used whenever no default exists.
// schoolName fills SchoolInfo.SchoolName.
func Baseline(schoolName string) (Template, error) {
	var tmpl Template
	if err := yaml.Unmarshal(baselineYAML, &tmpl); err != nil {
		return Template{}, errors.Wrap(err, "parsing baseline template")
	}
	tmpl.SchoolInfo.SchoolName = schoolName
	tmpl.IsActive = true
	return tmpl, nil
}
