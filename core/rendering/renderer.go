/*
SPDX-License-Identifier: Apache-2.0

Copyright 2024 The Taxinomia Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    https://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package rendering

import (
	"embed"
	"fmt"
	"io"

	"github.com/google/safehtml/template"
	"github.com/google/tablesync/core/views"
)

//go:embed templates/*
var templateFS embed.FS

// TableRenderer turns the people table and landing view models into HTML.
// Templates are parsed once and are safe for concurrent use.
type TableRenderer struct {
	tableTemplate   *template.Template
	landingTemplate *template.Template
}

// NewTableRenderer parses the embedded templates
func NewTableRenderer() (*TableRenderer, error) {
	trustedFS := template.TrustedFSFromEmbed(templateFS)

	// base.html holds the page chrome shared by both pages
	tableTemplate, err := template.New("table.html").ParseFS(trustedFS, "templates/table.html", "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parse table.html: %w", err)
	}

	landingTemplate, err := template.New("landing.html").ParseFS(trustedFS, "templates/landing.html", "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parse landing.html: %w", err)
	}

	return &TableRenderer{
		tableTemplate:   tableTemplate,
		landingTemplate: landingTemplate,
	}, nil
}

// Render writes one page of the table: headers with sort and group links,
// the row model, the pagination bar and any failure banner.
func (r *TableRenderer) Render(w io.Writer, vm views.TableViewModel) error {
	return r.tableTemplate.Execute(w, vm)
}

// RenderLanding writes the index page listing the available tables
func (r *TableRenderer) RenderLanding(w io.Writer, vm views.LandingViewModel) error {
	return r.landingTemplate.Execute(w, vm)
}
