package agent

import (
	"encoding/json"
	"errors"
	"sort"
)

var ErrMissingDocumentType = errors.New("please select a document type")

// FormData is the multi-step authoring form a document is generated from. It
// travels with the document as opaque JSON.
type FormData struct {
	DocumentType       string `json:"documentType"`
	CompanyName        string `json:"companyName"`
	CompanyAddress     string `json:"companyAddress"`
	ContactName        string `json:"contactName"`
	ContactEmail       string `json:"contactEmail"`
	ContactPhone       string `json:"contactPhone"`
	ClientCompanyName  string `json:"clientCompanyName"`
	ClientAddress      string `json:"clientAddress"`
	ClientContactName  string `json:"clientContactName"`
	ClientContactEmail string `json:"clientContactEmail"`
	ClientContactPhone string `json:"clientContactPhone"`
	ProjectDescription string `json:"projectDescription"`
	Terms              string `json:"terms"`
	Amount             string `json:"amount"`
	Duration           string `json:"duration"`
	AdditionalNotes    string `json:"additionalNotes"`
}

// ParseFormData decodes raw form JSON. Unknown keys are ignored and an empty
// payload yields the zero form.
func ParseFormData(raw json.RawMessage) (FormData, error) {
	var f FormData
	if len(raw) == 0 || string(raw) == "null" {
		return f, nil
	}
	if err := json.Unmarshal(raw, &f); err != nil {
		return FormData{}, err
	}
	return f, nil
}

// Template is a starting point for the authoring form.
type Template struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	ProjectDescription string `json:"projectDescription"`
	Terms              string `json:"terms"`
	AdditionalNotes    string `json:"additionalNotes"`
}

var templates = map[string]Template{
	"nda": {
		ID:                 "nda",
		Name:               "Non-Disclosure Agreement (NDA)",
		ProjectDescription: "Confidential information sharing for potential business collaboration",
		Terms:              "Mutual confidentiality, 2-year term, return of information upon request",
		AdditionalNotes:    "Standard NDA with mutual protection clauses",
	},
	"proposal": {
		ID:                 "proposal",
		Name:               "Sales Proposal",
		ProjectDescription: "Professional services proposal including scope, timeline, and deliverables",
		Terms:              "Net 30 payment terms, milestone-based delivery, change order process",
		AdditionalNotes:    "Comprehensive proposal with detailed project breakdown",
	},
	"partnership": {
		ID:                 "partnership",
		Name:               "Partnership Agreement",
		ProjectDescription: "Business partnership agreement defining roles, responsibilities, and profit sharing",
		Terms:              "Equal partnership, shared decision making, quarterly profit distribution",
		AdditionalNotes:    "Partnership agreement with clear governance structure",
	},
	"service": {
		ID:                 "service",
		Name:               "Service Agreement",
		ProjectDescription: "Professional service agreement with defined scope and deliverables",
		Terms:              "Monthly payment schedule, specific deliverables, termination clauses",
		AdditionalNotes:    "Service agreement with performance metrics",
	},
	"consulting": {
		ID:                 "consulting",
		Name:               "Consulting Agreement",
		ProjectDescription: "Consulting services agreement with hourly rates and project scope",
		Terms:              "Hourly billing, monthly invoicing, intellectual property clauses",
		AdditionalNotes:    "Consulting agreement with expertise-based pricing",
	},
	"employment": {
		ID:                 "employment",
		Name:               "Employment Contract",
		ProjectDescription: "Employment agreement with job description, compensation, and benefits",
		Terms:              "At-will employment, standard benefits, confidentiality requirements",
		AdditionalNotes:    "Standard employment contract with competitive compensation",
	},
}

// Templates lists every template ordered by id.
func Templates() []Template {
	out := make([]Template, 0, len(templates))
	for _, t := range templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LookupTemplate returns the template with the given id.
func LookupTemplate(id string) (Template, bool) {
	t, ok := templates[id]
	return t, ok
}

// ApplyTemplate pre-fills the form from the named template, overwriting the
// document type and the three descriptive fields.
func (f FormData) ApplyTemplate(id string) (FormData, bool) {
	t, ok := templates[id]
	if !ok {
		return f, false
	}
	f.DocumentType = t.ID
	f.ProjectDescription = t.ProjectDescription
	f.Terms = t.Terms
	f.AdditionalNotes = t.AdditionalNotes
	return f, true
}

// Validate reports the one field generation cannot do without.
func (f FormData) Validate() error {
	if f.DocumentType == "" {
		return ErrMissingDocumentType
	}
	return nil
}
